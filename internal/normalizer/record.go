// Package normalizer turns loosely-shaped provider records into canonical
// channel, video and comment rows.
package normalizer

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Record is one raw provider object as decoded from JSON.
type Record map[string]any

// String returns the first non-empty string found under keys.
func (r Record) String(keys ...string) *string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case json.Number:
			s = t.String()
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			continue
		}
		s = strings.TrimSpace(s)
		if s != "" {
			return &s
		}
	}
	return nil
}

// Count returns the first parseable non-negative count under keys. Absent or
// unparseable values yield nil rather than zero.
func (r Record) Count(keys ...string) *int64 {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		if n, ok := parseCount(v); ok {
			return &n
		}
	}
	return nil
}

// Time returns the first parseable date under keys, in UTC.
func (r Record) Time(keys ...string) *time.Time {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		if t, ok := parseTime(v); ok {
			return &t
		}
	}
	return nil
}

// Has reports whether any of keys is present with a non-nil value.
func (r Record) Has(keys ...string) bool {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return true
		}
	}
	return false
}

var countSuffixes = map[byte]float64{
	'k': 1e3,
	'm': 1e6,
	'b': 1e9,
}

func parseCount(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return floatCount(t)
	case int:
		return floatCount(float64(t))
	case int64:
		return t, t >= 0
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, n >= 0
		}
		if f, err := t.Float64(); err == nil {
			return floatCount(f)
		}
		return 0, false
	case string:
		return parseCountString(t)
	default:
		return 0, false
	}
}

// parseCountString accepts "1234", "1,234", "1.2K", "3.4M subscribers".
func parseCountString(s string) (int64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	mult := 1.0
	if m, ok := countSuffixes[s[len(s)-1]]; ok {
		mult = m
		s = s[:len(s)-1]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return floatCount(f * mult)
}

func floatCount(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false
	}
	return int64(math.Round(f)), true
}

func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), !t.IsZero()
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		parsed, err := dateparse.ParseIn(s, time.UTC)
		if err != nil {
			return time.Time{}, false
		}
		return parsed.UTC(), true
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return unixTime(n)
	case float64:
		return unixTime(int64(t))
	default:
		return time.Time{}, false
	}
}

// unixTime accepts seconds or milliseconds since the epoch.
func unixTime(n int64) (time.Time, bool) {
	if n <= 0 {
		return time.Time{}, false
	}
	if n > 1e12 {
		return time.UnixMilli(n).UTC(), true
	}
	return time.Unix(n, 0).UTC(), true
}

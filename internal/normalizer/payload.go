package normalizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/model"
)

// ErrMalformedPayload is returned for bodies whose top-level shape cannot
// carry records at all.
var ErrMalformedPayload = errors.New("malformed payload")

// Keys that only video-shaped records carry.
var videoIdentityKeys = []string{"video_id", "videoId"}

// Payload is a decoded webhook delivery.
type Payload struct {
	Kind       model.RecordKind
	Records    []Record
	SnapshotID string
	// Malformed counts array entries that were not objects.
	Malformed int
}

// variant is one known record shape, tried in priority order.
type variant struct {
	kind    model.RecordKind
	matches func(Record) bool
}

// Video records are tried first because channel records carry no key that
// videos lack.
var variants = []variant{
	{kind: model.KindVideo, matches: func(r Record) bool { return r.Has(videoIdentityKeys...) }},
	{kind: model.KindChannel, matches: func(Record) bool { return true }},
}

// DetectKind returns the first variant matched by any record.
func DetectKind(records []Record) (model.RecordKind, bool) {
	for _, v := range variants {
		for _, r := range records {
			if v.matches(r) {
				return v.kind, true
			}
		}
	}
	return "", false
}

// ParsePayload decodes a webhook body that is either a bare array of records
// or an object holding an "items" or "data" array.
func ParsePayload(body []byte) (*Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	p := &Payload{}
	var elems []any
	switch t := raw.(type) {
	case []any:
		elems = t
	case map[string]any:
		obj := Record(t)
		if s := obj.String("snapshot_id", "snapshotId"); s != nil {
			p.SnapshotID = *s
		}
		list, ok := firstArray(obj, "items", "data")
		if !ok {
			return nil, fmt.Errorf("%w: object has no items or data array", ErrMalformedPayload)
		}
		elems = list
	default:
		return nil, fmt.Errorf("%w: expected array or object, got %T", ErrMalformedPayload, raw)
	}

	for _, e := range elems {
		if obj, ok := e.(map[string]any); ok {
			p.Records = append(p.Records, Record(obj))
			continue
		}
		p.Malformed++
	}

	if len(elems) > 0 && len(p.Records) == 0 {
		return nil, fmt.Errorf("%w: array holds no objects", ErrMalformedPayload)
	}

	if p.SnapshotID == "" && len(p.Records) > 0 {
		if s := p.Records[0].String("snapshot_id", "snapshotId"); s != nil {
			p.SnapshotID = *s
		}
	}

	if kind, ok := DetectKind(p.Records); ok {
		p.Kind = kind
	}
	return p, nil
}

func firstArray(obj Record, keys ...string) ([]any, bool) {
	for _, k := range keys {
		if list, ok := obj[k].([]any); ok {
			return list, true
		}
	}
	return nil, false
}

package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func recordingSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Config{MaxAttempts: 3}, func(int) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_ExhaustsExactlyMaxAttempts(t *testing.T) {
	var delays []time.Duration
	boom := errors.New("boom")
	calls := 0

	err := Do(context.Background(), Config{
		MaxAttempts: 4,
		Backoff:     Linear(10 * time.Millisecond),
		Sleep:       recordingSleep(&delays),
	}, func(int) error {
		calls++
		return boom
	})

	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("error %v should match ErrExhausted", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("error %v should wrap the last failure", err)
	}

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) || exhausted.Attempts != 4 {
		t.Errorf("expected ExhaustedError with 4 attempts, got %v", err)
	}

	// No sleep after the final attempt
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay[%d] = %s, want %s", i, delays[i], want[i])
		}
	}
}

func TestDo_SucceedsAfterRetry(t *testing.T) {
	var delays []time.Duration
	calls := 0
	err := Do(context.Background(), Config{
		MaxAttempts: 3,
		Sleep:       recordingSleep(&delays),
	}, func(attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	notFound := errors.New("not found")
	calls := 0
	err := Do(context.Background(), Config{MaxAttempts: 5, Sleep: recordingSleep(new([]time.Duration))}, func(int) error {
		calls++
		return Permanent(notFound)
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if err != notFound {
		t.Errorf("err = %v, want the unwrapped permanent error", err)
	}
	if errors.Is(err, ErrExhausted) {
		t.Error("permanent failure should not report exhaustion")
	}
}

func TestDo_RetryablePredicate(t *testing.T) {
	fatal := errors.New("fatal")
	calls := 0
	err := Do(context.Background(), Config{
		MaxAttempts: 5,
		Retryable:   func(err error) bool { return !errors.Is(err, fatal) },
		Sleep:       recordingSleep(new([]time.Duration)),
	}, func(int) error {
		calls++
		return fatal
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, fatal) {
		t.Errorf("err = %v, want fatal", err)
	}
}

func TestDo_ContextCancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Config{
		MaxAttempts: 5,
		Sleep: func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}, func(int) error {
		calls++
		return errors.New("transient")
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestExponential(t *testing.T) {
	backoff := Exponential(100*time.Millisecond, time.Second, 2)
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{10, time.Second},
	}
	for _, tt := range tests {
		if got := backoff(tt.attempt); got != tt.want {
			t.Errorf("Exponential(attempt=%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}

func TestDoWithResult(t *testing.T) {
	got, err := DoWithResult(context.Background(), Config{MaxAttempts: 2, Sleep: recordingSleep(new([]time.Duration))}, func(attempt int) (string, error) {
		if attempt == 1 {
			return "", errors.New("first")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q, want ok", got)
	}
}

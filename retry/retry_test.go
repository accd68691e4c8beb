package retry

import (
	"context"
	"net/http"
	"testing"
	"time"
)

// Test Case 1: Exponential backoff bounds
// Given: base=1s, max=30s, mode exponential
// When: computing delay for attempts 1..5
// Then: delay = min(max, base*2^(attempt-1)) before jitter
func TestDelayFor_Exponential(t *testing.T) {
	opts := Options{Mode: ModeExponential, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	for i, w := range want {
		if got := delayFor(i+1, opts); got != w {
			t.Errorf("attempt %d: got %v want %v", i+1, got, w)
		}
	}
	if got := delayFor(6, opts); got != 30*time.Second {
		t.Errorf("attempt 6: got %v want capped 30s", got)
	}
}

// Test Case 2: Linear and fixed backoff
func TestDelayFor_LinearAndFixed(t *testing.T) {
	linear := Options{Mode: ModeLinear, BaseDelay: time.Second, MaxDelay: time.Minute}
	if got := delayFor(3, linear); got != 3*time.Second {
		t.Errorf("linear attempt 3: got %v want 3s", got)
	}

	fixed := Options{Mode: ModeFixed, BaseDelay: 5 * time.Second, MaxDelay: time.Minute}
	if got := delayFor(9, fixed); got != 5*time.Second {
		t.Errorf("fixed attempt 9: got %v want 5s", got)
	}
}

// Test Case 3: Run retries retryable HTTP statuses and gives up on exhaustion
func TestRun_RetriesRetryableStatus(t *testing.T) {
	opts := HTTPRetry()
	opts.BaseDelay = time.Millisecond
	opts.MaxDelay = 5 * time.Millisecond
	opts.JitterFraction = 0

	attempts := 0
	_, err := Run(context.Background(), opts, func(ctx context.Context) (any, error) {
		attempts++
		return nil, &HTTPError{Status: 503, Err: errNonNil("unavailable")}
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if attempts != opts.MaxAttempts {
		t.Errorf("attempts = %d, want %d", attempts, opts.MaxAttempts)
	}
}

// Test Case 4: Run does not retry non-retryable statuses
func TestRun_NonRetryableStatusStopsImmediately(t *testing.T) {
	opts := HTTPRetry()
	attempts := 0
	_, err := Run(context.Background(), opts, func(ctx context.Context) (any, error) {
		attempts++
		return nil, &HTTPError{Status: 404, Err: errNonNil("not found")}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on 404)", attempts)
	}
}

// Test Case 5: an integer-seconds Retry-After parses to that many seconds
// (the integer form is tried before HTTP-date).
func TestParseRetryAfter_IntegerFirst(t *testing.T) {
	d, ok := ParseRetryAfter("2", time.Now())
	if !ok || d != 2*time.Second {
		t.Errorf("got (%v, %v), want (2s, true)", d, ok)
	}
}

func TestParseRetryAfter_HTTPDate(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	future := now.Add(10 * time.Second)
	d, ok := ParseRetryAfter(future.Format(http.TimeFormat), now)
	if !ok {
		t.Fatal("expected parse success")
	}
	if d < 9*time.Second || d > 10*time.Second {
		t.Errorf("got %v, want ~10s", d)
	}
}

func TestParseRetryAfter_Invalid(t *testing.T) {
	if _, ok := ParseRetryAfter("not-a-value", time.Now()); ok {
		t.Error("expected ok=false for unparseable header")
	}
}

type testErr string

func (e testErr) Error() string { return string(e) }

func errNonNil(msg string) error { return testErr(msg) }

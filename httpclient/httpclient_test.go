package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wanderer-industries/topologyd/cache"
)

// Test Case 1: ValidateURL rejects private/loopback hosts when blocking is on.
func TestSaferClient_ValidateURL_BlocksPrivate(t *testing.T) {
	c := newSaferClient(time.Second, saferClientOptions{})
	if _, err := c.ValidateURL("http://127.0.0.1/foo"); err == nil {
		t.Fatal("expected loopback URL to be rejected")
	}
	if _, err := c.ValidateURL("http://192.168.1.5/foo"); err == nil {
		t.Fatal("expected private IP URL to be rejected")
	}
}

// Test Case 2: wrapClient (test escape hatch) allows localhost through.
func TestWrapClient_AllowsLocalhost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewForTest()
	resp, err := client.Do(context.Background(), Request{
		Method:  http.MethodGet,
		URL:     srv.URL,
		Service: ServiceMap.Name,
	}, Auth{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

// Test Case 3: the license service's static rate limiter admits burst
// requests and rejects the one beyond burst_capacity within the window.
func TestStaticRateLimiter_EnforcesBurst(t *testing.T) {
	now := time.Now()
	c := cache.New(cache.WithClock(func() time.Time { return now }))
	mw := StaticRateLimiter(c)

	calls := 0
	next := func(Request) (Response, error) {
		calls++
		return Response{StatusCode: 200, Headers: http.Header{}}, nil
	}

	req := Request{Method: "POST", URL: "http://license.example.com/validate_bot", Service: "license"}
	for i := 0; i < rateLimitBurst; i++ {
		if _, err := mw(req, next); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
	}
	if _, err := mw(req, next); err == nil {
		t.Fatal("expected rate_limited error beyond burst capacity")
	}
	if calls != rateLimitBurst {
		t.Errorf("next called %d times, want %d (blocked request should not reach server)", calls, rateLimitBurst)
	}
}

// Test Case 4: retry middleware retries a retryable 503 up to the
// service's retry budget, then surfaces the error.
func TestRetryMiddleware_RetriesAndGivesUp(t *testing.T) {
	cfg := ServiceLicense
	mw := RetryMiddleware(context.Background(), cfg)

	calls := 0
	next := func(Request) (Response, error) {
		calls++
		return Response{StatusCode: 503, Headers: http.Header{}}, nil
	}

	if _, err := mw(Request{Service: cfg.Name}, next); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != cfg.Retries+1 {
		t.Errorf("calls = %d, want %d", calls, cfg.Retries+1)
	}
}

// Test Case 5: dynamic ESI limiter sleeps when the cached remaining-budget
// is critically low and the reset window hasn't passed.
func TestDynamicESIRateLimiter_UsesResponseHeaders(t *testing.T) {
	lim := NewDynamicESIRateLimiter()
	mw := lim.Middleware()

	first := func(Request) (Response, error) {
		h := http.Header{}
		h.Set("X-ESI-Error-Limit-Remain", "1")
		h.Set("X-ESI-Error-Limit-Reset", "1")
		return Response{StatusCode: 200, Headers: h}, nil
	}
	if _, err := mw(Request{Service: "esi"}, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := time.Now()
	second := func(Request) (Response, error) {
		return Response{StatusCode: 200, Headers: http.Header{}}, nil
	}
	if _, err := mw(Request{Service: "esi"}, second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) <= 0 {
		t.Error("expected the second call to be delayed by the low remaining budget")
	}
}

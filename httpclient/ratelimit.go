package httpclient

import (
	"strconv"
	"sync"
	"time"

	"github.com/wanderer-industries/topologyd/cache"
	"github.com/wanderer-industries/topologyd/errors"
	"github.com/wanderer-industries/topologyd/retry"
	"golang.org/x/time/rate"
)

// rateLimitBurst is the burst_capacity for the license service's static
// bucket (1 req/s, burst 2, per-host).
const rateLimitBurst = 2

// StaticRateLimiter admits requests through the cache's windowed counter
// (1-second window, per-host bucket), rejecting with ErrRateLimited once
// the burst capacity is exhausted without ever contacting the server.
// With a nil cache the bucket check is skipped.
func StaticRateLimiter(c *cache.Cache) Middleware {
	return func(req Request, next Next) (Response, error) {
		if c != nil {
			key := "http_rate_limit:" + hostOf(req)
			wc, err := c.UpdateWindowedCounter(key, time.Second, 2*time.Second)
			if err != nil {
				return Response{}, err
			}
			if wc.Requests > rateLimitBurst {
				return Response{}, errors.Mark(errors.Newf("rate limit exceeded for %s", key), errors.ErrRateLimited)
			}
		}

		resp, err := next(req)
		if err == nil && resp.StatusCode == 429 {
			if d, ok := retry.ParseRetryAfter(resp.Headers.Get("Retry-After"), time.Now()); ok {
				time.Sleep(d)
			}
			return resp, errors.Mark(errors.Newf("rate limited by %s", hostOf(req)), errors.ErrRateLimited)
		}
		return resp, err
	}
}

type esiLimitState struct {
	remaining int
	resetAt   time.Time
}

// DynamicESIRateLimiter throttles ahead of ESI's error-budget running out:
// it reads X-ESI-Error-Limit-Remain/-Reset from each response and, once
// remaining drops low, sleeps a fraction of the reset window before the
// next request on that host.
type DynamicESIRateLimiter struct {
	mu    sync.Mutex
	state map[string]esiLimitState
}

// NewDynamicESIRateLimiter creates an empty per-host ESI limiter.
func NewDynamicESIRateLimiter() *DynamicESIRateLimiter {
	return &DynamicESIRateLimiter{state: make(map[string]esiLimitState)}
}

// Middleware returns the ESI dynamic-rate-limit middleware backed by d.
func (d *DynamicESIRateLimiter) Middleware() Middleware {
	return func(req Request, next Next) (Response, error) {
		host := hostOf(req)

		d.mu.Lock()
		st, ok := d.state[host]
		d.mu.Unlock()

		if ok && time.Now().Before(st.resetAt) {
			remain := st.remaining
			wait := time.Duration(0)
			switch {
			case remain <= 1:
				wait = time.Until(st.resetAt)
			case remain <= 3:
				wait = time.Duration(float64(time.Until(st.resetAt)) * 0.3)
			case remain <= 5:
				wait = time.Duration(float64(time.Until(st.resetAt)) * 0.1)
			}
			if wait > 0 {
				time.Sleep(wait)
			}
		}

		resp, err := next(req)
		if err == nil {
			if remainStr := resp.Headers.Get("X-ESI-Error-Limit-Remain"); remainStr != "" {
				if remain, perr := strconv.Atoi(remainStr); perr == nil {
					resetSecs := 60
					if resetStr := resp.Headers.Get("X-ESI-Error-Limit-Reset"); resetStr != "" {
						if r, rerr := strconv.Atoi(resetStr); rerr == nil {
							resetSecs = r
						}
					}
					d.mu.Lock()
					d.state[host] = esiLimitState{
						remaining: remain,
						resetAt:   time.Now().Add(time.Duration(resetSecs) * time.Second),
					}
					d.mu.Unlock()
				}
			}
		}
		return resp, err
	}
}

// DiscordRateLimiter enforces Discord webhook limits: a global 50 req/s
// token bucket plus a per-webhook 5-req/2s windowed-counter bucket. Both
// limits are fixed: X-RateLimit-* response headers are not read; on a 429
// it sleeps for Retry-After and returns ErrRateLimited.
type DiscordRateLimiter struct {
	global *rate.Limiter
	cache  *cache.Cache
}

// NewDiscordRateLimiter creates a limiter backed by c for the per-webhook
// windowed buckets.
func NewDiscordRateLimiter(c *cache.Cache) *DiscordRateLimiter {
	return &DiscordRateLimiter{
		global: rate.NewLimiter(rate.Limit(50), 50),
		cache:  c,
	}
}

// Middleware returns the Discord rate-limit middleware backed by d.
func (d *DiscordRateLimiter) Middleware() Middleware {
	return func(req Request, next Next) (Response, error) {
		if !d.global.Allow() {
			return Response{}, errors.Mark(errors.New("discord global rate limit exceeded"), errors.ErrRateLimited)
		}

		key := "discord_webhook:" + hostOf(req) + req.URL
		wc, err := d.cache.UpdateWindowedCounter(key, 2*time.Second, 4*time.Second)
		if err != nil {
			return Response{}, err
		}
		if wc.Requests > 5 {
			return Response{}, errors.Mark(errors.New("discord per-webhook rate limit exceeded"), errors.ErrRateLimited)
		}

		resp, err := next(req)
		if err == nil && resp.StatusCode == 429 {
			if wait, ok := retry.ParseRetryAfter(resp.Headers.Get("Retry-After"), time.Now()); ok {
				time.Sleep(wait)
			}
			return resp, errors.Mark(errors.New("rate limited by discord"), errors.ErrRateLimited)
		}
		return resp, err
	}
}

package httpclient

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wanderer-industries/topologyd/cache"
	"github.com/wanderer-industries/topologyd/errors"
)

// Client executes Requests through the per-service middleware chain in
// front of an SSRF-safe transport.
type Client struct {
	transport  *saferClient
	esiLimiter *DynamicESIRateLimiter
	rateCache  *cache.Cache
}

// New creates a Client. c is the namespaced cache backing the static rate
// limiter's per-host buckets; pass nil to disable that bucket check
// (ESI/map/streaming services don't need it).
func New(c *cache.Cache) *Client {
	return &Client{
		transport:  newSaferClient(60*time.Second, saferClientOptions{}),
		esiLimiter: NewDynamicESIRateLimiter(),
		rateCache:  c,
	}
}

// NewForTest builds a Client whose transport skips SSRF protection, for
// use against httptest.NewServer.
func NewForTest() *Client {
	return &Client{
		transport:  wrapClient(&http.Client{Timeout: 10 * time.Second}),
		esiLimiter: NewDynamicESIRateLimiter(),
		rateCache:  cache.New(),
	}
}

// RawClient returns the SSRF-protected *http.Client beneath this Client,
// with no per-request timeout, for callers (the SSE client) that hold a
// long-lived streaming connection outside the middleware chain.
func (c *Client) RawClient() *http.Client {
	raw := *c.transport.Client
	raw.Timeout = 0
	return &raw
}

// Do executes req under its named service's configuration, applying auth
// and the service's middleware chain, outermost Telemetry always wrapping.
func (c *Client) Do(ctx context.Context, req Request, auth Auth) (Response, error) {
	cfg, ok := Services[req.Service]
	if !ok {
		return Response{}, errors.Newf("httpclient: unknown service %q", req.Service)
	}

	if req.Headers == nil {
		req.Headers = make(map[string]string)
	}
	applyAuth(req.Headers, auth)

	chain := c.chainFor(ctx, cfg)
	return chain(req, c.transportCall(cfg.Timeout))
}

// chainFor builds the service-specific middleware chain. Telemetry always
// wraps outermost; the inner ordering follows the per-service override
// rules.
func (c *Client) chainFor(ctx context.Context, cfg ServiceConfig) Middleware {
	switch cfg.RateLimit {
	case RateLimitDynamicESI:
		// ESI override: Retry -> DynamicRateLimiter
		return Chain(Telemetry(), RetryMiddleware(ctx, cfg), c.esiLimiter.Middleware())
	case RateLimitStatic:
		// License override: Retry -> RateLimiter
		return Chain(Telemetry(), RetryMiddleware(ctx, cfg), StaticRateLimiter(c.rateCache))
	case RateLimitNone:
		if cfg.Retries <= 0 {
			// streaming: no middleware at all beyond telemetry
			return Chain(Telemetry())
		}
		return Chain(Telemetry(), RetryMiddleware(ctx, cfg))
	default:
		// Default chain: Telemetry -> RateLimiter -> Retry
		return Chain(Telemetry(), StaticRateLimiter(c.rateCache), RetryMiddleware(ctx, cfg))
	}
}

func (c *Client) transportCall(timeout time.Duration) Next {
	return func(req Request) (Response, error) {
		httpReq, err := http.NewRequest(req.Method, req.URL, strings.NewReader(string(req.Body)))
		if err != nil {
			return Response{}, errors.Wrap(err, "building request")
		}
		for k, v := range req.Headers {
			httpReq.Header.Set(k, v)
		}

		client := c.transport.Client
		if timeout > 0 {
			withTimeout := *client
			withTimeout.Timeout = timeout
			client = &withTimeout
		}

		if _, err := c.transport.ValidateURL(req.URL); err != nil {
			return Response{}, errors.Wrap(err, "request blocked")
		}

		httpResp, err := client.Do(httpReq)
		if err != nil {
			return Response{}, errors.Wrap(err, "transport error")
		}
		defer httpResp.Body.Close()

		body, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return Response{}, errors.Wrap(err, "reading response body")
		}

		return Response{
			StatusCode: httpResp.StatusCode,
			Headers:    httpResp.Header,
			Body:       body,
		}, nil
	}
}

func applyAuth(headers map[string]string, auth Auth) {
	switch auth.Type {
	case AuthBearer:
		headers["Authorization"] = "Bearer " + auth.Token
	case AuthAPIKey:
		headers["X-API-Key"] = auth.Key
	case AuthBasic:
		creds := base64.StdEncoding.EncodeToString([]byte(auth.User + ":" + auth.Pass))
		headers["Authorization"] = "Basic " + creds
	}
}

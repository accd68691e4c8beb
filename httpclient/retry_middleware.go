package httpclient

import (
	"context"
	"strconv"

	"github.com/wanderer-industries/topologyd/retry"
)

// RetryMiddleware retries a request per cfg's retry budget and retryable
// statuses, composing the shared retry.Run loop around next.
func RetryMiddleware(ctx context.Context, cfg ServiceConfig) Middleware {
	return func(req Request, next Next) (Response, error) {
		if cfg.Retries <= 0 {
			return next(req)
		}

		opts := retry.HTTPRetry()
		opts.MaxAttempts = cfg.Retries + 1

		result, err := retry.Run(ctx, opts, func(ctx context.Context) (any, error) {
			resp, err := next(req)
			if err != nil {
				return resp, err
			}
			if cfg.retryableStatus(resp.StatusCode) {
				return resp, &retry.HTTPError{Status: resp.StatusCode, Err: errStatus(resp.StatusCode)}
			}
			return resp, nil
		})

		if resp, ok := result.(Response); ok {
			return resp, err
		}
		return Response{}, err
	}
}

type statusErr int

func (e statusErr) Error() string { return "http status " + strconv.Itoa(int(e)) }

func errStatus(code int) error { return statusErr(code) }

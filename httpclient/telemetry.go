package httpclient

import (
	"net/url"
	"time"

	"github.com/wanderer-industries/topologyd/logger"
)

// Telemetry logs start/finish/error for every request: duration, method,
// host, service tag, and the resulting status (or a classified error).
func Telemetry() Middleware {
	log := logger.ComponentLogger("httpclient")
	return func(req Request, next Next) (Response, error) {
		start := time.Now()
		log.Debugw("request start", "method", req.Method, "host", hostOf(req), "service", req.Service)

		resp, err := next(req)
		duration := time.Since(start)

		if err != nil {
			log.Warnw("request error",
				"method", req.Method, "host", hostOf(req), "service", req.Service,
				"duration_ms", duration.Milliseconds(), "error", err)
			return resp, err
		}

		log.Debugw("request finish",
			"method", req.Method, "host", hostOf(req), "service", req.Service,
			"duration_ms", duration.Milliseconds(), "status", resp.StatusCode)
		resp.Duration = duration
		return resp, nil
	}
}

func hostOf(req Request) string {
	u, err := url.Parse(req.URL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

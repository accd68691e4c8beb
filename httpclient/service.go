package httpclient

import "time"

// ServiceConfig is one row of the per-service table: timeout, retry
// budget, which statuses are retryable, and which rate limiter (if any)
// applies.
type ServiceConfig struct {
	Name               string
	Timeout            time.Duration // 0 means no timeout (streaming)
	Retries            int
	RetryableStatus4xx map[int]bool // retryable 4xx statuses (rare: none by default)
	Retryable5xx       bool
	RateLimit          RateLimitKind
}

// RateLimitKind selects which rate limiter middleware (if any) wraps a
// service's requests.
type RateLimitKind int

const (
	RateLimitNone RateLimitKind = iota
	RateLimitStatic
	RateLimitDynamicESI
)

// Named service configurations, one per upstream.
var (
	ServiceESI = ServiceConfig{
		Name:         "esi",
		Timeout:      3 * time.Second,
		Retries:      3,
		Retryable5xx: true,
		RateLimit:    RateLimitDynamicESI,
	}
	ServiceLicense = ServiceConfig{
		Name:         "license",
		Timeout:      3 * time.Second,
		Retries:      2,
		Retryable5xx: true,
		RateLimit:    RateLimitStatic,
	}
	ServiceMap = ServiceConfig{
		Name:         "map",
		Timeout:      60 * time.Second,
		Retries:      2,
		Retryable5xx: true,
		RateLimit:    RateLimitNone,
	}
	ServiceStreaming = ServiceConfig{
		Name:      "streaming",
		Timeout:   0,
		Retries:   0,
		RateLimit: RateLimitNone,
	}
)

// Services indexes the table by name.
var Services = map[string]ServiceConfig{
	ServiceESI.Name:       ServiceESI,
	ServiceLicense.Name:   ServiceLicense,
	ServiceMap.Name:       ServiceMap,
	ServiceStreaming.Name: ServiceStreaming,
}

// retryableStatus reports whether status should be retried under cfg.
func (cfg ServiceConfig) retryableStatus(status int) bool {
	if status >= 500 && status < 600 {
		return cfg.Retryable5xx
	}
	return cfg.RetryableStatus4xx[status]
}

// AuthType selects how Auth populates request headers.
type AuthType int

const (
	AuthNone AuthType = iota
	AuthBearer
	AuthAPIKey
	AuthBasic
)

// Auth describes request authentication, applied by Client.Do before the
// middleware chain runs.
type Auth struct {
	Type  AuthType
	Token string // bearer
	Key   string // api_key
	User  string // basic
	Pass  string // basic
}

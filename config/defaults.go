package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values per spec.md §6.
const (
	DefaultPort                   = 4000
	DefaultHost                   = "0.0.0.0"
	DefaultLicenseManagerAPIURL   = "https://lm.wanderer.ltd/api"
	DefaultLicenseRefreshInterval = time.Hour
	DefaultSSEConnectTimeout      = 30 * time.Second
	DefaultSSEKeepaliveInterval   = 30 * time.Second
	DefaultStorePath              = "topologyd.db"
)

// SetDefaults configures default values for every configuration field.
//
// The four duration fields are stored as the same raw strings an
// environment variable would carry (ms, ms, seconds, ms) rather than as
// time.Duration values, so applyDurations parses every source — default,
// file, or env var — through the same code path.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("sse.recv_timeout", "infinity")
	v.SetDefault("sse.connect_timeout", "30000")
	v.SetDefault("sse.keepalive_interval", "30")

	v.SetDefault("license.manager_api_url", DefaultLicenseManagerAPIURL)
	v.SetDefault("license.refresh_interval", "3600000")

	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.host", DefaultHost)

	v.SetDefault("store.path", DefaultStorePath)

	v.SetDefault("telemetry.notifications_enabled", true)
	v.SetDefault("telemetry.logging_enabled", false)
}

// BindSensitiveEnvVars binds the unprefixed environment variable names
// spec.md §6 enumerates, in addition to the generic TOPOLOGYD_-prefixed
// path every field already gets through AutomaticEnv.
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("sse.recv_timeout", "SSE_RECV_TIMEOUT")
	v.BindEnv("sse.connect_timeout", "SSE_CONNECT_TIMEOUT")
	v.BindEnv("sse.keepalive_interval", "SSE_KEEPALIVE_INTERVAL")

	v.BindEnv("license.key", "LICENSE_KEY")
	v.BindEnv("license.manager_api_key", "LICENSE_MANAGER_API_KEY")
	v.BindEnv("license.manager_api_url", "LICENSE_MANAGER_API_URL")
	v.BindEnv("license.refresh_interval", "LICENSE_REFRESH_INTERVAL")

	v.BindEnv("telemetry.notifications_enabled", "NOTIFICATIONS_ENABLED")
	v.BindEnv("telemetry.logging_enabled", "TELEMETRY_LOGGING_ENABLED")

	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.host", "HOST")
}

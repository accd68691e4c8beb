// Package config loads topologyd's configuration through a layered Viper
// setup: built-in defaults, then system/user/project TOML files, then
// environment variables, matching the precedence order documented in
// spec.md §6.
package config

import (
	"time"

	"github.com/wanderer-industries/topologyd/model"
)

// Config is the root configuration for the service.
type Config struct {
	SSE       SSEConfig       `mapstructure:"sse"`
	License   LicenseConfig   `mapstructure:"license"`
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// Maps is the statically-configured map roster for this deployment.
	// spec.md treats map metadata as owned by an external CRUD facade;
	// here that facade is simply this config file's [[maps]] table,
	// which is the "process-boot/config-loading glue" spec.md leaves to
	// the embedder.
	Maps []model.Map `mapstructure:"maps"`
}

// SSEConfig configures the per-map SSE client's timeouts. The three
// duration fields are parsed manually in Load (not through mapstructure)
// because their source units differ (ms, ms, seconds) and RecvTimeout
// additionally accepts the literal "infinity".
type SSEConfig struct {
	// RecvTimeout is 0 for "infinity" (SSE streams are never idle-closed
	// from our side).
	RecvTimeout       time.Duration `mapstructure:"-"`
	ConnectTimeout    time.Duration `mapstructure:"-"`
	KeepaliveInterval time.Duration `mapstructure:"-"`
}

// LicenseConfig configures the license validator's upstream.
type LicenseConfig struct {
	Key             string        `mapstructure:"key"`
	ManagerAPIKey   string        `mapstructure:"manager_api_key"`
	ManagerAPIURL   string        `mapstructure:"manager_api_url"`
	RefreshInterval time.Duration `mapstructure:"-"`
}

// ServerConfig configures the admin/introspection HTTP listener.
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// StoreConfig configures the SQLite persistence layer.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// TelemetryConfig toggles outbound notification and logging behavior.
type TelemetryConfig struct {
	NotificationsEnabled bool `mapstructure:"notifications_enabled"`
	LoggingEnabled       bool `mapstructure:"logging_enabled"`
}

// DevMode reports whether the license key or manager API key is absent,
// which the license validator treats as a development-mode shortcut.
func (c *Config) DevMode() bool {
	return c.License.Key == "" || c.License.ManagerAPIKey == ""
}

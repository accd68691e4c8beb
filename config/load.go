package config

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/wanderer-industries/topologyd/errors"
)

var (
	globalConfig  *Config
	viperInstance *viper.Viper
)

// Load reads the configuration through the layered Viper setup and
// validates it. The result is cached; call Reset to force a reload.
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v := initViper()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := applyDurations(v, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = &cfg
	return globalConfig, nil
}

// GetViper returns the process-wide Viper instance for advanced access.
func GetViper() *viper.Viper {
	return initViper()
}

// Reset clears the cached configuration and Viper instance (for tests).
func Reset() {
	globalConfig = nil
	viperInstance = nil
}

func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	v.SetEnvPrefix("TOPOLOGYD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	BindSensitiveEnvVars(v)
	SetDefaults(v)
	mergeConfigFiles(v)

	viperInstance = v
	return v
}

// findProjectConfig walks up from the working directory looking for
// topologyd.toml.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		path := filepath.Join(dir, "topologyd.toml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// mergeConfigFiles merges config files in precedence order (lowest to
// highest): system < user < project. Environment variables always win
// over all of them since AutomaticEnv/BindEnv are consulted first by
// Viper's own Get precedence.
func mergeConfigFiles(v *viper.Viper) {
	homeDir, _ := os.UserHomeDir()
	userDir := filepath.Join(homeDir, ".topologyd")
	os.MkdirAll(userDir, 0755)

	paths := []string{
		"/etc/topologyd/config.toml",
		filepath.Join(userDir, "config.toml"),
	}
	if project := findProjectConfig(); project != "" {
		paths = append(paths, project)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		tmp := viper.New()
		tmp.SetConfigFile(path)
		tmp.SetConfigType("toml")
		if err := tmp.ReadInConfig(); err != nil {
			continue
		}

		settings := tmp.AllSettings()
		keys := make([]string, 0, len(settings))
		for key := range settings {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			v.Set(key, settings[key])
		}
	}
}

// applyDurations fills the duration fields Unmarshal skips (see the
// mapstructure:"-" tags in config.go), each parsed in its own unit.
func applyDurations(v *viper.Viper, cfg *Config) error {
	recv, err := parseMillisOrInfinity(v.GetString("sse.recv_timeout"), 0)
	if err != nil {
		return errors.Wrap(err, "sse.recv_timeout")
	}
	cfg.SSE.RecvTimeout = recv

	connect, err := parseMillis(v.GetString("sse.connect_timeout"), DefaultSSEConnectTimeout)
	if err != nil {
		return errors.Wrap(err, "sse.connect_timeout")
	}
	cfg.SSE.ConnectTimeout = connect

	keepalive, err := parseSeconds(v.GetString("sse.keepalive_interval"), DefaultSSEKeepaliveInterval)
	if err != nil {
		return errors.Wrap(err, "sse.keepalive_interval")
	}
	cfg.SSE.KeepaliveInterval = keepalive

	refresh, err := parseMillis(v.GetString("license.refresh_interval"), DefaultLicenseRefreshInterval)
	if err != nil {
		return errors.Wrap(err, "license.refresh_interval")
	}
	cfg.License.RefreshInterval = refresh

	return nil
}

func parseMillisOrInfinity(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	if strings.EqualFold(raw, "infinity") {
		return 0, nil
	}
	return parseMillis(raw, fallback)
}

func parseMillis(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "expected an integer number of milliseconds, got %q", raw)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func parseSeconds(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	s, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "expected an integer number of seconds, got %q", raw)
	}
	return time.Duration(s) * time.Second, nil
}

package config

import "github.com/wanderer-industries/topologyd/errors"

// Validate checks the structurally-required settings (port range, positive
// durations, the map roster), failing fast at startup. It does not check
// LICENSE_KEY/LICENSE_MANAGER_API_KEY: a missing key or token puts the
// license validator into dev mode (see Config.DevMode and
// license.Config.DevMode) rather than failing the load.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.License.RefreshInterval <= 0 {
		return errors.Newf("license.refresh_interval must be > 0")
	}
	if c.SSE.ConnectTimeout <= 0 {
		return errors.Newf("sse.connect_timeout must be > 0")
	}
	if err := c.validateMaps(); err != nil {
		return err
	}
	return nil
}

// validateMaps enforces spec.md's main-uniqueness invariant on the
// statically-configured map roster: at most one map may be is_main, and
// every map id must be unique. An empty roster is valid (a freshly
// bootstrapped deployment with no maps configured yet).
func (c *Config) validateMaps() error {
	seen := make(map[string]bool, len(c.Maps))
	mainCount := 0
	for _, m := range c.Maps {
		if m.ID == "" {
			return errors.Newf("maps: every map must have an id")
		}
		if seen[m.ID] {
			return errors.Newf("maps: duplicate map id %q", m.ID)
		}
		seen[m.ID] = true
		if m.IsMain {
			mainCount++
		}
	}
	if mainCount > 1 {
		return errors.Newf("maps: at most one map may be is_main, got %d", mainCount)
	}
	return nil
}

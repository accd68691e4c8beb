package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetEnv(t *testing.T) {
	t.Helper()
	Reset()
	for _, key := range []string{
		"SSE_RECV_TIMEOUT", "SSE_CONNECT_TIMEOUT", "SSE_KEEPALIVE_INTERVAL",
		"LICENSE_KEY", "LICENSE_MANAGER_API_KEY", "LICENSE_MANAGER_API_URL", "LICENSE_REFRESH_INTERVAL",
		"NOTIFICATIONS_ENABLED", "TELEMETRY_LOGGING_ENABLED", "PORT", "HOST",
	} {
		os.Unsetenv(key)
	}
	t.Cleanup(Reset)
}

func TestLoad_Defaults(t *testing.T) {
	resetEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Duration(0), cfg.SSE.RecvTimeout)
	assert.Equal(t, 30*time.Second, cfg.SSE.ConnectTimeout)
	assert.Equal(t, 30*time.Second, cfg.SSE.KeepaliveInterval)
	assert.Equal(t, DefaultLicenseManagerAPIURL, cfg.License.ManagerAPIURL)
	assert.Equal(t, time.Hour, cfg.License.RefreshInterval)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, DefaultHost, cfg.Server.Host)
	assert.True(t, cfg.Telemetry.NotificationsEnabled)
	assert.False(t, cfg.Telemetry.LoggingEnabled)
	assert.True(t, cfg.DevMode())
}

func TestLoad_EnvOverrides(t *testing.T) {
	resetEnv(t)
	os.Setenv("SSE_RECV_TIMEOUT", "5000")
	os.Setenv("SSE_CONNECT_TIMEOUT", "1000")
	os.Setenv("SSE_KEEPALIVE_INTERVAL", "15")
	os.Setenv("LICENSE_KEY", "abc123")
	os.Setenv("LICENSE_MANAGER_API_KEY", "def456")
	os.Setenv("PORT", "9000")
	os.Setenv("HOST", "127.0.0.1")
	os.Setenv("NOTIFICATIONS_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.SSE.RecvTimeout)
	assert.Equal(t, time.Second, cfg.SSE.ConnectTimeout)
	assert.Equal(t, 15*time.Second, cfg.SSE.KeepaliveInterval)
	assert.Equal(t, "abc123", cfg.License.Key)
	assert.Equal(t, "def456", cfg.License.ManagerAPIKey)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.False(t, cfg.Telemetry.NotificationsEnabled)
	assert.False(t, cfg.DevMode())
}

func TestLoad_RecvTimeoutInfinity(t *testing.T) {
	resetEnv(t)
	os.Setenv("SSE_RECV_TIMEOUT", "infinity")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.SSE.RecvTimeout)
}

func TestLoad_IsCached(t *testing.T) {
	resetEnv(t)

	first, err := Load()
	require.NoError(t, err)
	os.Setenv("PORT", "1234")
	second, err := Load()
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, DefaultPort, second.Server.Port, "cached config should not reflect a later env change")
}

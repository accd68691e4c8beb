package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wanderer-industries/topologyd/model"
)

func validConfig() Config {
	return Config{
		SSE:     SSEConfig{ConnectTimeout: 30 * time.Second},
		License: LicenseConfig{RefreshInterval: time.Hour},
		Server:  ServerConfig{Port: 4000},
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_BadPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg.Server.Port = 70000
	assert.Error(t, cfg.Validate())
}

func TestValidate_NonPositiveDurations(t *testing.T) {
	cfg := validConfig()
	cfg.License.RefreshInterval = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.SSE.ConnectTimeout = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_MissingLicenseKeyIsNotAConfigError(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate(), "dev mode is a license.Validator concern, not a config.Validate concern")
}

func TestValidate_MapsMainUniqueness(t *testing.T) {
	cfg := validConfig()
	cfg.Maps = []model.Map{{ID: "a", IsMain: true}, {ID: "b", IsMain: true}}
	assert.Error(t, cfg.Validate())

	cfg.Maps = []model.Map{{ID: "a", IsMain: true}, {ID: "b"}}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_MapsDuplicateID(t *testing.T) {
	cfg := validConfig()
	cfg.Maps = []model.Map{{ID: "a"}, {ID: "a"}}
	assert.Error(t, cfg.Validate())
}

func TestValidate_MapsMissingID(t *testing.T) {
	cfg := validConfig()
	cfg.Maps = []model.Map{{ID: ""}}
	assert.Error(t, cfg.Validate())
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "local", cfg.Connection.ProjectID)
	assert.Equal(t, "local", cfg.Connection.InstanceID)
	assert.Equal(t, 1, cfg.Connection.PoolSize)
	assert.False(t, cfg.Connection.ReadOnly)
	assert.False(t, cfg.Connection.Staging)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NotEmpty(t, cfg.Logging.Path)

	assert.True(t, cfg.Observability.MetricsEnabled)

	assert.Empty(t, cfg.Validate())
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(*Config)
		wantErrs int
	}{
		{
			name:     "valid default config",
			modify:   func(c *Config) {},
			wantErrs: 0,
		},
		{
			name:     "pool size zero",
			modify:   func(c *Config) { c.Connection.PoolSize = 0 },
			wantErrs: 1,
		},
		{
			name:     "missing project id",
			modify:   func(c *Config) { c.Connection.ProjectID = "" },
			wantErrs: 1,
		},
		{
			name: "duplicate metric name",
			modify: func(c *Config) {
				c.Metrics = []MetricDefinition{{Name: "temp", ID: "t"}, {Name: "temp", ID: "u"}}
			},
			wantErrs: 1,
		},
		{
			name:     "invalid logging level",
			modify:   func(c *Config) { c.Logging.Level = "verbose" },
			wantErrs: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			errs := cfg.Validate()
			assert.Len(t, errs, tt.wantErrs)
		})
	}
}

func TestStagingCoercesReadOnly(t *testing.T) {
	m := &viperManager{config: DefaultConfig()}
	m.config.Connection.Staging = true
	m.applyEnvOverrides()
	assert.True(t, m.config.Connection.ReadOnly)
}

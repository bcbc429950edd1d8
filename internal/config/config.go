// Package config provides configuration management for tscore.
//
// Responsibilities:
//   - Load configuration from YAML files, environment variables, and defaults
//   - Validate configuration on startup
//   - Provide runtime access to all configuration
//   - Support configuration reloading for the subset of settings that are
//     safe to change without re-establishing the backend pool
//
// Configuration sources (priority order, high to low):
//  1. Environment variables (TSCORE_* prefix)
//  2. YAML config file (default: /etc/tscore/config.yaml)
//  3. Built-in defaults (lowest priority)
//
// Main configuration sections:
//
//  1. Connection
//     - project_id / instance_id: backend project/instance identifiers
//     - table_prefix: prefix applied to every managed table name
//     - pool_size: number of backend handles to maintain
//     - read_only: reject all mutating calls before any I/O
//     - staging: forces read_only=true regardless of the read_only setting
//
//  2. Metrics / Events
//     - metrics: name, column-family id, delete-possible flag
//     - events: event stream names
//
//  3. Logging
//     - level / path / rotation settings
//
//  4. Observability
//     - metrics_enabled: expose prometheus counters/histograms
package config

import "context"

// Config holds every tscore setting recognized at startup.
type Config struct {
	Connection struct {
		ProjectID    string
		InstanceID   string
		TablePrefix  string
		PoolSize     int
		ReadOnly     bool
		Staging      bool
		CredentialsPath string
	}

	Metrics []MetricDefinition
	Events  []EventDefinition

	Logging struct {
		Level      string
		Path       string
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
		Compress   bool
	}

	Observability struct {
		MetricsEnabled bool
	}
}

// MetricDefinition mirrors metricdef.Metric in config-file shape.
type MetricDefinition struct {
	Name           string
	ID             string
	DeletePossible bool
}

// EventDefinition mirrors metricdef.Event in config-file shape.
type EventDefinition struct {
	Name string
}

// Manager defines the interface for configuration access.
type Manager interface {
	// Load loads configuration from all sources.
	Load(ctx context.Context) error

	// Get returns the current configuration.
	Get(ctx context.Context) *Config

	// Validate validates configuration is correct and complete.
	Validate(ctx context.Context) error

	// Watch watches for configuration file changes and reloads.
	Watch(ctx context.Context) <-chan Config

	// Reload reloads configuration from sources.
	Reload(ctx context.Context) error
}

// NewManager creates a new configuration manager reading from configPath.
func NewManager(configPath string) (Manager, error) {
	return &viperManager{
		configPath: configPath,
		config:     DefaultConfig(),
		watchChan:  make(chan Config, 1),
	}, nil
}

// NewManagerWithDefaults creates a manager using the default config path.
func NewManagerWithDefaults() (Manager, error) {
	return NewManager("/etc/tscore/config.yaml")
}

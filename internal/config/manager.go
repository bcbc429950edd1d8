package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// viperManager implements Manager using Viper.
type viperManager struct {
	configPath string
	config     *Config
	viper      *viper.Viper
	watchChan  chan Config
}

// Load loads configuration from all sources.
func (m *viperManager) Load(ctx context.Context) error {
	m.viper = viper.New()
	m.viper.SetConfigFile(m.configPath)
	m.viper.SetConfigType("yaml")

	m.viper.SetEnvPrefix("TSCORE")
	m.viper.AutomaticEnv()
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	m.setDefaults()

	if err := m.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// no config file: defaults + env vars only
		} else if os.IsNotExist(err) {
			// same, surfaced a different way
		} else {
			return fmt.Errorf("config: read config file: %w", err)
		}
	}

	if err := m.unmarshalConfig(); err != nil {
		return fmt.Errorf("config: unmarshal: %w", err)
	}

	m.applyEnvOverrides()
	return nil
}

// Get returns the current configuration.
func (m *viperManager) Get(ctx context.Context) *Config {
	return m.config
}

// Validate validates configuration is correct and complete.
func (m *viperManager) Validate(ctx context.Context) error {
	errs := m.config.Validate()
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("config: validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Watch watches the config file for changes and reloads on write.
func (m *viperManager) Watch(ctx context.Context) <-chan Config {
	m.viper.WatchConfig()
	m.viper.OnConfigChange(func(e fsnotify.Event) {
		if err := m.unmarshalConfig(); err != nil {
			return
		}
		m.applyEnvOverrides()
		select {
		case m.watchChan <- *m.config:
		default:
		}
	})
	return m.watchChan
}

// Reload re-reads configuration from sources.
func (m *viperManager) Reload(ctx context.Context) error {
	if err := m.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("config: reload: %w", err)
		}
	}
	if err := m.unmarshalConfig(); err != nil {
		return fmt.Errorf("config: unmarshal on reload: %w", err)
	}
	m.applyEnvOverrides()
	return nil
}

func (m *viperManager) setDefaults() {
	d := DefaultConfig()

	m.viper.SetDefault("connection.project_id", d.Connection.ProjectID)
	m.viper.SetDefault("connection.instance_id", d.Connection.InstanceID)
	m.viper.SetDefault("connection.table_prefix", d.Connection.TablePrefix)
	m.viper.SetDefault("connection.pool_size", d.Connection.PoolSize)
	m.viper.SetDefault("connection.read_only", d.Connection.ReadOnly)
	m.viper.SetDefault("connection.staging", d.Connection.Staging)
	m.viper.SetDefault("connection.credentials_path", d.Connection.CredentialsPath)

	m.viper.SetDefault("logging.level", d.Logging.Level)
	m.viper.SetDefault("logging.path", d.Logging.Path)
	m.viper.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	m.viper.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	m.viper.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	m.viper.SetDefault("logging.compress", d.Logging.Compress)

	m.viper.SetDefault("observability.metrics_enabled", d.Observability.MetricsEnabled)
}

func (m *viperManager) unmarshalConfig() error {
	cfg := &Config{}

	cfg.Connection.ProjectID = m.viper.GetString("connection.project_id")
	cfg.Connection.InstanceID = m.viper.GetString("connection.instance_id")
	cfg.Connection.TablePrefix = m.viper.GetString("connection.table_prefix")
	cfg.Connection.PoolSize = m.viper.GetInt("connection.pool_size")
	cfg.Connection.ReadOnly = m.viper.GetBool("connection.read_only")
	cfg.Connection.Staging = m.viper.GetBool("connection.staging")
	cfg.Connection.CredentialsPath = m.viper.GetString("connection.credentials_path")

	if err := m.viper.UnmarshalKey("metrics", &cfg.Metrics); err != nil {
		return fmt.Errorf("unmarshal metrics: %w", err)
	}
	if err := m.viper.UnmarshalKey("events", &cfg.Events); err != nil {
		return fmt.Errorf("unmarshal events: %w", err)
	}

	cfg.Logging.Level = m.viper.GetString("logging.level")
	cfg.Logging.Path = m.viper.GetString("logging.path")
	cfg.Logging.MaxSizeMB = m.viper.GetInt("logging.max_size_mb")
	cfg.Logging.MaxBackups = m.viper.GetInt("logging.max_backups")
	cfg.Logging.MaxAgeDays = m.viper.GetInt("logging.max_age_days")
	cfg.Logging.Compress = m.viper.GetBool("logging.compress")

	cfg.Observability.MetricsEnabled = m.viper.GetBool("observability.metrics_enabled")

	m.config = cfg
	return nil
}

// applyEnvOverrides applies environment overrides for settings that should
// never live in a committed YAML file.
func (m *viperManager) applyEnvOverrides() {
	if v := os.Getenv("TSCORE_CREDENTIALS_PATH"); v != "" {
		m.config.Connection.CredentialsPath = v
	}
	// Staging coerces read-only regardless of what read_only was set to;
	// this mirrors the storage layer's own staging-implies-read-only rule
	// so config surfaces the same invariant before a Connection is built.
	if m.config.Connection.Staging {
		m.config.Connection.ReadOnly = true
	}
}

package config

// DefaultConfig returns the built-in default configuration. Every setting
// here is safe for a local/dev run against the sqlitebt backend.
func DefaultConfig() *Config {
	c := &Config{}

	c.Connection.ProjectID = "local"
	c.Connection.InstanceID = "local"
	c.Connection.TablePrefix = "tscore"
	c.Connection.PoolSize = 1
	c.Connection.ReadOnly = false
	c.Connection.Staging = false

	c.Logging.Level = "info"
	c.Logging.Path = "logs/tscore-store.log"
	c.Logging.MaxSizeMB = 100
	c.Logging.MaxBackups = 10
	c.Logging.MaxAgeDays = 30
	c.Logging.Compress = true

	c.Observability.MetricsEnabled = true

	return c
}

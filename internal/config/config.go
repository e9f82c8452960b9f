// Package config provides configuration types and loading for reviewgate.
package config

// Config is the top-level configuration for reviewgate.
type Config struct {
	// Workflow configures the enforcement engine.
	Workflow WorkflowConfig `yaml:"workflow" mapstructure:"workflow"`

	// Storage configures where workflow, project, and review records live.
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// Server configures the operational HTTP listener (serve command).
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// DevMode enables development features (verbose logging, etc).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// WorkflowConfig configures the enforcement engine.
type WorkflowConfig struct {
	// Enabled controls whether enforcement runs at all. When false every
	// gate short-circuits to OK.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// EndStates are the review states beyond which a no-revision rule
	// refuses updates. Tokens are a state name, optionally qualified with
	// ":commit" (e.g. "approved:commit").
	// Default: archived, rejected, approved:commit.
	EndStates []string `yaml:"end_states" mapstructure:"end_states" validate:"omitempty,dive,end_state"`
}

// StorageConfig configures the record store.
type StorageConfig struct {
	// Driver selects the store backend.
	Driver string `yaml:"driver" mapstructure:"driver" validate:"oneof=sqlite memory"`
	// Path is the sqlite database file. Required for the sqlite driver.
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the operational HTTP listener.
type ServerConfig struct {
	// MetricsAddr is the listen address for /metrics and /healthz.
	// Default: ":9188".
	MetricsAddr string `yaml:"metrics_addr" mapstructure:"metrics_addr"`
	// LogLevel is the minimum log level: debug, info, warn, error.
	// Default: "info".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// SetDefaults fills unset fields with their defaults.
func (c *Config) SetDefaults() {
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.Driver == "sqlite" && c.Storage.Path == "" {
		c.Storage.Path = "./reviewgate.db"
	}
	if c.Server.MetricsAddr == "" {
		c.Server.MetricsAddr = ":9188"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if len(c.Workflow.EndStates) == 0 {
		c.Workflow.EndStates = []string{"archived", "rejected", "approved:commit"}
	}
}

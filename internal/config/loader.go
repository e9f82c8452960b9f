package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for reviewgate.yaml/.yml in
// standard locations. The search requires an explicit YAML extension so the
// binary itself (same base name, no extension) is never matched.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file found in any standard location. Set name/type
		// without search paths so ReadInConfig returns
		// ConfigFileNotFoundError (handled gracefully by Load).
		viper.SetConfigName("reviewgate")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: REVIEWGATE_WORKFLOW_ENABLED etc.
	viper.SetEnvPrefix("REVIEWGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for a reviewgate config file
// with an explicit YAML extension (.yaml or .yml).
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".reviewgate"),
		"/etc/reviewgate",
	}
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "reviewgate"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds all config keys for environment variable support.
// Example: REVIEWGATE_SERVER_METRICS_ADDR overrides server.metrics_addr.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("workflow.enabled")
	_ = viper.BindEnv("workflow.end_states")
	_ = viper.BindEnv("storage.driver")
	_ = viper.BindEnv("storage.path")
	_ = viper.BindEnv("server.metrics_addr")
	_ = viper.BindEnv("server.log_level")
	_ = viper.BindEnv("dev_mode")
}

// Load reads the configuration, applies defaults, and validates it.
// A missing config file is not an error; env vars and defaults apply.
func Load() (*Config, error) {
	cfg, err := LoadRaw()
	if err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadRaw reads the configuration without defaults or validation, so
// callers can overlay CLI flags first.
func LoadRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

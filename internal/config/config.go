package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// Config holds all multipoly configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Knowledge base
	KB KBConfig `yaml:"kb"`

	// Advice cache (optional)
	Cache CacheConfig `yaml:"cache"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "multipoly",
		Version: "0.3.0",

		KB: KBConfig{
			Backend:        BackendAuto,
			FactLimit:      0,
			ProgramPattern: DefaultProgramPattern,
		},

		Cache: CacheConfig{
			Enabled:      false,
			DatabasePath: "data/advice.db",
			TTL:          "1h",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if backend := os.Getenv("MULTIPOLY_BACKEND"); backend != "" {
		c.KB.Backend = backend
	}
	if path := os.Getenv("MULTIPOLY_SEED"); path != "" {
		c.KB.SeedPath = path
	}
	if dir := os.Getenv("MULTIPOLY_PROGRAM_DIR"); dir != "" {
		c.KB.ProgramDir = dir
	}
	if pattern := os.Getenv("MULTIPOLY_PROGRAM_PATTERN"); pattern != "" {
		c.KB.ProgramPattern = pattern
	}
	if limit := os.Getenv("MULTIPOLY_FACT_LIMIT"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			c.KB.FactLimit = n
		}
	}

	if path := os.Getenv("MULTIPOLY_CACHE_DB"); path != "" {
		c.Cache.DatabasePath = path
		c.Cache.Enabled = true
	}

	if level := os.Getenv("MULTIPOLY_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetCacheTTL returns the advice cache TTL as a duration. Zero disables expiry.
func (c *Config) GetCacheTTL() time.Duration {
	if c.Cache.TTL == "" || c.Cache.TTL == "0" {
		return 0
	}
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil {
		return time.Hour
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !isValidBackend(c.KB.Backend) {
		return fmt.Errorf("invalid kb backend: %s (valid: %v)", c.KB.Backend, ValidBackends)
	}
	if c.KB.FactLimit < 0 {
		return fmt.Errorf("kb fact_limit must not be negative, got %d", c.KB.FactLimit)
	}
	if _, err := glob.Compile(c.KB.ProgramPatternOrDefault()); err != nil {
		return fmt.Errorf("invalid kb program_pattern %q: %w", c.KB.ProgramPattern, err)
	}
	if c.Cache.Enabled && c.Cache.DatabasePath == "" {
		return fmt.Errorf("cache enabled but database_path is empty")
	}
	if c.Cache.TTL != "" && c.Cache.TTL != "0" {
		if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
			return fmt.Errorf("invalid cache ttl %q: %w", c.Cache.TTL, err)
		}
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	return nil
}

// Package config handles loading and validating trellis configuration.
// Supports a global YAML file, a per-project trellis.yaml and TRELLIS_*
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults.
const (
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultRetentionDays  = 7
	DefaultRetryInterval  = 50 * time.Millisecond
	DefaultQueryLimit     = 100
	DefaultMaxQueryLimit  = 1000
	DefaultMaxFilterDepth = 32

	envPrefix = "TRELLIS"
)

// ProjectConfigName is the per-project config file name.
const ProjectConfigName = "trellis.yaml"

// Validation errors.
var (
	ErrInvalidLogLevel      = errors.New("logging.level must be one of debug, info, warn, error")
	ErrInvalidLogFormat     = errors.New("logging.format must be json or text")
	ErrInvalidQueryLimit    = errors.New("query.default_limit must be between 1 and query.max_limit")
	ErrInvalidFilterDepth   = errors.New("query.max_filter_depth must not be negative")
	ErrInvalidRetryInterval = errors.New("locks.retry_interval must not be negative")
	ErrInvalidRetentionDays = errors.New("logging.retention_days must not be negative")
)

// Config holds all trellis configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Locks    LocksConfig    `mapstructure:"locks"`
	Query    QueryConfig    `mapstructure:"query"`
}

// DatabaseConfig locates the SQLite task store.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level         string `mapstructure:"level"`
	Path          string `mapstructure:"path"`
	Format        string `mapstructure:"format"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// LocksConfig controls the per-list dependency lock.
type LocksConfig struct {
	// Dir holds one lock file per list. Empty disables cross-process locking.
	Dir           string        `mapstructure:"dir"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

// QueryConfig bounds filter and pagination input.
type QueryConfig struct {
	DefaultLimit   int `mapstructure:"default_limit"`
	MaxLimit       int `mapstructure:"max_limit"`
	MaxFilterDepth int `mapstructure:"max_filter_depth"`
}

// DataDir returns the default data directory.
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "trellis")
}

// GlobalConfigPath returns the default global config file path.
func GlobalConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "trellis", "config.yaml")
}

// Load reads configuration from the working directory and the global file.
func Load() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return LoadFromPaths(wd, GlobalConfigPath())
}

// LoadFromPaths merges the global config at globalPath with trellis.yaml in
// projectDir. Project values win; environment variables win over both.
func LoadFromPaths(projectDir, globalPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if globalPath != "" {
		if _, err := os.Stat(globalPath); err == nil {
			v.SetConfigFile(globalPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading global config: %w", err)
			}
		}
	}

	if projectDir != "" {
		projectPath := filepath.Join(projectDir, ProjectConfigName)
		if _, err := os.Stat(projectPath); err == nil {
			v.SetConfigFile(projectPath)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("reading project config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg.Database.Path = expandPath(cfg.Database.Path)
	cfg.Logging.Path = expandPath(cfg.Logging.Path)
	cfg.Locks.Dir = expandPath(cfg.Locks.Dir)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no files or environment
// overrides are present.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("decoding default config: %v", err))
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	dataDir := DataDir()
	v.SetDefault("database.path", filepath.Join(dataDir, "trellis.db"))
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.path", filepath.Join(dataDir, "logs"))
	v.SetDefault("logging.format", DefaultLogFormat)
	v.SetDefault("logging.retention_days", DefaultRetentionDays)
	v.SetDefault("locks.dir", filepath.Join(dataDir, "locks"))
	v.SetDefault("locks.retry_interval", DefaultRetryInterval)
	v.SetDefault("query.default_limit", DefaultQueryLimit)
	v.SetDefault("query.max_limit", DefaultMaxQueryLimit)
	v.SetDefault("query.max_filter_depth", DefaultMaxFilterDepth)
}

// Validate checks the config for invalid values.
func Validate(cfg *Config) error {
	if cfg.Logging.Level != "" {
		switch strings.ToLower(cfg.Logging.Level) {
		case "debug", "info", "warn", "error":
		default:
			return ErrInvalidLogLevel
		}
	}
	if cfg.Logging.Format != "" && cfg.Logging.Format != "json" && cfg.Logging.Format != "text" {
		return ErrInvalidLogFormat
	}
	if cfg.Logging.RetentionDays < 0 {
		return ErrInvalidRetentionDays
	}
	if cfg.Locks.RetryInterval < 0 {
		return ErrInvalidRetryInterval
	}
	if cfg.Query.MaxLimit > 0 && (cfg.Query.DefaultLimit < 1 || cfg.Query.DefaultLimit > cfg.Query.MaxLimit) {
		return ErrInvalidQueryLimit
	}
	if cfg.Query.MaxFilterDepth < 0 {
		return ErrInvalidFilterDepth
	}
	return nil
}

// ClampLimit applies the default and maximum page size to a requested limit.
func (c *Config) ClampLimit(limit int) int {
	if limit <= 0 {
		limit = c.Query.DefaultLimit
	}
	if c.Query.MaxLimit > 0 && limit > c.Query.MaxLimit {
		limit = c.Query.MaxLimit
	}
	return limit
}

func expandPath(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

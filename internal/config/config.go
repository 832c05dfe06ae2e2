package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Data     DataConfig     `mapstructure:"data"`
	Grid     GridConfig     `mapstructure:"grid"`
	Training TrainingConfig `mapstructure:"training"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"` // Bind address (e.g. 0.0.0.0 for all interfaces)
	Port int    `mapstructure:"port"` // HTTP server port
}

// DatabaseConfig represents the clinic fact-source connection
type DatabaseConfig struct {
	DSN          string        `mapstructure:"dsn"`           // mysql:// URL or native driver DSN
	QueryTimeout time.Duration `mapstructure:"query_timeout"` // Per-query timeout for extraction
}

// DataConfig represents local materialization paths
type DataConfig struct {
	Dir       string `mapstructure:"dir"`        // Base data directory
	GridFile  string `mapstructure:"grid_file"`  // Grid CSV filename inside Dir
	ModelFile string `mapstructure:"model_file"` // Serialized estimator filename inside Dir
}

// GridConfig represents feature-grid construction options
type GridConfig struct {
	// Strategy selects how absent-booking days are treated:
	// "cartesian" fills every (date, service) cell with 0 when no fact
	// exists, "facts_only" keeps only observed positive-count rows.
	Strategy     string `mapstructure:"strategy"`
	LookbackDays int    `mapstructure:"lookback_days"` // Historical window length
}

// TrainingConfig represents estimator training options
type TrainingConfig struct {
	Mode           string `mapstructure:"mode"` // fixed, search
	NEstimators    int    `mapstructure:"n_estimators"`
	MaxDepth       int    `mapstructure:"max_depth"` // 0 = unlimited
	MinSamplesLeaf int    `mapstructure:"min_samples_leaf"`
	Sampling       string `mapstructure:"feature_sampling"` // all, sqrt
	Folds          int    `mapstructure:"folds"`            // CV folds in search mode
	Seed           int64  `mapstructure:"seed"`
}

// RefreshConfig represents the background extraction + retrain cycle
type RefreshConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// CacheConfig represents the optional Redis forecast-response cache
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"` // redis://host:port/db
	TTL     time.Duration `mapstructure:"ttl"`
}

// AuthConfig represents authentication configuration
type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`  // Enable/disable API key authentication
	APIKeys []string `mapstructure:"api_keys"` // List of valid API keys
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, file path
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database config: %w", err)
	}

	if err := c.Data.Validate(); err != nil {
		return fmt.Errorf("data config: %w", err)
	}

	if err := c.Grid.Validate(); err != nil {
		return fmt.Errorf("grid config: %w", err)
	}

	if err := c.Training.Validate(); err != nil {
		return fmt.Errorf("training config: %w", err)
	}

	if err := c.Refresh.Validate(); err != nil {
		return fmt.Errorf("refresh config: %w", err)
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

// Validate validates database configuration
func (c *DatabaseConfig) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("dsn is required")
	}
	if c.QueryTimeout < 0 {
		return fmt.Errorf("query_timeout cannot be negative")
	}
	return nil
}

// Validate validates data configuration
func (c *DataConfig) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("dir is required")
	}
	if c.GridFile == "" {
		return fmt.Errorf("grid_file is required")
	}
	if c.ModelFile == "" {
		return fmt.Errorf("model_file is required")
	}
	return nil
}

// Validate validates grid configuration
func (c *GridConfig) Validate() error {
	if c.Strategy != "cartesian" && c.Strategy != "facts_only" {
		return fmt.Errorf("strategy must be 'cartesian' or 'facts_only'")
	}
	if c.LookbackDays < 1 {
		return fmt.Errorf("lookback_days must be at least 1")
	}
	return nil
}

// Validate validates training configuration
func (c *TrainingConfig) Validate() error {
	if c.Mode != "fixed" && c.Mode != "search" {
		return fmt.Errorf("mode must be 'fixed' or 'search'")
	}
	if c.NEstimators < 1 {
		return fmt.Errorf("n_estimators must be at least 1")
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth cannot be negative")
	}
	if c.MinSamplesLeaf < 1 {
		return fmt.Errorf("min_samples_leaf must be at least 1")
	}
	if c.Sampling != "all" && c.Sampling != "sqrt" {
		return fmt.Errorf("feature_sampling must be 'all' or 'sqrt'")
	}
	if c.Mode == "search" && c.Folds < 2 {
		return fmt.Errorf("folds must be at least 2 in search mode")
	}
	return nil
}

// Validate validates refresh configuration
func (c *RefreshConfig) Validate() error {
	if c.Enabled && c.Interval <= 0 {
		return fmt.Errorf("interval must be positive when refresh is enabled")
	}
	return nil
}

// Validate validates cache configuration
func (c *CacheConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.URL == "" {
		return fmt.Errorf("url is required when cache is enabled")
	}
	if c.TTL <= 0 {
		return fmt.Errorf("ttl must be positive when cache is enabled")
	}
	return nil
}

// Validate validates logging configuration
func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[c.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}

	return nil
}

/*
Package config loads the service configuration.

PURPOSE:
  One Config struct for the server, the run worker, the calculator
  defaults and the impact-model hand-off. Values come from built-in
  defaults, an optional YAML file and FLOODRISK_* environment variables,
  in increasing order of precedence.

ENVIRONMENT:
  Nested keys map to upper-case names with dots replaced by underscores:
    risk.min_depth    -> FLOODRISK_RISK_MIN_DEPTH
    storage.db_path   -> FLOODRISK_STORAGE_DB_PATH
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Deltares-research/FloodAdapt-sub000/hazard"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "FLOODRISK"

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Risk    RiskConfig    `mapstructure:"risk"`
	Worker  WorkerConfig  `mapstructure:"worker"`
	Publish PublishConfig `mapstructure:"publish"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// StorageConfig holds persistence configuration
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// RiskConfig holds the calculator defaults
type RiskConfig struct {
	ReturnPeriods []float64 `mapstructure:"return_periods"`
	MinDepth      float64   `mapstructure:"min_depth"`
	DatumOffset   float64   `mapstructure:"datum_offset"`
	Datum         string    `mapstructure:"datum"`
	Workers       int       `mapstructure:"workers"`
	BatchSize     int       `mapstructure:"batch_size"`
}

// WorkerConfig holds the background run worker configuration
type WorkerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// PublishConfig holds the impact-model hand-off configuration
type PublishConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	URL            string        `mapstructure:"url"`
	Subject        string        `mapstructure:"subject"`
	Name           string        `mapstructure:"name"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from an optional file and environment variables.
// An empty path uses defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173", "http://localhost:8080"})

	// Storage defaults
	v.SetDefault("storage.db_path", "./floodrisk.db")

	// Risk defaults
	v.SetDefault("risk.return_periods", []float64{1, 2, 5, 10, 25, 50, 100})
	v.SetDefault("risk.min_depth", 0.0)
	v.SetDefault("risk.datum_offset", 0.0)
	v.SetDefault("risk.datum", "")
	v.SetDefault("risk.workers", 0)
	v.SetDefault("risk.batch_size", hazard.DefaultBatchSize)

	// Worker defaults
	v.SetDefault("worker.enabled", true)
	v.SetDefault("worker.poll_interval", "5s")

	// Publish defaults
	v.SetDefault("publish.enabled", false)
	v.SetDefault("publish.url", "nats://127.0.0.1:4222")
	v.SetDefault("publish.subject", "floodrisk.results")
	v.SetDefault("publish.name", "floodrisk")
	v.SetDefault("publish.connect_timeout", "5s")
	v.SetDefault("publish.reconnect_wait", "2s")
	v.SetDefault("publish.max_reconnects", 10)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.read_timeout and server.write_timeout must be positive")
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}

	if len(c.Risk.ReturnPeriods) == 0 {
		return fmt.Errorf("risk.return_periods must contain at least one return period")
	}
	if err := hazard.ValidateReturnPeriods(c.Risk.ReturnPeriods); err != nil {
		return fmt.Errorf("risk.return_periods: %w", err)
	}
	if err := c.DepthOptions().Validate(); err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	if c.Risk.Workers < 0 {
		return fmt.Errorf("risk.workers must not be negative")
	}
	if c.Risk.BatchSize < 1 {
		return fmt.Errorf("risk.batch_size must be at least 1")
	}

	if c.Worker.Enabled && c.Worker.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("worker.poll_interval must be at least 100ms")
	}

	if c.Publish.Enabled {
		if c.Publish.URL == "" {
			return fmt.Errorf("publish.url is required when publish is enabled")
		}
		if c.Publish.Subject == "" {
			return fmt.Errorf("publish.subject is required when publish is enabled")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// DepthOptions returns the calculator depth options of the risk section.
func (c *Config) DepthOptions() hazard.DepthOptions {
	return hazard.DepthOptions{
		MinDepth:    c.Risk.MinDepth,
		DatumOffset: c.Risk.DatumOffset,
		Datum:       c.Risk.Datum,
	}
}

// NewCalculator builds a calculator from the risk section.
func (c *Config) NewCalculator(logger *zap.Logger) *hazard.Calculator {
	return hazard.NewCalculator(
		hazard.WithWorkers(c.Risk.Workers),
		hazard.WithBatchSize(c.Risk.BatchSize),
		hazard.WithDepthOptions(c.DepthOptions()),
		hazard.WithLogger(logger),
	)
}

// DefaultReturnPeriods returns a copy of the configured return periods.
func (c *Config) DefaultReturnPeriods() []float64 {
	return append([]float64(nil), c.Risk.ReturnPeriods...)
}

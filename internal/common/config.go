package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

// Matrix backends
const (
	MatrixBackendBadger = "badger"
	MatrixBackendMemory = "memory"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Server      ServerConfig   `toml:"server"`
	Storage     StorageConfig  `toml:"storage"`
	Matrix      MatrixConfig   `toml:"matrix"`
	Rates       RatesConfig    `toml:"rates"`
	Settings    SettingsConfig `toml:"settings"`
	Logging     LoggingConfig  `toml:"logging"`
}

type ServerConfig struct {
	Port      int     `toml:"port"`
	Host      string  `toml:"host"`
	RateLimit float64 `toml:"rate_limit"` // Requests per second per client, 0 disables limiting
	RateBurst int     `toml:"rate_burst"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
	SQLite SQLiteConfig `toml:"sqlite"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// SQLiteConfig configures the calculation history database
type SQLiteConfig struct {
	Path          string `toml:"path"`
	BusyTimeoutMS int    `toml:"busy_timeout_ms"`
	WALMode       bool   `toml:"wal_mode"`
}

// MatrixConfig controls where the rate matrix lives and how it is seeded
type MatrixConfig struct {
	Backend         string `toml:"backend"`           // "badger" or "memory"
	SeedDir         string `toml:"seed_dir"`          // Directory holding gbis_partial/eco4_partial/full_project files
	ImportOnStartup bool   `toml:"import_on_startup"` // Replace the matrix from seed_dir when the service starts
}

// RatesConfig holds the fallback rate parameters used when no override is stored
type RatesConfig struct {
	PPSEcoRate           float64 `toml:"pps_eco_rate"`
	InnovationMultiplier float64 `toml:"innovation_multiplier"`
}

type SettingsConfig struct {
	RefreshSchedule string `toml:"refresh_schedule"` // Cron spec, empty disables periodic refresh
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port:      8085,
			Host:      "localhost",
			RateLimit: 20,
			RateBurst: 40,
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/matrix",
			},
			SQLite: SQLiteConfig{
				Path:          "./data/calculations.db",
				BusyTimeoutMS: 5000,
				WALMode:       true,
			},
		},
		Matrix: MatrixConfig{
			Backend:         MatrixBackendBadger,
			SeedDir:         "./matrix",
			ImportOnStartup: true,
		},
		Rates: RatesConfig{
			PPSEcoRate:           21.5,
			InnovationMultiplier: 1.25,
		},
		Settings: SettingsConfig{
			RefreshSchedule: "@every 30s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env -> CLI
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies ECOCALC_* environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("ECOCALC_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server
	if port := os.Getenv("ECOCALC_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("ECOCALC_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if limit := os.Getenv("ECOCALC_SERVER_RATE_LIMIT"); limit != "" {
		if l, err := strconv.ParseFloat(limit, 64); err == nil {
			config.Server.RateLimit = l
		}
	}

	// Storage
	if badgerPath := os.Getenv("ECOCALC_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if sqlitePath := os.Getenv("ECOCALC_SQLITE_PATH"); sqlitePath != "" {
		config.Storage.SQLite.Path = sqlitePath
	}

	// Matrix
	if backend := os.Getenv("ECOCALC_MATRIX_BACKEND"); backend != "" {
		config.Matrix.Backend = backend
	}
	if seedDir := os.Getenv("ECOCALC_MATRIX_SEED_DIR"); seedDir != "" {
		config.Matrix.SeedDir = seedDir
	}
	if importOnStartup := os.Getenv("ECOCALC_MATRIX_IMPORT_ON_STARTUP"); importOnStartup != "" {
		if b, err := strconv.ParseBool(importOnStartup); err == nil {
			config.Matrix.ImportOnStartup = b
		}
	}

	// Rates
	if rate := os.Getenv("ECOCALC_PPS_ECO_RATE"); rate != "" {
		if r, err := strconv.ParseFloat(rate, 64); err == nil {
			config.Rates.PPSEcoRate = r
		}
	}
	if multiplier := os.Getenv("ECOCALC_INNOVATION_MULTIPLIER"); multiplier != "" {
		if m, err := strconv.ParseFloat(multiplier, 64); err == nil {
			config.Rates.InnovationMultiplier = m
		}
	}

	if schedule := os.Getenv("ECOCALC_SETTINGS_REFRESH_SCHEDULE"); schedule != "" {
		config.Settings.RefreshSchedule = schedule
	}

	// Logging
	if level := os.Getenv("ECOCALC_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("ECOCALC_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("ECOCALC_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if o = strings.TrimSpace(o); o != "" {
				outputs = append(outputs, o)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks values that would otherwise fail late at startup
func (c *Config) Validate() error {
	switch c.Matrix.Backend {
	case MatrixBackendBadger, MatrixBackendMemory:
	default:
		return fmt.Errorf("invalid matrix.backend %q: expected %q or %q", c.Matrix.Backend, MatrixBackendBadger, MatrixBackendMemory)
	}

	if c.Rates.PPSEcoRate < 0 {
		return fmt.Errorf("rates.pps_eco_rate must not be negative, got %v", c.Rates.PPSEcoRate)
	}
	if c.Rates.InnovationMultiplier < 1 {
		return fmt.Errorf("rates.innovation_multiplier must be at least 1, got %v", c.Rates.InnovationMultiplier)
	}

	if err := ValidateRefreshSchedule(c.Settings.RefreshSchedule); err != nil {
		return fmt.Errorf("invalid settings.refresh_schedule: %w", err)
	}
	return nil
}

// ValidateRefreshSchedule parses a cron spec the same way the settings refresher does.
// Descriptors such as "@every 30s" are accepted; an empty schedule disables refresh.
func ValidateRefreshSchedule(schedule string) error {
	if strings.TrimSpace(schedule) == "" {
		return nil
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// DefaultRates returns the configured rate fallbacks as decimals
func (c *Config) DefaultRates() (ratePerUnit, innovationMultiplier decimal.Decimal) {
	return decimal.NewFromFloat(c.Rates.PPSEcoRate), decimal.NewFromFloat(c.Rates.InnovationMultiplier)
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// DeepCloneConfig creates a deep copy of the Config struct
func DeepCloneConfig(c *Config) *Config {
	if c == nil {
		return nil
	}

	clone := *c

	if len(c.Logging.Output) > 0 {
		clone.Logging.Output = make([]string, len(c.Logging.Output))
		copy(clone.Logging.Output, c.Logging.Output)
	}

	return &clone
}

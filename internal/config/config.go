package config

import (
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Config holds process settings. Fields are overridden from the environment
// (and a .env file) by Load.
type Config struct {
	DBDriver string `envconfig:"DB_DRIVER" json:"db_driver"` // sqlite | mysql
	DBPath   string `envconfig:"DB_PATH" json:"db_path"`     // sqlite file; empty = ./market.db
	MySQLDSN string `envconfig:"MYSQL_DSN" json:"-"`

	LogLevel   string `envconfig:"LOG_LEVEL" json:"log_level"`
	Port       int    `envconfig:"PORT" json:"port"`
	TablesFile string `envconfig:"TABLES_FILE" json:"tables_file"`

	// Items summarized on every ingest; empty = every listed item.
	TrackedItems      []int32 `envconfig:"TRACKED_ITEMS" json:"tracked_items"`
	IngestConcurrency int     `envconfig:"INGEST_CONCURRENCY" json:"ingest_concurrency"`
	RetentionDays     int     `envconfig:"RETENTION_DAYS" json:"retention_days"` // 0 = keep everything

	SnipeThreshold     float64 `envconfig:"SNIPE_THRESHOLD" json:"snipe_threshold"`
	ArbitrageMinSpread float64 `envconfig:"ARBITRAGE_MIN_SPREAD" json:"arbitrage_min_spread"` // percent
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		DBDriver:           DriverSQLite,
		LogLevel:           "info",
		Port:               13370,
		TablesFile:         "tables.yaml",
		IngestConcurrency:  4,
		RetentionDays:      90,
		SnipeThreshold:     0.9,
		ArbitrageMinSpread: 15,
	}
}

// Load applies .env and environment overrides on top of Default.
// A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite:
	case DriverMySQL:
		if c.MySQLDSN == "" {
			return errors.New("config: DB_DRIVER=mysql requires MYSQL_DSN")
		}
	default:
		return fmt.Errorf("config: unknown DB_DRIVER %q", c.DBDriver)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	}
	if c.SnipeThreshold <= 0 || c.SnipeThreshold > 1 {
		return fmt.Errorf("config: SNIPE_THRESHOLD %v must be in (0, 1]", c.SnipeThreshold)
	}
	if c.ArbitrageMinSpread < 0 {
		return fmt.Errorf("config: ARBITRAGE_MIN_SPREAD %v must not be negative", c.ArbitrageMinSpread)
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// History drivers understood by the prediction history store
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Config holds the application configuration
type Config struct {
	Port          int
	ModelPath     string
	HistoryDriver string
	HistoryDSN    string
	LogLevel      string
	LogFormat     string
	Version       string
}

// Default returns the configuration used when nothing is overridden
func Default() Config {
	return Config{
		Port:          8080,
		ModelPath:     "model.gob",
		HistoryDriver: DriverSQLite,
		HistoryDSN:    "predictions.db",
		LogLevel:      "info",
		LogFormat:     "json",
		Version:       "dev",
	}
}

// LoadDotEnv loads variables from the given .env files (or ./.env) without
// overriding ones already set. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// FromEnv overlays environment variables on Default.
func FromEnv() (Config, error) {
	cfg := Default()

	if v, ok := os.LookupEnv("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	cfg.ModelPath = getEnv("MODEL_PATH", cfg.ModelPath)
	cfg.HistoryDriver = getEnv("HISTORY_DRIVER", cfg.HistoryDriver)
	cfg.HistoryDSN = getEnv("HISTORY_DSN", cfg.HistoryDSN)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	return cfg, nil
}

// Validate checks the values that would otherwise fail late
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	switch c.HistoryDriver {
	case DriverSQLite, DriverPostgres, DriverNone, "":
	default:
		return fmt.Errorf("unsupported history driver %q", c.HistoryDriver)
	}
	return nil
}

// HistoryEnabled reports whether predictions should be recorded
func (c Config) HistoryEnabled() bool {
	return c.HistoryDriver != "" && c.HistoryDriver != DriverNone && c.HistoryDSN != ""
}

// Addr returns the HTTP listen address
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

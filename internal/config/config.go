package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	HTTPAddr        string
	StorageDriver   string
	SQLitePath      string
	DatabaseURL     string
	SessionTTL      time.Duration
	JanitorInterval time.Duration
	LogVerbose      bool   // echo logs to stdout/stderr
	LogFile         string // optional file receiving every log line
	GinMode         string
}

var loadDotEnvOnce sync.Once

// LoadDotEnv reads .env once if it exists. Real environment variables win.
func LoadDotEnv() {
	loadDotEnvOnce.Do(func() {
		if _, err := os.Stat(".env"); err != nil {
			return
		}
		if err := godotenv.Load(); err != nil {
			log.Printf("dotenv: failed to load .env: %v", err)
		}
	})
}

// Load builds the Config from the environment.
func Load() (Config, error) {
	c := Config{
		HTTPAddr:        envOr("HTTP_ADDR", ":8080"),
		StorageDriver:   strings.ToLower(envOr("STORAGE_DRIVER", DriverSQLite)),
		SQLitePath:      envOr("SQLITE_PATH", "luckydraw.db"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		SessionTTL:      time.Hour,
		JanitorInterval: 10 * time.Minute,
		LogVerbose:      true,
		LogFile:         os.Getenv("LOG_FILE"),
		GinMode:         os.Getenv("GIN_MODE"),
	}

	var err error
	if c.SessionTTL, err = durationOr("SESSION_TTL", c.SessionTTL); err != nil {
		return Config{}, err
	}
	if c.JanitorInterval, err = durationOr("JANITOR_INTERVAL", c.JanitorInterval); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("LOG_VERBOSE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_VERBOSE %q: %w", v, err)
		}
		c.LogVerbose = b
	}

	switch c.StorageDriver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required when STORAGE_DRIVER=postgres")
		}
	default:
		return Config{}, fmt.Errorf("invalid STORAGE_DRIVER %q", c.StorageDriver)
	}

	return c, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, v)
	}
	return d, nil
}

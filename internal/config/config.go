// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Backends accepted by DATA_BACKEND.
const (
	BackendCSV    = "csv"
	BackendSheets = "sheets"
	BackendSQLite = "sqlite"
)

var validBackends = []string{BackendCSV, BackendSheets, BackendSQLite}

type Config struct {
	// HTTP Server
	Port           string
	RequestTimeout time.Duration
	RateLimitRPM   int

	LogLevel string

	// Dataset locations. For csv a path, http(s) or s3:// URL, for sheets
	// an A1 range. The sqlite backend reads snapshots keyed by dataset name
	// and the worker fills them from these locations via SnapshotUpstream.
	DataBackend      string
	SnapshotUpstream string
	AvocadoSource    string
	MoviesSource     string
	RatingsSource    string

	// Table cache
	CacheTTL  time.Duration
	CacheSize int

	// Database
	SQLiteDBPath string

	// AMQP. An empty URL disables refresh messages.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Worker
	RefreshInterval time.Duration
}

func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8081"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 7*time.Second),
		RateLimitRPM:   getEnvInt("RATE_LIMIT_RPM", 60),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		DataBackend:      getEnv("DATA_BACKEND", BackendCSV),
		SnapshotUpstream: getEnv("SNAPSHOT_UPSTREAM", BackendCSV),
		AvocadoSource:    getEnv("AVOCADO_SOURCE", "./data/avocado-updated-2020.csv"),
		MoviesSource:     getEnv("MOVIES_SOURCE", "./data/movies.csv"),
		RatingsSource:    getEnv("RATINGS_SOURCE", "https://raw.githubusercontent.com/Agnieszka-Kamieniksba23169/Test_Uber_App/main/processed_ratings.csv"),

		CacheTTL:  getEnvDuration("CACHE_TTL", 10*time.Minute),
		CacheSize: getEnvInt("CACHE_SIZE", 16),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/dashboard.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "dashboard"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "dataset_refresh"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),

		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", 15*time.Minute),
	}
}

// Sources maps dataset names to their configured locations.
func (c *Config) Sources() map[string]string {
	return map[string]string{
		"avocado": c.AvocadoSource,
		"movies":  c.MoviesSource,
		"ratings": c.RatingsSource,
	}
}

// UsesSheets reports whether any dataset is read from Google Sheets,
// directly or through the snapshot worker.
func (c *Config) UsesSheets() bool {
	return c.DataBackend == BackendSheets ||
		(c.DataBackend == BackendSQLite && c.SnapshotUpstream == BackendSheets)
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.SnapshotUpstream != BackendCSV && c.SnapshotUpstream != BackendSheets {
		errs = append(errs, fmt.Sprintf("invalid snapshot upstream '%s': must be %s or %s", c.SnapshotUpstream, BackendCSV, BackendSheets))
	}

	for name, src := range c.Sources() {
		if strings.TrimSpace(src) == "" {
			errs = append(errs, fmt.Sprintf("source for dataset %q cannot be empty", name))
		}
	}

	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("invalid request timeout %v: must be positive", c.RequestTimeout))
	}
	if c.RateLimitRPM < 1 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitRPM))
	}
	if c.CacheSize < 1 {
		errs = append(errs, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL < time.Second {
		errs = append(errs, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}

	if c.DataBackend == BackendSQLite {
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.UsesSheets() {
		if c.GoogleSpreadsheetID == "" {
			errs = append(errs, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errs = append(errs, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets backend")
		} else if c.GoogleServiceAccountJSON == "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errs = append(errs, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.RefreshInterval < time.Second {
		errs = append(errs, fmt.Sprintf("invalid refresh interval %v: must be at least 1 second", c.RefreshInterval))
	} else if c.RefreshInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid refresh interval %v: must be at most 24 hours", c.RefreshInterval))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

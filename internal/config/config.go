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

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"

	RefreshInline = "inline"
	RefreshQueue  = "queue"
)

type Config struct {
	// HTTP Server
	Port string

	// Logging
	LogLevel  string
	LogFormat string

	// Storage
	DataBackend  string
	SQLiteDBPath string

	// AMQP
	AMQPURL            string
	AMQPExchange       string
	AMQPQueue          string
	SummaryRefreshMode string

	// Worker
	ResyncInterval  time.Duration
	ResyncDays      int
	ResyncOnStartup bool

	// Insight cache
	InsightCacheSize int
	InsightCacheTTL  time.Duration

	// Coaching completer
	OpenAIAPIKey          string
	OpenAIBaseURL         string
	OpenAIModel           string
	OpenAITimeout         time.Duration
	OpenAIMaxRetries      int
	CoachingRatePerMinute int

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleSummarySheetName   string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DataBackend:  getEnv("DATA_BACKEND", BackendMemory),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/mindspend.db"),

		AMQPURL:            getEnv("AMQP_URL", ""),
		AMQPExchange:       getEnv("AMQP_EXCHANGE", "mindspend"),
		AMQPQueue:          getEnv("AMQP_QUEUE", "summary_refresh"),
		SummaryRefreshMode: getEnv("SUMMARY_REFRESH_MODE", RefreshInline),

		ResyncInterval:  getEnvDuration("RESYNC_INTERVAL", 15*time.Minute),
		ResyncDays:      getEnvInt("RESYNC_DAYS", 7),
		ResyncOnStartup: getEnvBool("RESYNC_ON_STARTUP", true),

		InsightCacheSize: getEnvInt("INSIGHT_CACHE_SIZE", 256),
		InsightCacheTTL:  getEnvDuration("INSIGHT_CACHE_TTL", 5*time.Minute),

		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:           getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAITimeout:         getEnvDuration("OPENAI_TIMEOUT", 30*time.Second),
		OpenAIMaxRetries:      getEnvInt("OPENAI_MAX_RETRIES", 2),
		CoachingRatePerMinute: getEnvInt("COACHING_RATE_PER_MINUTE", 6),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSummarySheetName:   getEnv("GOOGLE_SUMMARY_SHEET_NAME", "Summaries"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
	}
}

// CoachingEnabled reports whether a completer can be built.
func (c *Config) CoachingEnabled() bool { return strings.TrimSpace(c.OpenAIAPIKey) != "" }

// SheetsEnabled reports whether summaries are exported to Google Sheets.
func (c *Config) SheetsEnabled() bool { return strings.TrimSpace(c.GoogleSpreadsheetID) != "" }

// QueueRefresh reports whether summary refreshes go through AMQP.
func (c *Config) QueueRefresh() bool { return c.SummaryRefreshMode == RefreshQueue }

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains([]string{"debug", "info", "warn", "warning", "error"}, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	validBackends := []string{BackendMemory, BackendSQLite}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}
	if c.DataBackend == BackendSQLite {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	switch c.SummaryRefreshMode {
	case RefreshInline:
	case RefreshQueue:
		if c.AMQPURL == "" {
			errors = append(errors, "AMQP URL is required when SUMMARY_REFRESH_MODE is queue")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid summary refresh mode '%s': must be inline or queue", c.SummaryRefreshMode))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ResyncInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid resync interval %v: must be at least 1 minute", c.ResyncInterval))
	} else if c.ResyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid resync interval %v: must be at most 24 hours", c.ResyncInterval))
	}
	if c.ResyncDays < 1 || c.ResyncDays > 90 {
		errors = append(errors, fmt.Sprintf("invalid resync days %d: must be between 1 and 90", c.ResyncDays))
	}

	if c.InsightCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid insight cache size %d: must be at least 1", c.InsightCacheSize))
	}
	if c.InsightCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid insight cache TTL %v: must not be negative", c.InsightCacheTTL))
	}

	if c.CoachingEnabled() {
		if parsedURL, err := url.Parse(c.OpenAIBaseURL); err != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") || parsedURL.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid OpenAI base URL '%s': must be an http(s) URL", c.OpenAIBaseURL))
		}
		if strings.TrimSpace(c.OpenAIModel) == "" {
			errors = append(errors, "OpenAI model cannot be empty when OPENAI_API_KEY is set")
		}
		if c.OpenAITimeout <= 0 {
			errors = append(errors, fmt.Sprintf("invalid OpenAI timeout %v: must be positive", c.OpenAITimeout))
		}
		if c.OpenAIMaxRetries < 0 || c.OpenAIMaxRetries > 10 {
			errors = append(errors, fmt.Sprintf("invalid OpenAI max retries %d: must be between 0 and 10", c.OpenAIMaxRetries))
		}
	}
	if c.CoachingRatePerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid coaching rate %d: must be at least 1 per minute", c.CoachingRatePerMinute))
	}

	if c.SheetsEnabled() {
		if strings.TrimSpace(c.GoogleSummarySheetName) == "" {
			errors = append(errors, "Google summary sheet name is required when GOOGLE_SPREADSHEET_ID is set")
		}
		hasJSON := c.GoogleServiceAccountJSON != ""
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasJSON && !hasFile {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets export")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

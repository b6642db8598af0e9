package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"previsioni/internal/engine"
	"previsioni/internal/log"
)

type Config struct {
	// HTTP Server
	Port string

	// Logging
	LogLevel  string
	LogFormat string

	// Backend selection
	DataBackend string

	// Memory backend
	MemoryDataFile string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleYearsBack          int

	// Report cache
	CacheSize int
	CacheTTL  time.Duration

	// HTTP API
	RateLimitPerMinute int

	// Worker
	RecomputeInterval time.Duration
	MirrorSheets      bool

	// Recurring series detection
	AmountTolerance         float64
	MonthlyDaySlack         int
	AnnualDaySlack          int
	QuarterlyMinOccurrences int

	// Category forecast
	ForecastHorizon       int
	TrendWindowMonths     int
	ForecastClampNegative bool
}

func Load() *Config {
	defaults := engine.DefaultOptions()

	return &Config{
		Port: getEnv("PORT", "8081"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DataBackend:    getEnv("DATA_BACKEND", "memory"),
		MemoryDataFile: getEnv("MEMORY_DATA_FILE", ""),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/previsioni.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "previsioni"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "recompute_reports"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),
		GoogleYearsBack:          getEnvInt("GOOGLE_YEARS_BACK", 2),

		CacheSize: getEnvInt("REPORT_CACHE_SIZE", 32),
		CacheTTL:  getEnvDuration("REPORT_CACHE_TTL", 10*time.Minute),

		RateLimitPerMinute: getEnvInt("HTTP_RATE_LIMIT", 60),

		RecomputeInterval: getEnvDuration("RECOMPUTE_INTERVAL", time.Hour),
		MirrorSheets:      getEnvBool("MIRROR_SHEETS", false),

		AmountTolerance:         getEnvFloat("RECURRING_AMOUNT_TOLERANCE", defaults.Thresholds.AmountTolerance),
		MonthlyDaySlack:         getEnvInt("RECURRING_MONTHLY_DAY_SLACK", defaults.Thresholds.MonthlyDaySlack),
		AnnualDaySlack:          getEnvInt("RECURRING_ANNUAL_DAY_SLACK", defaults.Thresholds.AnnualDaySlack),
		QuarterlyMinOccurrences: getEnvInt("RECURRING_QUARTERLY_MIN_OCCURRENCES", defaults.Thresholds.QuarterlyMinOccurrences),

		ForecastHorizon:       getEnvInt("FORECAST_HORIZON", defaults.Trend.Horizon),
		TrendWindowMonths:     getEnvInt("FORECAST_TREND_WINDOW_MONTHS", defaults.Trend.WindowMonths),
		ForecastClampNegative: getEnvBool("FORECAST_CLAMP_NEGATIVE", defaults.Trend.ClampNegative),
	}
}

// EngineOptions maps the detection and forecast settings onto engine
// options. Anything not configurable keeps its engine default.
func (c *Config) EngineOptions() engine.Options {
	opts := engine.DefaultOptions()
	opts.Thresholds.AmountTolerance = c.AmountTolerance
	opts.Thresholds.MonthlyDaySlack = c.MonthlyDaySlack
	opts.Thresholds.AnnualDaySlack = c.AnnualDaySlack
	opts.Thresholds.QuarterlyMinOccurrences = c.QuarterlyMinOccurrences
	opts.Trend.Horizon = c.ForecastHorizon
	opts.Trend.WindowMonths = c.TrendWindowMonths
	opts.Trend.ClampNegative = c.ForecastClampNegative
	return opts
}

// Backends returns the configured backends. DATA_BACKEND may list several,
// comma separated, in which case their records are merged.
func (c *Config) Backends() []string {
	var out []string
	for _, b := range strings.Split(c.DataBackend, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func (c *Config) UsesBackend(name string) bool {
	for _, b := range c.Backends() {
		if b == name {
			return true
		}
	}
	return false
}

// LoggerConfig builds the log configuration for a component.
func (c *Config) LoggerConfig(component string) (log.Config, error) {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.Config{}, err
	}
	cfg := log.DefaultConfig()
	cfg.Level = level
	cfg.Format = c.LogFormat
	cfg.Component = component
	return cfg, nil
}

// Validate validates the configuration and returns an error listing every
// problem found.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	validBackends := []string{"memory", "sheets", "sqlite"}
	backends := c.Backends()
	if len(backends) == 0 {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}
	for _, b := range backends {
		isValidBackend := false
		for _, valid := range validBackends {
			if b == valid {
				isValidBackend = true
				break
			}
		}
		if !isValidBackend {
			errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", b, validBackends))
		}
	}

	if c.UsesBackend("memory") && c.MemoryDataFile != "" {
		if _, err := os.Stat(c.MemoryDataFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("memory data file does not exist: %s", c.MemoryDataFile))
		}
	}

	if c.UsesBackend("sqlite") && c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
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

	if c.UsesBackend("sheets") || c.MirrorSheets {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when using sheets backend")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets backend")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
		if c.GoogleYearsBack < 0 || c.GoogleYearsBack > 10 {
			errors = append(errors, fmt.Sprintf("invalid Google years back %d: must be between 0 and 10", c.GoogleYearsBack))
		}
	}

	if c.MirrorSheets && !c.UsesBackend("sqlite") {
		errors = append(errors, "MIRROR_SHEETS requires the sqlite backend to store mirrored records")
	}

	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid report cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid report cache TTL %v: must be at least 1 second", c.CacheTTL))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid HTTP rate limit %d: must be at least 1", c.RateLimitPerMinute))
	}
	if c.RecomputeInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid recompute interval %v: must not be negative", c.RecomputeInterval))
	}

	if err := c.EngineOptions().Validate(); err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			errors = append(errors, line)
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

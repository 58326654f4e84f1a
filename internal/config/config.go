package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
)

type Config struct {
	// Storage
	DataBackend   string
	SQLiteDBPath  string
	DataDirectory string

	// AMQP. An empty URL disables event publishing.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Recurring processing
	RecurringInterval  time.Duration
	ReactivationPolicy string

	// Presentation and calendar
	Timezone string
	Locale   string
	Currency string

	// Logging
	LogLevel  string
	LogFormat string

	// Budget alerts, in percent of a category allocation
	BudgetAlertThreshold int

	// HTTP API
	HTTPAddr           string
	HTTPWriteRateLimit int // mutating requests per client per minute
}

var validBackends = []string{"memory", "sqlite"}

func Load() *Config {
	return &Config{
		DataBackend:   getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/fintrack.db"),
		DataDirectory: getEnv("DATA_DIR", "data"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "budget_alerts"),

		RecurringInterval:  getEnvDuration("RECURRING_INTERVAL", time.Hour),
		ReactivationPolicy: getEnv("REACTIVATION_POLICY", string(core.FastForward)),

		Timezone: getEnv("TIMEZONE", "Local"),
		Locale:   getEnv("LOCALE", "en-US"),
		Currency: getEnv("CURRENCY", "EUR"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		BudgetAlertThreshold: getEnvInt("BUDGET_ALERT_THRESHOLD", 80),

		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		HTTPWriteRateLimit: getEnvInt("HTTP_WRITE_RATE_LIMIT", 60),
	}
}

// Validate validates the configuration and returns an error listing every
// problem found.
func (c *Config) Validate() error {
	var errors []string

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0o755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
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

	if c.RecurringInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at least 1 second", c.RecurringInterval))
	} else if c.RecurringInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at most 24 hours", c.RecurringInterval))
	}

	if !core.ReactivationPolicy(c.ReactivationPolicy).Valid() {
		errors = append(errors, fmt.Sprintf("invalid reactivation policy '%s': must be '%s' or '%s'", c.ReactivationPolicy, core.FastForward, core.CatchUp))
	}

	if _, err := c.Location(); err != nil {
		errors = append(errors, err.Error())
	}
	if _, err := c.LanguageTag(); err != nil {
		errors = append(errors, err.Error())
	}
	if _, err := c.CurrencyUnit(); err != nil {
		errors = append(errors, err.Error())
	}
	if _, err := c.SlogLevel(); err != nil {
		errors = append(errors, err.Error())
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if c.BudgetAlertThreshold < 1 || c.BudgetAlertThreshold > 1000 {
		errors = append(errors, fmt.Sprintf("invalid budget alert threshold %d: must be between 1 and 1000", c.BudgetAlertThreshold))
	}

	if c.HTTPAddr == "" {
		errors = append(errors, "HTTP address cannot be empty")
	}
	if c.HTTPWriteRateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid HTTP write rate limit %d: must be at least 1", c.HTTPWriteRateLimit))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Location resolves Timezone. All month boundaries are computed in it.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone '%s': %v", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) LanguageTag() (language.Tag, error) {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.Und, fmt.Errorf("invalid locale '%s': %v", c.Locale, err)
	}
	return tag, nil
}

func (c *Config) CurrencyUnit() (currency.Unit, error) {
	unit, err := currency.ParseISO(c.Currency)
	if err != nil {
		return currency.Unit{}, fmt.Errorf("invalid currency '%s': %v", c.Currency, err)
	}
	return unit, nil
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': %v", c.LogLevel, err)
	}
	return level, nil
}

func (c *Config) Policy() core.ReactivationPolicy {
	return core.ReactivationPolicy(c.ReactivationPolicy)
}

// AlertThreshold is BudgetAlertThreshold as a percentage value.
func (c *Config) AlertThreshold() decimal.Decimal {
	return decimal.NewFromInt(int64(c.BudgetAlertThreshold))
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

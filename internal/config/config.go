package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/guilherme-santos/calsync/internal"
)

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SyncConfig struct {
	// CalendarID is the provider calendar to read, empty for the primary
	// one.
	CalendarID    string `yaml:"calendar_id"`
	// Cron is the schedule of the worker (e.g. "*/15 * * * *").
	Cron          string `yaml:"cron"`
	PastDays      int    `yaml:"past_days"`
	FutureDays    int    `yaml:"future_days"`
	ProgressEvery int    `yaml:"progress_every"`
	DayBatch      int    `yaml:"day_batch"`
	MaxConcurrent int    `yaml:"max_concurrent"`

	// RateLimit is the number of provider requests per second per account,
	// zero disables it.
	RateLimit float64 `yaml:"rate_limit"`
}

type Config struct {
	// DatabaseURL is a postgres:// or sqlite3:// URL.
	DatabaseURL string               `yaml:"database_url"`
	Timezone    string               `yaml:"timezone"`
	Listen      string               `yaml:"listen"`
	Log         LogConfig            `yaml:"log"`
	Google      internal.OAuthClient `yaml:"google"`
	Azure       internal.OAuthClient `yaml:"azure"`
	Sync        SyncConfig           `yaml:"sync"`
}

func Default() *Config {
	return &Config{
		Timezone: "UTC",
		Listen:   "127.0.0.1:8080",
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Sync: SyncConfig{
			Cron:          "*/15 * * * *",
			PastDays:      7,
			FutureDays:    30,
			ProgressEvery: 10,
			DayBatch:      10,
			MaxConcurrent: 4,
		},
	}
}

// Load reads the YAML file at path, when given, over the defaults and then
// applies the environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.DatabaseURL = getEnvString("DATABASE_URL", c.DatabaseURL)
	c.Timezone = getEnvString("TIMEZONE", c.Timezone)
	c.Listen = getEnvString("LISTEN", c.Listen)
	c.Log.Level = getEnvString("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnvString("LOG_FORMAT", c.Log.Format)

	c.Google.ID = getEnvString("GOOGLE_CLIENT_ID", c.Google.ID)
	c.Google.Secret = getEnvString("GOOGLE_CLIENT_SECRET", c.Google.Secret)
	c.Azure.ID = getEnvString("AZURE_CLIENT_ID", c.Azure.ID)
	c.Azure.Secret = getEnvString("AZURE_CLIENT_SECRET", c.Azure.Secret)

	c.Sync.CalendarID = getEnvString("SYNC_CALENDAR_ID", c.Sync.CalendarID)
	c.Sync.Cron = getEnvString("SYNC_CRON", c.Sync.Cron)
	c.Sync.PastDays = getEnvInt("SYNC_PAST_DAYS", c.Sync.PastDays)
	c.Sync.FutureDays = getEnvInt("SYNC_FUTURE_DAYS", c.Sync.FutureDays)
	c.Sync.ProgressEvery = getEnvInt("SYNC_PROGRESS_EVERY", c.Sync.ProgressEvery)
	c.Sync.DayBatch = getEnvInt("SYNC_DAY_BATCH", c.Sync.DayBatch)
	c.Sync.MaxConcurrent = getEnvInt("SYNC_MAX_CONCURRENT", c.Sync.MaxConcurrent)
	c.Sync.RateLimit = getEnvFloat("SYNC_RATE_LIMIT", c.Sync.RateLimit)
}

func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("database_url is required"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid timezone %q", c.Timezone))
	}
	if c.Sync.PastDays < 0 || c.Sync.FutureDays < 0 {
		errs = append(errs, errors.New("sync window cannot be negative"))
	}
	if c.Sync.RateLimit < 0 {
		errs = append(errs, errors.New("sync rate_limit cannot be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) Clients() map[internal.Platform]internal.OAuthClient {
	return map[internal.Platform]internal.OAuthClient{
		internal.PlatformGoogle: c.Google,
		internal.PlatformAzure:  c.Azure,
	}
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

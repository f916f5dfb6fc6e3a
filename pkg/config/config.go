package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Store    StoreConfig    `yaml:"store"`
	Privacy  PrivacyConfig  `yaml:"privacy"`
	Feed     FeedConfig     `yaml:"feed"`
	Realtime RealtimeConfig `yaml:"realtime"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StoreConfig holds the TTL classes of the ephemeral store. TTL-based
// eviction is the only deletion mechanism; there is no manual purge.
type StoreConfig struct {
	RealtimeTTL     time.Duration `yaml:"realtime_ttl"`
	DailyTTL        time.Duration `yaml:"daily_ttl"`
	WeeklyTTL       time.Duration `yaml:"weekly_ttl"`
	FeedTTL         time.Duration `yaml:"feed_ttl"`
	DedupeTTL       time.Duration `yaml:"dedupe_ttl"`
	OpTimeout       time.Duration `yaml:"op_timeout"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// PrivacyConfig holds the minimum-cohort thresholds
type PrivacyConfig struct {
	MinCohort        int `yaml:"min_cohort"`
	RankingMinCohort int `yaml:"ranking_min_cohort"`
}

// FeedConfig holds feed publication limits
type FeedConfig struct {
	MaxItems int `yaml:"max_items"`
}

// RealtimeConfig holds live-subscription settings
type RealtimeConfig struct {
	SendBuffer    int    `yaml:"send_buffer"`
	PeakHours     []Span `yaml:"peak_hours"`
	DedupeEntries int    `yaml:"dedupe_entries"`
}

// Span is an inclusive-start, exclusive-end hour window, e.g. {6, 9}.
type Span struct {
	From int `yaml:"from"`
	To   int `yaml:"to"`
}

// Contains reports whether hour falls inside the span.
func (s Span) Contains(hour int) bool {
	return hour >= s.From && hour < s.To
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a configuration with default values
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			RealtimeTTL:     5 * time.Minute,
			DailyTTL:        24 * time.Hour,
			WeeklyTTL:       7 * 24 * time.Hour,
			FeedTTL:         1 * time.Hour,
			DedupeTTL:       2 * time.Minute,
			OpTimeout:       300 * time.Millisecond,
			CleanupInterval: 1 * time.Minute,
		},
		Privacy: PrivacyConfig{
			MinCohort:        3,
			RankingMinCohort: 5,
		},
		Feed: FeedConfig{
			MaxItems: 100,
		},
		Realtime: RealtimeConfig{
			SendBuffer:    32,
			PeakHours:     []Span{{From: 6, To: 9}, {From: 17, To: 21}},
			DedupeEntries: 4096,
		},
	}
}

// getConfigPath returns the configuration file path
func getConfigPath() string {
	if path := os.Getenv("GYMAPI_CONFIG"); path != "" {
		return path
	}
	return "config.yaml"
}

// applyEnv overrides configuration with environment variables
func (c *Config) applyEnv() {
	if host := os.Getenv("GYMAPI_SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("GYMAPI_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if readTimeout := os.Getenv("GYMAPI_SERVER_READ_TIMEOUT"); readTimeout != "" {
		if d, err := time.ParseDuration(readTimeout); err == nil {
			c.Server.ReadTimeout = d
		}
	}
	if writeTimeout := os.Getenv("GYMAPI_SERVER_WRITE_TIMEOUT"); writeTimeout != "" {
		if d, err := time.ParseDuration(writeTimeout); err == nil {
			c.Server.WriteTimeout = d
		}
	}

	if level := os.Getenv("GYMAPI_LOGGING_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("GYMAPI_LOGGING_FORMAT"); format != "" {
		c.Logging.Format = format
	}

	if ttl := os.Getenv("GYMAPI_STORE_REALTIME_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			c.Store.RealtimeTTL = d
		}
	}
	if ttl := os.Getenv("GYMAPI_STORE_DAILY_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			c.Store.DailyTTL = d
		}
	}
	if ttl := os.Getenv("GYMAPI_STORE_WEEKLY_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			c.Store.WeeklyTTL = d
		}
	}
	if ttl := os.Getenv("GYMAPI_STORE_FEED_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			c.Store.FeedTTL = d
		}
	}
	if ttl := os.Getenv("GYMAPI_STORE_DEDUPE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			c.Store.DedupeTTL = d
		}
	}
	if timeout := os.Getenv("GYMAPI_STORE_OP_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			c.Store.OpTimeout = d
		}
	}

	if cohort := os.Getenv("GYMAPI_MIN_COHORT_THRESHOLD"); cohort != "" {
		if n, err := strconv.Atoi(cohort); err == nil {
			c.Privacy.MinCohort = n
		}
	}
	if cohort := os.Getenv("GYMAPI_RANKING_MIN_COHORT"); cohort != "" {
		if n, err := strconv.Atoi(cohort); err == nil {
			c.Privacy.RankingMinCohort = n
		}
	}

	if max := os.Getenv("GYMAPI_FEED_MAX_ITEMS"); max != "" {
		if n, err := strconv.Atoi(max); err == nil {
			c.Feed.MaxItems = n
		}
	}
	if buf := os.Getenv("GYMAPI_REALTIME_SEND_BUFFER"); buf != "" {
		if n, err := strconv.Atoi(buf); err == nil {
			c.Realtime.SendBuffer = n
		}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid logging format: %s", c.Logging.Format)
	}

	if c.Store.RealtimeTTL <= 0 || c.Store.DailyTTL <= 0 || c.Store.WeeklyTTL <= 0 || c.Store.FeedTTL <= 0 || c.Store.DedupeTTL <= 0 {
		return fmt.Errorf("store TTLs must be positive")
	}
	if c.Store.OpTimeout <= 0 {
		return fmt.Errorf("store op timeout must be positive")
	}

	if c.Privacy.MinCohort < 1 {
		return fmt.Errorf("min cohort must be at least 1")
	}
	if c.Privacy.RankingMinCohort < c.Privacy.MinCohort {
		return fmt.Errorf("ranking min cohort cannot be below min cohort")
	}

	if c.Feed.MaxItems < 1 {
		return fmt.Errorf("feed max items must be at least 1")
	}
	if c.Realtime.SendBuffer < 1 {
		return fmt.Errorf("realtime send buffer must be at least 1")
	}
	for _, span := range c.Realtime.PeakHours {
		if span.From < 0 || span.To > 24 || span.From >= span.To {
			return fmt.Errorf("invalid peak hour span: %d-%d", span.From, span.To)
		}
	}

	return nil
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Server: %s:%d, MinCohort: %d, FeedMax: %d, Logging: %s/%s}",
		c.Server.Host, c.Server.Port,
		c.Privacy.MinCohort, c.Feed.MaxItems,
		c.Logging.Level, c.Logging.Format,
	)
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the donor analytics service.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	ClickHouse ClickHouseConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
	Metrics    MetricsConfig
	Analytics  AnalyticsConfig
}

type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ClickHouseConfig configures the touchpoint event store.
type ClickHouseConfig struct {
	Enabled  bool
	Addr     string
	Database string
	User     string
	Password string
	MaxConns int
}

type AuthConfig struct {
	Enabled   bool
	MasterKey string
	SkipPaths []string
}

type RateLimitConfig struct {
	Enabled        bool
	DashboardRPS   float64
	DashboardBurst int
	MgmtRPS        float64
	MgmtBurst      int
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// AnalyticsConfig holds aggregation settings. OrgTimezone decides every day
// boundary; it is the organization's reporting zone, never the host's.
type AnalyticsConfig struct {
	DefaultOrgID string
	OrgTimezone  string
	RollupTTL    time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("DONOR_ANALYTICS_HTTP_ADDR", ":8080"),
			Env:             getEnv("DONOR_ANALYTICS_ENV", "development"),
			ShutdownTimeout: getDurationEnv("DONOR_ANALYTICS_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DONOR_ANALYTICS_DB_HOST", "localhost"),
			Port:     getIntEnv("DONOR_ANALYTICS_DB_PORT", 5432),
			User:     getEnv("DONOR_ANALYTICS_DB_USER", "donoranalytics"),
			Password: getEnv("DONOR_ANALYTICS_DB_PASSWORD", "donoranalytics_secret"),
			DBName:   getEnv("DONOR_ANALYTICS_DB_NAME", "donoranalytics"),
			SSLMode:  getEnv("DONOR_ANALYTICS_DB_SSLMODE", "disable"),
			MaxConns: getIntEnv("DONOR_ANALYTICS_DB_MAX_CONNS", 25),
			MinConns: getIntEnv("DONOR_ANALYTICS_DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("DONOR_ANALYTICS_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("DONOR_ANALYTICS_REDIS_PASSWORD", ""),
			DB:       getIntEnv("DONOR_ANALYTICS_REDIS_DB", 0),
		},
		ClickHouse: ClickHouseConfig{
			Enabled:  getBoolEnv("DONOR_ANALYTICS_CLICKHOUSE_ENABLED", false),
			Addr:     getEnv("DONOR_ANALYTICS_CLICKHOUSE_ADDR", "localhost:9000"),
			Database: getEnv("DONOR_ANALYTICS_CLICKHOUSE_DB", "donoranalytics"),
			User:     getEnv("DONOR_ANALYTICS_CLICKHOUSE_USER", "default"),
			Password: getEnv("DONOR_ANALYTICS_CLICKHOUSE_PASSWORD", ""),
			MaxConns: getIntEnv("DONOR_ANALYTICS_CLICKHOUSE_MAX_CONNS", 10),
		},
		Auth: AuthConfig{
			Enabled:   getBoolEnv("DONOR_ANALYTICS_AUTH_ENABLED", false),
			MasterKey: getEnv("DONOR_ANALYTICS_API_KEY_MASTER", ""),
			SkipPaths: getSliceEnv("DONOR_ANALYTICS_AUTH_SKIP_PATHS", []string{"/health", "/metrics"}),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getBoolEnv("DONOR_ANALYTICS_RATE_LIMIT_ENABLED", true),
			DashboardRPS:   getFloatEnv("DONOR_ANALYTICS_RATE_LIMIT_DASHBOARD_RPS", 100),
			DashboardBurst: getIntEnv("DONOR_ANALYTICS_RATE_LIMIT_DASHBOARD_BURST", 20),
			MgmtRPS:        getFloatEnv("DONOR_ANALYTICS_RATE_LIMIT_MGMT_RPS", 50),
			MgmtBurst:      getIntEnv("DONOR_ANALYTICS_RATE_LIMIT_MGMT_BURST", 10),
		},
		Log: LogConfig{
			Level:  getEnv("DONOR_ANALYTICS_LOG_LEVEL", "info"),
			Format: getEnv("DONOR_ANALYTICS_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("DONOR_ANALYTICS_METRICS_ENABLED", true),
			Path:    getEnv("DONOR_ANALYTICS_METRICS_PATH", "/metrics"),
		},
		Analytics: AnalyticsConfig{
			DefaultOrgID: getEnv("DONOR_ANALYTICS_DEFAULT_ORG", "default"),
			OrgTimezone:  getEnv("DONOR_ANALYTICS_ORG_TIMEZONE", "America/New_York"),
			RollupTTL:    getDurationEnv("DONOR_ANALYTICS_ROLLUP_TTL", 15*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Auth.Enabled && c.Auth.MasterKey == "" {
		return fmt.Errorf("DONOR_ANALYTICS_API_KEY_MASTER is required when auth is enabled")
	}
	if _, err := time.LoadLocation(c.Analytics.OrgTimezone); err != nil {
		return fmt.Errorf("invalid DONOR_ANALYTICS_ORG_TIMEZONE %q: %w", c.Analytics.OrgTimezone, err)
	}
	return nil
}

// Location resolves the organization's reporting timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Analytics.OrgTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getSliceEnv(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return def
}

package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration of the studhelper server. It is read once at startup.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Session    SessionConfig    `mapstructure:"session"`
	Bot        BotConfig        `mapstructure:"bot"`
	Features   FeatureConfig    `mapstructure:"features"`
	Dashboard  DashboardConfig  `mapstructure:"dashboard"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       int           `mapstructure:"rate_limit"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver       string            `mapstructure:"driver"`
	Path         string            `mapstructure:"path"`
	DSN          string            `mapstructure:"dsn"`
	Host         string            `mapstructure:"host"`
	Port         int               `mapstructure:"port"`
	User         string            `mapstructure:"user"`
	Password     string            `mapstructure:"password"`
	Name         string            `mapstructure:"name"`
	Options      map[string]string `mapstructure:"options"`
	MaxOpenConns int               `mapstructure:"max_open_conns"`
	LogLevel     string            `mapstructure:"log_level"`
}

// SessionConfig selects where dialog sessions live.
type SessionConfig struct {
	Backend string      `mapstructure:"backend"`
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds Redis connection options for the session backend and the shared rate limiter.
type RedisConfig struct {
	Address   string        `mapstructure:"address"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	PoolSize  int           `mapstructure:"pool_size"`
	TLS       bool          `mapstructure:"tls"`
	Timeout   time.Duration `mapstructure:"timeout"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// BotConfig describes the chat transport.
type BotConfig struct {
	Token  string `mapstructure:"token"`
	Handle string `mapstructure:"handle"`
	Host   string `mapstructure:"host"`
}

// FeatureConfig carries the business settings of the course.
type FeatureConfig struct {
	EnableReviews   bool `mapstructure:"enable_reviews"`
	MinRating       int  `mapstructure:"min_rating"`
	MaxRating       int  `mapstructure:"max_rating"`
	MaxSprintNumber int  `mapstructure:"max_sprint_number"`
}

// DashboardConfig controls the read-only reporting API.
type DashboardConfig struct {
	PasswordHash string        `mapstructure:"password_hash"`
	JWTSecret    string        `mapstructure:"jwt_secret"`
	Issuer       string        `mapstructure:"issuer"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	LoginLimit   int           `mapstructure:"login_limit"`
}

// LoggingConfig configures the zap logger and its optional rotating file.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// MonitoringConfig enables health checks, metrics and background jobs.
type MonitoringConfig struct {
	Prometheus  PrometheusConfig  `mapstructure:"prometheus"`
	Health      HealthConfig      `mapstructure:"health_check"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// PrometheusConfig toggles the metrics endpoint.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// MaintenanceConfig schedules the cron jobs.
type MaintenanceConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	TotalsSchedule   string        `mapstructure:"totals_schedule"`
	CleanupSchedule  string        `mapstructure:"cleanup_schedule"`
	SessionRetention time.Duration `mapstructure:"session_retention"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("STUDHELPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects settings the services cannot start with.
func (c *Config) Validate() error {
	if c.Features.MinRating > c.Features.MaxRating {
		return fmt.Errorf("config: features.min_rating (%d) exceeds features.max_rating (%d)", c.Features.MinRating, c.Features.MaxRating)
	}
	if c.Features.MaxSprintNumber <= 0 {
		return fmt.Errorf("config: features.max_sprint_number must be positive")
	}
	switch c.SessionBackend() {
	case SessionBackendMemory, SessionBackendDatabase:
	case SessionBackendRedis:
		if strings.TrimSpace(c.Session.Redis.Address) == "" {
			return fmt.Errorf("config: session.redis.address is required for the redis backend")
		}
	default:
		return fmt.Errorf("config: unknown session backend %q", c.Session.Backend)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.rate_limit", 120)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/studhelper.sqlite")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("session.backend", SessionBackendDatabase)
	v.SetDefault("session.redis.address", "127.0.0.1:6379")
	v.SetDefault("session.redis.db", 0)
	v.SetDefault("session.redis.pool_size", 10)
	v.SetDefault("session.redis.tls", false)
	v.SetDefault("session.redis.timeout", "5s")
	v.SetDefault("session.redis.key_prefix", "studhelper:session:")
	v.SetDefault("session.redis.ttl", "168h")

	v.SetDefault("bot.host", "t.me")

	v.SetDefault("features.enable_reviews", true)
	v.SetDefault("features.min_rating", 1)
	v.SetDefault("features.max_rating", 10)
	v.SetDefault("features.max_sprint_number", 6)

	v.SetDefault("dashboard.issuer", "studhelper")
	v.SetDefault("dashboard.token_ttl", "12h")
	v.SetDefault("dashboard.login_limit", 10)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.max_backups", 5)

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
	v.SetDefault("monitoring.maintenance.enabled", true)
	v.SetDefault("monitoring.maintenance.totals_schedule", "@every 5m")
	v.SetDefault("monitoring.maintenance.cleanup_schedule", "@daily")
	v.SetDefault("monitoring.maintenance.session_retention", "720h") // 30 days
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

package app

import (
	"strings"
	"time"

	iauth "github.com/studhelper/studhelper/internal/auth"
	"github.com/studhelper/studhelper/internal/database"
	"github.com/studhelper/studhelper/internal/services"
	"github.com/studhelper/studhelper/internal/session"
)

// Session backends accepted by session.backend.
const (
	SessionBackendMemory   = "memory"
	SessionBackendDatabase = "database"
	SessionBackendRedis    = "redis"
)

// SessionBackend returns the normalised session backend name.
func (c *Config) SessionBackend() string {
	backend := strings.ToLower(strings.TrimSpace(c.Session.Backend))
	if backend == "" {
		return SessionBackendDatabase
	}
	return backend
}

// DomainConfig converts the feature flags into the settings the domain services consume.
func (c FeatureConfig) DomainConfig() services.DomainConfig {
	return services.DomainConfig{
		MinRating:      c.MinRating,
		MaxRating:      c.MaxRating,
		MaxSprint:      c.MaxSprintNumber,
		ReviewsEnabled: c.EnableReviews,
	}
}

// ConnectionConfig converts DatabaseConfig into the database package representation.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	return database.Config{
		Driver:       strings.TrimSpace(c.Driver),
		Path:         strings.TrimSpace(c.Path),
		DSN:          strings.TrimSpace(c.DSN),
		Host:         strings.TrimSpace(c.Host),
		Port:         c.Port,
		User:         c.User,
		Password:     c.Password,
		Name:         c.Name,
		Options:      c.Options,
		MaxOpenConns: c.MaxOpenConns,
		LogLevel:     c.LogLevel,
	}
}

// RedisClientConfig converts RedisConfig into the session package representation.
func (c RedisConfig) RedisClientConfig() session.RedisConfig {
	return session.RedisConfig{
		Address:      strings.TrimSpace(c.Address),
		Username:     strings.TrimSpace(c.Username),
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		TLS:          c.TLS,
		DialTimeout:  c.Timeout,
		ReadTimeout:  c.Timeout,
		WriteTimeout: c.Timeout,
		KeyPrefix:    c.KeyPrefix,
		TTL:          c.TTL,
	}
}

// JWTServiceConfig converts DashboardConfig into the parameters expected by the JWT service.
func (c DashboardConfig) JWTServiceConfig() iauth.JWTConfig {
	ttl := c.TokenTTL
	if ttl <= 0 {
		ttl = iauth.DefaultTokenTTL
	}
	return iauth.JWTConfig{
		Secret:   c.JWTSecret,
		Issuer:   c.Issuer,
		TokenTTL: ttl,
	}
}

// ShutdownGrace is how long in-flight requests get on shutdown.
func (c ServerConfig) ShutdownGrace() time.Duration {
	if c.ShutdownTimeout <= 0 {
		return 10 * time.Second
	}
	return c.ShutdownTimeout
}

package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	iauth "github.com/studhelper/studhelper/internal/auth"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata"))
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.Mode)
	require.Equal(t, 5*time.Second, cfg.Server.ShutdownGrace())
	require.Equal(t, 60, cfg.Server.RateLimit)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Host)
	require.Equal(t, 5433, cfg.Database.Port)
	require.Equal(t, "disable", cfg.Database.Options["sslmode"])

	require.Equal(t, SessionBackendRedis, cfg.SessionBackend())
	redisCfg := cfg.Session.Redis.RedisClientConfig()
	require.Equal(t, "redis.example.com:6380", redisCfg.Address)
	require.Equal(t, 2, redisCfg.DB)
	require.Equal(t, 20, redisCfg.PoolSize)
	require.Equal(t, 3*time.Second, redisCfg.DialTimeout)
	require.Equal(t, "course:session:", redisCfg.KeyPrefix)
	require.Equal(t, 48*time.Hour, redisCfg.TTL)

	require.Equal(t, "bot-token", cfg.Bot.Token)
	require.Equal(t, "@course_bot", cfg.Bot.Handle)

	domain := cfg.Features.DomainConfig()
	require.False(t, domain.ReviewsEnabled)
	require.Equal(t, 1, domain.MinRating)
	require.Equal(t, 5, domain.MaxRating)
	require.Equal(t, 8, domain.MaxSprint)

	jwtCfg := cfg.Dashboard.JWTServiceConfig()
	require.Equal(t, "dashboard-secret", jwtCfg.Secret)
	require.Equal(t, "studhelper", jwtCfg.Issuer)
	require.Equal(t, 2*time.Hour, jwtCfg.TokenTTL)

	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, 20, cfg.Logging.MaxSizeMB)
	require.Equal(t, 30, cfg.Logging.MaxAgeDays)

	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "@every 1m", cfg.Monitoring.Maintenance.TotalsSchedule)
	require.Equal(t, "@daily", cfg.Monitoring.Maintenance.CleanupSchedule)
	require.Equal(t, 72*time.Hour, cfg.Monitoring.Maintenance.SessionRetention)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, SessionBackendDatabase, cfg.SessionBackend())
	require.True(t, cfg.Features.EnableReviews)
	require.Equal(t, 1, cfg.Features.MinRating)
	require.Equal(t, 10, cfg.Features.MaxRating)
	require.Equal(t, 6, cfg.Features.MaxSprintNumber)
	require.Equal(t, 12*time.Hour, cfg.Dashboard.TokenTTL)
	require.Equal(t, "t.me", cfg.Bot.Host)
}

func TestLoadConfigEnvironmentOverride(t *testing.T) {
	t.Setenv("STUDHELPER_FEATURES_MAX_SPRINT_NUMBER", "4")
	t.Setenv("STUDHELPER_SESSION_BACKEND", "memory")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Features.MaxSprintNumber)
	require.Equal(t, SessionBackendMemory, cfg.SessionBackend())
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{Features: FeatureConfig{MinRating: 1, MaxRating: 10, MaxSprintNumber: 6}}
	}

	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Features.MinRating = 11
	require.ErrorContains(t, cfg.Validate(), "min_rating")

	cfg = valid()
	cfg.Features.MaxSprintNumber = 0
	require.ErrorContains(t, cfg.Validate(), "max_sprint_number")

	cfg = valid()
	cfg.Session.Backend = "redis"
	require.ErrorContains(t, cfg.Validate(), "session.redis.address")

	cfg = valid()
	cfg.Session.Backend = "etcd"
	require.ErrorContains(t, cfg.Validate(), "unknown session backend")
}

func TestDashboardJWTConfigFallback(t *testing.T) {
	var cfg DashboardConfig
	require.Equal(t, iauth.DefaultTokenTTL, cfg.JWTServiceConfig().TokenTTL)
}

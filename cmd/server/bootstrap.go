package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/studhelper/studhelper/internal/api"
	"github.com/studhelper/studhelper/internal/app"
	"github.com/studhelper/studhelper/internal/app/maintenance"
	iauth "github.com/studhelper/studhelper/internal/auth"
	"github.com/studhelper/studhelper/internal/database"
	"github.com/studhelper/studhelper/internal/dialog"
	"github.com/studhelper/studhelper/internal/middleware"
	"github.com/studhelper/studhelper/internal/monitoring"
	"github.com/studhelper/studhelper/internal/monitoring/checks"
	"github.com/studhelper/studhelper/internal/services"
	"github.com/studhelper/studhelper/internal/session"
	"github.com/studhelper/studhelper/pkg/logger"
)

const (
	probeTimeout         = 2 * time.Second
	maintenanceStaleness = 36 * time.Hour
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Sessions  session.Store
	Domain    *services.Domain
	Machine   *dialog.Machine
	Tracker   *monitoring.JobTracker
	Health    *monitoring.HealthManager
	Cleaner   *maintenance.Cleaner
	RateStore middleware.RateStore
	Router    *gin.Engine
}

// bootstrapRuntime opens storage, builds the domain and dialog machine and assembles the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			if shutdownErr := stack.Shutdown(context.Background()); shutdownErr != nil {
				log.Warn("partial bootstrap cleanup", zap.Error(shutdownErr))
			}
		}
	}()

	gin.SetMode(ginMode(cfg.Server.Mode))

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	generated, err := app.ApplyRuntimeDefaults(ctx, cfg, stack.DB)
	if err != nil {
		return nil, err
	}
	for key := range generated {
		log.Info("generated runtime secret", zap.String("key", key))
	}

	stack.Sessions, err = stack.openSessionStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	stack.Domain, err = services.NewDomain(stack.DB, cfg.Features.DomainConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise domain services: %w", err)
	}

	stack.Machine, err = dialog.NewMachine(stack.Domain, stack.Sessions,
		dialog.WithInviteLink(cfg.Bot.Host, cfg.Bot.Handle),
		dialog.WithLogger(logger.WithModule("dialog")),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise dialog machine: %w", err)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Dashboard.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	stack.Tracker = monitoring.NewJobTracker()
	if cfg.Monitoring.Maintenance.Enabled {
		stack.Cleaner = maintenance.NewCleaner(stack.DB, stack.Domain.Dashboard,
			maintenance.WithTracker(stack.Tracker),
			maintenance.WithSessionRetention(cfg.Monitoring.Maintenance.SessionRetention),
			maintenance.WithTotalsSchedule(cfg.Monitoring.Maintenance.TotalsSchedule),
			maintenance.WithCleanupSchedule(cfg.Monitoring.Maintenance.CleanupSchedule),
		)
		if err := stack.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("initial maintenance run failed", zap.Error(err))
		}
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.Health = stack.healthManager()

	if stack.Redis != nil {
		stack.RateStore = middleware.NewRedisRateStore(stack.Redis, "")
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		Config:    cfg,
		Domain:    stack.Domain,
		Machine:   stack.Machine,
		JWT:       jwtSvc,
		Health:    stack.Health,
		RateStore: stack.RateStore,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

func (s *runtimeStack) openSessionStore(ctx context.Context, cfg *app.Config, log *zap.Logger) (session.Store, error) {
	backend := cfg.SessionBackend()
	switch backend {
	case app.SessionBackendMemory:
		log.Warn("dialog sessions are kept in memory and will not survive a restart")
		return session.NewMemoryStore(), nil
	case app.SessionBackendRedis:
		redisCfg := cfg.Session.Redis.RedisClientConfig()
		client, err := session.NewRedisClient(ctx, redisCfg)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		s.Redis = client
		log.Info("redis connected", zap.String("addr", redisCfg.Address))
		return session.NewRedisStore(client, redisCfg), nil
	default:
		return session.NewDatabaseStore(s.DB), nil
	}
}

func (s *runtimeStack) healthManager() *monitoring.HealthManager {
	manager := monitoring.NewHealthManager()
	manager.RegisterLiveness(monitoring.NewCheck("process", func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	manager.RegisterReadiness(checks.Database(s.DB, probeTimeout))
	if s.Redis != nil {
		manager.RegisterReadiness(checks.Redis(s.Redis, probeTimeout))
	}
	if s.Cleaner != nil {
		manager.RegisterReadiness(checks.Maintenance(s.Tracker, maintenanceStaleness))
	}
	return manager
}

// Shutdown stops background jobs and releases storage handles, returning every failure encountered.
func (s *runtimeStack) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}

	var errs error
	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
			errs = multierr.Append(errs, fmt.Errorf("maintenance stop: %w", ctx.Err()))
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close redis: %w", err))
		}
	}

	if s.DB != nil {
		if err := database.Close(s.DB); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errs
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func ginMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case gin.DebugMode:
		return gin.DebugMode
	case gin.TestMode:
		return gin.TestMode
	default:
		return gin.ReleaseMode
	}
}

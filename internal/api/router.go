package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/studhelper/studhelper/internal/app"
	iauth "github.com/studhelper/studhelper/internal/auth"
	"github.com/studhelper/studhelper/internal/handlers"
	"github.com/studhelper/studhelper/internal/middleware"
	"github.com/studhelper/studhelper/internal/monitoring"
	"github.com/studhelper/studhelper/internal/services"
)

// Dependencies are the collaborators the HTTP surface needs.
type Dependencies struct {
	Config  *app.Config
	Domain  *services.Domain
	Machine handlers.EventProcessor
	JWT     *iauth.JWTService
	Health  *monitoring.HealthManager
	// RateStore backs the limiters; nil falls back to process-local counters.
	RateStore middleware.RateStore
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.Domain == nil {
		return nil, fmt.Errorf("domain services must be provided")
	}
	if deps.Machine == nil {
		return nil, fmt.Errorf("dialog machine must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	cfg := deps.Config

	rateStore := deps.RateStore
	if rateStore == nil {
		rateStore = middleware.NewMemoryRateStore()
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.RateLimit(rateStore, "api", cfg.Server.RateLimit, time.Minute))

	registerHealthRoutes(r, cfg, deps.Health)
	registerMetricsRoute(r, cfg)

	api := r.Group("/api")
	registerEventRoutes(api, cfg, handlers.NewEventHandler(deps.Machine))
	registerAuthRoutes(api, cfg, rateStore, handlers.NewAuthHandler(iauth.NewDashboardAuthenticator(cfg.Dashboard.PasswordHash, deps.JWT)))
	registerDashboardRoutes(api, deps.JWT, handlers.NewDashboardHandler(deps.Domain, cfg.Bot.Host, cfg.Bot.Handle))

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

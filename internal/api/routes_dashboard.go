package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/studhelper/studhelper/internal/app"
	iauth "github.com/studhelper/studhelper/internal/auth"
	"github.com/studhelper/studhelper/internal/handlers"
	"github.com/studhelper/studhelper/internal/middleware"
)

func registerAuthRoutes(api *gin.RouterGroup, cfg *app.Config, store middleware.RateStore, handler *handlers.AuthHandler) {
	api.POST("/auth/token", middleware.RateLimit(store, "login", cfg.Dashboard.LoginLimit, time.Minute), handler.Token)
}

func registerDashboardRoutes(api *gin.RouterGroup, jwt *iauth.JWTService, handler *handlers.DashboardHandler) {
	dashboard := api.Group("/dashboard")
	dashboard.Use(middleware.Auth(jwt, iauth.ScopeDashboardRead))
	{
		dashboard.GET("/teams", handler.Teams)
		dashboard.GET("/teams/:id", handler.Team)
		dashboard.GET("/teams/:id/stats", handler.TeamStats)
		dashboard.GET("/teams/:id/invite.png", handler.InviteQR)
		dashboard.GET("/reports", handler.Reports)
		dashboard.GET("/statistics", handler.Statistics)
	}
}

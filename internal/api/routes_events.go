package api

import (
	"github.com/gin-gonic/gin"

	"github.com/studhelper/studhelper/internal/app"
	"github.com/studhelper/studhelper/internal/handlers"
	"github.com/studhelper/studhelper/internal/middleware"
)

func registerEventRoutes(api *gin.RouterGroup, cfg *app.Config, handler *handlers.EventHandler) {
	api.POST("/events", middleware.BotToken(cfg.Bot.Token), handler.Handle)
}

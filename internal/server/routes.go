package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/advisorhq/voicebridge/internal/domains/call"
	wshandler "github.com/advisorhq/voicebridge/internal/handlers/websocket"
	"github.com/advisorhq/voicebridge/pkg/Logger"
)

type Dependencies struct {
	Logger *Logger.Logger
	Bridge *call.Bridge
}

func NewServerDependencies(logger *Logger.Logger, bridge *call.Bridge) Dependencies {
	return Dependencies{
		Logger: logger,
		Bridge: bridge,
	}
}

func InitializeRoutes(router *gin.Engine, deps Dependencies) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	wshandler.NewCallHandler(deps.Logger, deps.Bridge).RegisterRoutes(router)
}

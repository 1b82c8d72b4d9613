package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/advisorhq/voicebridge/internal/domains/call"
	"github.com/advisorhq/voicebridge/pkg/Logger"
)

// CallHandler upgrades inbound client connections and hands them to the
// call bridge.
type CallHandler struct {
	logger   *Logger.Logger
	bridge   *call.Bridge
	upgrader websocket.Upgrader
}

func NewCallHandler(logger *Logger.Logger, bridge *call.Bridge) *CallHandler {
	return &CallHandler{
		logger: logger,
		bridge: bridge,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// TODO: restrict origins once the client domains are fixed
				return true
			},
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// RegisterRoutes registers the websocket routes.
func (h *CallHandler) RegisterRoutes(router gin.IRouter) {
	ws := router.Group("/ws")
	{
		ws.GET("/call", h.HandleCall)
		ws.GET("/stats", h.HandleStats)
	}
}

// HandleCall is the single entry point for a client call connection.
// The session id rides on a query parameter; everything after the
// upgrade belongs to the bridge.
func (h *CallHandler) HandleCall(c *gin.Context) {
	sessionID := c.Query("session")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("websocket upgrade failed: %v", err)
		return
	}

	h.bridge.HandleCall(c.Request.Context(), conn, sessionID)
}

// HandleStats reports the live sessions.
func (h *CallHandler) HandleStats(c *gin.Context) {
	conns := h.bridge.Registry().Snapshot()
	sessions := make([]gin.H, 0, len(conns))
	for _, conn := range conns {
		sessions = append(sessions, gin.H{
			"session_id":   conn.SessionID,
			"is_test":      conn.IsTest,
			"connected_at": conn.ConnectedAt,
			"sequence":     conn.Sequence(),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"data": gin.H{
			"active_sessions": len(conns),
			"sessions":        sessions,
		},
	})
}

package websocket

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/xpanvictor/xtutor/internal/domains/session"
	"github.com/xpanvictor/xtutor/pkg/Logger"
	"github.com/xpanvictor/xtutor/pkg/io/transport"
	wstransport "github.com/xpanvictor/xtutor/pkg/io/transport/websocket"
)

type SessionStarter interface {
	Start(ctx context.Context, kind string, setup session.Setup) (*session.Session, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

// WebSocketHandler starts a tutoring session over a plain websocket, for
// clients without WebRTC.
type WebSocketHandler struct {
	logger   *Logger.Logger
	sessions SessionStarter
	params   wstransport.Params
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(logger *Logger.Logger, sessions SessionStarter, params wstransport.Params) *WebSocketHandler {
	return &WebSocketHandler{
		logger:   logger,
		sessions: sessions,
		params:   params,
		upgrader: websocket.Upgrader{
			// TODO: restrict origins once the UI is served from a fixed host
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/ws", h.HandleWebSocket)
}

// HandleWebSocket upgrades the request once a session slot is free. Binary
// frames carry 16kHz mono s16le PCM from the client.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	upgraded := false
	sess, err := h.sessions.Start(c.Request.Context(), "websocket", func(ctx context.Context) (transport.Transport, error) {
		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return nil, err
		}
		upgraded = true
		return wstransport.New(conn, h.params, h.logger.Named("ws")), nil
	})
	if err != nil {
		if upgraded {
			h.logger.Errorf("websocket session failed: %v", err)
			return
		}
		if errors.Is(err, session.ErrTooManySessions) || errors.Is(err, session.ErrShuttingDown) {
			c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
			return
		}
		// the upgrader already answered the client
		h.logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	h.logger.Infof("websocket session %s started from %s", sess.ID, c.ClientIP())
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xpanvictor/xtutor/internal/domains/session"
)

type SessionLister interface {
	Count() int
	Stats() session.Stats
}

type SessionHandler struct {
	sessions SessionLister
}

func NewSessionHandler(sessions SessionLister) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", h.Health)
	router.GET("/api/sessions", h.ListSessions)
}

// Health godoc
// @Summary Liveness probe
// @Tags system
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *SessionHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", ActiveSessions: h.sessions.Count()})
}

// ListSessions godoc
// @Summary List active sessions
// @Tags sessions
// @Produce json
// @Success 200 {object} SessionsResponse
// @Router /api/sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, h.sessions.Stats())
}

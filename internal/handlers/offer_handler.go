package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xpanvictor/xtutor/internal/domains/session"
	"github.com/xpanvictor/xtutor/pkg/Logger"
	"github.com/xpanvictor/xtutor/pkg/io/transport"
)

var ErrMissingOffer = errors.New("Missing sdp or type in request")

// Peer is a WebRTC transport that can answer an offer.
type Peer interface {
	transport.Transport
	Negotiate(ctx context.Context, sdp, sdpType string) (string, error)
}

type PeerFactory func() (Peer, error)

type SessionStarter interface {
	Start(ctx context.Context, kind string, setup session.Setup) (*session.Session, error)
}

type OfferRecorder interface {
	RecordOffer(result string)
}

type OfferHandler struct {
	logger   *Logger.Logger
	sessions SessionStarter
	newPeer  PeerFactory
	metrics  OfferRecorder
	timeout  time.Duration
}

func NewOfferHandler(logger *Logger.Logger, sessions SessionStarter, newPeer PeerFactory, metrics OfferRecorder, timeout time.Duration) *OfferHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OfferHandler{
		logger:   logger,
		sessions: sessions,
		newPeer:  newPeer,
		metrics:  metrics,
		timeout:  timeout,
	}
}

func (h *OfferHandler) RegisterRoutes(router gin.IRouter) {
	router.POST("/api/offer", h.HandleOffer)
}

// HandleOffer godoc
// @Summary Start a tutoring session
// @Description Answers a WebRTC offer and starts a voice session for it
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body OfferRequest true "WebRTC offer"
// @Success 200 {object} OfferResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/offer [post]
func (h *OfferHandler) HandleOffer(c *gin.Context) {
	var req OfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.record("bad_request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}
	h.logger.Debugf("Received offer: %s", req.Type)
	if strings.TrimSpace(req.SDP) == "" || strings.TrimSpace(req.Type) == "" {
		h.record("bad_request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: ErrMissingOffer.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	var answer string
	sess, err := h.sessions.Start(ctx, "webrtc", func(ctx context.Context) (transport.Transport, error) {
		peer, err := h.newPeer()
		if err != nil {
			return nil, err
		}
		answer, err = peer.Negotiate(ctx, req.SDP, req.Type)
		return peer, err
	})
	switch {
	case errors.Is(err, session.ErrTooManySessions), errors.Is(err, session.ErrShuttingDown):
		h.record("rejected")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
		return
	case err != nil:
		h.record("error")
		h.logger.Errorf("Error in /api/offer: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	h.record("ok")
	h.logger.Infof("answered offer for session %s", sess.ID)
	c.JSON(http.StatusOK, OfferResponse{SDP: answer, Type: "answer"})
}

func (h *OfferHandler) record(result string) {
	if h.metrics != nil {
		h.metrics.RecordOffer(result)
	}
}

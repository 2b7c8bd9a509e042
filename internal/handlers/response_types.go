package handlers

import "github.com/xpanvictor/xtutor/internal/domains/session"

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"Missing sdp or type in request"`
	Details string `json:"details,omitempty" example:"unexpected EOF"`
}

// OfferRequest is the browser's WebRTC offer.
type OfferRequest struct {
	SDP  string `json:"sdp" example:"v=0..."`
	Type string `json:"type" example:"offer"`
}

// OfferResponse carries the server's answer.
type OfferResponse struct {
	SDP  string `json:"sdp"`
	Type string `json:"type" example:"answer"`
}

type HealthResponse struct {
	Status         string `json:"status" example:"ok"`
	ActiveSessions int    `json:"active_sessions"`
}

type SessionsResponse = session.Stats

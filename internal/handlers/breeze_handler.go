package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
)

// BreezeHandler handles broker session admin
type BreezeHandler struct {
	sessions SessionService
	health   HealthChecker
	logger   arbor.ILogger
}

// NewBreezeHandler creates a new broker admin handler
func NewBreezeHandler(sessions SessionService, health HealthChecker, logger arbor.ILogger) *BreezeHandler {
	return &BreezeHandler{
		sessions: sessions,
		health:   health,
		logger:   logger,
	}
}

// SessionRequest is the body of POST /api/breeze/session
type SessionRequest struct {
	APISession string `json:"api_session" validate:"required,min=4"`
}

// SessionHandler handles GET and POST /api/breeze/session. GET returns the
// masked stored token; POST activates a new one.
func (h *BreezeHandler) SessionHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		info, err := h.sessions.Info(r.Context())
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, info)
	case "POST":
		var req SessionRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		if err := h.sessions.Activate(r.Context(), req.APISession); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteSuccess(w, "Broker session activated")
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HealthHandler handles GET /api/breeze/health
func (h *BreezeHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	status, err := h.health.Health(r.Context())
	if err != nil {
		h.logger.Warn().Err(err).Msg("Broker proxy health check failed")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

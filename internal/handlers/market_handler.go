package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/market"
)

// MarketHandler serves the session clock, index telemetry and the liquidity
// calculator
type MarketHandler struct {
	clock     Clock
	telemetry StatusProvider
	logger    arbor.ILogger
}

// NewMarketHandler creates a new market handler
func NewMarketHandler(clock Clock, telemetry StatusProvider, logger arbor.ILogger) *MarketHandler {
	return &MarketHandler{
		clock:     clock,
		telemetry: telemetry,
		logger:    logger,
	}
}

// SessionResponse is the body of GET /api/market/session
type SessionResponse struct {
	IsOpen bool      `json:"is_open"`
	Status string    `json:"status"`
	Now    time.Time `json:"now"`
}

// SessionHandler handles GET /api/market/session
func (h *MarketHandler) SessionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, SessionResponse{
		IsOpen: h.clock.IsOpen(),
		Status: h.clock.Status(),
		Now:    h.clock.Now(),
	})
}

// StatusHandler handles GET /api/market/status
func (h *MarketHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	status, err := h.telemetry.Status(r.Context())
	if err != nil {
		h.logger.Warn().Err(err).Msg("Market status unavailable")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

// LiquidityRequest carries a raw quote row with optional depth and baseline
type LiquidityRequest struct {
	Symbol    string     `json:"symbol"`
	Quote     market.Row `json:"quote" validate:"required"`
	Depth     market.Row `json:"depth,omitempty"`
	AvgVol20d *float64   `json:"avg_vol_20d,omitempty" validate:"omitempty,gte=0"`
}

// LiquidityResponse is the normalized quote with its metrics and hint
type LiquidityResponse struct {
	Quote   market.Quote            `json:"quote"`
	Metrics market.LiquidityMetrics `json:"metrics"`
	Hint    string                  `json:"hint"`
}

// LiquidityHandler handles POST /api/liquidity
func (h *MarketHandler) LiquidityHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req LiquidityRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	q := market.NormalizeQuote(req.Quote, req.Symbol)
	var depth *market.DepthSnapshot
	if len(req.Depth) > 0 {
		d := market.NormalizeDepth(req.Depth)
		depth = &d
	}
	metrics := market.CalculateLiquidity(q, depth, req.AvgVol20d)

	WriteJSON(w, http.StatusOK, LiquidityResponse{
		Quote:   q,
		Metrics: metrics,
		Hint:    market.RecommendationHint(h.clock.IsOpen(), &metrics),
	})
}

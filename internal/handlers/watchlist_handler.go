package handlers

import (
	"net/http"
	"net/url"

	"github.com/ternarybob/arbor"
)

// WatchlistHandler handles bookmark and quote refresh requests
type WatchlistHandler struct {
	watchlist WatchlistService
	logger    arbor.ILogger
}

// NewWatchlistHandler creates a new watchlist handler
func NewWatchlistHandler(watchlist WatchlistService, logger arbor.ILogger) *WatchlistHandler {
	return &WatchlistHandler{
		watchlist: watchlist,
		logger:    logger,
	}
}

// AddStockRequest is the body of POST /api/watchlist
type AddStockRequest struct {
	Symbol      string `json:"symbol" validate:"required,max=32"`
	CompanyName string `json:"company_name" validate:"max=200"`
}

// ListHandler handles GET /api/watchlist
func (h *WatchlistHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.watchlist.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list watchlist")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, stocks)
}

// AddHandler handles POST /api/watchlist
func (h *WatchlistHandler) AddHandler(w http.ResponseWriter, r *http.Request) {
	var req AddStockRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	stock, err := h.watchlist.Add(r.Context(), req.Symbol, req.CompanyName)
	if err != nil {
		h.logger.Error().Err(err).Str("symbol", req.Symbol).Msg("Failed to add watchlist stock")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, stock)
}

// RemoveHandler handles DELETE /api/watchlist/{symbol}
func (h *WatchlistHandler) RemoveHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "DELETE") {
		return
	}

	symbol, err := url.PathUnescape(PathParam(r, "/api/watchlist/"))
	if err != nil || symbol == "" {
		WriteError(w, http.StatusBadRequest, "Symbol is required")
		return
	}

	if err := h.watchlist.Remove(r.Context(), symbol); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, "Removed "+symbol)
}

// RefreshHandler handles POST /api/watchlist/refresh. A closed market is
// only refreshed with force=1.
func (h *WatchlistHandler) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	result, err := h.watchlist.RefreshAll(r.Context(), QueryBool(r, "force"))
	if err != nil {
		h.logger.Debug().Err(err).Msg("Watchlist refresh not run")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// SnapshotHandler handles GET /api/watchlist/snapshot
func (h *WatchlistHandler) SnapshotHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	snapshots, err := h.watchlist.Snapshot(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to build watchlist snapshot")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, snapshots)
}

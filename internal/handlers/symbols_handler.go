package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
)

// SymbolsHandler loads the exchange master list used for symbol mapping
type SymbolsHandler struct {
	importer MasterListImporter
	logger   arbor.ILogger
}

// NewSymbolsHandler creates a new symbols handler
func NewSymbolsHandler(importer MasterListImporter, logger arbor.ILogger) *SymbolsHandler {
	return &SymbolsHandler{
		importer: importer,
		logger:   logger,
	}
}

// MasterHandler handles POST /api/symbols/master with a symbol,short_name CSV body
func (h *SymbolsHandler) MasterHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	text, err := ReadBody(r)
	if err != nil || text == "" {
		WriteError(w, http.StatusBadRequest, "CSV body is required")
		return
	}

	count, err := h.importer.ImportMasterList(r.Context(), text)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to import symbol master list")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "success",
		"imported": count,
	})
}

package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/interfaces"
	"github.com/ternarybob/marketdesk/internal/reg30"
)

// Reg30Handler handles disclosure upload, classification and report requests
type Reg30Handler struct {
	analysis AnalysisService
	renderer ReportRenderer
	clock    Clock
	logger   arbor.ILogger
}

// NewReg30Handler creates a new disclosure handler
func NewReg30Handler(analysis AnalysisService, renderer ReportRenderer, clock Clock, logger arbor.ILogger) *Reg30Handler {
	return &Reg30Handler{
		analysis: analysis,
		renderer: renderer,
		clock:    clock,
		logger:   logger,
	}
}

// UploadHandler handles POST /api/reg30/upload?source=XBRL. The CSV is the raw
// body or a multipart "file" field. Analysis runs in the background.
func (h *Reg30Handler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	text, err := uploadedCSV(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read upload: %v", err))
		return
	}

	source := reg30.ParseSource(r.URL.Query().Get("source"))
	candidates := reg30.ParseCSV(text, source, h.clock.Now())
	if len(candidates) == 0 {
		WriteError(w, http.StatusBadRequest, "No disclosure rows found in upload")
		return
	}

	runID, err := h.analysis.Start(candidates)
	if err != nil {
		h.logger.Warn().Err(err).Int("candidates", len(candidates)).Msg("Disclosure analysis not started")
		WriteServiceError(w, err)
		return
	}

	h.logger.Info().
		Str("run_id", runID).
		Str("source", string(source)).
		Int("candidates", len(candidates)).
		Msg("Disclosure analysis started")

	WriteStarted(w, fmt.Sprintf("Analyzing %d disclosures", len(candidates)), map[string]string{
		"run_id": runID,
		"source": string(source),
	})
}

func uploadedCSV(r *http.Request) (string, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return ReadBody(r)
	}

	if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
		return "", err
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return "", err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBodyBytes))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// RunHandler handles GET /api/reg30/runs/{id}
func (h *Reg30Handler) RunHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	run, ok := h.analysis.Run(PathParam(r, "/api/reg30/runs/"))
	if !ok {
		WriteError(w, http.StatusNotFound, "Run not found")
		return
	}
	WriteJSON(w, http.StatusOK, run)
}

// ClassifyRequest is the body of POST /api/reg30/classify
type ClassifyRequest struct {
	Text   string `json:"text" validate:"required"`
	Source string `json:"source"`
}

// ClassifyHandler handles POST /api/reg30/classify
func (h *Reg30Handler) ClassifyHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req ClassifyRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	family, rule := reg30.ClassifyWithRule(req.Text, reg30.ParseSource(req.Source))
	WriteJSON(w, http.StatusOK, map[string]string{
		"event_family": string(family),
		"rule":         rule,
	})
}

// ListReportsHandler handles GET /api/reg30/reports?symbol=&family=&limit=
func (h *Reg30Handler) ListReportsHandler(w http.ResponseWriter, r *http.Request) {
	filter := interfaces.ReportFilter{
		Symbol: r.URL.Query().Get("symbol"),
		Family: reg30.Family(strings.ToUpper(r.URL.Query().Get("family"))),
		Limit:  QueryInt(r, "limit", 0),
	}

	reports, err := h.analysis.ListReports(r.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list reports")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, reports)
}

// WipeReportsHandler handles DELETE /api/reg30/reports
func (h *Reg30Handler) WipeReportsHandler(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.analysis.Wipe(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to wipe reports")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"deleted": deleted,
	})
}

// ReportRoutes handles /api/reg30/reports/{fp}, /{fp}/reanalyze and /{fp}/pdf
func (h *Reg30Handler) ReportRoutes(w http.ResponseWriter, r *http.Request) {
	fingerprint := PathParam(r, "/api/reg30/reports/")
	if fingerprint == "" {
		WriteError(w, http.StatusBadRequest, "Fingerprint is required")
		return
	}

	switch {
	case strings.HasSuffix(r.URL.Path, "/reanalyze"):
		h.reanalyze(w, r, fingerprint)
	case strings.HasSuffix(r.URL.Path, "/pdf"):
		h.pdf(w, r, fingerprint)
	default:
		h.get(w, r, fingerprint)
	}
}

func (h *Reg30Handler) get(w http.ResponseWriter, r *http.Request, fingerprint string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	report, err := h.analysis.GetReport(r.Context(), fingerprint)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

func (h *Reg30Handler) reanalyze(w http.ResponseWriter, r *http.Request, fingerprint string) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	report, err := h.analysis.ReAnalyze(r.Context(), fingerprint)
	if err != nil {
		h.logger.Warn().Err(err).Str("fingerprint", fingerprint).Msg("Re-analysis failed")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

func (h *Reg30Handler) pdf(w http.ResponseWriter, r *http.Request, fingerprint string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	report, err := h.analysis.GetReport(r.Context(), fingerprint)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	data, err := h.renderer.ReportPDF(report)
	if err != nil {
		h.logger.Error().Err(err).Str("fingerprint", fingerprint).Msg("Failed to render report PDF")
		WriteError(w, http.StatusInternalServerError, "Failed to render PDF")
		return
	}

	filename := fmt.Sprintf("%s_%s_%s.pdf", report.Symbol, report.EventDate, fingerprint)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/marketdesk/internal/breeze"
	"github.com/ternarybob/marketdesk/internal/interfaces"
	"github.com/ternarybob/marketdesk/internal/services/analysis"
	"github.com/ternarybob/marketdesk/internal/services/telemetry"
	"github.com/ternarybob/marketdesk/internal/services/watchlist"
)

// maxBodyBytes caps JSON and CSV request bodies
const maxBodyBytes = 10 << 20

var validate = validator.New()

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a standard success JSON response.
func WriteSuccess(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": message,
	})
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteStarted writes a standard "started" JSON response for async operations.
func WriteStarted(w http.ResponseWriter, message string, fields map[string]string) error {
	body := map[string]string{
		"status":  "started",
		"message": message,
	}
	for k, v := range fields {
		body[k] = v
	}
	return WriteJSON(w, http.StatusAccepted, body)
}

// DecodeJSON decodes the request body into dst and runs struct validation.
// Returns false after writing a 400 response when either step fails.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return false
	}
	if err := validate.Struct(dst); err != nil {
		WriteError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed '%s'", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return "Validation failed: " + strings.Join(parts, ", ")
}

// ReadBody returns the raw request body, capped at maxBodyBytes
func ReadBody(r *http.Request) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// StatusFor maps a service error to an HTTP status code
func StatusFor(err error) int {
	var apiErr *breeze.APIError
	var rateErr *breeze.RateLimitError
	switch {
	case errors.Is(err, interfaces.ErrNotFound), errors.Is(err, interfaces.ErrKeyNotFound):
		return http.StatusNotFound
	case errors.Is(err, watchlist.ErrInvalidSymbol):
		return http.StatusBadRequest
	case errors.Is(err, watchlist.ErrMarketClosed), errors.Is(err, watchlist.ErrRefreshInProgress):
		return http.StatusConflict
	case errors.Is(err, analysis.ErrNoExtractor), errors.Is(err, telemetry.ErrNoTelemetry):
		return http.StatusServiceUnavailable
	case errors.As(err, &rateErr):
		return http.StatusTooManyRequests
	case errors.As(err, &apiErr):
		if apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden {
			return http.StatusUnauthorized
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteServiceError writes err with the status StatusFor chooses
func WriteServiceError(w http.ResponseWriter, err error) error {
	return WriteError(w, StatusFor(err), err.Error())
}

// QueryBool reports whether a query flag is set to a truthy value
func QueryBool(r *http.Request, name string) bool {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// QueryInt parses a positive integer query parameter
func QueryInt(r *http.Request, name string, fallback int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(name)); err == nil && v > 0 {
		return v
	}
	return fallback
}

// PathParam returns the path segment after prefix up to the next slash
func PathParam(r *http.Request, prefix string) string {
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	if i := strings.Index(rest, "/"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/app"
)

func newTestServer() *Server {
	return &Server{app: &app.App{Logger: arbor.NewLogger()}}
}

func ok(body string) RouteHandler {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}
}

func TestRouteCRUD(t *testing.T) {
	tests := []struct {
		method string
		status int
		body   string
	}{
		{"GET", http.StatusOK, "list"},
		{"DELETE", http.StatusOK, "wipe"},
		{"POST", http.StatusMethodNotAllowed, ""},
		{"PUT", http.StatusMethodNotAllowed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RouteCRUD(rec, httptest.NewRequest(tt.method, "/api/reg30/reports", nil), ok("list"), nil, nil, ok("wipe"))

			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestRouteResourceCollection(t *testing.T) {
	rec := httptest.NewRecorder()
	RouteResourceCollection(rec, httptest.NewRequest("POST", "/api/watchlist", nil), ok("list"), ok("add"))
	assert.Equal(t, "add", rec.Body.String())

	rec = httptest.NewRecorder()
	RouteResourceCollection(rec, httptest.NewRequest("DELETE", "/api/watchlist", nil), ok("list"), ok("add"))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, POST", rec.Header().Get("Allow"))
	assert.Contains(t, rec.Body.String(), "Method not allowed")
}

func TestMiddleware(t *testing.T) {
	s := newTestServer()

	t.Run("request id and status", func(t *testing.T) {
		handler := s.withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/health?x=1", nil))

		assert.Equal(t, http.StatusTeapot, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		called := false
		handler := s.withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("OPTIONS", "/api/watchlist", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, called)
	})

	t.Run("panic recovered", func(t *testing.T) {
		handler := s.withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		require.NotPanics(t, func() {
			handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/market/status", nil))
		})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("websocket bypasses logging", func(t *testing.T) {
		handler := s.withConditionalMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusSwitchingProtocols)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/ws", nil))

		assert.Equal(t, http.StatusSwitchingProtocols, rec.Code)
		assert.Empty(t, rec.Header().Get("X-Request-ID"))
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

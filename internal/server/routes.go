// -----------------------------------------------------------------------
// Last Modified: Wednesday, 14th October 2026 9:12:40 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package server

import (
	"net/http"

	"github.com/ternarybob/marketdesk/internal/metrics"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route (quotes, analysis progress, market status)
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// Prometheus
	mux.Handle("/metrics", metrics.Handler())

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// API routes - Market
	mux.HandleFunc("/api/market/session", s.app.MarketHandler.SessionHandler)
	mux.HandleFunc("/api/market/status", s.app.MarketHandler.StatusHandler)
	mux.HandleFunc("/api/liquidity", s.app.MarketHandler.LiquidityHandler)

	// API routes - Watchlist
	mux.HandleFunc("/api/watchlist", s.handleWatchlistRoute)                          // GET (list), POST (add)
	mux.HandleFunc("/api/watchlist/refresh", s.app.WatchlistHandler.RefreshHandler)   // POST ?force=1
	mux.HandleFunc("/api/watchlist/snapshot", s.app.WatchlistHandler.SnapshotHandler) // GET
	mux.HandleFunc("/api/watchlist/", s.app.WatchlistHandler.RemoveHandler)           // DELETE /{symbol}

	// API routes - Reg30 disclosures
	mux.HandleFunc("/api/reg30/upload", s.app.Reg30Handler.UploadHandler)
	mux.HandleFunc("/api/reg30/classify", s.app.Reg30Handler.ClassifyHandler)
	mux.HandleFunc("/api/reg30/runs/", s.app.Reg30Handler.RunHandler)      // GET /{id}
	mux.HandleFunc("/api/reg30/reports", s.handleReportsRoute)             // GET (list), DELETE (wipe)
	mux.HandleFunc("/api/reg30/reports/", s.app.Reg30Handler.ReportRoutes) // /{fp}, /{fp}/reanalyze, /{fp}/pdf

	// API routes - Broker session admin
	mux.HandleFunc("/api/breeze/session", s.app.BreezeHandler.SessionHandler) // GET (info), POST (activate)
	mux.HandleFunc("/api/breeze/health", s.app.BreezeHandler.HealthHandler)

	// API routes - Symbols
	mux.HandleFunc("/api/symbols/master", s.app.SymbolsHandler.MasterHandler)

	// API routes - Scheduler
	mux.HandleFunc("/api/scheduler/jobs", s.app.SchedulerHandler.ListJobsHandler)
	mux.HandleFunc("/api/scheduler/jobs/", s.app.SchedulerHandler.TriggerJobHandler) // POST /{name}/trigger

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleWatchlistRoute routes GET and POST on the watchlist collection
func (s *Server) handleWatchlistRoute(w http.ResponseWriter, r *http.Request) {
	RouteResourceCollection(w, r,
		s.app.WatchlistHandler.ListHandler,
		s.app.WatchlistHandler.AddHandler,
	)
}

// handleReportsRoute routes GET (list) and DELETE (wipe) on stored reports
func (s *Server) handleReportsRoute(w http.ResponseWriter, r *http.Request) {
	RouteCRUD(w, r,
		s.app.Reg30Handler.ListReportsHandler,
		nil,
		nil,
		s.app.Reg30Handler.WipeReportsHandler,
	)
}

// Package metrics holds the Prometheus collectors exported on /metrics
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QuoteFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "marketdesk_quote_fetches_total", Help: "Quote and depth fetches by kind and result"},
		[]string{"kind", "result"},
	)
	StreamReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "marketdesk_stream_reconnects_total", Help: "Push stream reconnect attempts"},
	)
	StreamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "marketdesk_stream_messages_total", Help: "Watchlist updates received from the push stream"},
	)
	AnalysisRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "marketdesk_analysis_rows_total", Help: "Disclosure rows analysed by final status"},
		[]string{"status"},
	)
	AICacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "marketdesk_ai_cache_total", Help: "AI result cache lookups"},
		[]string{"kind", "result"},
	)
	WatchlistRefreshSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "marketdesk_watchlist_refresh_seconds",
			Help:    "Duration of a full watchlist refresh",
			Buckets: prometheus.DefBuckets,
		},
	)
	MarketOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "marketdesk_market_open", Help: "1 while the exchange session is live"},
	)
	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "marketdesk_events_published_total", Help: "Bus events published by type"},
		[]string{"type"},
	)
	HTTPRequestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketdesk_http_request_seconds",
			Help:    "API request latency by method and status class",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		QuoteFetchesTotal,
		StreamReconnectsTotal,
		StreamMessagesTotal,
		AnalysisRowsTotal,
		AICacheTotal,
		WatchlistRefreshSeconds,
		MarketOpen,
		EventsPublishedTotal,
		HTTPRequestSeconds,
	)
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// Result maps an error to the result label
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// StatusClass buckets an HTTP status code as 2xx, 4xx and so on
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return fmt.Sprintf("%dxx", code/100)
}

// SetMarketOpen records the session state
func SetMarketOpen(open bool) {
	if open {
		MarketOpen.Set(1)
		return
	}
	MarketOpen.Set(0)
}

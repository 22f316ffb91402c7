package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/breeze"
	"github.com/ternarybob/marketdesk/internal/interfaces"
	"github.com/ternarybob/marketdesk/internal/market"
	"github.com/ternarybob/marketdesk/internal/models"
	"github.com/ternarybob/marketdesk/internal/reg30"
	"github.com/ternarybob/marketdesk/internal/services/analysis"
	"github.com/ternarybob/marketdesk/internal/services/scheduler"
	"github.com/ternarybob/marketdesk/internal/services/session"
	"github.com/ternarybob/marketdesk/internal/services/telemetry"
	"github.com/ternarybob/marketdesk/internal/services/watchlist"
)

// Wednesday 2026-10-14, mid-session
var sessionTime = time.Date(2026, 10, 14, 10, 0, 0, 0, market.IST)

func openClock() *market.SessionClock {
	return market.NewSessionClock(func() time.Time { return sessionTime })
}

type fakeWatchlist struct {
	stocks     map[string]*models.WatchlistStock
	refreshErr error
	forced     bool
}

func (f *fakeWatchlist) Add(_ context.Context, symbol, company string) (*models.WatchlistStock, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	stock := &models.WatchlistStock{Symbol: symbol, CompanyName: company}
	f.stocks[symbol] = stock
	return stock, nil
}

func (f *fakeWatchlist) Remove(_ context.Context, symbol string) error {
	if _, ok := f.stocks[symbol]; !ok {
		return interfaces.ErrNotFound
	}
	delete(f.stocks, symbol)
	return nil
}

func (f *fakeWatchlist) List(context.Context) ([]*models.WatchlistStock, error) {
	out := []*models.WatchlistStock{}
	for _, s := range f.stocks {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeWatchlist) RefreshAll(_ context.Context, force bool) (*watchlist.RefreshResult, error) {
	f.forced = force
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &watchlist.RefreshResult{Refreshed: len(f.stocks)}, nil
}

func (f *fakeWatchlist) Snapshot(context.Context) ([]watchlist.StockSnapshot, error) {
	return []watchlist.StockSnapshot{{Hint: "Awaiting depth..."}}, nil
}

type fakeAnalysis struct {
	started  []reg30.EventCandidate
	reports  map[string]*reg30.Report
	filter   interfaces.ReportFilter
	startErr error
}

func (f *fakeAnalysis) Start(candidates []reg30.EventCandidate) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	f.started = candidates
	return "run-1", nil
}

func (f *fakeAnalysis) Run(runID string) (*analysis.RunSummary, bool) {
	if runID != "run-1" {
		return nil, false
	}
	return &analysis.RunSummary{RunID: runID, Total: len(f.started)}, true
}

func (f *fakeAnalysis) ReAnalyze(_ context.Context, fp string) (*reg30.Report, error) {
	return f.GetReport(context.Background(), fp)
}

func (f *fakeAnalysis) ListReports(_ context.Context, filter interfaces.ReportFilter) ([]*reg30.Report, error) {
	f.filter = filter
	out := []*reg30.Report{}
	for _, r := range f.reports {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeAnalysis) GetReport(_ context.Context, fp string) (*reg30.Report, error) {
	if r, ok := f.reports[fp]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("report %s: %w", fp, interfaces.ErrNotFound)
}

func (f *fakeAnalysis) Wipe(context.Context) (int, error) {
	n := len(f.reports)
	f.reports = map[string]*reg30.Report{}
	return n, nil
}

type fakeRenderer struct{}

func (fakeRenderer) ReportPDF(*reg30.Report) ([]byte, error) { return []byte("%PDF-1.3"), nil }

type fakeSessions struct {
	activated string
	err       error
}

func (f *fakeSessions) Activate(_ context.Context, token string) error {
	if f.err != nil {
		return f.err
	}
	f.activated = token
	return nil
}

func (f *fakeSessions) Info(context.Context) (*session.Info, error) {
	return &session.Info{Present: f.activated != "", Masked: "****"}, nil
}

type fakeHealth struct{ err error }

func (f fakeHealth) Health(context.Context) (*breeze.HealthStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &breeze.HealthStatus{Status: "ok", SessionActive: true}, nil
}

type fakeTelemetry struct{ err error }

func (f fakeTelemetry) Status(context.Context) (*telemetry.Status, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &telemetry.Status{Symbol: "NIFTY", IsOpen: true, DataSource: models.DataSourceBreeze}, nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("x: %w", interfaces.ErrNotFound), http.StatusNotFound},
		{"invalid symbol", watchlist.ErrInvalidSymbol, http.StatusBadRequest},
		{"market closed", watchlist.ErrMarketClosed, http.StatusConflict},
		{"refresh running", watchlist.ErrRefreshInProgress, http.StatusConflict},
		{"no extractor", analysis.ErrNoExtractor, http.StatusServiceUnavailable},
		{"rate limited", &breeze.RateLimitError{RetryAfter: time.Second}, http.StatusTooManyRequests},
		{"proxy auth", &breeze.APIError{StatusCode: 401, Message: "session expired"}, http.StatusUnauthorized},
		{"proxy failure", &breeze.APIError{StatusCode: 500, Message: "boom"}, http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestAPIHandler(t *testing.T) {
	h := NewAPIHandler(arbor.NewLogger())

	t.Run("health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.HealthHandler(rec, httptest.NewRequest("GET", "/api/health", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body["status"])
		assert.Contains(t, body, "started_at")
		assert.Contains(t, body, "uptime_seconds")
	})

	t.Run("health rejects post", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.HealthHandler(rec, httptest.NewRequest("POST", "/api/health", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("not found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.NotFoundHandler(rec, httptest.NewRequest("GET", "/api/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "/api/nope")
	})
}

func TestMarketHandler(t *testing.T) {
	logger := arbor.NewLogger()

	t.Run("session", func(t *testing.T) {
		h := NewMarketHandler(openClock(), fakeTelemetry{}, logger)
		rec := httptest.NewRecorder()
		h.SessionHandler(rec, httptest.NewRequest("GET", "/api/market/session", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp SessionResponse
		decode(t, rec, &resp)
		assert.True(t, resp.IsOpen)
		assert.Equal(t, market.StatusLive, resp.Status)
	})

	t.Run("status unavailable", func(t *testing.T) {
		h := NewMarketHandler(openClock(), fakeTelemetry{err: telemetry.ErrNoTelemetry}, logger)
		rec := httptest.NewRecorder()
		h.StatusHandler(rec, httptest.NewRequest("GET", "/api/market/status", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("liquidity", func(t *testing.T) {
		h := NewMarketHandler(openClock(), fakeTelemetry{}, logger)
		body := `{
			"symbol": "TCS",
			"quote": {"ltp": "4,000", "open": 3900, "high": 4010, "low": 3890, "total_volume": 250000},
			"depth": {"best_bid_price": 3999, "best_offer_price": 4001, "best_bid_quantity": 500, "best_offer_quantity": 300},
			"avg_vol_20d": 100000
		}`
		rec := httptest.NewRecorder()
		h.LiquidityHandler(rec, httptest.NewRequest("POST", "/api/liquidity", strings.NewReader(body)))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp LiquidityResponse
		decode(t, rec, &resp)
		assert.Equal(t, 4000.0, resp.Quote.LastTradedPrice)
		assert.Equal(t, market.RegimeBreakout, resp.Metrics.Regime)
		assert.Equal(t, market.ExecutionOKForMarket, resp.Metrics.ExecutionStyle)
		require.NotNil(t, resp.Metrics.VolRatio)
		assert.InDelta(t, 2.5, *resp.Metrics.VolRatio, 1e-9)
		assert.Equal(t, "Momentum OK if volume holds", resp.Hint)
	})

	t.Run("liquidity requires quote", func(t *testing.T) {
		h := NewMarketHandler(openClock(), fakeTelemetry{}, logger)
		rec := httptest.NewRecorder()
		h.LiquidityHandler(rec, httptest.NewRequest("POST", "/api/liquidity", strings.NewReader(`{"symbol":"TCS"}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestWatchlistHandler(t *testing.T) {
	logger := arbor.NewLogger()
	svc := &fakeWatchlist{stocks: map[string]*models.WatchlistStock{}}
	h := NewWatchlistHandler(svc, logger)

	t.Run("add validates", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.AddHandler(rec, httptest.NewRequest("POST", "/api/watchlist", strings.NewReader(`{"company_name":"x"}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "symbol")
	})

	t.Run("add and remove", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.AddHandler(rec, httptest.NewRequest("POST", "/api/watchlist", strings.NewReader(`{"symbol":"tcs","company_name":"TCS Ltd"}`)))
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, svc.stocks, "TCS")

		rec = httptest.NewRecorder()
		h.RemoveHandler(rec, httptest.NewRequest("DELETE", "/api/watchlist/TCS", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		h.RemoveHandler(rec, httptest.NewRequest("DELETE", "/api/watchlist/TCS", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("refresh forced", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.RefreshHandler(rec, httptest.NewRequest("POST", "/api/watchlist/refresh?force=1", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, svc.forced)
	})

	t.Run("refresh while closed", func(t *testing.T) {
		svc.refreshErr = watchlist.ErrMarketClosed
		defer func() { svc.refreshErr = nil }()

		rec := httptest.NewRecorder()
		h.RefreshHandler(rec, httptest.NewRequest("POST", "/api/watchlist/refresh", nil))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.False(t, svc.forced)
	})
}

const disclosureCSV = "SYMBOL,COMPANY NAME,SUBJECT,DETAILS,BROADCAST DATE/TIME,ATTACHMENT\n" +
	"KPIL,Kalpataru Projects,Bagging of orders,New orders worth Rs 2000 Cr,10-Oct-2026 18:05:00,kpil.pdf\n"

func newReg30Handler() (*Reg30Handler, *fakeAnalysis) {
	svc := &fakeAnalysis{reports: map[string]*reg30.Report{
		"abc": {EventFingerprint: "abc", Symbol: "KPIL", EventDate: "2026-10-10"},
	}}
	return NewReg30Handler(svc, fakeRenderer{}, openClock(), arbor.NewLogger()), svc
}

func TestReg30Handler_Upload(t *testing.T) {
	t.Run("raw body", func(t *testing.T) {
		h, svc := newReg30Handler()
		rec := httptest.NewRecorder()
		h.UploadHandler(rec, httptest.NewRequest("POST", "/api/reg30/upload?source=CorpAction", strings.NewReader(disclosureCSV)))

		require.Equal(t, http.StatusAccepted, rec.Code)
		var resp map[string]string
		decode(t, rec, &resp)
		assert.Equal(t, "run-1", resp["run_id"])
		assert.Equal(t, "CorpAction", resp["source"])
		require.Len(t, svc.started, 1)
		assert.Equal(t, "KPIL", svc.started[0].Symbol)
		assert.Equal(t, "2026-10-10", svc.started[0].EventDate)
	})

	t.Run("multipart", func(t *testing.T) {
		h, svc := newReg30Handler()
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", "announcements.csv")
		require.NoError(t, err)
		part.Write([]byte(disclosureCSV))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest("POST", "/api/reg30/upload", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		h.UploadHandler(rec, req)

		require.Equal(t, http.StatusAccepted, rec.Code)
		require.Len(t, svc.started, 1)
		assert.Equal(t, reg30.SourceXBRL, svc.started[0].Source)
	})

	t.Run("no rows", func(t *testing.T) {
		h, _ := newReg30Handler()
		rec := httptest.NewRecorder()
		h.UploadHandler(rec, httptest.NewRequest("POST", "/api/reg30/upload", strings.NewReader("SYMBOL\n")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("no extractor", func(t *testing.T) {
		h, svc := newReg30Handler()
		svc.startErr = analysis.ErrNoExtractor
		rec := httptest.NewRecorder()
		h.UploadHandler(rec, httptest.NewRequest("POST", "/api/reg30/upload", strings.NewReader(disclosureCSV)))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("run status", func(t *testing.T) {
		h, _ := newReg30Handler()
		rec := httptest.NewRecorder()
		h.RunHandler(rec, httptest.NewRequest("GET", "/api/reg30/runs/missing", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = httptest.NewRecorder()
		h.RunHandler(rec, httptest.NewRequest("GET", "/api/reg30/runs/run-1", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestReg30Handler_Classify(t *testing.T) {
	h, _ := newReg30Handler()

	tests := []struct {
		body   string
		family string
		rule   string
	}{
		{`{"text":"Bagging of work order from NHAI"}`, "ORDER_CONTRACT", "order_award"},
		{`{"text":"Outcome of board meeting","source":"CreditRating"}`, "CREDIT_RATING", "credit_rating"},
		{`{"text":"Change in directors"}`, "GOVERNANCE_MANAGEMENT", "default"},
	}
	for _, tt := range tests {
		t.Run(tt.family, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ClassifyHandler(rec, httptest.NewRequest("POST", "/api/reg30/classify", strings.NewReader(tt.body)))
			require.Equal(t, http.StatusOK, rec.Code)

			var resp map[string]string
			decode(t, rec, &resp)
			assert.Equal(t, tt.family, resp["event_family"])
			assert.Equal(t, tt.rule, resp["rule"])
		})
	}
}

func TestReg30Handler_Reports(t *testing.T) {
	t.Run("list filter", func(t *testing.T) {
		h, svc := newReg30Handler()
		rec := httptest.NewRecorder()
		h.ListReportsHandler(rec, httptest.NewRequest("GET", "/api/reg30/reports?symbol=kpil&family=order_contract&limit=5", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "kpil", svc.filter.Symbol)
		assert.Equal(t, reg30.FamilyOrderContract, svc.filter.Family)
		assert.Equal(t, 5, svc.filter.Limit)
	})

	t.Run("pdf", func(t *testing.T) {
		h, _ := newReg30Handler()
		rec := httptest.NewRecorder()
		h.ReportRoutes(rec, httptest.NewRequest("GET", "/api/reg30/reports/abc/pdf", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "KPIL_2026-10-10_abc.pdf")
	})

	t.Run("reanalyze missing", func(t *testing.T) {
		h, _ := newReg30Handler()
		rec := httptest.NewRecorder()
		h.ReportRoutes(rec, httptest.NewRequest("POST", "/api/reg30/reports/nope/reanalyze", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("reanalyze wrong method", func(t *testing.T) {
		h, _ := newReg30Handler()
		rec := httptest.NewRecorder()
		h.ReportRoutes(rec, httptest.NewRequest("GET", "/api/reg30/reports/abc/reanalyze", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("wipe", func(t *testing.T) {
		h, svc := newReg30Handler()
		rec := httptest.NewRecorder()
		h.WipeReportsHandler(rec, httptest.NewRequest("DELETE", "/api/reg30/reports", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]interface{}
		decode(t, rec, &resp)
		assert.Equal(t, 1.0, resp["deleted"])
		assert.Empty(t, svc.reports)
	})
}

func TestBreezeHandler(t *testing.T) {
	logger := arbor.NewLogger()

	t.Run("activate", func(t *testing.T) {
		sessions := &fakeSessions{}
		h := NewBreezeHandler(sessions, fakeHealth{}, logger)
		rec := httptest.NewRecorder()
		h.SessionHandler(rec, httptest.NewRequest("POST", "/api/breeze/session", strings.NewReader(`{"api_session":"48213377"}`)))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "48213377", sessions.activated)
	})

	t.Run("activate rejected upstream", func(t *testing.T) {
		sessions := &fakeSessions{err: &breeze.APIError{StatusCode: 401, Message: "invalid session"}}
		h := NewBreezeHandler(sessions, fakeHealth{}, logger)
		rec := httptest.NewRecorder()
		h.SessionHandler(rec, httptest.NewRequest("POST", "/api/breeze/session", strings.NewReader(`{"api_session":"48213377"}`)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("activate validates", func(t *testing.T) {
		h := NewBreezeHandler(&fakeSessions{}, fakeHealth{}, logger)
		rec := httptest.NewRecorder()
		h.SessionHandler(rec, httptest.NewRequest("POST", "/api/breeze/session", strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("health down", func(t *testing.T) {
		h := NewBreezeHandler(&fakeSessions{}, fakeHealth{err: &breeze.APIError{StatusCode: 503, Message: "down"}}, logger)
		rec := httptest.NewRecorder()
		h.HealthHandler(rec, httptest.NewRequest("GET", "/api/breeze/health", nil))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

type fakeImporter struct{ text string }

func (f *fakeImporter) ImportMasterList(_ context.Context, csvText string) (int, error) {
	f.text = csvText
	return strings.Count(strings.TrimSpace(csvText), "\n"), nil
}

func TestSymbolsHandler(t *testing.T) {
	importer := &fakeImporter{}
	h := NewSymbolsHandler(importer, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.MasterHandler(rec, httptest.NewRequest("POST", "/api/symbols/master", strings.NewReader("symbol,short_name\nAXISCADES,AXIIT\n")))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, importer.text, "AXIIT")

	rec = httptest.NewRecorder()
	h.MasterHandler(rec, httptest.NewRequest("POST", "/api/symbols/master", strings.NewReader("")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSchedulerHandler(t *testing.T) {
	svc := scheduler.NewService(arbor.NewLogger())
	ran := make(chan struct{}, 1)
	require.NoError(t, svc.RegisterJob("watchlist_refresh", "@every 1h", "poll", false, func(context.Context) error {
		ran <- struct{}{}
		return nil
	}))
	h := NewSchedulerHandler(svc, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.ListJobsHandler(rec, httptest.NewRequest("GET", "/api/scheduler/jobs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "watchlist_refresh")

	rec = httptest.NewRecorder()
	h.TriggerJobHandler(rec, httptest.NewRequest("POST", "/api/scheduler/jobs/missing/trigger", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.TriggerJobHandler(rec, httptest.NewRequest("POST", "/api/scheduler/jobs/watchlist_refresh/trigger", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
}

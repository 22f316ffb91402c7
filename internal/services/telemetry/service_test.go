package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/breeze"
	"github.com/ternarybob/marketdesk/internal/market"
	"github.com/ternarybob/marketdesk/internal/models"
)

type indexProvider struct {
	row   market.Row
	err   error
	calls int
}

func (p *indexProvider) GetQuote(ctx context.Context, code string) (market.Row, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.row, nil
}

func (p *indexProvider) GetDepth(ctx context.Context, code string) (market.Row, error) {
	return nil, errors.New("not used")
}

func (p *indexProvider) GetHistorical(ctx context.Context, code string, from, to time.Time) ([]market.Bar, error) {
	return nil, errors.New("not used")
}

type memLogs struct {
	entries []*models.MarketLog
}

func (m *memLogs) AppendMarketLog(ctx context.Context, entry *models.MarketLog) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memLogs) ListMarketLogs(ctx context.Context, limit int) ([]*models.MarketLog, error) {
	var out []*models.MarketLog
	for i := len(m.entries) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

type fakeTime struct{ t time.Time }

func (f *fakeTime) now() time.Time { return f.t }
func (f *fakeTime) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestService(provider *indexProvider, logs *memLogs, start time.Time) (*Service, *fakeTime) {
	clock := &fakeTime{t: start}
	svc := NewService(provider, logs, nil, market.NewSessionClock(clock.now), Config{}, arbor.NewLogger())
	return svc, clock
}

var (
	openTime   = time.Date(2026, 10, 14, 11, 0, 0, 0, market.IST)
	closedTime = time.Date(2026, 10, 18, 11, 0, 0, 0, market.IST)
)

func TestStatus_Live(t *testing.T) {
	ctx := context.Background()
	provider := &indexProvider{row: market.Row{"ltp": 25100.5, "ltp_percent_change": 0.42}}
	logs := &memLogs{}
	svc, clock := newTestService(provider, logs, openTime)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DataSourceBreeze, status.DataSource)
	assert.Equal(t, 25100.5, status.Quote.LastTradedPrice)
	assert.True(t, status.IsOpen)
	assert.Len(t, logs.entries, 1)

	clock.advance(time.Second)
	throttled, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, tooFrequent, throttled.Error)
	assert.Equal(t, 1, provider.calls)

	clock.advance(5 * time.Second)
	_, err = svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls)
	assert.Len(t, logs.entries, 1, "market log is throttled")

	clock.advance(31 * time.Second)
	_, err = svc.Status(ctx)
	require.NoError(t, err)
	assert.Len(t, logs.entries, 2)
}

func TestStatus_FallbackAfterFailures(t *testing.T) {
	ctx := context.Background()
	provider := &indexProvider{row: market.Row{"ltp": 25000.0}}
	svc, clock := newTestService(provider, &memLogs{}, openTime)

	_, err := svc.Status(ctx)
	require.NoError(t, err)

	provider.err = &breeze.APIError{StatusCode: 502, Message: "upstream unavailable"}
	for i := 1; i < 5; i++ {
		clock.advance(3 * time.Second)
		_, err := svc.Status(ctx)
		require.Error(t, err, "failure %d", i)
	}

	clock.advance(3 * time.Second)
	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DataSourceCache, status.DataSource)
	assert.Equal(t, breeze.ErrorKindNetwork, status.ErrorKind)
	assert.Equal(t, 25000.0, status.Quote.LastTradedPrice)

	provider.err = nil
	clock.advance(3 * time.Second)
	status, err = svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DataSourceBreeze, status.DataSource)
}

func TestStatus_Closed(t *testing.T) {
	ctx := context.Background()

	t.Run("served from market log", func(t *testing.T) {
		provider := &indexProvider{}
		logs := &memLogs{entries: []*models.MarketLog{{Symbol: "NIFTY", LastPrice: 24900, ChangePercent: -0.3}}}
		svc, _ := newTestService(provider, logs, closedTime)

		status, err := svc.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, models.DataSourceCache, status.DataSource)
		assert.Equal(t, 24900.0, status.Quote.LastTradedPrice)
		assert.False(t, status.IsOpen)
		assert.Equal(t, "Market Closed", status.Session)
		assert.Zero(t, provider.calls)
	})

	t.Run("one-time broker call", func(t *testing.T) {
		provider := &indexProvider{row: market.Row{"ltp": 25010.0}}
		logs := &memLogs{}
		svc, _ := newTestService(provider, logs, closedTime)

		status, err := svc.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, 25010.0, status.Quote.LastTradedPrice)
		assert.Len(t, logs.entries, 1)

		_, err = svc.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, provider.calls)
	})

	t.Run("offline", func(t *testing.T) {
		provider := &indexProvider{err: errors.New("Session key expired")}
		svc, _ := newTestService(provider, &memLogs{}, closedTime)

		status, err := svc.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, models.DataSourceOffline, status.DataSource)
		assert.Equal(t, breeze.ErrorKindToken, status.ErrorKind)
	})
}

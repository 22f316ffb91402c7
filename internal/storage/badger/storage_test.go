package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/interfaces"
	"github.com/ternarybob/marketdesk/internal/models"
	"github.com/ternarybob/marketdesk/internal/reg30"
	"github.com/timshannon/badgerhold/v4"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()
	store, err := badgerhold.Open(storeOptions(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return &BadgerDB{store: store}
}

func TestReportStorage_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	storage := NewReportStorage(newTestDB(t), arbor.NewLogger())

	report := &reg30.Report{
		EventFingerprint: "abc123",
		Symbol:           "ABCINFRA",
		EventDate:        "2026-10-12",
		EventFamily:      reg30.FamilyOrderContract,
		ImpactScore:      52,
		Recommendation:   reg30.RecommendationTrack,
	}

	created, err := storage.UpsertReport(ctx, report)
	require.NoError(t, err)
	assert.True(t, created)
	firstCreatedAt := report.CreatedAt

	again := *report
	again.ImpactScore = 60
	again.CreatedAt = time.Time{}
	created, err = storage.UpsertReport(ctx, &again)
	require.NoError(t, err)
	assert.False(t, created)

	count, err := storage.CountReports(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := storage.GetReport(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, 60, got.ImpactScore)
	assert.True(t, got.CreatedAt.Equal(firstCreatedAt), "CreatedAt must survive re-ingestion")
}

func TestReportStorage_ListAndWipe(t *testing.T) {
	ctx := context.Background()
	storage := NewReportStorage(newTestDB(t), arbor.NewLogger())

	seed := []reg30.Report{
		{EventFingerprint: "f1", Symbol: "ABC", EventDate: "2026-10-10", EventFamily: reg30.FamilyOrderContract},
		{EventFingerprint: "f2", Symbol: "ABC", EventDate: "2026-10-12", EventFamily: reg30.FamilyCreditRating},
		{EventFingerprint: "f3", Symbol: "XYZ", EventDate: "2026-10-11", EventFamily: reg30.FamilyOrderContract},
	}
	for i := range seed {
		_, err := storage.UpsertReport(ctx, &seed[i])
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		filter interfaces.ReportFilter
		want   []string
	}{
		{"all newest first", interfaces.ReportFilter{}, []string{"f2", "f3", "f1"}},
		{"by symbol", interfaces.ReportFilter{Symbol: "abc"}, []string{"f2", "f1"}},
		{"by family", interfaces.ReportFilter{Family: reg30.FamilyOrderContract}, []string{"f3", "f1"}},
		{"symbol and family", interfaces.ReportFilter{Symbol: "ABC", Family: reg30.FamilyOrderContract}, []string{"f1"}},
		{"limit", interfaces.ReportFilter{Limit: 1}, []string{"f2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reports, err := storage.ListReports(ctx, tt.filter)
			require.NoError(t, err)
			var got []string
			for _, r := range reports {
				got = append(got, r.EventFingerprint)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	deleted, err := storage.DeleteAllReports(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	_, err = storage.GetReport(ctx, "f1")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestKVStorage(t *testing.T) {
	ctx := context.Background()
	kv := NewKVStorage(newTestDB(t), arbor.NewLogger())

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	require.NoError(t, kv.Set(ctx, "Breeze_API_Session", "tok-1", "session"))
	value, err := kv.Get(ctx, "breeze_api_session")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", value)

	pair, err := kv.GetPair(ctx, "breeze_api_session")
	require.NoError(t, err)
	created := pair.CreatedAt

	require.NoError(t, kv.Set(ctx, "breeze_api_session", "tok-2", "session"))
	pair, err = kv.GetPair(ctx, "breeze_api_session")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", pair.Value)
	assert.True(t, pair.CreatedAt.Equal(created))

	require.NoError(t, kv.SetMany(ctx, map[string]string{
		"nse_master:ABC": "ABCIN",
		"nse_master:XYZ": "XYZLT",
	}, "master"))

	pairs, err := kv.ListByPrefix(ctx, "NSE_MASTER:")
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "nse_master:abc", pairs[0].Key)
	assert.Equal(t, "XYZLT", pairs[1].Value)

	require.NoError(t, kv.Delete(ctx, "nse_master:abc"))
	assert.ErrorIs(t, kv.Delete(ctx, "nse_master:abc"), interfaces.ErrKeyNotFound)
}

func TestWatchlistStorage(t *testing.T) {
	ctx := context.Background()
	storage := NewWatchlistStorage(newTestDB(t), arbor.NewLogger())

	base := time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)
	require.NoError(t, storage.SaveStock(ctx, &models.WatchlistStock{Symbol: " tcs ", AddedAt: base.Add(time.Minute)}))
	require.NoError(t, storage.SaveStock(ctx, &models.WatchlistStock{Symbol: "INFY", AddedAt: base}))
	assert.Error(t, storage.SaveStock(ctx, &models.WatchlistStock{Symbol: "  "}))

	stocks, err := storage.ListStocks(ctx)
	require.NoError(t, err)
	require.Len(t, stocks, 2)
	assert.Equal(t, "INFY", stocks[0].Symbol)
	assert.Equal(t, "TCS", stocks[1].Symbol)

	stock, err := storage.GetStock(ctx, "tcs")
	require.NoError(t, err)
	assert.Equal(t, "TCS", stock.Symbol)

	require.NoError(t, storage.DeleteStock(ctx, "TCS"))
	_, err = storage.GetStock(ctx, "TCS")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
	assert.ErrorIs(t, storage.DeleteStock(ctx, "TCS"), interfaces.ErrNotFound)
}

func TestCacheStorage(t *testing.T) {
	ctx := context.Background()
	cache := NewCacheStorage(newTestDB(t), arbor.NewLogger())

	var ext reg30.Extraction
	found, err := cache.GetCached(ctx, "extraction", "k1", &ext)
	require.NoError(t, err)
	assert.False(t, found)

	value := 450.0
	require.NoError(t, cache.PutCached(ctx, "extraction", "k1", reg30.Extraction{
		Summary:    "LOA worth 450 Cr",
		Confidence: 0.9,
		Extracted:  reg30.ExtractedFields{OrderValueCr: &value, Stage: reg30.StageLOA},
	}))
	require.NoError(t, cache.PutCached(ctx, "narrative", "k1", reg30.Narrative{Text: "x"}))

	found, err = cache.GetCached(ctx, "extraction", "k1", &ext)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "LOA worth 450 Cr", ext.Summary)
	require.NotNil(t, ext.Extracted.OrderValueCr)
	assert.Equal(t, 450.0, *ext.Extracted.OrderValueCr)

	cleared, err := cache.ClearCache(ctx, "extraction")
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)

	found, err = cache.GetCached(ctx, "extraction", "k1", &ext)
	require.NoError(t, err)
	assert.False(t, found)

	var narrative reg30.Narrative
	found, err = cache.GetCached(ctx, "narrative", "k1", &narrative)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestMarketLogStorage(t *testing.T) {
	ctx := context.Background()
	storage := NewMarketLogStorage(newTestDB(t), arbor.NewLogger())

	base := time.Date(2026, 10, 12, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, storage.AppendMarketLog(ctx, &models.MarketLog{
			Symbol:     "NIFTY",
			LastPrice:  25000 + float64(i),
			DataSource: models.DataSourceBreeze,
			RecordedAt: base.Add(time.Duration(i) * 30 * time.Second),
		}))
	}

	logs, err := storage.ListMarketLogs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, 25002.0, logs[0].LastPrice)
	assert.Equal(t, 25001.0, logs[1].LastPrice)
}

func TestRunValueLogGC(t *testing.T) {
	db := newTestDB(t)
	rewritten, err := db.RunValueLogGC(0.5)
	require.NoError(t, err)
	assert.Zero(t, rewritten)
}

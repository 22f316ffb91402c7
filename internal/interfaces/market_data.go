package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/marketdesk/internal/market"
)

// MarketDataProvider is the brokerage data collaborator. Rows are returned in
// the provider's own shape and normalised by the caller.
type MarketDataProvider interface {
	GetQuote(ctx context.Context, stockCode string) (market.Row, error)
	GetDepth(ctx context.Context, stockCode string) (market.Row, error)
	GetHistorical(ctx context.Context, stockCode string, from, to time.Time) ([]market.Bar, error)
}

// SymbolResolver maps an exchange symbol to the broker's stock code
type SymbolResolver interface {
	Resolve(ctx context.Context, symbol string) string
}

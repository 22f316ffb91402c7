package watchlist

import (
	"sync"
	"time"

	"github.com/ternarybob/marketdesk/internal/market"
)

// Quote sources recorded in the book
const (
	SourcePoll = "poll"
	SourcePush = "push"
)

// Entry is the latest known market state of one symbol
type Entry struct {
	Quote     *market.Quote         `json:"quote,omitempty"`
	Depth     *market.DepthSnapshot `json:"depth,omitempty"`
	Source    string                `json:"source,omitempty"`
	Error     string                `json:"error,omitempty"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// QuoteBook is shared by polling and the push stream. Last writer wins.
type QuoteBook struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewQuoteBook creates an empty book
func NewQuoteBook() *QuoteBook {
	return &QuoteBook{entries: make(map[string]Entry)}
}

// SetQuote stores q and clears any recorded error
func (b *QuoteBook) SetQuote(symbol string, q market.Quote, source string, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entries[symbol]
	e.Quote = &q
	e.Source = source
	e.Error = ""
	e.UpdatedAt = at
	b.entries[symbol] = e
}

// SetDepth stores the latest top of book
func (b *QuoteBook) SetDepth(symbol string, d market.DepthSnapshot, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entries[symbol]
	e.Depth = &d
	e.UpdatedAt = at
	b.entries[symbol] = e
}

// SetError records a fetch failure, keeping the last good quote
func (b *QuoteBook) SetError(symbol, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entries[symbol]
	e.Error = message
	b.entries[symbol] = e
}

// Get returns a copy of the entry for symbol
func (b *QuoteBook) Get(symbol string) (Entry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[symbol]
	return e, ok
}

// Remove forgets symbol
func (b *QuoteBook) Remove(symbol string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, symbol)
}

// Len returns the number of symbols held
func (b *QuoteBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

package watchlist

import "sync"

// AvgVolumeCache holds one baseline volume per symbol per trading day
type AvgVolumeCache struct {
	mu      sync.Mutex
	entries map[string]avgVolume
}

type avgVolume struct {
	day   string
	value float64
	known bool // false when day's history had no usable volume
	ever  bool // value holds a real average from some day
}

// NewAvgVolumeCache creates an empty cache
func NewAvgVolumeCache() *AvgVolumeCache {
	return &AvgVolumeCache{entries: make(map[string]avgVolume)}
}

// Get returns the cached average for symbol when it was stored on day
func (c *AvgVolumeCache) Get(symbol, day string) (*float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[symbol]
	if !ok || e.day != day {
		return nil, false
	}
	if !e.known {
		return nil, true
	}
	v := e.value
	return &v, true
}

// Peek returns the latest cached average regardless of day
func (c *AvgVolumeCache) Peek(symbol string) *float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[symbol]
	if !ok || !e.ever {
		return nil
	}
	v := e.value
	return &v
}

// Put stores the average for symbol on day
func (c *AvgVolumeCache) Put(symbol, day string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[symbol] = avgVolume{day: day, value: value, known: true, ever: true}
}

// PutMiss records that day has no average for symbol, so Get stops asking
// for history until the day changes. An earlier average stays visible to
// Peek.
func (c *AvgVolumeCache) PutMiss(symbol, day string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[symbol]
	e.day = day
	e.known = false
	c.entries[symbol] = e
}

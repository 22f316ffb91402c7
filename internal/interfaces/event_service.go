package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	// EventReg30Progress carries a per-row status change of a disclosure batch
	EventReg30Progress EventType = "reg30_progress"
	// EventReg30Completed is published once a batch has finished
	EventReg30Completed EventType = "reg30_completed"
	// EventQuoteUpdate carries a fresh quote from polling or the push stream
	EventQuoteUpdate EventType = "quote_update"
	// EventWatchlistRefreshed is published after a batch refresh
	EventWatchlistRefreshed EventType = "watchlist_refreshed"
	// EventMarketStatus carries the latest telemetry status
	EventMarketStatus EventType = "market_status"
)

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages pub/sub event bus
type EventService interface {
	Subscribe(eventType EventType, handler EventHandler) error

	// Publish delivers the event to every subscriber asynchronously
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	Close() error
}

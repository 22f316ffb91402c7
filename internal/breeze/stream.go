package breeze

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/market"
	"github.com/ternarybob/marketdesk/internal/metrics"
)

const (
	// EventSubscribe asks the proxy to push updates for a set of stocks
	EventSubscribe = "subscribe_to_watchlist"
	// EventWatchlistUpdate carries one quote row
	EventWatchlistUpdate = "watchlist_update"

	handshakeTimeout = 10 * time.Second
	reconnectDelay   = time.Second
	readTimeout      = 60 * time.Second
	pingInterval     = 20 * time.Second
)

// Frame is one JSON message on the push channel
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type subscribePayload struct {
	Stocks   []string `json:"stocks"`
	ProxyKey string   `json:"proxy_key,omitempty"`
}

// UpdateHandler receives each pushed quote row
type UpdateHandler func(row market.Row)

// Stream is the push channel client. Run keeps it connected, reconnecting
// after a fixed delay until the context ends.
type Stream struct {
	url            string
	proxyKey       string
	logger         arbor.ILogger
	handler        UpdateHandler
	dialer         websocket.Dialer
	reconnectDelay time.Duration

	mu      sync.Mutex
	conn    *websocket.Conn
	stocks  []string
	writeMu sync.Mutex
}

// StreamOption configures a Stream
type StreamOption func(*Stream)

// WithReconnectDelay overrides the delay between connection attempts
func WithReconnectDelay(d time.Duration) StreamOption {
	return func(s *Stream) {
		s.reconnectDelay = d
	}
}

// NewStream creates a push channel client for url
func NewStream(url, proxyKey string, logger arbor.ILogger, handler UpdateHandler, opts ...StreamOption) *Stream {
	s := &Stream{
		url:            url,
		proxyKey:       proxyKey,
		logger:         logger,
		handler:        handler,
		dialer:         websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		reconnectDelay: reconnectDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe replaces the subscribed stock codes. When connected the new set
// is sent immediately; otherwise it is sent on the next connect.
func (s *Stream) Subscribe(stocks []string) error {
	s.mu.Lock()
	s.stocks = append([]string(nil), stocks...)
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	return s.sendSubscribe(conn, stocks)
}

// Connected reports whether a connection is currently open
func (s *Stream) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Run connects and consumes updates until ctx is done
func (s *Stream) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := s.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn().Err(err).Str("url", s.url).Dur("retry_in", s.reconnectDelay).Msg("Breeze stream disconnected, retrying")
		metrics.StreamReconnectsTotal.Inc()

		select {
		case <-time.After(s.reconnectDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Stream) consume(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	s.mu.Lock()
	s.conn = conn
	stocks := append([]string(nil), s.stocks...)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}()

	s.logger.Info().Str("url", s.url).Int("stocks", len(stocks)).Msg("Connected to Breeze stream")

	if len(stocks) > 0 {
		if err := s.sendSubscribe(conn, stocks); err != nil {
			return err
		}
	}

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.writeMu.Lock()
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				err := conn.WriteMessage(websocket.PingMessage, nil)
				s.writeMu.Unlock()
				if err != nil {
					return
				}
			case <-ctx.Done():
				// unblocks ReadMessage
				conn.Close()
				return
			case <-done:
				return
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		var frame Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to decode stream frame")
			continue
		}
		if frame.Event != EventWatchlistUpdate {
			continue
		}

		var row market.Row
		if err := json.Unmarshal(frame.Data, &row); err != nil || row == nil {
			s.logger.Warn().Err(err).Msg("Invalid watchlist update payload")
			continue
		}
		metrics.StreamMessagesTotal.Inc()
		if s.handler != nil {
			s.handler(row)
		}
	}
}

func (s *Stream) sendSubscribe(conn *websocket.Conn, stocks []string) error {
	data, err := json.Marshal(subscribePayload{Stocks: stocks, ProxyKey: s.proxyKey})
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(Frame{Event: EventSubscribe, Data: data}); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}
	return nil
}

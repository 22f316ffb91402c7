package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/interfaces"
	"github.com/ternarybob/marketdesk/internal/market"
	"github.com/ternarybob/marketdesk/internal/services/events"
	"github.com/ternarybob/marketdesk/internal/services/watchlist"
)

func dialHub(t *testing.T, handler *WebSocketHandler, n int) []*websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conns := make([]*websocket.Conn, n)
	for i := range conns {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })

		var hello WSMessage
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		require.NoError(t, conn.ReadJSON(&hello))
		require.Equal(t, "hello", hello.Type)
		conns[i] = conn
	}

	require.Eventually(t, func() bool { return handler.ClientCount() == n }, 2*time.Second, 10*time.Millisecond)
	return conns
}

func readFrame(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	var msg WSMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocket_FanOut(t *testing.T) {
	logger := arbor.NewLogger()
	bus := events.NewService(logger)
	handler := NewWebSocketHandler(bus, logger, 0)
	require.NoError(t, handler.SubscribeToEvents())

	conns := dialHub(t, handler, 3)

	progress := map[string]string{"candidate_id": "c1", "status": "FETCHING"}
	require.NoError(t, bus.PublishSync(context.Background(), interfaces.Event{
		Type:    interfaces.EventReg30Progress,
		Payload: progress,
	}))

	for i, conn := range conns {
		msg := readFrame(t, conn)
		assert.Equal(t, string(interfaces.EventReg30Progress), msg.Type, "client %d", i)

		raw, err := json.Marshal(msg.Payload)
		require.NoError(t, err)
		assert.JSONEq(t, `{"candidate_id":"c1","status":"FETCHING"}`, string(raw))
	}
}

func TestWebSocket_QuoteThrottle(t *testing.T) {
	logger := arbor.NewLogger()
	bus := events.NewService(logger)
	handler := NewWebSocketHandler(bus, logger, time.Hour)
	require.NoError(t, handler.SubscribeToEvents())

	conn := dialHub(t, handler, 1)[0]

	publish := func(symbol string, ltp float64) {
		require.NoError(t, bus.PublishSync(context.Background(), interfaces.Event{
			Type: interfaces.EventQuoteUpdate,
			Payload: watchlist.QuoteUpdate{
				Symbol: symbol,
				Quote:  market.Quote{Symbol: symbol, LastTradedPrice: ltp},
				Source: watchlist.SourcePush,
			},
		}))
	}

	publish("TCS", 4000)
	publish("TCS", 4001) // same symbol inside the interval is dropped
	publish("INFY", 1500)

	first := readFrame(t, conn)
	second := readFrame(t, conn)

	symbols := []string{}
	for _, msg := range []WSMessage{first, second} {
		assert.Equal(t, string(interfaces.EventQuoteUpdate), msg.Type)
		payload, ok := msg.Payload.(map[string]interface{})
		require.True(t, ok)
		symbols = append(symbols, payload["symbol"].(string))
	}
	assert.Equal(t, []string{"TCS", "INFY"}, symbols)
}

func TestWebSocket_ClientDisconnect(t *testing.T) {
	logger := arbor.NewLogger()
	handler := NewWebSocketHandler(nil, logger, 0)
	require.NoError(t, handler.SubscribeToEvents())

	conns := dialHub(t, handler, 2)
	conns[0].Close()

	assert.Eventually(t, func() bool { return handler.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	handler.Broadcast("market_status", map[string]bool{"is_open": false})
	msg := readFrame(t, conns[1])
	assert.Equal(t, "market_status", msg.Type)
}

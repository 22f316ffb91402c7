package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/interfaces"
	"github.com/ternarybob/marketdesk/internal/services/watchlist"
	"golang.org/x/time/rate"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is the envelope of every frame sent to UI clients
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// HelloPayload is sent once per connection. Clients compare the instance id
// to detect a server restart.
type HelloPayload struct {
	ServerInstanceID string    `json:"server_instance_id"`
	ConnectedAt      time.Time `json:"connected_at"`
}

// broadcastEvents are relayed from the event bus to every client
var broadcastEvents = []interfaces.EventType{
	interfaces.EventQuoteUpdate,
	interfaces.EventReg30Progress,
	interfaces.EventReg30Completed,
	interfaces.EventWatchlistRefreshed,
	interfaces.EventMarketStatus,
}

type WebSocketHandler struct {
	logger           arbor.ILogger
	clients          map[*websocket.Conn]bool
	clientMutex      map[*websocket.Conn]*sync.Mutex
	mu               sync.RWMutex
	eventService     interfaces.EventService
	quoteInterval    time.Duration
	quoteThrottlers  map[string]*rate.Limiter // per symbol; push ticks can arrive many times a second
	throttleMu       sync.Mutex
	serverInstanceID string
}

// NewWebSocketHandler creates the UI broadcast hub. quoteInterval limits how
// often quote updates for one symbol are relayed; zero disables throttling.
func NewWebSocketHandler(eventService interfaces.EventService, logger arbor.ILogger, quoteInterval time.Duration) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		eventService:     eventService,
		quoteInterval:    quoteInterval,
		quoteThrottlers:  make(map[string]*rate.Limiter),
		serverInstanceID: uuid.New().String(),
	}

	logger.Info().Str("server_instance_id", h.serverInstanceID).Msg("WebSocket handler initialized with server instance ID")
	return h
}

// HandleWebSocket upgrades the request and keeps the connection until the
// client goes away. Client frames are read and discarded.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	mutex := &sync.Mutex{}
	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = mutex
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Msgf("WebSocket client connected (total: %d)", clientCount)

	h.send(conn, mutex, WSMessage{
		Type:    "hello",
		Payload: HelloPayload{ServerInstanceID: h.serverInstanceID, ConnectedAt: time.Now()},
	})

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		clientCount := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Msgf("WebSocket client disconnected (remaining: %d)", clientCount)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			break
		}
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends one message to every connected client
func (h *WebSocketHandler) Broadcast(msgType string, payload interface{}) {
	data, err := json.Marshal(WSMessage{Type: msgType, Payload: payload})
	if err != nil {
		h.logger.Error().Err(err).Str("type", msgType).Msg("Failed to marshal WebSocket message")
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
		mutexes = append(mutexes, h.clientMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range clients {
		if err := writeFrame(conn, mutexes[i], data); err != nil {
			h.logger.Warn().Err(err).Str("type", msgType).Msg("Failed to send message to client")
		}
	}
}

func (h *WebSocketHandler) send(conn *websocket.Conn, mutex *sync.Mutex, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal WebSocket message")
		return
	}
	if err := writeFrame(conn, mutex, data); err != nil {
		h.logger.Warn().Err(err).Str("type", msg.Type).Msg("Failed to send message to client")
	}
}

func writeFrame(conn *websocket.Conn, mutex *sync.Mutex, data []byte) error {
	mutex.Lock()
	defer mutex.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// SubscribeToEvents relays bus events to clients. The frame type is the
// event type.
func (h *WebSocketHandler) SubscribeToEvents() error {
	if h.eventService == nil {
		return nil
	}

	for _, eventType := range broadcastEvents {
		if err := h.eventService.Subscribe(eventType, h.relay); err != nil {
			return err
		}
	}
	h.logger.Debug().Int("event_types", len(broadcastEvents)).Msg("WebSocket handler subscribed to events")
	return nil
}

func (h *WebSocketHandler) relay(ctx context.Context, event interfaces.Event) error {
	if event.Type == interfaces.EventQuoteUpdate && !h.allowQuote(event.Payload) {
		return nil
	}
	h.Broadcast(string(event.Type), event.Payload)
	return nil
}

func (h *WebSocketHandler) allowQuote(payload interface{}) bool {
	if h.quoteInterval <= 0 {
		return true
	}
	update, ok := payload.(watchlist.QuoteUpdate)
	if !ok {
		return true
	}

	h.throttleMu.Lock()
	limiter, exists := h.quoteThrottlers[update.Symbol]
	if !exists {
		limiter = rate.NewLimiter(rate.Every(h.quoteInterval), 1)
		h.quoteThrottlers[update.Symbol] = limiter
	}
	h.throttleMu.Unlock()

	return limiter.Allow()
}

package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/platformbuilds/mirador-servicehealth/internal/config"
	"github.com/platformbuilds/mirador-servicehealth/internal/models"
	"github.com/platformbuilds/mirador-servicehealth/internal/monitoring"
	"github.com/platformbuilds/mirador-servicehealth/pkg/logger"
)

const (
	MessageDashboardState = "dashboard_state"

	writeWait  = 10 * time.Second
	sendBuffer = 16
)

// Hub fans committed dashboard states out to connected clients.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	logger     logger.Logger
	mu         sync.RWMutex

	upgrader       websocket.Upgrader
	maxConnections int
	pingInterval   time.Duration
	maxMessageSize int64
	// snapshot is sent to a client right after it connects.
	snapshot func() models.DashboardState
}

type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewHub(cfg config.WebSocketConfig, snapshot func() models.DashboardState, logger logger.Logger) *Hub {
	ping := time.Duration(cfg.PingInterval) * time.Second
	if ping <= 0 {
		ping = 30 * time.Second
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, sendBuffer),
		done:       make(chan struct{}),
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			// read-only stream, any origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		maxConnections: cfg.MaxConnections,
		pingInterval:   ping,
		maxMessageSize: int64(cfg.MaxMessageSize),
		snapshot:       snapshot,
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			monitoring.WebsocketClientConnected()
			h.logger.Info("WebSocket client connected", "clientId", client.id)

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// slow consumer
					h.drop(client)
				}
			}
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.drop(client)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(client)
}

// drop must be called with mu held.
func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	monitoring.WebsocketClientDisconnected()
	h.logger.Info("WebSocket client disconnected", "clientId", client.id)
}

// ClientCount is the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastState queues state for every client. It never blocks the
// refresh path: when the queue is full the state is dropped, and the next
// commit carries newer data anyway.
func (h *Hub) BroadcastState(state models.DashboardState) {
	payload, err := encode(state)
	if err != nil {
		h.logger.Error("Failed to marshal dashboard state", "error", err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("WebSocket broadcast queue full, dropping dashboard state")
	}
}

func encode(state models.DashboardState) ([]byte, error) {
	return json.Marshal(Message{Type: MessageDashboardState, Data: state, Timestamp: time.Now()})
}

// ServeWS upgrades the request and streams dashboard states until the client
// goes away.
func (h *Hub) ServeWS(c *gin.Context) {
	if h.maxConnections > 0 && h.ClientCount() >= h.maxConnections {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "error": "too many stream clients"})
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", "error", err)
		return
	}

	client := &Client{id: uuid.New().String(), hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	if h.snapshot != nil {
		if payload, err := encode(h.snapshot()); err == nil {
			client.send <- payload
		}
	}
	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	client.readPump()
}

// readPump discards client messages and unregisters on close.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	if c.hub.maxMessageSize > 0 {
		c.conn.SetReadLimit(c.hub.maxMessageSize)
	}
	deadline := func() { _ = c.conn.SetReadDeadline(time.Now().Add(2 * c.hub.pingInterval)) }
	deadline()
	c.conn.SetPongHandler(func(string) error { deadline(); return nil })
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

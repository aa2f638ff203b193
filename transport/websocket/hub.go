package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wricardo/escape-room-game/game/engine"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Outbound buffer per client; a full buffer disconnects the client.
	clientBuffer = 256

	// Inbound buffer of the hub; a full buffer drops the broadcast.
	broadcastBuffer = 256
)

// Event names sent to clients.
const (
	EventStateSnapshot = "state-snapshot"
	EventActionResult  = "action-result"
	EventError         = "error"
)

// Request types accepted from clients.
const (
	RequestJoinGame    = "join-game"
	RequestGetSnapshot = "get-snapshot"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the envelope of every outbound frame
type Message struct {
	Event   string      `json:"event"`
	Version uint64      `json:"version"`
	Data    interface{} `json:"data,omitempty"`
}

// ClientRequest is an inbound frame
type ClientRequest struct {
	Type string `json:"type"`
}

// Client represents a WebSocket client
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

type request struct {
	client *Client
	kind   string
}

// SnapshotFunc returns the latest committed state.
type SnapshotFunc func() *engine.State

// Hub maintains the single broadcast group. It implements session.Publisher.
type Hub struct {
	clients map[*Client]bool

	// Outbound messages for every client
	broadcast chan *Message

	// Per-client snapshot requests
	requests chan request

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	snapshot SnapshotFunc
	logger   *zap.Logger
	count    atomic.Int64
}

// NewHub creates a new WebSocket hub. snapshot serves client requests.
func NewHub(snapshot SnapshotFunc, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *Message, broadcastBuffer),
		requests:   make(chan request, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		snapshot:   snapshot,
		logger:     logger,
	}
}

// Run starts the hub's event loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for client := range h.clients {
			h.unregisterClient(client)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case req := <-h.requests:
			h.handleRequest(req)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// ServeWS handles WebSocket requests from clients
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, clientBuffer),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// PublishSnapshot queues a full state broadcast. It never blocks.
func (h *Hub) PublishSnapshot(s *engine.State) {
	h.enqueue(&Message{Event: EventStateSnapshot, Version: s.Version, Data: s})
}

// PublishActionResult queues a discrete action outcome. It never blocks.
func (h *Hub) PublishActionResult(res *engine.ActionResult, version uint64) {
	h.enqueue(&Message{Event: EventActionResult, Version: version, Data: res})
}

func (h *Hub) enqueue(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast queue full, dropping message",
			zap.String("event", message.Event), zap.Uint64("version", message.Version))
	}
}

// registerClient adds a client to the group
func (h *Hub) registerClient(client *Client) {
	h.clients[client] = true
	h.count.Store(int64(len(h.clients)))
	h.logger.Info("websocket client registered", zap.Int("clients", len(h.clients)))
}

// unregisterClient removes a client from the group
func (h *Hub) unregisterClient(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		h.count.Store(int64(len(h.clients)))
		h.logger.Info("websocket client unregistered", zap.Int("clients", len(h.clients)))
	}
}

// broadcastMessage sends a message to every client, dropping slow ones
func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", zap.String("event", message.Event), zap.Error(err))
		return
	}

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("websocket client too slow, disconnecting")
			h.unregisterClient(client)
		}
	}
}

// handleRequest answers a single client
func (h *Hub) handleRequest(req request) {
	if !h.clients[req.client] {
		return
	}

	var message *Message
	switch req.kind {
	case RequestJoinGame, RequestGetSnapshot:
		if h.snapshot == nil {
			return
		}
		s := h.snapshot()
		message = &Message{Event: EventStateSnapshot, Version: s.Version, Data: s}
	default:
		message = &Message{Event: EventError, Data: map[string]string{"error": "unknown message type: " + req.kind}}
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal reply", zap.Error(err))
		return
	}
	select {
	case req.client.send <- data:
	default:
		h.unregisterClient(req.client)
	}
}

// readPump pumps requests from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read error", zap.Error(err))
			}
			break
		}

		var req ClientRequest
		if err := json.Unmarshal(data, &req); err != nil {
			req.Type = "invalid"
		}

		select {
		case c.hub.requests <- request{client: c, kind: req.Type}:
		case <-c.hub.done:
			return
		default:
			c.hub.logger.Warn("request queue full, ignoring client request", zap.String("type", req.Type))
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One frame per message so clients can decode each envelope
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"serverguard.keepalive/internal/core/logger"
	"serverguard.keepalive/internal/core/services"
)

// Message types exchanged with dashboards.
const (
	MessageSnapshot = "snapshot"
	MessageLog      = "log"
	MessageStatus   = "status"
	MessageAssets   = "assets"
	MessageError    = "error"

	// MessagePreview is sent by a dashboard to preview a local file for one asset.
	MessagePreview = "preview"
)

// Message represents a message to be sent to connected clients
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ClientMessage is a message received from a dashboard.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type directMessage struct {
	client *Client
	msg    Message
}

type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Inbound messages from the system to be broadcasted to clients.
	broadcast chan Message

	// Replies addressed to a single client.
	direct chan directMessage

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// snapshot builds the first message of a client. It runs on the Run
	// goroutine while registering, so no broadcast can fall between the
	// snapshot and the client joining.
	snapshot func(*Client) Message

	// Lock for client map safety
	mu sync.Mutex

	done chan struct{}
}

func NewHub(snapshot func(*Client) Message) *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		direct:     make(chan directMessage, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		snapshot:   snapshot,
		done:       make(chan struct{}),
	}
}

// Run dispatches messages until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			SetWSClients(0)
			return
		case client := <-h.register:
			if h.snapshot != nil {
				client.send <- h.snapshot(client)
			}
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			SetWSClients(n)
		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			n := len(h.clients)
			h.mu.Unlock()
			SetWSClients(n)
		case d := <-h.direct:
			h.mu.Lock()
			if h.clients[d.client] {
				h.deliver(d.client, d.msg)
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				h.deliver(client, message)
			}
			h.mu.Unlock()
		}
	}
}

// deliver must be called with h.mu held. A client that cannot keep up is dropped.
func (h *Hub) deliver(client *Client, msg Message) {
	select {
	case client.send <- msg:
	default:
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// Broadcast queues a message for all connected clients. It never blocks the
// caller; messages are dropped when the hub is stopped or saturated.
func (h *Hub) Broadcast(msg Message) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.broadcast <- msg:
	default:
		logger.Warn("Websocket hub saturated, dropping message", "type", msg.Type)
	}
}

// Reply queues a message for one client only.
func (h *Hub) Reply(client *Client, msg Message) {
	select {
	case h.direct <- directMessage{client: client, msg: msg}:
	case <-h.done:
	}
}

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan Message

	// session holds this dashboard's preview overrides.
	session *services.AssetRegistry

	// onMessage handles messages sent by the dashboard.
	onMessage func(*Client, ClientMessage)
}

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
			return
		}
		var in ClientMessage
		if err := json.Unmarshal(data, &in); err != nil {
			c.hub.Reply(c, Message{Type: MessageError, Payload: "invalid message"})
			continue
		}
		if c.onMessage != nil {
			c.onMessage(c, in)
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
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
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			json.NewEncoder(w).Encode(message)

			// Add queued messages to the current websocket message.
			n := len(c.send)
			for i := 0; i < n; i++ {
				json.NewEncoder(w).Encode(<-c.send)
			}

			if err := w.Close(); err != nil {
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

// ServeWs upgrades the request and registers a client with its own preview
// session. The hub sends the client's snapshot before any broadcast.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, session *services.AssetRegistry, onMessage func(*Client, ClientMessage)) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnContext(r.Context(), "Websocket upgrade failed", "error", err)
		return
	}
	client := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan Message, 256),
		session:   session,
		onMessage: onMessage,
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

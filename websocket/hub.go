package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"factorylens/logger"
	"factorylens/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
	sendBuffer     = 256
)

// Topics a client can subscribe to
const (
	TopicSnapshot = models.MessageSnapshot
	TopicAlert    = models.MessageAlert
	TopicStats    = models.MessageStats
)

type envelope struct {
	topic   string
	payload []byte
}

// Hub fans dashboard updates out to websocket clients by topic
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
	upgrader   websocket.Upgrader
	log        *logger.Logger
}

// Client is one dashboard connection and its topic subscriptions
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	id         string
	subscribed map[string]bool
	mutex      sync.RWMutex
}

// NewHub creates a hub accepting upgrades from the given origins.
// Requests without an Origin header are accepted; "*" accepts every origin.
func NewHub(log *logger.Logger, allowedOrigins []string) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Hub{
		broadcast:  make(chan envelope, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// Run starts the hub and returns when ctx is done, closing every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mutex.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.Info("Client registered", "client_id", client.id, "total_clients", total)

			welcome := encode(models.MessageConnection, map[string]string{"status": "connected", "client_id": client.id})
			if welcome != nil {
				select {
				case client.send <- welcome:
				default:
					h.drop(client)
				}
			}

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.log.Info("Client unregistered", "client_id", client.id, "total_clients", len(h.clients))
			}
			h.mutex.Unlock()

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				if !client.wants(message.topic) {
					continue
				}
				select {
				case client.send <- message.payload:
				default:
					close(client.send)
					delete(h.clients, client)
					h.log.Warn("Client send buffer full, disconnecting", "client_id", client.id)
				}
			}
			h.mutex.Unlock()
		}
	}
}

func (h *Hub) drop(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[client]; ok {
		close(client.send)
		delete(h.clients, client)
	}
}

func encode(msgType string, data interface{}) []byte {
	b, err := json.Marshal(models.StreamMessage{Type: msgType, Data: data, Timestamp: time.Now()})
	if err != nil {
		return nil
	}
	return b
}

func (h *Hub) publish(topic string, data interface{}) {
	payload := encode(topic, data)
	if payload == nil {
		h.log.Error("Failed to encode broadcast", "topic", topic)
		return
	}
	select {
	case h.broadcast <- envelope{topic: topic, payload: payload}:
	default:
		h.log.Warn("Broadcast channel full, dropping message", "topic", topic)
	}
}

// BroadcastSnapshot pushes a dashboard snapshot to snapshot subscribers
func (h *Hub) BroadcastSnapshot(snapshot interface{}) {
	h.publish(TopicSnapshot, snapshot)
}

// BroadcastAlert pushes a monitor alert on the alert topic
func (h *Hub) BroadcastAlert(alert models.Alert) {
	h.publish(TopicAlert, alert)
}

// BroadcastStats pushes the periodic stats summary on the stats topic
func (h *Hub) BroadcastStats(stats interface{}) {
	h.publish(TopicStats, stats)
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the request and registers the new client
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "error", err, "origin", r.Header.Get("Origin"))
		return
	}

	client := &Client{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		id:         uuid.NewString(),
		subscribed: make(map[string]bool),
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

// readPump reads control messages until the connection drops
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("WebSocket read error", "client_id", c.id, "error", err)
			}
			break
		}
		c.handleMessage(message)
	}
}

// writePump drains the send queue and keeps the connection alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
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
				c.hub.log.Warn("WebSocket write error", "client_id", c.id, "error", err)
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

type clientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type topicsData struct {
	Topics []string `json:"topics"`
}

// handleMessage applies subscription changes and answers pings
func (c *Client) handleMessage(message []byte) {
	var msg clientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.hub.log.Debug("Ignoring malformed client message", "client_id", c.id, "error", err)
		return
	}

	switch msg.Type {
	case "subscribe", "unsubscribe":
		var data topicsData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.hub.log.Debug("Ignoring malformed topic list", "client_id", c.id, "error", err)
			return
		}
		if msg.Type == "subscribe" {
			c.subscribe(data.Topics)
		} else {
			c.unsubscribe(data.Topics)
		}

	case "ping":
		pong := encode(models.MessagePong, map[string]string{"client_id": c.id})
		c.hub.mutex.RLock()
		defer c.hub.mutex.RUnlock()
		// the hub may have closed send already
		if !c.hub.clients[c] {
			return
		}
		select {
		case c.send <- pong:
		default:
			c.hub.log.Warn("Failed to send pong", "client_id", c.id)
		}

	default:
		c.hub.log.Debug("Unknown message type from client", "client_id", c.id, "type", msg.Type)
	}
}

func (c *Client) subscribe(topics []string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for _, topic := range topics {
		c.subscribed[topic] = true
	}
	c.hub.log.Debug("Client subscribed", "client_id", c.id, "topics", topics)
}

func (c *Client) unsubscribe(topics []string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for _, topic := range topics {
		delete(c.subscribed, topic)
	}
	c.hub.log.Debug("Client unsubscribed", "client_id", c.id, "topics", topics)
}

// wants reports whether the client receives topic. A client without
// subscriptions receives everything.
func (c *Client) wants(topic string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.subscribed) == 0 || c.subscribed[topic]
}

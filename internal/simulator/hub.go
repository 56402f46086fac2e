package simulator

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pump-console/internal/data"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// client is one connected console. user is nil until login succeeds.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu   sync.Mutex
	user *data.User
}

func (c *client) setUser(user *data.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = user
}

func (c *client) currentUser() *data.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// Hub maintains the set of connected consoles and fans out push
// events. Inbound frames are routed to the simulator's handlers.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan []byte

	// inbound delivers client frames to the simulator.
	inbound chan inboundFrame

	// direct carries single-client replies into the hub goroutine,
	// which is the only goroutine allowed to touch a client's send
	// channel once the client may be unregistering.
	direct chan directFrame

	mu      sync.RWMutex
	clients map[*client]bool

	logger *slog.Logger
}

type inboundFrame struct {
	client   *client
	envelope *data.Envelope
}

type directFrame struct {
	client  *client
	message []byte
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 16),
		direct:     make(chan directFrame, 64),
		inbound:    make(chan inboundFrame, 64),
		clients:    make(map[*client]bool),
		logger:     logger,
	}
}

// Run processes registrations and broadcasts until the hub is torn
// down with the process.
func (h *Hub) Run(onDisconnect func(*client)) {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			if onDisconnect != nil {
				onDisconnect(c)
			}

		case message := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					// Slow or gone; drop it.
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()

		case frame := <-h.direct:
			h.mu.Lock()
			if _, ok := h.clients[frame.client]; ok {
				select {
				case frame.client.send <- frame.message:
				default:
					close(frame.client.send)
					delete(h.clients, frame.client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends an event to every connected console.
func (h *Hub) Broadcast(event string, payload any) {
	message, err := marshalEnvelope(event, payload)
	if err != nil {
		h.logger.Error("encoding broadcast failed", "event", event, "error", err)
		return
	}
	h.broadcast <- message
}

// sendTo delivers an event to a single console. The frame goes through
// the hub goroutine so a client that unregistered in the meantime is
// skipped instead of written to a closed channel.
func (h *Hub) sendTo(c *client, event string, payload any) {
	message, err := marshalEnvelope(event, payload)
	if err != nil {
		h.logger.Error("encoding frame failed", "event", event, "error", err)
		return
	}
	h.direct <- directFrame{client: c, message: message}
}

// loggedIn counts consoles with an established identity.
func (h *Hub) loggedIn() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for c := range h.clients {
		if c.currentUser() != nil {
			count++
		}
	}
	return count
}

func marshalEnvelope(event string, payload any) ([]byte, error) {
	envelope, err := data.NewEnvelope(event, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope)
}

// readPump pumps frames from the console into the hub's inbound
// channel until the connection drops.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("client read failed", "error", err)
			}
			return
		}

		envelope, err := data.ParseEnvelope(raw)
		if err != nil {
			c.hub.logger.Warn("dropping malformed client frame", "error", err)
			continue
		}
		c.hub.inbound <- inboundFrame{client: c, envelope: envelope}
	}
}

// writePump pumps queued frames to the console and keeps the
// connection alive with pings.
func (c *client) writePump() {
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
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

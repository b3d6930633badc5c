package presenter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/logger"
	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	MessageConnected = "connected"
	MessageWinners   = "winners"

	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 16
)

var (
	// ErrHubBusy is returned when the broadcast queue is full.
	ErrHubBusy = errors.New("presenter: hub queue full")
	// ErrHubStopped is returned after the hub's Run has returned.
	ErrHubStopped = errors.New("presenter: hub stopped")
)

// Message is the JSON frame sent to the page.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type client struct {
	id       string
	tenantID string
	conn     *websocket.Conn
	send     chan []byte
}

type outbound struct {
	tenantID string
	data     []byte
}

// Hub keeps the websocket connections of every tenant and pushes reveals to
// the connections of the tenant that drew.
type Hub struct {
	upgrader   websocket.Upgrader
	clients    map[string]map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan outbound
	done       chan struct{}
	stopOnce   sync.Once

	mu    sync.RWMutex
	count int
}

// NewHub creates a hub. Start it with Run.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients:    make(map[string]map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan outbound, 256),
		done:       make(chan struct{}),
	}
}

// Run dispatches until ctx is cancelled, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer h.stopOnce.Do(func() { close(h.done) })

	for {
		select {
		case c := <-h.register:
			set, ok := h.clients[c.tenantID]
			if !ok {
				set = make(map[*client]struct{})
				h.clients[c.tenantID] = set
			}
			set[c] = struct{}{}
			h.setCount(1)
			logger.Infof("WebSocket client connected: id=%s tenant=%s", c.id, c.tenantID)

			data, _ := json.Marshal(Message{
				Type: MessageConnected,
				Data: json.RawMessage(`{"clientId":"` + c.id + `"}`),
			})
			select {
			case c.send <- data:
			default:
			}

		case c := <-h.unregister:
			h.remove(c)

		case msg := <-h.broadcast:
			for c := range h.clients[msg.tenantID] {
				select {
				case c.send <- msg.data:
				default:
					// Slow client; drop it rather than hold up the others.
					h.remove(c)
				}
			}

		case <-ctx.Done():
			for _, set := range h.clients {
				for c := range set {
					h.remove(c)
				}
			}
			return
		}
	}
}

// Present queues a winners message for every connection of tenantID.
// It never waits for delivery.
func (h *Hub) Present(_ context.Context, tenantID string, reveal Reveal) error {
	payload, err := json.Marshal(reveal)
	if err != nil {
		return err
	}
	data, err := json.Marshal(Message{Type: MessageWinners, Data: payload})
	if err != nil {
		return err
	}

	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}

	select {
	case h.broadcast <- outbound{tenantID: tenantID, data: data}:
		return nil
	default:
		return ErrHubBusy
	}
}

// ServeWS upgrades the request and attaches the connection to tenantID.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, tenantID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	id, err := gonanoid.New()
	if err != nil {
		_ = conn.Close()
		return err
	}
	c := &client{id: id, tenantID: tenantID, conn: conn, send: make(chan []byte, sendBuffer)}

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return ErrHubStopped
	}

	go h.writePump(c)
	go h.readPump(c)
	return nil
}

// Clients returns the number of open connections.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

func (h *Hub) setCount(delta int) {
	h.mu.Lock()
	h.count += delta
	h.mu.Unlock()
}

// remove must only be called from Run.
func (h *Hub) remove(c *client) {
	set, ok := h.clients[c.tenantID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.tenantID)
	}
	close(c.send)
	h.setCount(-1)
	logger.Infof("WebSocket client disconnected: id=%s tenant=%s", c.id, c.tenantID)
}

// readPump only watches for the peer going away and answers pongs.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

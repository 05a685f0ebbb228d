package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/qninhdt/ai-adventure/internal/game"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// client is one websocket subscribed to one adventure
type client struct {
	conn        *websocket.Conn
	adventureID string
	send        chan []byte
	closed      int32
}

func (c *client) close() {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		close(c.send)
	}
}

// Hub fans engine updates out to the websockets watching each adventure
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

var _ game.Notifier = (*Hub)(nil)

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*client]struct{})}
}

// Publish implements game.Notifier. Slow clients drop messages instead of blocking the turn.
func (h *Hub) Publish(u game.Update) {
	msg, err := json.Marshal(u)
	if err != nil {
		log.Printf("hub: marshal update type=%s: %v", u.Type, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[u.AdventureID] {
		if atomic.LoadInt32(&c.closed) == 1 {
			continue
		}
		select {
		case c.send <- msg:
		default:
			log.Printf("hub: send queue full adventure=%s, dropping %s", u.AdventureID, u.Type)
		}
	}
}

// Count returns the number of clients watching an adventure
func (h *Hub) Count(adventureID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[adventureID])
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.adventureID] == nil {
		h.clients[c.adventureID] = make(map[*client]struct{})
	}
	h.clients[c.adventureID][c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if set, ok := h.clients[c.adventureID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.adventureID)
		}
	}
	h.mu.Unlock()
	// removed from the map first so Publish never sends on a closed channel
	c.close()
}

// Serve upgrades the request and streams updates for adventureID until the peer goes away
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, adventureID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("hub: upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, adventureID: adventureID, send: make(chan []byte, sendBuffer)}
	h.register(c)
	log.Printf("hub: client connected adventure=%s", adventureID)

	go h.writePump(c)
	h.readPump(c)
}

// readPump discards client frames and detects disconnects
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
		log.Printf("hub: client disconnected adventure=%s", c.adventureID)
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
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
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

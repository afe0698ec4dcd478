// Package debugws exposes a read-only websocket tail of the conductor's
// broadcast buffer for local debugging, adapted from the teacher's
// pkg/websocket/hub.go register/unregister/broadcast loop — rewritten
// against gorilla/websocket instead of the teacher's raw-conn client
// framing, and with no inbound message handling since this tail is
// output-only.
package debugws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans broadcast frames out to every connected debug-tail client.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	log     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHub creates an empty hub.
func NewHub(log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{clients: make(map[*client]struct{}), log: log, ctx: ctx, cancel: cancel}
}

// ServeHTTP upgrades the connection and registers it for the tail.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("debugws upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 256)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.wg.Add(1)
	go h.writePump(c)
	go h.readLoopUntilClose(c)
}

// Broadcast fans frame out to every connected client, never blocking:
// a client whose send buffer is full is dropped rather than stalling
// the caller (the conductor's broadcast poller).
func (h *Hub) Broadcast(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			h.unregisterLocked(c)
		}
	}
}

func (h *Hub) writePump(c *client) {
	defer h.wg.Done()
	defer c.conn.Close()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-h.ctx.Done():
			return
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoopUntilClose discards any inbound traffic (this is an
// output-only tail) and unregisters the client once the peer closes.
func (h *Hub) readLoopUntilClose(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.mu.Lock()
			h.unregisterLocked(c)
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) unregisterLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// Close shuts down every connected client.
func (h *Hub) Close() {
	h.cancel()
	h.wg.Wait()
}

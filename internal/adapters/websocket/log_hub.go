// Package websocket provides WebSocket-based log broadcasting so operators
// can watch the bridge process webhook traffic in real time
package websocket

import (
	"bytes"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	broadcastBufferSize = 256
	clientBufferSize    = 64

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// LogHub fans bridge log lines out to connected ops clients. It implements
// io.Writer so it can sit behind the slog handler alongside stdout.
// Broadcasting is drop-if-full: a slow client never blocks webhook
// processing.
type LogHub struct {
	clients map[*client]struct{}

	broadcast  chan []byte
	register   chan *client
	unregister chan *client

	mu sync.RWMutex

	// Secret key for ws upgrade auth (MESH_SECRET)
	secretKey string

	upgrader websocket.Upgrader
}

type client struct {
	hub  *LogHub
	conn *websocket.Conn
	send chan []byte
}

// NewLogHub creates a hub guarded by the given secret key
func NewLogHub(secretKey string) *LogHub {
	return &LogHub{
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan []byte, broadcastBufferSize),
		register:   make(chan *client),
		unregister: make(chan *client),
		secretKey:  secretKey,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Internal ops endpoint, protected by the secret key
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run starts the hub's event loop (call as goroutine)
func (h *LogHub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					// Client buffer full: skip, slow clients must not
					// back up the hub
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Write implements io.Writer for the log output hook. Never blocks:
// messages are dropped when the broadcast buffer is full.
func (h *LogHub) Write(p []byte) (int, error) {
	msg := make([]byte, len(p))
	copy(msg, p)
	msg = bytes.TrimRight(msg, "\n\r")

	select {
	case h.broadcast <- msg:
	default:
		// Buffer full: logging must never block the bridge
	}
	return len(p), nil
}

// ServeWS handles WebSocket upgrade requests.
// Route: GET /ws/logs?secret_key=<MESH_SECRET>
func (h *LogHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	queryKey := r.URL.Query().Get("secret_key")
	if queryKey == "" || queryKey != h.secretKey {
		slog.Warn("Unauthorized log stream attempt", "remote", r.RemoteAddr)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, clientBufferSize),
	}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

// ClientCount returns the current number of connected clients
func (h *LogHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// readPump drains the connection (pongs and client closes)
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
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

// writePump pushes queued log lines to the client, batching what is pending
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

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte("\n"))
				w.Write(<-c.send)
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

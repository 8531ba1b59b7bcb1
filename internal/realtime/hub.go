// Package realtime streams computed snapshots to dashboard clients over
// WebSocket, replacing status polling. Slow clients are disconnected
// rather than ever back-pressuring the engine.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Sapang3/vision-crowd/internal/contracts"
	"github.com/Sapang3/vision-crowd/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
	clientBacklog  = 32
	maxClients     = 1024
	readSizeLimit  = 512
	pongWaitPeriod = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	},
}

// Hub fans each published snapshot out to every connected client.
type Hub struct {
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[chan []byte]struct{}),
	}
}

// Broadcast sends one snapshot to all clients. A client whose backlog is
// full misses the frame; the stream is a live view, not a durable feed.
func (h *Hub) Broadcast(snapshot contracts.RiskSnapshot) {
	body, err := json.Marshal(snapshot)
	if err != nil {
		h.logger.Error("marshal snapshot for stream", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- body:
		default:
		}
	}
}

// Handler upgrades the connection and streams snapshots until the client
// goes away.
func (h *Hub) Handler(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	full := len(h.clients) >= maxClients
	h.mu.RUnlock()
	if full {
		http.Error(w, "stream at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	send := make(chan []byte, clientBacklog)
	h.mu.Lock()
	h.clients[send] = struct{}{}
	h.mu.Unlock()
	metrics.StreamClients.Inc()

	go h.writePump(conn, send)
	h.readPump(conn, send)
}

func (h *Hub) readPump(conn *websocket.Conn, send chan []byte) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, send)
		h.mu.Unlock()
		close(send)
		metrics.StreamClients.Dec()
		_ = conn.Close()
	}()

	conn.SetReadLimit(readSizeLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWaitPeriod))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWaitPeriod))
	})

	for {
		// Clients only listen; any read completes on close or error.
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case body, ok := <-send:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

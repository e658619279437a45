// Package ws feeds the admin dashboard live request-lifecycle events so the
// review queue updates without polling.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
	TS   int64  `json:"ts"`
}

type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.SugaredLogger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Auth and origin policy are enforced by the admin middleware
			// in front of this handler.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log:   log,
		conns: map[*websocket.Conn]struct{}{},
	}
}

// Serve upgrades the connection and keeps it registered until the client
// goes away. Clients only listen; inbound frames are drained and dropped.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("ws upgrade: %v", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Publish fans an event out to every dashboard. Dead connections are dropped
// on write failure; a slow dashboard never blocks the caller for more than
// the write deadline.
func (h *Hub) Publish(eventType string, data any) {
	payload, err := json.Marshal(Event{Type: eventType, Data: data, TS: time.Now().Unix()})
	if err != nil {
		h.log.Warnf("ws marshal: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			delete(h.conns, conn)
			_ = conn.Close()
		}
	}
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

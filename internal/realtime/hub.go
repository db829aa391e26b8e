// Package realtime pushes conversation events to connected dashboards over
// websockets. The hub is the delivery end of the outbox pipeline: the
// deliverer drains pending events and hands them here for fan-out.
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tajirhq/tajir-ai-platform/internal/events"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 32
)

// Hub tracks the open dashboard sessions per shop and fans envelopes out to
// them. Sessions that cannot keep up get dropped instead of stalling the
// rest of the delivery loop.
type Hub struct {
	logger *logging.Logger

	mu    sync.RWMutex
	shops map[string]map[*session]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		logger: logger.Component("realtime"),
		shops:  make(map[string]map[*session]struct{}),
	}
}

// Broadcast sends the envelope to every session watching the shop. A full
// session buffer means the client stopped reading; that session is closed.
func (h *Hub) Broadcast(_ context.Context, shopID string, env events.Envelope) error {
	h.mu.RLock()
	sessions := make([]*session, 0, len(h.shops[shopID]))
	for s := range h.shops[shopID] {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		select {
		case s.send <- env:
		default:
			h.logger.Warn("dropping slow realtime session", "shop_id", shopID)
			s.close()
		}
	}
	return nil
}

var _ events.Broadcaster = (*Hub)(nil)

// Sessions reports how many sessions a shop has open.
func (h *Hub) Sessions(shopID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.shops[shopID])
}

func (h *Hub) add(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.shops[s.shopID] == nil {
		h.shops[s.shopID] = make(map[*session]struct{})
	}
	h.shops[s.shopID][s] = struct{}{}
}

func (h *Hub) remove(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.shops[s.shopID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.shops, s.shopID)
		}
	}
}

// session is one dashboard websocket connection.
type session struct {
	hub    *Hub
	shopID string
	conn   *websocket.Conn
	send   chan events.Envelope
	done   chan struct{}
	once   sync.Once
}

func (s *session) close() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.done)
		if s.conn != nil {
			_ = s.conn.Close()
		}
	})
}

// writePump drains the send buffer onto the wire and keeps the connection
// alive with pings.
func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case <-s.done:
			return
		case env := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames; the stream is one-way. Reading is still
// required so close frames and pongs get processed.
func (s *session) readPump() {
	defer s.close()

	s.conn.SetReadLimit(512)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

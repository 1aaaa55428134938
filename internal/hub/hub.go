// Package hub fans alerts out to live WebSocket subscribers.
package hub

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mempool-sentinel/internal/domain"
	"mempool-sentinel/internal/observability"
)

const (
	// sendBuffer is the per-subscriber queue; a full queue marks the
	// subscriber slow and disconnects it rather than blocking the hub.
	sendBuffer = 64

	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

type subscriber struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub owns the subscriber set. All mutation happens on the Run goroutine;
// other goroutines talk to it through channels only.
type Hub struct {
	register    chan *subscriber
	unregister  chan *subscriber
	broadcast   chan []byte
	subscribers map[*subscriber]struct{}
	count       atomic.Int64
	done        chan struct{}
	logger      *zap.Logger
}

// New creates a hub. Call Run before ServeConn or Broadcast.
func New(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		register:    make(chan *subscriber),
		unregister:  make(chan *subscriber),
		broadcast:   make(chan []byte, 256),
		subscribers: make(map[*subscriber]struct{}),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Run drives the subscriber set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for sub := range h.subscribers {
				close(sub.send)
				delete(h.subscribers, sub)
			}
			h.setCount()
			return

		case sub := <-h.register:
			h.subscribers[sub] = struct{}{}
			h.setCount()
			h.logger.Debug("subscriber connected", zap.String("id", sub.id))

		case sub := <-h.unregister:
			if _, ok := h.subscribers[sub]; ok {
				delete(h.subscribers, sub)
				close(sub.send)
				h.setCount()
				h.logger.Debug("subscriber disconnected", zap.String("id", sub.id))
			}

		case msg := <-h.broadcast:
			for sub := range h.subscribers {
				select {
				case sub.send <- msg:
				default:
					// Slow subscriber: drop it, never stall the hub.
					delete(h.subscribers, sub)
					close(sub.send)
					h.setCount()
					observability.RecordDroppedBroadcast()
					h.logger.Warn("dropped slow subscriber", zap.String("id", sub.id))
				}
			}
		}
	}
}

func (h *Hub) setCount() {
	n := int64(len(h.subscribers))
	h.count.Store(n)
	observability.SetHubSubscribers(int(n))
}

// Count returns the current subscriber count.
func (h *Hub) Count() int {
	return int(h.count.Load())
}

// Broadcast sends an alert to every connected subscriber. Never blocks the
// caller; when the hub's queue is full the alert is dropped for live
// subscribers (it is already persisted).
func (h *Hub) Broadcast(alert *domain.Alert) {
	msg, err := json.Marshal(alert)
	if err != nil {
		h.logger.Error("marshal broadcast alert", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		observability.RecordDroppedBroadcast()
		h.logger.Warn("broadcast queue full, alert dropped for live subscribers",
			zap.Int64("alert_id", alert.ID))
	}
}

// ServeConn registers an upgraded connection, replays the backlog of recent
// alerts to it, and pumps messages until the peer goes away.
func (h *Hub) ServeConn(conn *websocket.Conn, backlog []*domain.Alert) {
	sub := &subscriber{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	// Backlog is queued before registration so new alerts order after it.
	for i := len(backlog) - 1; i >= 0; i-- { // stored newest-first; replay oldest-first
		msg, err := json.Marshal(backlog[i])
		if err != nil {
			continue
		}
		select {
		case sub.send <- msg:
		default:
		}
	}

	select {
	case h.register <- sub:
	case <-h.done:
		conn.Close()
		return
	}

	go sub.writePump(h)
	go sub.readPump(h)
}

// writePump delivers queued messages and keeps the connection alive.
func (s *subscriber) writePump(h *Hub) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames and unregisters on close.
func (s *subscriber) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- s:
		case <-h.done:
		}
		s.conn.Close()
	}()

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

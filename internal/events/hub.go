// Package events fans summary and presence updates out to connected
// dashboard clients.
package events

import (
	"log/slog"
	"sync"
	"time"
)

const (
	TypeSummary      = "conversation.summary"
	TypeOnlineStatus = "user.online_status"
)

// Event is one update pushed to subscribers.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
	TS   int64  `json:"ts"`
}

// Hub is an in-process broadcast channel. Subscribers that fall behind have
// events dropped rather than blocking the publisher.
type Hub struct {
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		logger: log.With(slog.String("service", "events")),
		subs:   make(map[chan Event]struct{}),
	}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called when the subscriber goes away.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Broadcast delivers the event to every live subscriber without blocking.
func (h *Hub) Broadcast(eventType string, data any) {
	ev := Event{Type: eventType, Data: data, TS: time.Now().UnixMilli()}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("subscriber buffer full, dropping event", slog.String("type", eventType))
		}
	}
}

// SubscriberCount reports the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

package pubsub

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventKnowledgeUpdated tells clients to re-fetch the knowledge base.
const EventKnowledgeUpdated = "KB_UPDATED"

// Event is a push notification delivered to every connected client.
type Event struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// NewEvent stamps an event of the given type with the current time.
func NewEvent(kind string) Event {
	return Event{Type: kind, Timestamp: time.Now().Unix()}
}

// Publisher delivers an event to all subscribers, possibly across processes.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Hub fans events out to in-process subscribers. Slow subscribers miss
// events rather than block the publisher.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Event
	nextID uint64
	logger *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[uint64]chan Event),
		logger: logger.With(zap.String("component", "hub")),
	}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called to release it; it closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Broadcast delivers evt to every current subscriber without blocking.
func (h *Hub) Broadcast(evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- evt:
		default:
			h.logger.Warn("subscriber buffer full, dropping event",
				zap.Uint64("subscriber", id),
				zap.String("type", evt.Type),
			)
		}
	}
}

// Publish implements Publisher for single-process deployments.
func (h *Hub) Publish(_ context.Context, evt Event) error {
	h.Broadcast(evt)
	return nil
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Package notify fans companion notifications out to live subscribers.
// Delivery is best-effort: a subscriber that falls behind loses messages
// instead of slowing the publisher down.
package notify

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Harshitk-cp/kindred/internal/domain"
)

const DefaultBuffer = 32

type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]chan domain.Notification
	nextID  uint64
	dropped atomic.Int64
	sent    atomic.Int64
	logger  *zap.Logger
	now     func() time.Time
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs:   make(map[uint64]chan domain.Notification),
		logger: logger,
		now:    time.Now,
	}
}

// Publish delivers n to every subscriber that has room. It never blocks.
func (h *Hub) Publish(n domain.Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = h.now()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		select {
		case ch <- n:
			h.sent.Add(1)
		default:
			h.dropped.Add(1)
			h.logger.Debug("subscriber full, notification dropped",
				zap.Uint64("subscriber", id),
				zap.String("type", string(n.Type)))
		}
	}
}

// Subscribe registers a subscriber with the given channel buffer. The
// returned cancel func unregisters it and closes the channel; it is safe to
// call more than once.
func (h *Hub) Subscribe(buffer int) (<-chan domain.Notification, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan domain.Notification, buffer)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
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

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Stats reports delivered and dropped notification counts.
func (h *Hub) Stats() (sent, dropped int64) {
	return h.sent.Load(), h.dropped.Load()
}

// Discard is a Publisher that drops everything.
type Discard struct{}

func (Discard) Publish(domain.Notification) {}

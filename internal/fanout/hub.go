// Package fanout broadcasts created alerts to live subscribers.
package fanout

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/sensoralert/internal/domain"
	"github.com/hamed0406/sensoralert/internal/metrics"
)

const DefaultBuffer = 64

// Subscription is one live observer. C yields alerts in creation order and
// is closed on Unsubscribe or when the hub drops a subscriber that fell
// behind.
type Subscription struct {
	ID uuid.UUID
	C  <-chan domain.Alert

	ch      chan domain.Alert
	once    sync.Once
	dropped atomic.Bool
}

// Dropped reports whether the hub closed C because the buffer was full.
func (s *Subscription) Dropped() bool { return s.dropped.Load() }

func (s *Subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// Hub is safe for concurrent Subscribe, Unsubscribe and Publish.
type Hub struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]*Subscription
	buffer int
	log    *zap.Logger
}

func NewHub(buffer int, log *zap.Logger) *Hub {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[uuid.UUID]*Subscription),
		buffer: buffer,
		log:    log,
	}
}

func (h *Hub) Subscribe() *Subscription {
	ch := make(chan domain.Alert, h.buffer)
	s := &Subscription{ID: uuid.New(), C: ch, ch: ch}

	h.mu.Lock()
	h.subs[s.ID] = s
	n := len(h.subs)
	h.mu.Unlock()

	metrics.FanoutSubscribers.Set(float64(n))
	h.log.Debug("fanout_subscribed", zap.String("subscription_id", s.ID.String()), zap.Int("subscribers", n))
	return s
}

// Unsubscribe removes s and closes its channel. Calling it more than once,
// or after the hub dropped s, is fine.
func (h *Hub) Unsubscribe(s *Subscription) {
	if s == nil {
		return
	}
	h.mu.Lock()
	delete(h.subs, s.ID)
	n := len(h.subs)
	s.close()
	h.mu.Unlock()

	metrics.FanoutSubscribers.Set(float64(n))
}

// Publish hands a to every current subscriber without blocking. A
// subscriber whose buffer is full is dropped. With no subscribers it does
// nothing.
func (h *Hub) Publish(a domain.Alert) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, s := range h.subs {
		select {
		case s.ch <- a:
			metrics.FanoutDeliveries.WithLabelValues("delivered").Inc()
		default:
			s.dropped.Store(true)
			delete(h.subs, id)
			s.close()
			metrics.FanoutDeliveries.WithLabelValues("dropped").Inc()
			h.log.Warn("fanout_subscriber_dropped",
				zap.String("subscription_id", id.String()),
				zap.Int64("alert_id", int64(a.ID)),
			)
		}
	}
	metrics.FanoutSubscribers.Set(float64(len(h.subs)))
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

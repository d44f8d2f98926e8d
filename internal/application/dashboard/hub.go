package dashboard

import (
	"sync"

	"github.com/erp/dashboard/internal/domain/shared"
	"go.uber.org/zap"
)

// Event types delivered to live views
const (
	EventSession     = "session"
	EventDeviceTier  = "device_tier"
	EventActiveRoute = "active_route"
	EventNavigate    = "navigate"
)

// hubBufferSize lets a slow stream fall behind briefly without blocking publishers
const hubBufferSize = 32

// Event is one message for the open views of a client
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NavigateData is the payload of a navigate event
type NavigateData struct {
	Path string `json:"path"`
}

// Subscription is one open view listening on a hub
type Subscription struct {
	id   uint64
	hub  *Hub
	C    <-chan Event
	ch   chan Event
	Done <-chan struct{}
	done chan struct{}
	once sync.Once
}

// Close detaches the subscription from the hub. It is safe to call more
// than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s.id)
	})
}

// Hub fans pushed events out to the open views of one client. It is the
// navigator of the client: Push sends a navigate event.
type Hub struct {
	logger *zap.Logger

	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

// NewHub creates an empty hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{logger: logger, subs: make(map[uint64]*Subscription)}
}

// Subscribe opens a subscription. On a closed hub the subscription is
// already done.
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan Event, hubBufferSize)
	done := make(chan struct{})
	sub := &Subscription{hub: h, C: ch, ch: ch, Done: done, done: done}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(done)
		return sub
	}
	sub.id = h.nextID
	h.nextID++
	h.subs[sub.id] = sub
	return sub
}

// Publish delivers e to every subscription without blocking. Events for a
// subscription whose buffer is full are dropped.
func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		select {
		case sub.ch <- e:
		default:
			h.logger.Warn("View channel full, dropping event", zap.String("event", e.Type))
		}
	}
}

// Push implements shared.Navigator
func (h *Hub) Push(path string) {
	h.Publish(Event{Type: EventNavigate, Data: NavigateData{Path: path}})
}

// Len returns the number of open subscriptions
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription; later subscriptions start closed
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		close(sub.done)
		delete(h.subs, id)
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

var _ shared.Navigator = (*Hub)(nil)

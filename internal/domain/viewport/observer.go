package viewport

import (
	"context"
	"sync"
)

// Source supplies the live viewport width and change notifications.
// Resize events and media-query matches are both delivered as a new width.
type Source interface {
	// Width returns the last reported width; ok is false before the first measurement
	Width() (width int, ok bool)
	// Subscribe registers fn for width changes and returns its release function
	Subscribe(fn func(width int)) (unsubscribe func())
}

// WidthSource is an in-memory Source fed by client reports
type WidthSource struct {
	mu          sync.RWMutex
	width       int
	subscribers map[uint64]func(int)
	nextID      uint64
}

// NewWidthSource creates a source with no measurement yet
func NewWidthSource() *WidthSource {
	return &WidthSource{
		width:       unmeasuredWidth,
		subscribers: make(map[uint64]func(int)),
	}
}

// Width implements Source
func (s *WidthSource) Width() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.width, s.width != unmeasuredWidth
}

// Set records a new width and notifies every subscriber synchronously.
// Negative widths are treated as zero.
func (s *WidthSource) Set(width int) {
	if width < 0 {
		width = 0
	}

	s.mu.Lock()
	s.width = width
	fns := make([]func(int), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(width)
	}
}

// Subscribe implements Source
func (s *WidthSource) Subscribe(fn func(int)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
}

// SubscriberCount returns the number of live subscriptions
func (s *WidthSource) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

var _ Source = (*WidthSource)(nil)

// Observer turns width notifications into device tier changes for one view.
// The subscription is held between Start and Stop only.
type Observer struct {
	source   Source
	onChange func(DeviceTier)

	mu          sync.Mutex
	tier        DeviceTier
	unsubscribe func()
	detach      func() bool
	started     bool
	stopped     bool
}

// NewObserver creates an observer that reports tiers to onChange
func NewObserver(source Source, onChange func(DeviceTier)) *Observer {
	return &Observer{
		source:   source,
		onChange: onChange,
		tier:     DefaultTier,
	}
}

// Start acquires the subscription and emits the tier measured at mount.
// The subscription is released when ctx is done or Stop is called.
func (o *Observer) Start(ctx context.Context) {
	o.mu.Lock()
	if o.started || o.stopped {
		o.mu.Unlock()
		return
	}
	o.started = true
	if width, ok := o.source.Width(); ok {
		o.tier = Classify(width)
	}
	tier := o.tier
	o.mu.Unlock()

	o.emit(tier)

	unsubscribe := o.source.Subscribe(o.handleWidth)

	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		unsubscribe()
		return
	}
	o.unsubscribe = unsubscribe
	o.detach = context.AfterFunc(ctx, o.Stop)
	o.mu.Unlock()
}

// Stop releases the subscription. It is safe to call more than once.
func (o *Observer) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	unsubscribe, detach := o.unsubscribe, o.detach
	o.unsubscribe, o.detach = nil, nil
	o.mu.Unlock()

	if detach != nil {
		detach()
	}
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Tier returns the most recently computed tier
func (o *Observer) Tier() DeviceTier {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tier
}

func (o *Observer) handleWidth(width int) {
	next := Classify(width)

	o.mu.Lock()
	if o.stopped || next == o.tier {
		o.mu.Unlock()
		return
	}
	o.tier = next
	o.mu.Unlock()

	o.emit(next)
}

func (o *Observer) emit(tier DeviceTier) {
	if o.onChange != nil {
		o.onChange(tier)
	}
}

// TierFor classifies a width reported outside a live subscription, such as
// a client hint on a full page load. ok=false yields the default tier.
func TierFor(width int, ok bool) DeviceTier {
	if !ok {
		return DefaultTier
	}
	return Classify(width)
}

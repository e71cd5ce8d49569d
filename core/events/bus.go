// Package events is the in-process notification bus for conversation
// activity. Components publish; interested parties register explicitly.
package events

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// =============================================================================
// Subscriber
// =============================================================================

// Subscriber receives events. An empty EventTypes subscribes to everything.
type Subscriber interface {
	ID() string
	EventTypes() []EventType
	OnEvent(event *Event) error
}

type funcSubscriber struct {
	id    string
	types []EventType
	fn    func(*Event)
}

func (f *funcSubscriber) ID() string              { return f.id }
func (f *funcSubscriber) EventTypes() []EventType { return f.types }
func (f *funcSubscriber) OnEvent(e *Event) error  { f.fn(e); return nil }

// =============================================================================
// Debouncer
// =============================================================================

// Debouncer drops repeats of the same event signature inside a window.
type Debouncer struct {
	window time.Duration
	seen   map[string]time.Time
	mu     sync.Mutex
}

func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = 500 * time.Millisecond
	}
	return &Debouncer{window: window, seen: make(map[string]time.Time)}
}

// ShouldSkip reports whether event repeats one seen within the window.
func (d *Debouncer) ShouldSkip(event *Event) bool {
	sig := fmt.Sprintf("%s:%s:%v", event.Type, event.UserID, event.Data["online"])

	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now()
	if last, ok := d.seen[sig]; ok && now.Sub(last) <= d.window {
		return true
	}
	d.seen[sig] = now
	return false
}

// =============================================================================
// Bus
// =============================================================================

// Bus delivers events asynchronously on a single dispatch goroutine, so a
// subscriber sees events in publish order. Publish never blocks; events are
// dropped when the buffer is full.
type Bus struct {
	subscribers map[EventType][]Subscriber
	wildcard    []Subscriber
	buffer      chan *Event
	debouncer   *Debouncer
	debounced   map[EventType]bool
	logger      *slog.Logger

	mu         sync.RWMutex
	dispatchMu sync.Mutex
	started    bool
	closed     bool
	done       chan struct{}
	wg         sync.WaitGroup
}

// NewBus creates a bus. Connectivity events are debounced since monitors
// can flap.
func NewBus(bufferSize int, logger *slog.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subscribers: make(map[EventType][]Subscriber),
		buffer:      make(chan *Event, bufferSize),
		debouncer:   NewDebouncer(0),
		debounced:   map[EventType]bool{EventConnectivityChanged: true},
		logger:      logger,
		done:        make(chan struct{}),
	}
}

// Publish queues event for delivery. Safe on a nil bus.
func (b *Bus) Publish(event *Event) {
	if b == nil || event == nil {
		return
	}
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return
	}

	if b.debounced[event.Type] && b.debouncer.ShouldSkip(event) {
		return
	}

	select {
	case b.buffer <- event:
	default:
		b.logger.Debug("event buffer full, dropping event", "type", event.Type.String())
	}
}

func (b *Bus) Subscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	types := sub.EventTypes()
	if len(types) == 0 {
		b.wildcard = append(b.wildcard, sub)
		return
	}
	for _, t := range types {
		b.subscribers[t] = append(b.subscribers[t], sub)
	}
}

// SubscribeFunc registers fn and returns a function that unregisters it.
func (b *Bus) SubscribeFunc(id string, fn func(*Event), types ...EventType) func() {
	b.Subscribe(&funcSubscriber{id: id, types: types, fn: fn})
	return func() { b.Unsubscribe(id) }
}

func (b *Bus) Unsubscribe(subscriberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wildcard = filterSubs(b.wildcard, subscriberID)
	for t, subs := range b.subscribers {
		b.subscribers[t] = filterSubs(subs, subscriberID)
	}
}

func filterSubs(subs []Subscriber, id string) []Subscriber {
	filtered := make([]Subscriber, 0, len(subs))
	for _, sub := range subs {
		if sub.ID() != id {
			filtered = append(filtered, sub)
		}
	}
	return filtered
}

// Start launches the dispatch goroutine. Calling it twice is a no-op.
func (b *Bus) Start() {
	b.dispatchMu.Lock()
	defer b.dispatchMu.Unlock()
	if b.closed || b.started {
		return
	}
	b.started = true
	b.wg.Add(1)
	go b.dispatch()
}

func (b *Bus) dispatch() {
	defer b.wg.Done()
	for {
		select {
		case event := <-b.buffer:
			b.deliver(event)
		case <-b.done:
			b.drain()
			return
		}
	}
}

func (b *Bus) drain() {
	for {
		select {
		case event := <-b.buffer:
			b.deliver(event)
		default:
			return
		}
	}
}

func (b *Bus) deliver(event *Event) {
	b.mu.RLock()
	subs := append(append([]Subscriber{}, b.wildcard...), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.OnEvent(event); err != nil {
			b.logger.Warn("event subscriber failed", "subscriber", sub.ID(), "type", event.Type.String(), "error", err)
		}
	}
}

// Close stops dispatch after delivering everything already buffered.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.dispatchMu.Lock()
	started := b.started
	b.dispatchMu.Unlock()

	close(b.done)
	if started {
		b.wg.Wait()
		return
	}
	b.drain()
}

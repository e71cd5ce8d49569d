package offline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// Monitor is the connectivity signal the handler consumes.
type Monitor interface {
	Online() bool
	// Subscribe registers fn for changes and returns a function that
	// removes it. fn is called only when the state actually flips.
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// notifier holds the state and subscribers shared by the monitors.
type notifier struct {
	mu     sync.Mutex
	online bool
	subs   map[uint64]func(bool)
	nextID uint64
}

func newNotifier(online bool) *notifier {
	return &notifier{online: online, subs: make(map[uint64]func(bool))}
}

func (n *notifier) Online() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.online
}

func (n *notifier) Subscribe(fn func(bool)) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

// set records the new state and notifies subscribers outside the lock.
func (n *notifier) set(online bool) bool {
	n.mu.Lock()
	if n.online == online {
		n.mu.Unlock()
		return false
	}
	n.online = online
	subs := make([]func(bool), 0, len(n.subs))
	for _, fn := range n.subs {
		subs = append(subs, fn)
	}
	n.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
	return true
}

// =============================================================================
// StaticMonitor
// =============================================================================

// StaticMonitor is switched by hand, e.g. from a --offline flag.
type StaticMonitor struct {
	*notifier
}

func NewStaticMonitor(online bool) *StaticMonitor {
	return &StaticMonitor{newNotifier(online)}
}

// SetOnline changes the state, notifying subscribers if it flipped.
func (m *StaticMonitor) SetOnline(online bool) {
	m.set(online)
}

// =============================================================================
// ProbeMonitor
// =============================================================================

const (
	DefaultProbeInterval = 15 * time.Second
	DefaultProbeTimeout  = 3 * time.Second
)

type ProbeConfig struct {
	// URL is requested with HEAD. Any HTTP response counts as online; only
	// transport failures count as offline.
	URL      string
	Interval time.Duration
	Timeout  time.Duration
	Client   *resty.Client
	Logger   *slog.Logger
}

// ProbeMonitor polls a URL. It starts optimistic (online) until the first
// probe says otherwise.
type ProbeMonitor struct {
	*notifier
	cfg ProbeConfig

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewProbeMonitor(cfg ProbeConfig) *ProbeMonitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultProbeInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProbeTimeout
	}
	if cfg.Client == nil {
		cfg.Client = resty.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ProbeMonitor{notifier: newNotifier(true), cfg: cfg}
}

// Probe performs one check and updates the state.
func (m *ProbeMonitor) Probe(ctx context.Context) bool {
	reqCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	_, err := m.cfg.Client.R().SetContext(reqCtx).Head(m.cfg.URL)
	if ctx.Err() != nil {
		return m.Online()
	}
	online := err == nil
	if m.set(online) {
		m.cfg.Logger.Info("connectivity changed", "online", online, "url", m.cfg.URL)
	}
	return online
}

// Start probes immediately and then every Interval until Stop or ctx ends.
// Calling Start on a running monitor is a no-op.
func (m *ProbeMonitor) Start(ctx context.Context) {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go m.run(ctx, m.done)
}

func (m *ProbeMonitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// Stop ends polling and waits for the loop to exit.
func (m *ProbeMonitor) Stop() {
	m.runMu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

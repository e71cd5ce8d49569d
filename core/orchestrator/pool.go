package orchestrator

import (
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/adalundhe/parley/core/agents"
	"github.com/adalundhe/parley/core/events"
	"github.com/adalundhe/parley/core/intent"
	"github.com/adalundhe/parley/core/memory"
	"github.com/adalundhe/parley/core/storage"
)

const DefaultMaxSessions = 128

// PoolConfig holds what sessions share. Each session gets its own memory
// store and conversation context.
type PoolConfig struct {
	Backend         storage.Backend
	Agents          *agents.Registry
	Classifier      *intent.Classifier
	Bus             *events.Bus
	MaxSessions     int
	MaxKeyFacts     int
	MaxInteractions int
	Logger          *slog.Logger
	Now             func() time.Time
}

func (c *PoolConfig) applyDefaults() {
	if c.Backend == nil {
		c.Backend = storage.NewMemoryBackend()
	}
	if c.Classifier == nil {
		c.Classifier = intent.NewClassifier(nil)
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = DefaultMaxSessions
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Pool keeps one Orchestrator per user, evicting the least recently used
// session when full. Evicted sessions release their memory store; the
// document itself stays in the backend.
type Pool struct {
	cfg PoolConfig

	mu       sync.Mutex
	sessions *lru.Cache[string, *Orchestrator]
}

func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.Agents == nil {
		return nil, ErrNoAgents
	}
	cfg.applyDefaults()
	p := &Pool{cfg: cfg}
	cache, err := lru.NewWithEvict[string, *Orchestrator](cfg.MaxSessions, p.handleEviction)
	if err != nil {
		return nil, err
	}
	p.sessions = cache
	return p, nil
}

func (p *Pool) handleEviction(scope string, o *Orchestrator) {
	if err := o.memory.Close(); err != nil {
		p.cfg.Logger.Warn("closing evicted session", "session", scope, "error", err)
	}
}

// Get returns the session for userID, creating it on first use. An empty
// userID is the anonymous guest session; a user named "guest" is not.
func (p *Pool) Get(userID string) (*Orchestrator, error) {
	key := storage.UserScope(userID)

	p.mu.Lock()
	defer p.mu.Unlock()

	if o, ok := p.sessions.Get(key); ok {
		return o, nil
	}
	o, err := New(Config{
		Agents: p.cfg.Agents,
		Memory: memory.NewStore(memory.Config{
			Backend:         p.cfg.Backend,
			UserID:          userID,
			MaxKeyFacts:     p.cfg.MaxKeyFacts,
			MaxInteractions: p.cfg.MaxInteractions,
			Logger:          p.cfg.Logger,
			Now:             p.cfg.Now,
		}),
		Classifier: p.cfg.Classifier,
		Bus:        p.cfg.Bus,
		Logger:     p.cfg.Logger,
		Now:        p.cfg.Now,
	})
	if err != nil {
		return nil, err
	}
	p.sessions.Add(key, o)
	return o, nil
}

// Remove drops a session, releasing its memory store.
func (p *Pool) Remove(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions.Remove(storage.UserScope(userID))
}

func (p *Pool) Len() int {
	return p.sessions.Len()
}

// Close releases every session.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions.Purge()
}

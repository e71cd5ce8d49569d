package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	coreerrors "github.com/adalundhe/parley/core/errors"
	"github.com/adalundhe/parley/core/storage"
)

const (
	DefaultMaxKeyFacts     = 50
	DefaultMaxInteractions = 20

	keyPrefix = "memory:"
)

// Config configures a Store.
type Config struct {
	Backend storage.Backend
	// UserID scopes the document. Empty means a guest, whose document is
	// temporary and may disappear from the backend at any time.
	UserID          string
	MaxKeyFacts     int
	MaxInteractions int
	Logger          *slog.Logger
	Now             func() time.Time
}

func (c *Config) applyDefaults() {
	if c.Backend == nil {
		c.Backend = storage.NewMemoryBackend()
	}
	if c.MaxKeyFacts <= 0 {
		c.MaxKeyFacts = DefaultMaxKeyFacts
	}
	if c.MaxInteractions <= 0 {
		c.MaxInteractions = DefaultMaxInteractions
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Store is a write-through cache over one user's Document. The document is
// read from the backend on first access and written back after every
// mutation. A failed write leaves the cached document unchanged.
type Store struct {
	cfg       Config
	key       string
	userID    string
	temporary bool

	mu     sync.Mutex
	doc    *Document
	recall *factIndex
}

// NewStore creates a store for cfg.UserID. Nothing is read until first use.
func NewStore(cfg Config) *Store {
	cfg.applyDefaults()
	userID, temporary := cfg.UserID, false
	if userID == "" {
		userID, temporary = GuestUserID, true
	}
	return &Store{
		cfg:       cfg,
		key:       Key(cfg.UserID),
		userID:    userID,
		temporary: temporary,
	}
}

// Key is the backend key holding userID's document. An empty userID is the
// anonymous guest.
func Key(userID string) string {
	return keyPrefix + storage.UserScope(userID)
}

func (s *Store) UserID() string    { return s.userID }
func (s *Store) IsTemporary() bool { return s.temporary }

// =============================================================================
// Reads
// =============================================================================

// Get returns a copy of the document.
func (s *Store) Get(ctx context.Context) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.hydrateLocked(ctx); err != nil {
		return Document{}, err
	}
	return s.doc.clone(), nil
}

// GetAgentMemory returns the subtree for agentID, empty if none exists.
func (s *Store) GetAgentMemory(ctx context.Context, agentID string) (AgentMemory, error) {
	doc, err := s.Get(ctx)
	if err != nil {
		return AgentMemory{}, err
	}
	return doc.AgentMemory[agentID], nil
}

// RecentInteractions returns the conversation log, oldest first.
func (s *Store) RecentInteractions(ctx context.Context) ([]Interaction, error) {
	doc, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Conversation.RecentInteractions, nil
}

// KeyFacts returns the retained facts, oldest first.
func (s *Store) KeyFacts(ctx context.Context) ([]KeyFact, error) {
	doc, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Conversation.KeyFacts, nil
}

// RecallFacts returns up to limit retained facts matching query, best first.
func (s *Store) RecallFacts(ctx context.Context, query string, limit int) ([]KeyFact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.hydrateLocked(ctx); err != nil {
		return nil, err
	}
	ids, err := s.recall.search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]KeyFact, len(s.doc.Conversation.KeyFacts))
	for _, f := range s.doc.Conversation.KeyFacts {
		byID[f.ID] = f
	}
	facts := make([]KeyFact, 0, len(ids))
	for _, id := range ids {
		if f, ok := byID[id]; ok {
			facts = append(facts, f)
		}
	}
	return facts, nil
}

// =============================================================================
// Mutations
// =============================================================================

// Update deep-merges partial into the document. Keys follow the JSON names
// of Document, e.g. {"profile": {"preferences": {"theme": "dark"}}}.
func (s *Store) Update(ctx context.Context, partial map[string]any) (Document, error) {
	src, err := normalizePartial(partial)
	if err != nil {
		return Document{}, coreerrors.Wrap(coreerrors.KindInvalidInput, "memory update", err)
	}
	return s.mutate(ctx, func(d *Document) error {
		current, err := d.toMap()
		if err != nil {
			return err
		}
		merged, err := documentFromMap(DeepMerge(current, src))
		if err != nil {
			return coreerrors.Wrap(coreerrors.KindInvalidInput, "memory update", err)
		}
		merged.UserID, merged.CreatedAt, merged.IsTemporary = d.UserID, d.CreatedAt, d.IsTemporary
		*d = merged
		return nil
	})
}

// UpdateAgentMemory deep-merges partial into agentID's subtree.
func (s *Store) UpdateAgentMemory(ctx context.Context, agentID string, partial map[string]any) (AgentMemory, error) {
	doc, err := s.Update(ctx, map[string]any{
		"agentMemory": map[string]any{agentID: partial},
	})
	if err != nil {
		return AgentMemory{}, err
	}
	return doc.AgentMemory[agentID], nil
}

// RememberPreference stores profile.preferences[category][key] = value.
func (s *Store) RememberPreference(ctx context.Context, category, key string, value any) error {
	_, err := s.Update(ctx, map[string]any{
		"profile": map[string]any{
			"preferences": map[string]any{
				category: map[string]any{key: value},
			},
		},
	})
	return err
}

// RememberEntity merges data into the entity entityType/id. CreatedAt is
// stamped on the first write only.
func (s *Store) RememberEntity(ctx context.Context, entityType, id string, data map[string]any) (Entity, error) {
	src, err := normalizePartial(data)
	if err != nil {
		return Entity{}, coreerrors.Wrap(coreerrors.KindInvalidInput, "remember entity", err)
	}

	var saved Entity
	_, err = s.mutate(ctx, func(d *Document) error {
		now := s.cfg.Now()
		byID := d.Entities[entityType]
		if byID == nil {
			byID = map[string]Entity{}
			d.Entities[entityType] = byID
		}
		e, exists := byID[id]
		if !exists {
			e.CreatedAt = now
		}
		e.Data = DeepMerge(e.Data, src)
		e.UpdatedAt = now
		byID[id] = e
		saved = e
		return nil
	})
	return saved, err
}

// AddKeyFact appends a fact, keeping only the most recent MaxKeyFacts.
func (s *Store) AddKeyFact(ctx context.Context, fact string, metadata map[string]any) (KeyFact, error) {
	kf := KeyFact{
		ID:       uuid.NewString(),
		Fact:     fact,
		Metadata: metadata,
		AddedAt:  s.cfg.Now(),
	}

	var dropped []KeyFact
	_, err := s.mutate(ctx, func(d *Document) error {
		facts := append(d.Conversation.KeyFacts, kf)
		if over := len(facts) - s.cfg.MaxKeyFacts; over > 0 {
			dropped = append(dropped, facts[:over]...)
			facts = append([]KeyFact(nil), facts[over:]...)
		}
		d.Conversation.KeyFacts = facts
		return nil
	})
	if err != nil {
		return KeyFact{}, err
	}

	s.mu.Lock()
	s.recall.add(kf)
	for _, f := range dropped {
		s.recall.remove(f.ID)
	}
	s.mu.Unlock()
	return kf, nil
}

// AddInteraction appends to the conversation log, keeping only the most
// recent MaxInteractions.
func (s *Store) AddInteraction(ctx context.Context, in Interaction) error {
	if in.Timestamp.IsZero() {
		in.Timestamp = s.cfg.Now()
	}
	_, err := s.mutate(ctx, func(d *Document) error {
		log := append(d.Conversation.RecentInteractions, in)
		if over := len(log) - s.cfg.MaxInteractions; over > 0 {
			log = append([]Interaction(nil), log[over:]...)
		}
		d.Conversation.RecentInteractions = log
		return nil
	})
	return err
}

// ClearMemory removes the backing record and starts over with an empty
// document.
func (s *Store) ClearMemory(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cfg.Backend.Remove(ctx, s.key); err != nil {
		return storage.Unavailable("remove", err)
	}
	doc := newDocument(s.userID, s.temporary, s.cfg.Now())
	s.doc = &doc
	if s.recall != nil {
		s.recall.close()
	}
	s.recall = newFactIndex(s.cfg.Logger)
	s.cfg.Logger.Debug("memory cleared", "user", s.userID)
	return nil
}

// Close releases the recall index.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recall != nil {
		s.recall.close()
		s.recall = nil
	}
	s.doc = nil
	return nil
}

func (s *Store) mutate(ctx context.Context, fn func(*Document) error) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.hydrateLocked(ctx); err != nil {
		return Document{}, err
	}
	next := s.doc.clone()
	if err := fn(&next); err != nil {
		return Document{}, err
	}
	next.UpdatedAt = s.cfg.Now()

	if err := storage.SetJSON(ctx, s.cfg.Backend, s.key, next); err != nil {
		return Document{}, err
	}
	s.doc = &next
	return next.clone(), nil
}

func (s *Store) hydrateLocked(ctx context.Context) error {
	if s.doc != nil {
		return nil
	}

	var doc Document
	found, err := storage.GetJSON(ctx, s.cfg.Backend, s.key, &doc)
	switch {
	case err != nil && coreerrors.IsKind(err, coreerrors.KindStorageUnavailable):
		return err
	case err != nil:
		s.cfg.Logger.Warn("discarding unreadable memory document", "user", s.userID, "error", err)
		doc = newDocument(s.userID, s.temporary, s.cfg.Now())
	case !found:
		doc = newDocument(s.userID, s.temporary, s.cfg.Now())
	default:
		doc.normalize()
	}

	s.doc = &doc
	s.recall = newFactIndex(s.cfg.Logger)
	for _, f := range doc.Conversation.KeyFacts {
		s.recall.add(f)
	}
	return nil
}

func normalizePartial(partial map[string]any) (map[string]any, error) {
	if partial == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(partial)
	if err != nil {
		return nil, fmt.Errorf("encode partial: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode partial: %w", err)
	}
	return out, nil
}

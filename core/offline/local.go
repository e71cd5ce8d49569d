package offline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adalundhe/parley/core/storage"
)

const (
	remindersKeyPrefix = "offline:reminders:"
	notesKeyPrefix     = "offline:notes:"
)

// Record is a reminder or note saved on this device while offline.
type Record struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Time      string    `json:"time,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// LocalStore keeps one user's reminders and notes in the storage backend.
type LocalStore struct {
	backend      storage.Backend
	remindersKey string
	notesKey     string
	now          func() time.Time

	mu sync.Mutex
}

func NewLocalStore(backend storage.Backend, userID string, now func() time.Time) *LocalStore {
	if now == nil {
		now = time.Now
	}
	scope := storage.UserScope(userID)
	return &LocalStore{
		backend:      backend,
		remindersKey: remindersKeyPrefix + scope,
		notesKey:     notesKeyPrefix + scope,
		now:          now,
	}
}

func (s *LocalStore) SaveReminder(ctx context.Context, content, when string) (Record, error) {
	return s.append(ctx, s.remindersKey, content, when)
}

func (s *LocalStore) SaveNote(ctx context.Context, content string) (Record, error) {
	return s.append(ctx, s.notesKey, content, "")
}

func (s *LocalStore) Reminders(ctx context.Context) ([]Record, error) {
	return s.list(ctx, s.remindersKey)
}

func (s *LocalStore) Notes(ctx context.Context) ([]Record, error) {
	return s.list(ctx, s.notesKey)
}

func (s *LocalStore) append(ctx context.Context, key, content, when string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []Record
	if _, err := storage.GetJSON(ctx, s.backend, key, &records); err != nil {
		return Record{}, err
	}
	rec := Record{ID: uuid.NewString(), Content: content, Time: when, CreatedAt: s.now()}
	if err := storage.SetJSON(ctx, s.backend, key, append(records, rec)); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *LocalStore) list(ctx context.Context, key string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []Record
	if _, err := storage.GetJSON(ctx, s.backend, key, &records); err != nil {
		return nil, err
	}
	return records, nil
}

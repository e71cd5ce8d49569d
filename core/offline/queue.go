package offline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adalundhe/parley/core/storage"
)

const queueKeyPrefix = "offline:queue:"

// ActionKind is the type of a pending action. Only messages are queued
// today.
type ActionKind string

const ActionMessage ActionKind = "message"

// PendingAction is a request waiting for connectivity. ID is unique and
// doubles as an idempotency key during replay.
type PendingAction struct {
	ID         string     `json:"id"`
	Kind       ActionKind `json:"kind"`
	Text       string     `json:"text"`
	EnqueuedAt time.Time  `json:"enqueuedAt"`
}

// Queue is a durable FIFO of one user's pending actions, stored as one
// document.
type Queue struct {
	backend storage.Backend
	key     string
	now     func() time.Time

	mu sync.Mutex
}

// NewQueue opens userID's queue. An empty userID is the anonymous guest.
func NewQueue(backend storage.Backend, userID string, now func() time.Time) *Queue {
	if now == nil {
		now = time.Now
	}
	return &Queue{backend: backend, key: queueKeyPrefix + storage.UserScope(userID), now: now}
}

// Enqueue appends a message. It fails with StorageUnavailable when the
// backend cannot be written.
func (q *Queue) Enqueue(ctx context.Context, text string) (PendingAction, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		return PendingAction{}, err
	}
	action := PendingAction{
		ID:         uuid.NewString(),
		Kind:       ActionMessage,
		Text:       text,
		EnqueuedAt: q.now(),
	}
	if err := q.save(ctx, append(items, action)); err != nil {
		return PendingAction{}, err
	}
	return action, nil
}

// List returns the queue in enqueue order.
func (q *Queue) List(ctx context.Context) ([]PendingAction, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load(ctx)
}

func (q *Queue) Len(ctx context.Context) (int, error) {
	items, err := q.List(ctx)
	return len(items), err
}

// Remove deletes the given ids, keeping the order of what is left. Items
// enqueued after the caller listed the queue are never touched.
func (q *Queue) Remove(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		return err
	}
	kept := items[:0]
	for _, item := range items {
		if _, ok := drop[item.ID]; !ok {
			kept = append(kept, item)
		}
	}
	return q.save(ctx, kept)
}

// Clear empties the queue.
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.backend.Remove(ctx, q.key); err != nil {
		return storage.Unavailable("remove", err)
	}
	return nil
}

func (q *Queue) load(ctx context.Context) ([]PendingAction, error) {
	var items []PendingAction
	if _, err := storage.GetJSON(ctx, q.backend, q.key, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (q *Queue) save(ctx context.Context, items []PendingAction) error {
	if len(items) == 0 {
		if err := q.backend.Remove(ctx, q.key); err != nil {
			return storage.Unavailable("remove", err)
		}
		return nil
	}
	return storage.SetJSON(ctx, q.backend, q.key, items)
}

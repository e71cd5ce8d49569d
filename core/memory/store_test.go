package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/adalundhe/parley/core/errors"
	"github.com/adalundhe/parley/core/storage"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(t *testing.T, backend storage.Backend, userID string) (*Store, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	s := NewStore(Config{Backend: backend, UserID: userID, Now: c.now})
	t.Cleanup(func() { s.Close() })
	return s, c
}

type brokenBackend struct{ storage.Backend }

func (brokenBackend) Get(context.Context, string) ([]byte, error) {
	return nil, fmt.Errorf("disk gone")
}

func (brokenBackend) Set(context.Context, string, []byte) error {
	return fmt.Errorf("disk gone")
}

func TestUpdateDeepMerges(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, storage.NewMemoryBackend(), "ada")

	_, err := s.Update(ctx, map[string]any{"profile": map[string]any{"preferences": map[string]any{"theme": "dark"}}})
	require.NoError(t, err)
	doc, err := s.Update(ctx, map[string]any{"profile": map[string]any{"preferences": map[string]any{"volume": 0.5}}})
	require.NoError(t, err)

	assert.Equal(t, "dark", doc.Profile.Preferences["theme"])
	assert.Equal(t, 0.5, doc.Profile.Preferences["volume"])
	assert.Equal(t, "ada", doc.UserID)
}

func TestEmptyListClearsAgentMemory(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, storage.NewMemoryBackend(), "ada")

	_, err := s.UpdateAgentMemory(ctx, "research", map[string]any{"knownTopics": []string{"volcanoes", "glaciers"}})
	require.NoError(t, err)
	am, err := s.UpdateAgentMemory(ctx, "research", map[string]any{"knownTopics": []string{}})
	require.NoError(t, err)
	assert.Empty(t, am.KnownTopics)

	am, err = s.GetAgentMemory(ctx, "research")
	require.NoError(t, err)
	assert.Empty(t, am.KnownTopics)
}

func TestUpdateIsWrittenThrough(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	s, _ := newTestStore(t, backend, "ada")

	_, err := s.Update(ctx, map[string]any{"profile": map[string]any{"name": "Ada"}})
	require.NoError(t, err)

	reopened, _ := newTestStore(t, backend, "ada")
	doc, err := reopened.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ada", doc.Profile.Name)
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, storage.NewMemoryBackend(), "ada")
	require.NoError(t, s.RememberPreference(ctx, "ui", "theme", "dark"))

	doc, err := s.Get(ctx)
	require.NoError(t, err)
	doc.Profile.Preferences["ui"] = "mutated"

	again, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"theme": "dark"}, again.Profile.Preferences["ui"])
}

func TestAgentMemory(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, storage.NewMemoryBackend(), "ada")

	_, err := s.UpdateAgentMemory(ctx, "research", map[string]any{"knownTopics": []string{"go"}})
	require.NoError(t, err)
	am, err := s.UpdateAgentMemory(ctx, "research", map[string]any{"preferences": map[string]any{"depth": "short"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"go"}, am.KnownTopics)
	assert.Equal(t, "short", am.Preferences["depth"])

	other, err := s.GetAgentMemory(ctx, "task")
	require.NoError(t, err)
	assert.Empty(t, other.KnownTopics)
}

func TestRememberEntityStampsCreatedOnce(t *testing.T) {
	ctx := context.Background()
	s, c := newTestStore(t, storage.NewMemoryBackend(), "ada")

	first, err := s.RememberEntity(ctx, "person", "grace", map[string]any{"relation": "friend"})
	require.NoError(t, err)
	c.advance(time.Hour)
	second, err := s.RememberEntity(ctx, "person", "grace", map[string]any{"city": "Arlington"})
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	assert.Equal(t, "friend", second.Data["relation"])
	assert.Equal(t, "Arlington", second.Data["city"])
}

func TestAddKeyFactKeepsMostRecent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, storage.NewMemoryBackend(), "ada")

	for i := 0; i < DefaultMaxKeyFacts+5; i++ {
		_, err := s.AddKeyFact(ctx, fmt.Sprintf("fact %d", i), nil)
		require.NoError(t, err)
	}

	facts, err := s.KeyFacts(ctx)
	require.NoError(t, err)
	require.Len(t, facts, DefaultMaxKeyFacts)
	assert.Equal(t, "fact 5", facts[0].Fact)
	assert.Equal(t, fmt.Sprintf("fact %d", DefaultMaxKeyFacts+4), facts[len(facts)-1].Fact)
}

func TestAddInteractionCapsLog(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, storage.NewMemoryBackend(), "ada")

	for i := 0; i < DefaultMaxInteractions+3; i++ {
		require.NoError(t, s.AddInteraction(ctx, Interaction{Query: fmt.Sprint(i), AgentID: "general"}))
	}
	log, err := s.RecentInteractions(ctx)
	require.NoError(t, err)
	require.Len(t, log, DefaultMaxInteractions)
	assert.Equal(t, "3", log[0].Query)
	assert.False(t, log[0].Timestamp.IsZero())
}

func TestRecallFacts(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, storage.NewMemoryBackend(), "ada")

	_, err := s.AddKeyFact(ctx, "allergic to peanuts", map[string]any{"source": "chat"})
	require.NoError(t, err)
	_, err = s.AddKeyFact(ctx, "prefers trains over planes", nil)
	require.NoError(t, err)

	facts, err := s.RecallFacts(ctx, "peanuts", 3)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "allergic to peanuts", facts[0].Fact)

	none, err := s.RecallFacts(ctx, "", 3)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecallFactsRehydratesIndex(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	s, _ := newTestStore(t, backend, "ada")
	_, err := s.AddKeyFact(ctx, "birthday in june", nil)
	require.NoError(t, err)

	reopened, _ := newTestStore(t, backend, "ada")
	facts, err := reopened.RecallFacts(ctx, "birthday", 0)
	require.NoError(t, err)
	require.Len(t, facts, 1)
}

func TestClearMemoryRemovesRecord(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	s, _ := newTestStore(t, backend, "ada")

	_, err := s.AddKeyFact(ctx, "likes jazz", nil)
	require.NoError(t, err)
	require.NoError(t, s.ClearMemory(ctx))

	_, err = backend.Get(ctx, Key("ada"))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	doc, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc.Conversation.KeyFacts)

	facts, err := s.RecallFacts(ctx, "jazz", 1)
	require.NoError(t, err)
	assert.Empty(t, facts)
}

func TestUserNamedGuestIsNotAnonymous(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	anon, _ := newTestStore(t, backend, "")
	named, _ := newTestStore(t, backend, "guest")

	assert.False(t, named.IsTemporary())
	assert.NotEqual(t, Key(""), Key("guest"))

	require.NoError(t, anon.RememberPreference(ctx, "ui", "theme", "light"))
	doc, err := named.Get(ctx)
	require.NoError(t, err)
	assert.False(t, doc.IsTemporary)
	assert.Empty(t, doc.Profile.Preferences)
}

func TestGuestDocumentIsTemporary(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	s, _ := newTestStore(t, backend, "")

	assert.True(t, s.IsTemporary())
	assert.Equal(t, GuestUserID, s.UserID())

	require.NoError(t, s.RememberPreference(ctx, "ui", "theme", "light"))
	require.NoError(t, backend.Clear(ctx))

	// an evicted guest record is simply a fresh document
	fresh, _ := newTestStore(t, backend, "")
	doc, err := fresh.Get(ctx)
	require.NoError(t, err)
	assert.True(t, doc.IsTemporary)
	assert.Empty(t, doc.Profile.Preferences)
}

func TestStorageFailures(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, brokenBackend{storage.NewMemoryBackend()}, "ada")

	_, err := s.Get(ctx)
	assert.True(t, coreerrors.IsKind(err, coreerrors.KindStorageUnavailable))
}

func TestFailedWriteKeepsCachedDocument(t *testing.T) {
	ctx := context.Background()
	backend := &toggleBackend{Backend: storage.NewMemoryBackend()}
	s, _ := newTestStore(t, backend, "ada")

	require.NoError(t, s.RememberPreference(ctx, "ui", "theme", "dark"))
	backend.failSet = true
	err := s.RememberPreference(ctx, "ui", "theme", "light")
	assert.True(t, coreerrors.IsKind(err, coreerrors.KindStorageUnavailable))

	doc, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"theme": "dark"}, doc.Profile.Preferences["ui"])
}

type toggleBackend struct {
	storage.Backend
	failSet bool
}

func (b *toggleBackend) Set(ctx context.Context, key string, value []byte) error {
	if b.failSet {
		return fmt.Errorf("read-only")
	}
	return b.Backend.Set(ctx, key, value)
}

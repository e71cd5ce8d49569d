package offline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	coreerrors "github.com/adalundhe/parley/core/errors"
	"github.com/adalundhe/parley/core/storage"
)

var fixedNow = time.Date(2026, 3, 14, 15, 4, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// brokenBackend accepts reads but fails every write.
type brokenBackend struct {
	*storage.MemoryBackend
}

func (brokenBackend) Set(context.Context, string, []byte) error {
	return errors.New("disk full")
}

// dispatchLog records replayed actions and fails the texts in failOn.
type dispatchLog struct {
	mu     sync.Mutex
	texts  []string
	ids    []string
	failOn map[string]int
}

func (d *dispatchLog) dispatch(_ context.Context, a PendingAction) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.texts = append(d.texts, a.Text)
	d.ids = append(d.ids, a.ID)
	if n := d.failOn[a.Text]; n != 0 {
		if n > 0 {
			d.failOn[a.Text] = n - 1
		}
		return errors.New("upstream unavailable")
	}
	return nil
}

func (d *dispatchLog) seen() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.texts...)
}

func newHandler(t *testing.T, cfg Config) *Handler {
	t.Helper()
	if cfg.Now == nil {
		cfg.Now = clock
	}
	cfg.RetryBase = time.Millisecond
	return NewHandler(cfg)
}

func TestDetectOfflineIntent(t *testing.T) {
	tests := []struct {
		text string
		want Intent
	}{
		{"what time is it", IntentTime},
		{"What's the date today?", IntentDate},
		{"calculate 21 * 2", IntentMath},
		{"what is 3 plus 4", IntentMath},
		{"remind me to call mom at 5pm", IntentReminder},
		{"jot down: buy eggs", IntentNote},
		{"translate this to French", IntentUnknown},
		{"I have 3 cats", IntentUnknown},
		{"what's 7*6?", IntentMath},
		{"12 / 4", IntentMath},
		{"what is 10 - 4", IntentMath},
		{"how much is 4-6", IntentMath},
		{"call me back at 555-1234", IntentUnknown},
		{"schedule the dentist appointment for 2024-05-01", IntentUnknown},
		{"book a table for 4-6 people", IntentUnknown},
		{"555-1234", IntentUnknown},
		{"flight 2 + hotel", IntentUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectOfflineIntent(tt.text))
		})
	}
}

func TestAnswersLocally(t *testing.T) {
	tests := []struct {
		text   string
		intent Intent
		reply  string
		result string
	}{
		{"calculate 21 * 2", IntentMath, "21 * 2 = 42", "42"},
		{"what is 3 plus 4", IntentMath, "3 + 4 = 7", "7"},
		{"what time is it", IntentTime, "It's 3:04 PM.", "3:04 PM"},
		{"what's the date", IntentDate, "Today is Saturday, March 14, 2026.", "Saturday, March 14, 2026"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			h := newHandler(t, Config{})
			resp := h.ProcessOfflineRequest(context.Background(), tt.text)
			assert.True(t, resp.Handled)
			assert.False(t, resp.Queued)
			assert.Equal(t, tt.intent, resp.Intent)
			assert.Equal(t, tt.reply, resp.Text)
			assert.Equal(t, tt.result, resp.Result)

			n, err := h.Queue().Len(context.Background())
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestLocalReminderAndNote(t *testing.T) {
	ctx := context.Background()
	h := newHandler(t, Config{})

	resp := h.ProcessOfflineRequest(ctx, "remind me to call mom at 5pm")
	assert.True(t, resp.Handled)
	assert.Equal(t, "I've saved a reminder on this device to call mom at 5pm.", resp.Text)

	resp = h.ProcessOfflineRequest(ctx, "make a note that the wifi password is sunshine.")
	assert.True(t, resp.Handled)
	assert.Equal(t, "I've saved your note on this device: the wifi password is sunshine.", resp.Text)

	reminders, err := h.Local().Reminders(ctx)
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, "call mom", reminders[0].Content)
	assert.Equal(t, "at 5pm", reminders[0].Time)
	assert.Equal(t, fixedNow, reminders[0].CreatedAt.UTC())

	notes, err := h.Local().Notes(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, resp.ActionID, notes[0].ID)
}

func TestUnknownIntentIsQueued(t *testing.T) {
	texts := []string{
		"translate this to French",
		"call me back at 555-1234",
		"schedule the dentist appointment for 2024-05-01",
		"book a table for 4-6 people",
	}
	for _, text := range texts {
		t.Run(text, func(t *testing.T) {
			ctx := context.Background()
			h := newHandler(t, Config{})

			before, err := h.Queue().Len(ctx)
			require.NoError(t, err)

			resp := h.ProcessOfflineRequest(ctx, text)
			assert.False(t, resp.Handled)
			assert.True(t, resp.Queued)
			assert.Equal(t, IntentUnknown, resp.Intent)
			assert.NotEmpty(t, resp.ActionID)
			assert.Empty(t, resp.Result)

			after, err := h.Queue().Len(ctx)
			require.NoError(t, err)
			assert.Equal(t, before+1, after)
		})
	}
}

func TestMalformedMathIsQueued(t *testing.T) {
	h := newHandler(t, Config{})
	resp := h.ProcessOfflineRequest(context.Background(), "calculate 1 / 0")
	assert.False(t, resp.Handled)
	assert.True(t, resp.Queued)
	assert.Equal(t, IntentMath, resp.Intent)
}

func TestEnqueueFailureIsReported(t *testing.T) {
	h := newHandler(t, Config{Backend: brokenBackend{storage.NewMemoryBackend()}})
	resp := h.ProcessOfflineRequest(context.Background(), "translate this to French")
	assert.False(t, resp.Handled)
	assert.False(t, resp.Queued)
	assert.Contains(t, resp.Text, "couldn't save")
}

func enqueueAll(t *testing.T, h *Handler, texts ...string) {
	t.Helper()
	for _, text := range texts {
		_, err := h.Queue().Enqueue(context.Background(), text)
		require.NoError(t, err)
	}
}

func TestReplayIsFIFO(t *testing.T) {
	log := &dispatchLog{}
	h := newHandler(t, Config{Dispatch: log.dispatch})
	enqueueAll(t, h, "A", "B", "C")

	report, err := h.SyncPendingActions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncReport{Replayed: 3}, report)
	assert.Equal(t, []string{"A", "B", "C"}, log.seen())
}

func TestPerItemDrainStopsAtFailure(t *testing.T) {
	ctx := context.Background()
	log := &dispatchLog{failOn: map[string]int{"B": -1}}
	h := newHandler(t, Config{Dispatch: log.dispatch, ReplayRetries: 1})
	enqueueAll(t, h, "A", "B", "C")

	report, err := h.SyncPendingActions(ctx)
	require.Error(t, err)
	assert.Equal(t, SyncReport{Replayed: 1, Failed: 1, Remaining: 2}, report)
	assert.Equal(t, []string{"A", "B", "B"}, log.seen())

	left, err := h.Queue().List(ctx)
	require.NoError(t, err)
	require.Len(t, left, 2)
	assert.Equal(t, "B", left[0].Text)
	assert.Equal(t, "C", left[1].Text)

	// A is not redelivered
	delete(log.failOn, "B")
	report, err = h.SyncPendingActions(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncReport{Replayed: 2}, report)
	assert.Equal(t, []string{"A", "B", "B", "B", "C"}, log.seen())
}

func TestAllOrNothingDrainRedelivers(t *testing.T) {
	ctx := context.Background()
	log := &dispatchLog{failOn: map[string]int{"B": 1}}
	h := newHandler(t, Config{Dispatch: log.dispatch, DrainMode: DrainAllOrNothing})
	enqueueAll(t, h, "A", "B", "C")

	report, err := h.SyncPendingActions(ctx)
	require.Error(t, err)
	assert.Equal(t, SyncReport{Replayed: 1, Failed: 1, Remaining: 3}, report)

	report, err = h.SyncPendingActions(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncReport{Replayed: 3}, report)
	assert.Equal(t, []string{"A", "B", "A", "B", "C"}, log.seen())

	// redelivered items keep their id
	assert.Equal(t, log.ids[0], log.ids[2])
}

func TestReplayRetriesTransientFailures(t *testing.T) {
	log := &dispatchLog{failOn: map[string]int{"A": 2}}
	h := newHandler(t, Config{Dispatch: log.dispatch, ReplayRetries: 2})
	enqueueAll(t, h, "A")

	report, err := h.SyncPendingActions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncReport{Replayed: 1}, report)
	assert.Equal(t, []string{"A", "A", "A"}, log.seen())
}

func TestSyncWhileOffline(t *testing.T) {
	log := &dispatchLog{}
	h := newHandler(t, Config{Dispatch: log.dispatch, Monitor: NewStaticMonitor(false)})
	enqueueAll(t, h, "A")

	report, err := h.SyncPendingActions(context.Background())
	assert.ErrorIs(t, err, ErrStillOffline)
	assert.Equal(t, SyncReport{Remaining: 1}, report)
	assert.Empty(t, log.seen())
}

func TestSyncWithoutDispatch(t *testing.T) {
	_, err := newHandler(t, Config{}).SyncPendingActions(context.Background())
	assert.ErrorIs(t, err, ErrNoDispatch)
}

func TestDrainsOnReconnect(t *testing.T) {
	defer goleak.VerifyNone(t)

	replayed := make(chan string, 3)
	monitor := NewStaticMonitor(false)
	h := newHandler(t, Config{
		Monitor: monitor,
		Dispatch: func(_ context.Context, a PendingAction) error {
			replayed <- a.Text
			return nil
		},
	})
	h.Start(context.Background())

	for _, text := range []string{"translate this", "book a table", "play jazz"} {
		require.True(t, h.ProcessOfflineRequest(context.Background(), text).Queued)
	}
	monitor.SetOnline(true)

	var got []string
	for i := 0; i < 3; i++ {
		select {
		case text := <-replayed:
			got = append(got, text)
		case <-time.After(2 * time.Second):
			t.Fatal("queue was not drained after reconnecting")
		}
	}
	h.Close()

	assert.Equal(t, []string{"translate this", "book a table", "play jazz"}, got)
	n, err := h.Queue().Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQueueStorageErrorsAreClassified(t *testing.T) {
	q := NewQueue(brokenBackend{storage.NewMemoryBackend()}, "ada", clock)
	_, err := q.Enqueue(context.Background(), "hello")
	assert.True(t, coreerrors.IsKind(err, coreerrors.KindStorageUnavailable))
}

func TestQueuesAndRecordsArePerUser(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	alice := newHandler(t, Config{Backend: backend, UserID: "alice"})
	bob := newHandler(t, Config{Backend: backend, UserID: "bob"})
	guest := newHandler(t, Config{Backend: backend})
	named := newHandler(t, Config{Backend: backend, UserID: "guest"})

	require.True(t, alice.ProcessOfflineRequest(ctx, "translate my diary to French").Queued)
	require.True(t, alice.ProcessOfflineRequest(ctx, "remind me to water the plants").Handled)
	require.True(t, guest.ProcessOfflineRequest(ctx, "translate this to German").Queued)

	for _, h := range []*Handler{bob, named} {
		items, err := h.Queue().List(ctx)
		require.NoError(t, err)
		assert.Empty(t, items)
		reminders, err := h.Local().Reminders(ctx)
		require.NoError(t, err)
		assert.Empty(t, reminders)
	}

	items, err := alice.Queue().List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "translate my diary to French", items[0].Text)

	var seen []string
	bob.cfg.Dispatch = func(_ context.Context, a PendingAction) error {
		seen = append(seen, a.Text)
		return nil
	}
	report, err := bob.SyncPendingActions(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Replayed)
	assert.Empty(t, seen)

	n, err := alice.Queue().Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = guest.Queue().Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

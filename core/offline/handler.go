// Package offline answers what it can without a network, queues the rest,
// and replays the queue in order once connectivity returns.
package offline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/adalundhe/parley/agents/task"
	"github.com/adalundhe/parley/core/calc"
	"github.com/adalundhe/parley/core/events"
	"github.com/adalundhe/parley/core/storage"
)

// Drain modes.
const (
	// DrainPerItem removes each item once it is dispatched. A failure stops
	// the drain and leaves the failed item first in line.
	DrainPerItem = "per_item"
	// DrainAllOrNothing clears the drained items only after every one was
	// dispatched. A failure keeps all of them, so the next sync redelivers
	// items that already succeeded.
	DrainAllOrNothing = "all_or_nothing"
)

const (
	DefaultRetryBase = 200 * time.Millisecond

	queuedText   = "I'm offline right now. I'll take care of that as soon as I'm back online."
	unsavedText  = "I'm offline and couldn't save that request, so it won't be processed. Please try again once you're back online."
	timeLayout   = "3:04 PM"
	dateLayout   = "Monday, January 2, 2006"
	mathTemplate = "%s = %s"
)

var (
	ErrNoDispatch   = errors.New("offline: no dispatch function configured")
	ErrStillOffline = errors.New("offline: still offline")
)

// DispatchFunc replays one queued action, normally by routing its text
// through the orchestrator. action.ID is stable across redeliveries.
type DispatchFunc func(ctx context.Context, action PendingAction) error

type Config struct {
	Backend  storage.Backend
	Monitor  Monitor
	Dispatch DispatchFunc
	// Bus receives queue, replay and connectivity events. Optional.
	Bus *events.Bus
	// UserID scopes the queue and local records. Empty is the guest.
	UserID    string
	DrainMode string
	// ReplayRetries is the number of extra attempts per item. Zero means
	// one attempt.
	ReplayRetries int
	RetryBase     time.Duration
	Logger        *slog.Logger
	Now           func() time.Time
}

func (c *Config) applyDefaults() {
	if c.Backend == nil {
		c.Backend = storage.NewMemoryBackend()
	}
	if c.Monitor == nil {
		c.Monitor = NewStaticMonitor(true)
	}
	if c.DrainMode == "" {
		c.DrainMode = DrainPerItem
	}
	if c.ReplayRetries < 0 {
		c.ReplayRetries = 0
	}
	if c.RetryBase <= 0 {
		c.RetryBase = DefaultRetryBase
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Response is the outcome of ProcessOfflineRequest.
type Response struct {
	Text   string `json:"text"`
	Intent Intent `json:"intent"`
	// Handled is true when the request was answered locally.
	Handled bool `json:"handled"`
	// Queued is true when the request was saved for replay.
	Queued   bool   `json:"queued"`
	ActionID string `json:"actionId,omitempty"`
	// Result carries the computed value for time, date and math answers.
	Result string `json:"result,omitempty"`
}

// SyncReport summarizes one drain.
type SyncReport struct {
	Replayed  int `json:"replayed"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
}

type Handler struct {
	cfg    Config
	queue  *Queue
	local  *LocalStore
	logger *slog.Logger

	syncMu sync.Mutex

	mu          sync.Mutex
	unsubscribe func()
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

func NewHandler(cfg Config) *Handler {
	cfg.applyDefaults()
	return &Handler{
		cfg:    cfg,
		queue:  NewQueue(cfg.Backend, cfg.UserID, cfg.Now),
		local:  NewLocalStore(cfg.Backend, cfg.UserID, cfg.Now),
		logger: cfg.Logger.With("component", "offline"),
	}
}

func (h *Handler) Online() bool       { return h.cfg.Monitor.Online() }
func (h *Handler) Queue() *Queue      { return h.queue }
func (h *Handler) Local() *LocalStore { return h.local }

// =============================================================================
// Offline requests
// =============================================================================

// ProcessOfflineRequest answers text locally when it can and queues it
// otherwise. It never returns an error; storage failures are reported in
// the response text.
func (h *Handler) ProcessOfflineRequest(ctx context.Context, text string) *Response {
	intent := DetectOfflineIntent(text)
	if resp := h.answerLocally(ctx, intent, text); resp != nil {
		return resp
	}
	return h.enqueue(ctx, intent, text)
}

func (h *Handler) answerLocally(ctx context.Context, intent Intent, text string) *Response {
	now := h.cfg.Now()
	switch intent {
	case IntentTime:
		result := now.Format(timeLayout)
		return &Response{Text: "It's " + result + ".", Intent: intent, Handled: true, Result: result}

	case IntentDate:
		result := now.Format(dateLayout)
		return &Response{Text: "Today is " + result + ".", Intent: intent, Handled: true, Result: result}

	case IntentMath:
		expr, _ := calc.Extract(text)
		v, err := calc.Evaluate(expr)
		if err != nil {
			h.logger.Debug("offline math fell through", "expression", expr, "error", err)
			return nil
		}
		result := calc.Format(v)
		return &Response{Text: fmt.Sprintf(mathTemplate, expr, result), Intent: intent, Handled: true, Result: result}

	case IntentReminder, IntentNote:
		detected := task.Detect(text)
		if detected.Content == "" {
			return nil
		}
		if intent == IntentReminder {
			rec, err := h.local.SaveReminder(ctx, detected.Content, detected.Time)
			if err != nil {
				h.logger.Warn("local reminder not saved", "error", err)
				return nil
			}
			msg := "I've saved a reminder on this device to " + detected.Content
			if detected.Time != "" {
				msg += " " + detected.Time
			}
			return &Response{Text: msg + ".", Intent: intent, Handled: true, ActionID: rec.ID}
		}
		rec, err := h.local.SaveNote(ctx, detected.Content)
		if err != nil {
			h.logger.Warn("local note not saved", "error", err)
			return nil
		}
		return &Response{Text: "I've saved your note on this device: " + detected.Content + ".", Intent: intent, Handled: true, ActionID: rec.ID}
	}
	return nil
}

func (h *Handler) enqueue(ctx context.Context, intent Intent, text string) *Response {
	action, err := h.queue.Enqueue(ctx, text)
	if err != nil {
		h.logger.Error("offline request not queued", "queued", false, "error", err)
		return &Response{Text: unsavedText, Intent: intent}
	}
	h.logger.Info("offline request queued", "queued", true, "action_id", action.ID)
	h.publish(events.EventOfflineQueued, map[string]any{"action_id": action.ID})
	return &Response{Text: queuedText, Intent: intent, Queued: true, ActionID: action.ID}
}

// =============================================================================
// Replay
// =============================================================================

// SyncPendingActions drains the queue strictly in enqueue order through the
// dispatch function. Each item is retried with exponential backoff before
// the drain gives up. Only one drain runs at a time.
func (h *Handler) SyncPendingActions(ctx context.Context) (SyncReport, error) {
	if h.cfg.Dispatch == nil {
		return SyncReport{}, ErrNoDispatch
	}
	h.syncMu.Lock()
	defer h.syncMu.Unlock()

	items, err := h.queue.List(ctx)
	if err != nil {
		return SyncReport{}, err
	}
	if len(items) == 0 {
		return SyncReport{}, nil
	}

	var report SyncReport
	var dispatchErr error
	var done []string
	for _, item := range items {
		if !h.cfg.Monitor.Online() {
			dispatchErr = ErrStillOffline
			break
		}
		if dispatchErr = h.dispatch(ctx, item); dispatchErr != nil {
			h.logger.Warn("replay failed", "action_id", item.ID, "error", dispatchErr)
			report.Failed = 1
			break
		}
		done = append(done, item.ID)
		if h.cfg.DrainMode == DrainPerItem {
			if err := h.queue.Remove(ctx, item.ID); err != nil {
				dispatchErr = err
				break
			}
		}
		report.Replayed++
	}

	if h.cfg.DrainMode == DrainAllOrNothing && dispatchErr == nil {
		if err := h.queue.Remove(ctx, done...); err != nil {
			dispatchErr = err
		}
	}

	if remaining, err := h.queue.Len(ctx); err == nil {
		report.Remaining = remaining
	}
	h.logger.Info("offline queue drained",
		"replayed", report.Replayed, "failed", report.Failed, "remaining", report.Remaining, "mode", h.cfg.DrainMode)
	h.publish(events.EventOfflineReplayed, map[string]any{
		"replayed":  report.Replayed,
		"failed":    report.Failed,
		"remaining": report.Remaining,
	})
	return report, dispatchErr
}

func (h *Handler) dispatch(ctx context.Context, item PendingAction) error {
	backoff := retry.WithMaxRetries(uint64(h.cfg.ReplayRetries), retry.NewExponential(h.cfg.RetryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := h.cfg.Dispatch(ctx, item); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

// =============================================================================
// Lifecycle
// =============================================================================

// Start subscribes to the monitor and drains the queue on every
// offline to online transition. Close stops it.
func (h *Handler) Start(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unsubscribe != nil {
		return
	}
	ctx, h.cancel = context.WithCancel(ctx)
	h.unsubscribe = h.cfg.Monitor.Subscribe(func(online bool) {
		h.logger.Info("connectivity changed", "online", online)
		h.publish(events.EventConnectivityChanged, map[string]any{"online": online})
		if !online || h.cfg.Dispatch == nil {
			return
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.cancel == nil {
			return
		}
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			if _, err := h.SyncPendingActions(ctx); err != nil {
				h.logger.Warn("automatic replay stopped", "error", err)
			}
		}()
	})
}

// Close unsubscribes from the monitor and waits for any running drain.
func (h *Handler) Close() {
	h.mu.Lock()
	unsubscribe, cancel := h.unsubscribe, h.cancel
	h.unsubscribe, h.cancel = nil, nil
	h.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	h.wg.Wait()
}

func (h *Handler) publish(t events.EventType, data map[string]any) {
	if h.cfg.Bus == nil {
		return
	}
	h.cfg.Bus.Publish(events.NewEvent(t, h.cfg.UserID, data))
}

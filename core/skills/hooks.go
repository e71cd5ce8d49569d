package skills

import (
	"context"
	"sync"
)

type HookPhase string

const (
	HookPhasePreExecute  HookPhase = "pre_execute"
	HookPhasePostExecute HookPhase = "post_execute"
)

type HookPriority int

const (
	HookPriorityLow    HookPriority = 10
	HookPriorityNormal HookPriority = 50
	HookPriorityHigh   HookPriority = 100
)

// HookData describes one execution. Result is set only for post hooks.
type HookData struct {
	SkillID string
	Kind    Kind
	Params  Params
	Exec    ExecContext
	Result  *Result
}

// HookResult steers the pre-execute chain. Post hook results are ignored.
type HookResult struct {
	Continue bool

	ModifiedParams Params

	Error error

	SkipExecution bool
	SkipResult    any
}

type Hook interface {
	Name() string
	Phase() HookPhase
	Priority() HookPriority
	Execute(ctx context.Context, data *HookData) HookResult
}

type HookFunc func(ctx context.Context, data *HookData) HookResult

type funcHook struct {
	name     string
	phase    HookPhase
	priority HookPriority
	fn       HookFunc
}

func (h *funcHook) Name() string           { return h.name }
func (h *funcHook) Phase() HookPhase       { return h.phase }
func (h *funcHook) Priority() HookPriority { return h.priority }
func (h *funcHook) Execute(ctx context.Context, data *HookData) HookResult {
	return h.fn(ctx, data)
}

// HookRegistry holds execution hooks ordered by descending priority.
type HookRegistry struct {
	mu   sync.RWMutex
	pre  []Hook
	post []Hook
}

func NewHookRegistry() *HookRegistry {
	return &HookRegistry{}
}

func (r *HookRegistry) Register(hook Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch hook.Phase() {
	case HookPhasePreExecute:
		r.pre = insertHookSorted(removeHook(r.pre, hook.Name()), hook)
	case HookPhasePostExecute:
		r.post = insertHookSorted(removeHook(r.post, hook.Name()), hook)
	}
}

func (r *HookRegistry) RegisterPreExecuteHook(name string, priority HookPriority, fn HookFunc) {
	r.Register(&funcHook{name: name, phase: HookPhasePreExecute, priority: priority, fn: fn})
}

func (r *HookRegistry) RegisterPostExecuteHook(name string, priority HookPriority, fn HookFunc) {
	r.Register(&funcHook{name: name, phase: HookPhasePostExecute, priority: priority, fn: fn})
}

func (r *HookRegistry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	before := len(r.pre) + len(r.post)
	r.pre = removeHook(r.pre, name)
	r.post = removeHook(r.post, name)
	return len(r.pre)+len(r.post) < before
}

// ExecutePre runs pre hooks until one stops the chain, fails or skips
// execution.
func (r *HookRegistry) ExecutePre(ctx context.Context, data *HookData) (*HookData, HookResult, error) {
	r.mu.RLock()
	hooks := append([]Hook(nil), r.pre...)
	r.mu.RUnlock()

	current := data
	var last HookResult
	for _, hook := range hooks {
		if err := ctx.Err(); err != nil {
			return current, last, err
		}
		last = hook.Execute(ctx, current)
		if last.Error != nil {
			return current, last, last.Error
		}
		if last.ModifiedParams != nil {
			next := *current
			next.Params = last.ModifiedParams
			current = &next
		}
		if last.SkipExecution || !last.Continue {
			break
		}
	}
	return current, last, nil
}

// ExecutePost notifies every post hook.
func (r *HookRegistry) ExecutePost(ctx context.Context, data *HookData) {
	r.mu.RLock()
	hooks := append([]Hook(nil), r.post...)
	r.mu.RUnlock()

	for _, hook := range hooks {
		hook.Execute(ctx, data)
	}
}

func insertHookSorted(hooks []Hook, hook Hook) []Hook {
	i := 0
	for i < len(hooks) && hooks[i].Priority() >= hook.Priority() {
		i++
	}
	hooks = append(hooks, nil)
	copy(hooks[i+1:], hooks[i:])
	hooks[i] = hook
	return hooks
}

func removeHook(hooks []Hook, name string) []Hook {
	out := hooks[:0:0]
	for _, h := range hooks {
		if h.Name() != name {
			out = append(out, h)
		}
	}
	return out
}

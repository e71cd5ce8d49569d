package skills

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"dario.cat/mergo"
	"github.com/gobwas/glob"

	coreerrors "github.com/adalundhe/parley/core/errors"
)

// RegistryConfig wires the registry's collaborators. Zero values get
// defaults.
type RegistryConfig struct {
	Logger     *slog.Logger
	Hooks      *HookRegistry
	Dispatcher *Dispatcher
	Now        func() time.Time
}

// Registry is shared by every conversation in the process.
type Registry struct {
	mu     sync.RWMutex
	skills map[string]*skill

	hooks      *HookRegistry
	dispatcher *Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Hooks == nil {
		cfg.Hooks = NewHookRegistry()
	}
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = NewDispatcher(DispatcherConfig{Logger: cfg.Logger})
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Registry{
		skills:     make(map[string]*skill),
		hooks:      cfg.Hooks,
		dispatcher: cfg.Dispatcher,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
}

// Hooks returns the hook registry consulted by Execute.
func (r *Registry) Hooks() *HookRegistry {
	return r.hooks
}

// Register adds or replaces the skill id. It returns false, and logs why,
// when the config is incomplete.
func (r *Registry) Register(id string, cfg *Config) bool {
	if err := validateConfig(id, cfg); err != nil {
		r.logger.Error("skill registration rejected", "skill_id", id, "error", err)
		return false
	}

	s := &skill{
		id:          id,
		displayName: cfg.Name,
		description: cfg.Description,
		category:    cfg.Category,
		kind:        cfg.Kind,
		enabled:     cfg.Enabled == nil || *cfg.Enabled,
		parameters:  append([]Parameter(nil), cfg.Parameters...),
		handler:     cfg.Handler,
		remote:      cfg.Remote.clone(),
		workflowID:  cfg.WorkflowID,
	}

	r.mu.Lock()
	_, exists := r.skills[id]
	r.skills[id] = s
	r.mu.Unlock()

	if exists {
		r.logger.Warn("skill overwritten", "skill_id", id, "kind", string(cfg.Kind))
	}
	return true
}

func validateConfig(id string, cfg *Config) error {
	switch {
	case id == "":
		return fmt.Errorf("skill id is required")
	case cfg == nil:
		return fmt.Errorf("skill config is required")
	case cfg.Name == "":
		return fmt.Errorf("skill name is required")
	case cfg.Kind == "":
		return fmt.Errorf("skill kind is required")
	case !cfg.Kind.Valid():
		return fmt.Errorf("unknown skill kind %q", cfg.Kind)
	}
	switch cfg.Kind {
	case KindFunction:
		if cfg.Handler == nil {
			return fmt.Errorf("function skill requires a handler")
		}
	case KindRemoteAPI:
		if cfg.Remote == nil || cfg.Remote.Endpoint == "" {
			return fmt.Errorf("remote api skill requires an endpoint")
		}
	case KindExternalWorkflow:
		if cfg.WorkflowID == "" {
			return fmt.Errorf("workflow skill requires a workflow id")
		}
	}
	return nil
}

// Unregister removes id. It is the only way a skill leaves the registry.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.skills[id]; !ok {
		return false
	}
	delete(r.skills, id)
	return true
}

// GetSkill returns the discovery view of id.
func (r *Registry) GetSkill(id string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.skills[id]
	if !ok {
		return Info{}, false
	}
	return s.info(), true
}

// ListAvailable returns enabled skills sorted by id. A non-empty category
// filters the list and may be a glob such as "home*".
func (r *Registry) ListAvailable(category string) []Info {
	match := categoryMatcher(category)

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.skills))
	for _, s := range r.skills {
		if s.enabled && match(s.category) {
			out = append(out, s.info())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// List returns every skill, enabled or not, sorted by id.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.skills))
	for _, s := range r.skills {
		out = append(out, s.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func categoryMatcher(category string) func(string) bool {
	if category == "" {
		return func(string) bool { return true }
	}
	g, err := glob.Compile(category)
	if err != nil {
		return func(c string) bool { return c == category }
	}
	return g.Match
}

// SetEnabled toggles id. It returns false for an unknown id.
func (r *Registry) SetEnabled(id string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.skills[id]
	if !ok {
		return false
	}
	s.enabled = enabled
	return true
}

// Update merges partial into id. Kind cannot change, and a handler may only
// be swapped on a Function skill.
func (r *Registry) Update(id string, partial *Config) error {
	if partial == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.skills[id]
	if !ok {
		return coreerrors.New(coreerrors.KindNotFound, "skill not found: "+id)
	}
	if partial.Kind != "" && partial.Kind != s.kind {
		return coreerrors.New(coreerrors.KindInvalidInput, "skill kind is immutable")
	}
	if partial.Handler != nil && s.kind != KindFunction {
		return coreerrors.New(coreerrors.KindInvalidInput, "only function skills accept a new handler")
	}

	merged := Config{
		Name:        s.displayName,
		Description: s.description,
		Category:    s.category,
		Kind:        s.kind,
		Parameters:  s.parameters,
		Handler:     s.handler,
		Remote:      s.remote.clone(),
		WorkflowID:  s.workflowID,
	}
	src := *partial
	src.Enabled = nil
	src.Remote = partial.Remote.clone()
	if err := mergo.Merge(&merged, src, mergo.WithOverride); err != nil {
		return fmt.Errorf("merge skill %s: %w", id, err)
	}

	s.displayName = merged.Name
	s.description = merged.Description
	s.category = merged.Category
	s.parameters = append([]Parameter(nil), merged.Parameters...)
	s.handler = merged.Handler
	s.remote = merged.Remote
	s.workflowID = merged.WorkflowID
	if partial.Enabled != nil {
		s.enabled = *partial.Enabled
	}
	return nil
}

// Execute runs skill id with params. It never panics and never returns an
// error; failures are reported through Result. Post hooks see every
// outcome, including unknown and disabled skills.
func (r *Registry) Execute(ctx context.Context, id string, params Params, ec ExecContext) (res *Result) {
	start := r.now()

	r.mu.RLock()
	s, ok := r.skills[id]
	var snapshot skill
	if ok {
		snapshot = *s
	}
	r.mu.RUnlock()

	if !ok {
		res = failure(id, "", coreerrors.New(coreerrors.KindNotFound, "skill not found: "+id), 0)
		r.afterExecute(ctx, &skill{id: id}, params, ec, res)
		return res
	}
	if !snapshot.enabled {
		res = failure(id, snapshot.kind, coreerrors.New(coreerrors.KindDisabled, "skill is disabled: "+id), 0)
		r.afterExecute(ctx, &snapshot, params, ec, res)
		return res
	}

	defer func() {
		if rec := recover(); rec != nil {
			err := coreerrors.New(coreerrors.KindUnknown, fmt.Sprintf("skill panicked: %v", rec))
			res = failure(id, snapshot.kind, err, r.now().Sub(start))
		}
		r.afterExecute(ctx, &snapshot, params, ec, res)
	}()

	params, err := applyParameters(snapshot.parameters, params)
	if err != nil {
		return failure(id, snapshot.kind, err, r.now().Sub(start))
	}

	data := &HookData{SkillID: id, Kind: snapshot.kind, Params: params, Exec: ec}
	data, hookResult, err := r.hooks.ExecutePre(ctx, data)
	if err != nil {
		return failure(id, snapshot.kind, err, r.now().Sub(start))
	}
	if hookResult.SkipExecution {
		return &Result{SkillID: id, Kind: snapshot.kind, Success: true, Result: hookResult.SkipResult, ExecutionTime: r.now().Sub(start)}
	}

	out, err := r.dispatch(ctx, &snapshot, data.Params, ec)
	elapsed := r.now().Sub(start)
	if err != nil {
		return failure(id, snapshot.kind, err, elapsed)
	}

	r.mu.Lock()
	if live, ok := r.skills[id]; ok && live.kind == snapshot.kind {
		live.executionCount++
		live.lastExecutedAt = r.now()
	}
	r.mu.Unlock()

	return &Result{SkillID: id, Kind: snapshot.kind, Success: true, Result: out, ExecutionTime: elapsed}
}

func (r *Registry) dispatch(ctx context.Context, s *skill, params Params, ec ExecContext) (any, error) {
	switch s.kind {
	case KindFunction:
		return s.handler(ctx, params, ec)
	case KindRemoteAPI:
		return r.dispatcher.CallRemote(ctx, s.remote, params)
	case KindExternalWorkflow:
		return r.dispatcher.TriggerWorkflow(ctx, s.workflowID, params, ec)
	default:
		return nil, coreerrors.New(coreerrors.KindConfiguration, "unknown skill kind "+string(s.kind))
	}
}

func (r *Registry) afterExecute(ctx context.Context, s *skill, params Params, ec ExecContext, res *Result) {
	if res == nil {
		return
	}
	if !res.Success {
		r.logger.Warn("skill execution failed",
			"skill_id", s.id, "kind", string(s.kind), "error_kind", res.ErrorKind.String(), "error", res.Error)
	}
	r.hooks.ExecutePost(context.WithoutCancel(ctx), &HookData{
		SkillID: s.id, Kind: s.kind, Params: params, Exec: ec, Result: res,
	})
}

// applyParameters fills defaults and checks required parameters.
func applyParameters(schema []Parameter, params Params) (Params, error) {
	out := make(Params, len(params)+len(schema))
	for k, v := range params {
		out[k] = v
	}
	for _, p := range schema {
		if _, ok := out[p.Name]; ok {
			continue
		}
		if p.Default != nil {
			out[p.Name] = p.Default
			continue
		}
		if p.Required {
			return nil, coreerrors.New(coreerrors.KindInvalidInput, "missing required parameter "+p.Name)
		}
	}
	return out, nil
}

// =============================================================================
// Stats
// =============================================================================

type Stats struct {
	Total      int            `json:"total"`
	Enabled    int            `json:"enabled"`
	ByCategory map[string]int `json:"byCategory"`
	TopUsed    []Usage        `json:"topUsed"`
}

type Usage struct {
	ID             string `json:"id"`
	ExecutionCount int64  `json:"executionCount"`
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{Total: len(r.skills), ByCategory: make(map[string]int)}
	usages := make([]Usage, 0, len(r.skills))
	for _, s := range r.skills {
		if s.enabled {
			stats.Enabled++
		}
		if s.category != "" {
			stats.ByCategory[s.category]++
		}
		if s.executionCount > 0 {
			usages = append(usages, Usage{ID: s.id, ExecutionCount: s.executionCount})
		}
	}
	sort.Slice(usages, func(i, j int) bool {
		if usages[i].ExecutionCount != usages[j].ExecutionCount {
			return usages[i].ExecutionCount > usages[j].ExecutionCount
		}
		return usages[i].ID < usages[j].ID
	})
	if len(usages) > 5 {
		usages = usages[:5]
	}
	stats.TopUsed = usages
	return stats
}

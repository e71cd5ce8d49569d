package agents

import (
	"sort"
	"strings"
	"sync"
)

// =============================================================================
// Registry
// =============================================================================

// Registry maps ids, names and aliases to agents.
type Registry struct {
	mu sync.RWMutex

	agents map[string]Agent

	// lower-cased name/alias to id
	nameIndex map[string]string
}

func NewRegistry(agents ...Agent) *Registry {
	r := &Registry{
		agents:    make(map[string]Agent),
		nameIndex: make(map[string]string),
	}
	for _, a := range agents {
		r.Register(a)
	}
	return r
}

// Register adds or replaces an agent by id.
func (r *Registry) Register(a Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	desc := a.Descriptor()
	if old, exists := r.agents[desc.ID]; exists {
		r.unindex(old.Descriptor())
	}
	r.agents[desc.ID] = a

	r.nameIndex[strings.ToLower(desc.Name)] = desc.ID
	for _, alias := range desc.Aliases {
		r.nameIndex[strings.ToLower(alias)] = desc.ID
	}
}

func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, exists := r.agents[id]; exists {
		r.unindex(a.Descriptor())
		delete(r.agents, id)
	}
}

func (r *Registry) unindex(desc Descriptor) {
	delete(r.nameIndex, strings.ToLower(desc.Name))
	for _, alias := range desc.Aliases {
		delete(r.nameIndex, strings.ToLower(alias))
	}
}

func (r *Registry) Get(id string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[id]
	return a, ok
}

// Resolve accepts an id, a display name or an alias.
func (r *Registry) Resolve(nameOrID string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if a, ok := r.agents[nameOrID]; ok {
		return a, true
	}
	if id, ok := r.nameIndex[strings.ToLower(strings.TrimSpace(nameOrID))]; ok {
		return r.agents[id], true
	}
	return nil, false
}

// Descriptors returns every registered descriptor sorted by id.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a.Descriptor())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

package skills

import "time"

// Builder assembles a Config fluently.
type Builder struct {
	id  string
	cfg *Config
}

// NewSkill starts a Function skill with the given id.
func NewSkill(id string) *Builder {
	return &Builder{id: id, cfg: &Config{Name: id, Kind: KindFunction}}
}

func (b *Builder) Name(name string) *Builder {
	b.cfg.Name = name
	return b
}

func (b *Builder) Description(desc string) *Builder {
	b.cfg.Description = desc
	return b
}

func (b *Builder) Category(category string) *Builder {
	b.cfg.Category = category
	return b
}

func (b *Builder) Disabled() *Builder {
	b.cfg.Enabled = Bool(false)
	return b
}

func (b *Builder) param(name, typ, description string, required bool, def any) *Builder {
	b.cfg.Parameters = append(b.cfg.Parameters, Parameter{
		Name:        name,
		Type:        typ,
		Required:    required,
		Default:     def,
		Description: description,
	})
	return b
}

func (b *Builder) StringParam(name, description string, required bool) *Builder {
	return b.param(name, "string", description, required, nil)
}

func (b *Builder) NumberParam(name, description string, required bool) *Builder {
	return b.param(name, "number", description, required, nil)
}

// DefaultParam adds an optional parameter filled with def when absent.
func (b *Builder) DefaultParam(name, typ, description string, def any) *Builder {
	return b.param(name, typ, description, false, def)
}

func (b *Builder) Handler(h Handler) *Builder {
	b.cfg.Kind = KindFunction
	b.cfg.Handler = h
	return b
}

// Remote turns the skill into a RemoteAPI skill.
func (b *Builder) Remote(endpoint, method string, timeout time.Duration) *Builder {
	b.cfg.Kind = KindRemoteAPI
	b.cfg.Remote = &RemoteOptions{Endpoint: endpoint, Method: method, Timeout: timeout}
	return b
}

func (b *Builder) Header(key, value string) *Builder {
	if b.cfg.Remote == nil {
		b.cfg.Remote = &RemoteOptions{}
	}
	if b.cfg.Remote.Headers == nil {
		b.cfg.Remote.Headers = make(map[string]string)
	}
	b.cfg.Remote.Headers[key] = value
	return b
}

func (b *Builder) FormData() *Builder {
	if b.cfg.Remote == nil {
		b.cfg.Remote = &RemoteOptions{}
	}
	b.cfg.Remote.UseFormData = true
	return b
}

// Workflow turns the skill into an ExternalWorkflow skill.
func (b *Builder) Workflow(workflowID string) *Builder {
	b.cfg.Kind = KindExternalWorkflow
	b.cfg.WorkflowID = workflowID
	return b
}

// Build returns the id and config ready for Registry.Register.
func (b *Builder) Build() (string, *Config) {
	return b.id, b.cfg
}

// RegisterAll registers each builder, returning how many were accepted.
func (r *Registry) RegisterAll(builders ...*Builder) int {
	n := 0
	for _, b := range builders {
		if r.Register(b.Build()) {
			n++
		}
	}
	return n
}

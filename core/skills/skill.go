// Package skills holds the process-wide skill registry and the dispatcher
// that executes local functions, remote HTTP APIs and workflow webhooks
// behind one Execute call.
package skills

import (
	"context"
	"time"

	coreerrors "github.com/adalundhe/parley/core/errors"
)

// Kind selects how a skill is executed. It never changes after registration.
type Kind string

const (
	KindFunction         Kind = "function"
	KindRemoteAPI        Kind = "remote_api"
	KindExternalWorkflow Kind = "external_workflow"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindFunction, KindRemoteAPI, KindExternalWorkflow:
		return true
	}
	return false
}

// Parameter describes one input of a skill. Order is significant.
type Parameter struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Required    bool   `json:"required" yaml:"required"`
	Default     any    `json:"default,omitempty" yaml:"default,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Params are the named arguments passed to Execute.
type Params map[string]any

// String returns the parameter as a string, or "" when absent.
func (p Params) String(name string) string {
	if v, ok := p[name].(string); ok {
		return v
	}
	return ""
}

// ExecContext identifies who triggered an execution.
type ExecContext struct {
	UserID  string         `json:"userId,omitempty"`
	AgentID string         `json:"agentId,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// Handler is the body of a Function skill.
type Handler func(ctx context.Context, params Params, ec ExecContext) (any, error)

// RemoteOptions configure a RemoteAPI skill.
type RemoteOptions struct {
	Endpoint    string            `json:"endpoint" yaml:"endpoint"`
	Method      string            `json:"method,omitempty" yaml:"method,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Timeout     time.Duration     `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	UseFormData bool              `json:"useFormData,omitempty" yaml:"use_form_data,omitempty"`
}

func (o *RemoteOptions) clone() *RemoteOptions {
	if o == nil {
		return nil
	}
	cp := *o
	if o.Headers != nil {
		cp.Headers = make(map[string]string, len(o.Headers))
		for k, v := range o.Headers {
			cp.Headers[k] = v
		}
	}
	return &cp
}

// Config is the registration and update input. Enabled defaults to true
// when nil.
type Config struct {
	Name        string
	Description string
	Category    string
	Kind        Kind
	Enabled     *bool
	Parameters  []Parameter
	Handler     Handler
	Remote      *RemoteOptions
	WorkflowID  string
}

// Bool returns a pointer to b, for Config.Enabled.
func Bool(b bool) *bool { return &b }

// skill is the registry's private record.
type skill struct {
	id             string
	displayName    string
	description    string
	category       string
	kind           Kind
	enabled        bool
	parameters     []Parameter
	handler        Handler
	remote         *RemoteOptions
	workflowID     string
	executionCount int64
	lastExecutedAt time.Time
}

// Info is the discovery view of a skill. It never carries the handler,
// endpoint or headers.
type Info struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Description    string      `json:"description"`
	Category       string      `json:"category"`
	Kind           Kind        `json:"kind"`
	Enabled        bool        `json:"enabled"`
	Parameters     []Parameter `json:"parameters"`
	ExecutionCount int64       `json:"executionCount"`
	LastExecutedAt time.Time   `json:"lastExecutedAt,omitempty"`
}

func (s *skill) info() Info {
	return Info{
		ID:             s.id,
		Name:           s.displayName,
		Description:    s.description,
		Category:       s.category,
		Kind:           s.kind,
		Enabled:        s.enabled,
		Parameters:     append([]Parameter(nil), s.parameters...),
		ExecutionCount: s.executionCount,
		LastExecutedAt: s.lastExecutedAt,
	}
}

// Result is the outcome of Execute. Callers must check Success; Execute
// never returns an error or panics.
type Result struct {
	SkillID       string          `json:"skillId"`
	Kind          Kind            `json:"kind,omitempty"`
	Success       bool            `json:"success"`
	Result        any             `json:"result,omitempty"`
	ExecutionTime time.Duration   `json:"executionTime"`
	Error         string          `json:"error,omitempty"`
	ErrorKind     coreerrors.Kind `json:"errorKind,omitempty"`
	StatusCode    int             `json:"statusCode,omitempty"`

	Err error `json:"-"`
}

func failure(id string, kind Kind, err error, elapsed time.Duration) *Result {
	te := coreerrors.Classify(err)
	return &Result{
		SkillID:       id,
		Kind:          kind,
		Success:       false,
		ExecutionTime: elapsed,
		Error:         err.Error(),
		ErrorKind:     te.Kind,
		StatusCode:    te.StatusCode,
		Err:           err,
	}
}

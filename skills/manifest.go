// Package skills loads skill manifests: directories holding a SKILL.md whose
// YAML frontmatter declares a RemoteAPI or ExternalWorkflow skill. Function
// skills are compiled in and never come from disk.
package skills

import (
	"os"
	"time"

	registry "github.com/adalundhe/parley/core/skills"
)

// Manifest is the frontmatter of a SKILL.md file.
type Manifest struct {
	ID          string               `yaml:"id,omitempty"`
	Name        string               `yaml:"name"`
	Description string               `yaml:"description"`
	Kind        registry.Kind        `yaml:"kind"`
	Category    string               `yaml:"category,omitempty"`
	Enabled     *bool                `yaml:"enabled,omitempty"`
	Parameters  []registry.Parameter `yaml:"parameters,omitempty"`

	Endpoint    string            `yaml:"endpoint,omitempty"`
	Method      string            `yaml:"method,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	Timeout     time.Duration     `yaml:"timeout,omitempty"`
	UseFormData bool              `yaml:"use_form_data,omitempty"`

	WorkflowID string `yaml:"workflow_id,omitempty"`

	Path         string `yaml:"-"`
	Instructions string `yaml:"-"`
}

// Config converts m into a registration config. Header values are expanded
// against the environment so secrets can stay out of the file.
func (m Manifest) Config() (string, *registry.Config) {
	cfg := &registry.Config{
		Name:        m.Name,
		Description: m.Description,
		Category:    m.Category,
		Kind:        m.Kind,
		Enabled:     m.Enabled,
		Parameters:  m.Parameters,
		WorkflowID:  m.WorkflowID,
	}
	if m.Kind == registry.KindRemoteAPI {
		headers := make(map[string]string, len(m.Headers))
		for k, v := range m.Headers {
			headers[k] = os.ExpandEnv(v)
		}
		cfg.Remote = &registry.RemoteOptions{
			Endpoint:    os.ExpandEnv(m.Endpoint),
			Method:      m.Method,
			Headers:     headers,
			Timeout:     m.Timeout,
			UseFormData: m.UseFormData,
		}
	}
	return m.ID, cfg
}

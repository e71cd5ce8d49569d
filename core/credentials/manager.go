// Package credentials stores integration secrets: the workflow webhook key
// and model provider API keys.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/adalundhe/parley/core/config"
	"github.com/adalundhe/parley/core/storage"
)

// Well-known credential names.
const (
	Workflow  = "workflow"
	Anthropic = "anthropic"
	OpenAI    = "openai"
)

var (
	ErrCredentialNotFound = errors.New("credential not found")
	ErrUnknownCredential  = errors.New("unknown credential name")
)

// envVars lists every accepted name with the variable that overrides it.
var envVars = map[string]string{
	Workflow:  "PARLEY_WORKFLOW_API_KEY",
	Anthropic: "ANTHROPIC_API_KEY",
	OpenAI:    "OPENAI_API_KEY",
}

// Names returns the accepted credential names, sorted.
func Names() []string {
	names := make([]string, 0, len(envVars))
	for name := range envVars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EnvVar is the environment variable that overrides a stored credential.
// It is empty for unknown names.
func EnvVar(name string) string {
	return envVars[name]
}

// Manager reads and writes one profile of the credential vault.
type Manager struct {
	vault   *vault
	profile string
	mu      sync.Mutex
}

func NewManager(dirs *storage.Dirs, profile string) (*Manager, error) {
	return Open(dirs.CredentialsDir(), profile)
}

// Open uses the vault in dir. An empty profile is "default".
func Open(dir, profile string) (*Manager, error) {
	v, err := openVault(dir)
	if err != nil {
		return nil, fmt.Errorf("credential vault: %w", err)
	}
	if profile == "" {
		profile = "default"
	}
	return &Manager{vault: v, profile: profile}, nil
}

func (m *Manager) CurrentProfile() string { return m.profile }

// Get resolves name from the environment first, then the vault.
func (m *Manager) Get(name string) (string, error) {
	env, ok := envVars[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCredential, name)
	}
	if v := os.Getenv(env); v != "" {
		return v, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	stored, err := m.vault.read()
	if err != nil {
		return "", err
	}
	if secret, ok := stored[m.profile][name]; ok {
		return secret, nil
	}
	return "", fmt.Errorf("no credentials found for %s: %w", name, ErrCredentialNotFound)
}

func (m *Manager) Set(name, secret string) error {
	if _, ok := envVars[name]; !ok {
		return fmt.Errorf("%w: %q (known: %s)", ErrUnknownCredential, name, strings.Join(Names(), ", "))
	}
	if strings.TrimSpace(secret) == "" {
		return errors.New("secret must not be empty")
	}
	return m.update(func(own map[string]string) error {
		own[name] = secret
		return nil
	})
}

func (m *Manager) Delete(name string) error {
	return m.update(func(own map[string]string) error {
		if _, ok := own[name]; !ok {
			return ErrCredentialNotFound
		}
		delete(own, name)
		return nil
	})
}

// List returns the names stored for the current profile, sorted.
func (m *Manager) List() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, err := m.vault.read()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(stored[m.profile]))
	for name := range stored[m.profile] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// update applies fn to the current profile and rewrites the vault.
func (m *Manager) update(fn func(own map[string]string) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, err := m.vault.read()
	if err != nil {
		return err
	}
	own := stored[m.profile]
	if own == nil {
		own = map[string]string{}
		stored[m.profile] = own
	}
	if err := fn(own); err != nil {
		return err
	}
	if len(own) == 0 {
		delete(stored, m.profile)
	}
	return m.vault.write(stored)
}

// Fill sets any empty secret in cfg from stored credentials.
func (m *Manager) Fill(cfg *config.Config) {
	for dst, name := range map[*string]string{
		&cfg.Skills.Workflow.APIKey:     Workflow,
		&cfg.Providers.Anthropic.APIKey: Anthropic,
		&cfg.Providers.OpenAI.APIKey:    OpenAI,
	} {
		if *dst != "" {
			continue
		}
		if v, err := m.Get(name); err == nil {
			*dst = v
		}
	}
}

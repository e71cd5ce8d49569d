package skills

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	registry "github.com/adalundhe/parley/core/skills"
)

const weatherManifest = `---
name: Weather
description: Current conditions for a city
kind: remote_api
category: information
endpoint: https://api.example.com/weather
method: GET
timeout: 3s
headers:
  Authorization: Bearer ${WEATHER_TOKEN}
parameters:
  - name: city
    type: string
    required: true
  - name: units
    type: string
    default: metric
---

Ask for the city when it is missing.
`

const crmManifest = `---
id: sync_crm
name: Sync CRM
description: Pushes a contact into the CRM workflow
kind: external_workflow
workflow_id: wf-42
enabled: false
---
`

func writeManifest(t *testing.T, root, dir, content string) {
	t.Helper()
	path := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(path, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "SKILL.md"), []byte(content), 0644))
}

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest(weatherManifest)
	require.NoError(t, err)

	assert.Equal(t, "Weather", m.Name)
	assert.Equal(t, registry.KindRemoteAPI, m.Kind)
	assert.Equal(t, 3*time.Second, m.Timeout)
	require.Len(t, m.Parameters, 2)
	assert.True(t, m.Parameters[0].Required)
	assert.Equal(t, "metric", m.Parameters[1].Default)
	assert.Equal(t, "Ask for the city when it is missing.", m.Instructions)
}

func TestParseManifestErrors(t *testing.T) {
	_, err := ParseManifest("name: no frontmatter")
	assert.ErrorIs(t, err, ErrParseFailed)

	_, err = ParseManifest("---\nname: [broken\n---\n")
	assert.ErrorIs(t, err, ErrParseFailed)
}

func TestValidate(t *testing.T) {
	base := Manifest{ID: "weather", Name: "W", Description: "d", Kind: registry.KindRemoteAPI, Endpoint: "https://x"}

	tests := []struct {
		name   string
		mutate func(*Manifest)
		want   error
	}{
		{"valid", func(*Manifest) {}, nil},
		{"bad id", func(m *Manifest) { m.ID = "Weather Now" }, ErrInvalidID},
		{"missing name", func(m *Manifest) { m.Name = "" }, ErrMissingName},
		{"missing description", func(m *Manifest) { m.Description = "" }, ErrMissingDesc},
		{"function kind", func(m *Manifest) { m.Kind = registry.KindFunction }, ErrUnsupportedKind},
		{"no endpoint", func(m *Manifest) { m.Endpoint = "" }, ErrMissingEndpoint},
		{"bad method", func(m *Manifest) { m.Method = "TRACE" }, ErrInvalidMethod},
		{"workflow without id", func(m *Manifest) { m.Kind = registry.KindExternalWorkflow }, ErrMissingWorkflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base
			tt.mutate(&m)
			err := Validate(m)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestDiscoverSkipsInvalid(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "weather", weatherManifest)
	writeManifest(t, root, "crm", crmManifest)
	writeManifest(t, root, "broken", "---\nname: x\n---\n")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0755))

	manifests, skipped, err := Discover(root)
	require.NoError(t, err)
	require.Len(t, manifests, 2)
	assert.Equal(t, "sync_crm", manifests[0].ID)
	assert.Equal(t, "weather", manifests[1].ID)
	assert.Len(t, skipped, 2)
}

func TestRegisterDir(t *testing.T) {
	t.Setenv("WEATHER_TOKEN", "tok")
	root := t.TempDir()
	writeManifest(t, root, "weather", weatherManifest)
	writeManifest(t, root, "crm", crmManifest)
	writeManifest(t, root, "broken", "not a manifest")

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	reg := registry.NewRegistry(registry.RegistryConfig{Logger: logger})

	n, err := RegisterDir(reg, root, logger)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, logs.String(), "skipping skill manifest")

	info, ok := reg.GetSkill("weather")
	require.True(t, ok)
	assert.True(t, info.Enabled)
	assert.Equal(t, "information", info.Category)

	crm, ok := reg.GetSkill("sync_crm")
	require.True(t, ok)
	assert.False(t, crm.Enabled)

	res := reg.Execute(context.Background(), "sync_crm", nil, registry.ExecContext{})
	assert.False(t, res.Success)

	n, err = RegisterDir(reg, filepath.Join(root, "missing"), logger)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestManifestConfigExpandsEnv(t *testing.T) {
	t.Setenv("WEATHER_TOKEN", "tok")
	m, err := ParseManifest(weatherManifest)
	require.NoError(t, err)
	m.ID = "weather"

	id, cfg := m.Config()
	assert.Equal(t, "weather", id)
	require.NotNil(t, cfg.Remote)
	assert.Equal(t, "Bearer tok", cfg.Remote.Headers["Authorization"])
	assert.Equal(t, "GET", cfg.Remote.Method)
}

package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/parley/core/config"
)

func TestAnthropicGenerate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "Hello there."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 7, "output_tokens": 3}
		}`))
	}))
	defer srv.Close()

	p, err := NewAnthropicProvider(AnthropicConfig{BaseConfig: BaseConfig{APIKey: "k", BaseURL: srv.URL, Model: "claude-test"}})
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), &Request{
		SystemPrompt: "be brief",
		Messages:     []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there.", resp.Content)
	assert.Equal(t, StopReasonEndTurn, resp.StopReason)
	assert.Equal(t, 10, resp.Usage.TotalTokens)
	assert.Equal(t, "claude-test", body["model"])
}

func TestOpenAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/responses"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "resp_1", "object": "response", "created_at": 1, "status": "completed",
			"model": "gpt-test",
			"output": [{
				"type": "message", "id": "m1", "role": "assistant", "status": "completed",
				"content": [{"type": "output_text", "text": "Hi!", "annotations": []}]
			}],
			"usage": {"input_tokens": 2, "output_tokens": 1, "total_tokens": 3}
		}`))
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider(OpenAIConfig{BaseConfig: BaseConfig{APIKey: "k", BaseURL: srv.URL}})
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), &Request{Messages: []Message{{Role: RoleUser, Content: "hey"}}})
	require.NoError(t, err)
	assert.Equal(t, "Hi!", resp.Content)
	assert.Equal(t, 3, resp.Usage.TotalTokens)
}

func TestProviderRequiresAPIKey(t *testing.T) {
	_, err := NewAnthropicProvider(AnthropicConfig{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = NewOpenAIProvider(OpenAIConfig{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestFromConfig(t *testing.T) {
	r, err := FromConfig(config.ProvidersConfig{})
	require.NoError(t, err)
	_, err = r.Default()
	assert.ErrorIs(t, err, ErrNoProvider)

	r, err = FromConfig(config.ProvidersConfig{
		Default:   "openai",
		Anthropic: config.ProviderConfig{APIKey: "a"},
		OpenAI:    config.ProviderConfig{APIKey: "o"},
	})
	require.NoError(t, err)
	assert.Equal(t, []ProviderType{ProviderTypeAnthropic, ProviderTypeOpenAI}, r.Available())

	p, err := r.Default()
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	_, err = FromConfig(config.ProvidersConfig{Default: "openai"})
	assert.Error(t, err)
}

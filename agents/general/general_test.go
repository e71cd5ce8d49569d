package general

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/adalundhe/parley/core/agents"
)

func TestProcessMessage(t *testing.T) {
	a := New(Config{})

	tests := []struct {
		text string
		want string
	}{
		{"hello there", "Hello! How can I help you today?"},
		{"how are you doing", "I'm doing well, thanks for asking. What can I do for you?"},
		{"what can you do", "I can chat, look into topics, set reminders and notes, and control your smart home."},
		{"the sky is blue", "I'm here to help. Ask me to research something, set a reminder, or control your home."},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			resp := a.ProcessMessage(context.Background(), &agents.Request{Text: tt.text})
			assert.Equal(t, tt.want, resp.Text)
			assert.Empty(t, resp.Actions)
			assert.Empty(t, resp.NewTopic)
			assert.Len(t, resp.Suggestions, 3)
		})
	}
}

func TestIntroducesItselfOnSwitch(t *testing.T) {
	resp := New(Config{}).ProcessMessage(context.Background(), &agents.Request{Text: "hi", IsAgentSwitch: true, PreviousAgent: "task"})
	assert.Equal(t, "This is your Companion. Hello! How can I help you today?", resp.Text)
}

func TestVoiceProfileIsStable(t *testing.T) {
	a := New(Config{})
	assert.Equal(t, a.VoiceProfile(), New(Config{}).VoiceProfile())
	assert.Equal(t, "alloy", a.VoiceProfile().Voice)
}

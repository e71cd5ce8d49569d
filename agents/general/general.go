// Package general implements the default conversational agent.
package general

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/adalundhe/parley/core/agents"
	"github.com/adalundhe/parley/core/providers"
)

type Config struct {
	Provider providers.Provider
	Logger   *slog.Logger
	Now      func() time.Time
}

// Agent answers everything no specialist claims.
type Agent struct {
	*agents.Persona
}

func Descriptor() agents.Descriptor {
	return agents.Descriptor{
		ID:           agents.General,
		Name:         "Companion",
		Description:  "Everyday conversation and anything no specialist handles",
		Aliases:      []string{"assistant", "default"},
		Domains:      []string{"conversation", "small talk"},
		Voice:        agents.VoiceProfile{Voice: "alloy", Rate: 1.0, Pitch: 1.0, Style: "warm"},
		SystemPrompt: DefaultSystemPrompt,
	}
}

var suggestions = agents.SuggestionSet{
	Rules: []agents.SuggestionRule{
		{Keywords: []string{"hello", "hi ", "hey"}, Suggestions: []string{"What can you do?", "What's on my schedule?", "Tell me something interesting"}},
		{Keywords: []string{"thank"}, Suggestions: []string{"Set a reminder", "Turn on the lights", "Research a topic"}},
	},
	Default: []string{"Tell me more", "Research a topic", "Remind me about something"},
}

func New(cfg Config) *Agent {
	return &Agent{agents.NewPersona(agents.PersonaConfig{
		Descriptor:  Descriptor(),
		Suggestions: suggestions,
		Compose:     compose,
		Provider:    cfg.Provider,
		Logger:      cfg.Logger,
		Now:         cfg.Now,
	})}
}

func (a *Agent) ProcessMessage(ctx context.Context, req *agents.Request) *agents.Response {
	return a.Handle(ctx, req, nil)
}

func compose(req *agents.Request) string {
	lower := strings.ToLower(strings.TrimSpace(req.Text))
	switch {
	case lower == "":
		return "I didn't catch that. Could you say it again?"
	case strings.Contains(lower, "how are you"):
		return "I'm doing well, thanks for asking. What can I do for you?"
	case strings.Contains(lower, "thank"):
		return "You're welcome! Anything else?"
	case strings.Contains(lower, "what can you do"), strings.Contains(lower, "help"):
		return "I can chat, look into topics, set reminders and notes, and control your smart home."
	case hasGreeting(lower):
		return "Hello! How can I help you today?"
	case strings.Contains(lower, "bye"), strings.Contains(lower, "good night"):
		return "Talk to you later!"
	default:
		return "I'm here to help. Ask me to research something, set a reminder, or control your home."
	}
}

func hasGreeting(lower string) bool {
	for _, g := range []string{"hello", "hi", "hey", "good morning", "good evening"} {
		if lower == g || strings.HasPrefix(lower, g+" ") || strings.HasPrefix(lower, g+",") || strings.HasPrefix(lower, g+"!") {
			return true
		}
	}
	return false
}

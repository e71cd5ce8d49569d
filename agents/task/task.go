// Package task implements the agent for reminders, notes and planning.
package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adalundhe/parley/core/agents"
	coreerrors "github.com/adalundhe/parley/core/errors"
	"github.com/adalundhe/parley/core/providers"
	"github.com/adalundhe/parley/core/skills"
)

// Action types emitted for the caller to carry out.
const (
	ActionCreateReminder = "create_reminder"
	ActionCreateNote     = "create_note"
)

type Config struct {
	// Skills, when set, builds action payloads through the create_reminder
	// and take_note skills so disabling a skill disables the feature.
	Skills   *skills.Registry
	Provider providers.Provider
	Logger   *slog.Logger
	Now      func() time.Time
}

type Agent struct {
	*agents.Persona
	skills *skills.Registry
}

func Descriptor() agents.Descriptor {
	return agents.Descriptor{
		ID:           agents.Task,
		Name:         "Task Assistant",
		Description:  "Reminders, notes and everyday planning",
		Aliases:      []string{"tasks", "planner", "organizer"},
		Domains:      []string{"reminders", "notes", "planning"},
		Voice:        agents.VoiceProfile{Voice: "nova", Rate: 1.05, Pitch: 1.0, Style: "crisp"},
		SystemPrompt: DefaultSystemPrompt,
	}
}

var suggestions = agents.SuggestionSet{
	Rules: []agents.SuggestionRule{
		{Keywords: []string{"remind"}, Suggestions: []string{"Remind me again tomorrow", "Make a note of it", "What else is on my list?"}},
		{Keywords: []string{"note"}, Suggestions: []string{"Remind me about this", "Add another note", "What else is on my list?"}},
	},
	Default: []string{"Remind me to...", "Make a note", "Plan my day"},
}

func New(cfg Config) *Agent {
	return &Agent{
		Persona: agents.NewPersona(agents.PersonaConfig{
			Descriptor:  Descriptor(),
			Suggestions: suggestions,
			Compose: func(*agents.Request) string {
				return "I can set reminders and take notes. Try \"remind me to call mom at 5pm\"."
			},
			Provider: cfg.Provider,
			Logger:   cfg.Logger,
			Now:      cfg.Now,
		}),
		skills: cfg.Skills,
	}
}

func (a *Agent) ProcessMessage(ctx context.Context, req *agents.Request) *agents.Response {
	return a.Handle(ctx, req, a.detect)
}

func (a *Agent) detect(ctx context.Context, req *agents.Request) (*agents.Response, error) {
	intent := Detect(req.Text)
	switch intent.Kind {
	case KindReminder:
		if intent.Content == "" {
			return &agents.Response{Text: "What would you like me to remind you about?", NewTopic: agents.Task}, nil
		}
		payload, err := a.payload(ctx, req, "create_reminder", skills.Params{"content": intent.Content, "time": intent.Time})
		if err != nil {
			return nil, err
		}
		text := fmt.Sprintf("Okay, I'll remind you to %s.", intent.Content)
		if intent.Time != "" {
			text = fmt.Sprintf("Okay, I'll remind you to %s %s.", intent.Content, intent.Time)
		}
		return &agents.Response{
			Text:     text,
			Actions:  []agents.ActionRequest{{Type: ActionCreateReminder, Payload: payload}},
			NewTopic: agents.Task,
		}, nil

	case KindNote:
		if intent.Content == "" {
			return &agents.Response{Text: "What should the note say?", NewTopic: agents.Task}, nil
		}
		payload, err := a.payload(ctx, req, "take_note", skills.Params{"content": intent.Content})
		if err != nil {
			return nil, err
		}
		return &agents.Response{
			Text:     fmt.Sprintf("Got it. I've noted: %s.", intent.Content),
			Actions:  []agents.ActionRequest{{Type: ActionCreateNote, Payload: payload}},
			NewTopic: agents.Task,
		}, nil
	}

	// no specialized intent: persona reply, but keep the topic
	text, err := a.Reply(ctx, req)
	if err != nil {
		return nil, err
	}
	return &agents.Response{Text: text, NewTopic: agents.Task}, nil
}

// payload runs skillID when a registry is configured; otherwise the params
// themselves describe the action.
func (a *Agent) payload(ctx context.Context, req *agents.Request, skillID string, params skills.Params) (map[string]any, error) {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	if a.skills == nil {
		return out, nil
	}

	res := a.skills.Execute(ctx, skillID, params, skills.ExecContext{UserID: req.UserID, AgentID: agents.Task})
	if !res.Success {
		if res.Err != nil {
			return nil, res.Err
		}
		return nil, coreerrors.New(res.ErrorKind, res.Error)
	}
	if m, ok := res.Result.(map[string]any); ok {
		for k, v := range m {
			if k != "type" {
				out[k] = v
			}
		}
	}
	return out, nil
}

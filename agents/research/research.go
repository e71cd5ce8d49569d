// Package research implements the agent that explains topics and answers
// factual questions.
package research

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/adalundhe/parley/core/agents"
	"github.com/adalundhe/parley/core/providers"
)

const (
	recallLimit    = 3
	maxKnownTopics = 20
)

type Config struct {
	Provider providers.Provider
	Logger   *slog.Logger
	Now      func() time.Time
}

type Agent struct {
	*agents.Persona
}

func Descriptor() agents.Descriptor {
	return agents.Descriptor{
		ID:           agents.Research,
		Name:         "Research Assistant",
		Description:  "Explains topics and answers factual questions",
		Aliases:      []string{"researcher", "research assistant"},
		Domains:      []string{"research", "facts", "explanations"},
		Voice:        agents.VoiceProfile{Voice: "sage", Rate: 0.95, Pitch: 1.0, Style: "measured"},
		SystemPrompt: DefaultSystemPrompt,
	}
}

var suggestions = agents.SuggestionSet{
	Rules: []agents.SuggestionRule{
		{Keywords: []string{"history", "when did"}, Suggestions: []string{"What happened next?", "Who was involved?", "Why did it matter?"}},
		{Keywords: []string{"how does", "how do", "explain"}, Suggestions: []string{"Give me an example", "Explain it more simply", "What are the limitations?"}},
	},
	Default: []string{"Tell me more", "Give me an example", "How is this used today?"},
}

func New(cfg Config) *Agent {
	return &Agent{agents.NewPersona(agents.PersonaConfig{
		Descriptor:  Descriptor(),
		Suggestions: suggestions,
		Compose: func(req *agents.Request) string {
			return fmt.Sprintf("Let me look into %s for you.", ExtractTopic(req.Text))
		},
		Provider: cfg.Provider,
		Logger:   cfg.Logger,
		Now:      cfg.Now,
	})}
}

// ProcessMessage answers through the persona and prefixes anything the user
// told us before that relates to the question.
func (a *Agent) ProcessMessage(ctx context.Context, req *agents.Request) *agents.Response {
	return a.Handle(ctx, req, func(ctx context.Context, req *agents.Request) (*agents.Response, error) {
		text, err := a.Reply(ctx, req)
		if err != nil {
			return nil, err
		}
		if prefix := a.recall(ctx, req); prefix != "" {
			text = prefix + " " + text
		}

		topic := ExtractTopic(req.Text)
		return &agents.Response{
			Text:          text,
			NewTopic:      agents.Research,
			MemoryUpdates: a.topicUpdate(ctx, req, topic),
		}, nil
	})
}

func (a *Agent) recall(ctx context.Context, req *agents.Request) string {
	if req.Memory == nil {
		return ""
	}
	facts, err := req.Memory.RecallFacts(ctx, req.Text, recallLimit)
	if err != nil || len(facts) == 0 {
		return ""
	}
	parts := make([]string, len(facts))
	for i, f := range facts {
		parts[i] = f.Fact
	}
	return "You mentioned before: " + strings.Join(parts, "; ") + "."
}

func (a *Agent) topicUpdate(ctx context.Context, req *agents.Request, topic string) map[string]any {
	if topic == "" {
		return nil
	}
	var known []string
	if req.Memory != nil {
		if am, err := req.Memory.GetAgentMemory(ctx, agents.Research); err == nil {
			known = am.KnownTopics
		}
	}
	for _, k := range known {
		if k == topic {
			return nil
		}
	}
	known = append(append([]string(nil), known...), topic)
	if len(known) > maxKnownTopics {
		known = known[len(known)-maxKnownTopics:]
	}
	return map[string]any{
		"agentMemory": map[string]any{
			agents.Research: map[string]any{"knownTopics": known},
		},
	}
}

var leadIns = regexp.MustCompile(`^(?:(?:can|could) you\s+)?(?:please\s+)?(?:tell me about|tell me|what (?:is|are|was|were)|who (?:is|was|were)|how (?:does|do|did)|why (?:is|are|does|do|did)|explain|research|look up|search for|find out about|define|learn about)\s+`)

var articles = regexp.MustCompile(`^(?:the|a|an)\s+`)

// ExtractTopic strips question lead-ins and punctuation from text.
func ExtractTopic(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.TrimRight(t, "?!. ")
	t = leadIns.ReplaceAllString(t, "")
	t = articles.ReplaceAllString(t, "")
	t = strings.TrimSpace(t)
	if t == "" {
		return "that"
	}
	return t
}

package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	coreerrors "github.com/adalundhe/parley/core/errors"
	"github.com/adalundhe/parley/core/providers"
)

const historyTurns = 5

// ApologySuggestions accompany every failure reply.
var ApologySuggestions = []string{"Try again", "Rephrase your request", "Ask about something else"}

// DetectFunc is a variant's specialized intent handler. A nil response with
// a nil error means nothing matched and the persona reply is used.
type DetectFunc func(ctx context.Context, req *Request) (*Response, error)

// PersonaConfig configures the shared reply path of a variant.
type PersonaConfig struct {
	Descriptor  Descriptor
	Suggestions SuggestionSet
	// Compose produces the reply when no provider is configured.
	Compose  func(req *Request) string
	Provider providers.Provider
	Logger   *slog.Logger
	Now      func() time.Time
}

// Persona implements the parts of Agent that only differ by data.
type Persona struct {
	desc        Descriptor
	suggestions SuggestionSet
	compose     func(req *Request) string
	provider    providers.Provider
	logger      *slog.Logger
	now         func() time.Time
}

func NewPersona(cfg PersonaConfig) *Persona {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Compose == nil {
		cfg.Compose = func(*Request) string { return "I'm listening. Tell me more." }
	}
	return &Persona{
		desc:        cfg.Descriptor,
		suggestions: cfg.Suggestions,
		compose:     cfg.Compose,
		provider:    cfg.Provider,
		logger:      cfg.Logger.With("agent", cfg.Descriptor.ID),
		now:         cfg.Now,
	}
}

func (p *Persona) Descriptor() Descriptor     { return p.desc }
func (p *Persona) VoiceProfile() VoiceProfile { return p.desc.Voice }
func (p *Persona) Logger() *slog.Logger       { return p.logger }

// GenerateSuggestions is pure: the same inputs always give the same output.
func (p *Persona) GenerateSuggestions(lastMessage, lastResponse string) []string {
	return p.suggestions.For(lastMessage, lastResponse)
}

// Handle runs detect, falls back to the persona reply, and converts any
// error or panic into an apology.
func (p *Persona) Handle(ctx context.Context, req *Request, detect DetectFunc) (resp *Response) {
	start := p.now()
	defer func() {
		if r := recover(); r != nil {
			resp = p.apologize(fmt.Errorf("agent panic: %v", r))
		}
		resp.ProcessingTime = p.now().Sub(start)
	}()

	if err := ctx.Err(); err != nil {
		return p.apologize(coreerrors.Classify(err))
	}

	if detect != nil {
		r, err := detect(ctx, req)
		if err != nil {
			return p.apologize(err)
		}
		if r != nil {
			return p.finish(req, r)
		}
	}

	text, err := p.Reply(ctx, req)
	if err != nil {
		return p.apologize(err)
	}
	return p.finish(req, &Response{Text: text})
}

// Reply is the persona-driven answer: the configured model when there is
// one, the deterministic composer otherwise.
func (p *Persona) Reply(ctx context.Context, req *Request) (string, error) {
	if p.provider == nil {
		return p.introduce(req, p.compose(req)), nil
	}

	messages := p.history(ctx, req)
	messages = append(messages, providers.Message{Role: providers.RoleUser, Content: req.Text})
	out, err := p.provider.Generate(ctx, &providers.Request{
		SystemPrompt: p.desc.SystemPrompt,
		Messages:     messages,
	})
	if err != nil {
		return "", coreerrors.Wrap(coreerrors.KindRemoteAPI, "generate reply", err)
	}
	text := strings.TrimSpace(out.Content)
	if text == "" {
		return p.introduce(req, p.compose(req)), nil
	}
	return text, nil
}

func (p *Persona) history(ctx context.Context, req *Request) []providers.Message {
	if req.Memory == nil {
		return nil
	}
	log, err := req.Memory.RecentInteractions(ctx)
	if err != nil {
		p.logger.Debug("history unavailable", "error", err)
		return nil
	}
	if len(log) > historyTurns {
		log = log[len(log)-historyTurns:]
	}
	messages := make([]providers.Message, 0, len(log)*2)
	for _, in := range log {
		messages = append(messages,
			providers.Message{Role: providers.RoleUser, Content: in.Query},
			providers.Message{Role: providers.RoleAssistant, Content: in.Response},
		)
	}
	return messages
}

func (p *Persona) introduce(req *Request, text string) string {
	if !req.IsAgentSwitch {
		return text
	}
	return fmt.Sprintf("This is your %s. %s", p.desc.Name, text)
}

func (p *Persona) finish(req *Request, r *Response) *Response {
	if r.Suggestions == nil {
		r.Suggestions = p.GenerateSuggestions(req.Text, r.Text)
	}
	if r.Sentiment == "" {
		r.Sentiment = DetectSentiment(req.Text)
	}
	return r
}

func (p *Persona) apologize(err error) *Response {
	p.logger.Warn("agent failed", "error", err)
	text := "I'm sorry, I ran into a problem with that."
	if hint := coreerrors.Hint(err); hint != "" {
		text += " " + hint
	}
	return &Response{
		Text:        text,
		Suggestions: append([]string(nil), ApologySuggestions...),
		Sentiment:   SentimentNeutral,
		Err:         err,
	}
}

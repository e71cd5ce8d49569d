// Package orchestrator routes each message of a conversation to the agent
// that should answer it and keeps the per-conversation state that routing
// depends on.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/adalundhe/parley/core/agents"
	coreerrors "github.com/adalundhe/parley/core/errors"
	"github.com/adalundhe/parley/core/events"
	"github.com/adalundhe/parley/core/intent"
	"github.com/adalundhe/parley/core/memory"
)

const fallbackText = "I'm sorry, something went wrong while handling that."

var (
	ErrNoAgents = errors.New("orchestrator: agent registry is required")
	ErrNoMemory = errors.New("orchestrator: memory store is required")
)

type Config struct {
	Agents *agents.Registry
	Memory *memory.Store
	// Classifier defaults to one with the default keywords.
	Classifier *intent.Classifier
	// Bus receives conversation events. Nil disables publishing.
	Bus    *events.Bus
	Logger *slog.Logger
	Now    func() time.Time
}

// Orchestrator is the state machine of one conversation. Calls are
// serialized, so turns complete in the order RouteMessage was called.
type Orchestrator struct {
	agents     *agents.Registry
	memory     *memory.Store
	classifier *intent.Classifier
	bus        *events.Bus
	logger     *slog.Logger
	now        func() time.Time

	mu          sync.Mutex
	activeAgent string
	conv        ConversationContext
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Agents == nil {
		return nil, ErrNoAgents
	}
	if cfg.Memory == nil {
		return nil, ErrNoMemory
	}
	if cfg.Classifier == nil {
		cfg.Classifier = intent.NewClassifier(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Orchestrator{
		agents:      cfg.Agents,
		memory:      cfg.Memory,
		classifier:  cfg.Classifier,
		bus:         cfg.Bus,
		logger:      cfg.Logger.With("user_id", cfg.Memory.UserID()),
		now:         cfg.Now,
		activeAgent: agents.General,
		conv:        newConversationContext(cfg.Now()),
	}, nil
}

func (o *Orchestrator) UserID() string        { return o.memory.UserID() }
func (o *Orchestrator) Memory() *memory.Store { return o.memory }

func (o *Orchestrator) ActiveAgent() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.activeAgent
}

func (o *Orchestrator) Context() ConversationContext {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.conv
}

// =============================================================================
// Routing
// =============================================================================

// RouteMessage handles one turn. It never returns nil and never panics; any
// failure yields an apology envelope from the general agent with Error set.
func (o *Orchestrator) RouteMessage(ctx context.Context, text string, session Session) (env *Envelope) {
	o.mu.Lock()
	defer o.mu.Unlock()

	start := o.now()
	o.conv.advance(text)

	defer func() {
		if r := recover(); r != nil {
			env = o.fallback(fmt.Errorf("routing panic: %v", r))
		}
		env.ProcessingTime = o.now().Sub(start)
	}()

	env, err := o.route(ctx, text, session)
	if err != nil {
		return o.fallback(err)
	}
	return env
}

func (o *Orchestrator) route(ctx context.Context, text string, session Session) (*Envelope, error) {
	result := o.classifier.Classify(text, o.conv.intentContext())
	target := o.decide(result)

	agent, ok := o.agents.Get(target)
	if !ok {
		return nil, coreerrors.New(coreerrors.KindNotFound, "agent not registered: "+target)
	}

	previous := o.activeAgent
	switched := target != previous
	resp := agent.ProcessMessage(ctx, &agents.Request{
		Text:          text,
		UserID:        o.memory.UserID(),
		Memory:        o.memory,
		PreviousAgent: previous,
		IsAgentSwitch: switched,
		CurrentTopic:  o.conv.CurrentTopic,
	})
	if err := ctx.Err(); err != nil {
		return nil, coreerrors.Classify(err)
	}
	if resp == nil {
		return nil, coreerrors.New(coreerrors.KindUnknown, "agent returned no response: "+target)
	}

	o.activeAgent = target
	if resp.NewTopic != "" {
		o.conv.CurrentTopic = resp.NewTopic
	}

	if len(resp.MemoryUpdates) > 0 {
		if _, err := o.memory.Update(ctx, resp.MemoryUpdates); err != nil {
			return nil, fmt.Errorf("merge memory updates: %w", err)
		}
		o.publish(events.EventMemoryUpdated, target, map[string]any{"keys": topLevelKeys(resp.MemoryUpdates)})
	}

	o.record(ctx, text, resp.Text, target)

	env := &Envelope{
		Text:               resp.Text,
		VoiceProfile:       agent.VoiceProfile(),
		Actions:            resp.Actions,
		ActiveAgent:        target,
		SuggestedFollowups: resp.Suggestions,
		Sentiment:          resp.Sentiment,
		IsAgentSwitch:      switched,
		Timestamp:          o.now(),
		Intent:             result.Label,
	}
	o.announce(env, previous, session, result)
	return env, nil
}

// decide maps a classification to an agent id. A sticky result only holds
// while a specialist is already active.
func (o *Orchestrator) decide(result intent.Result) string {
	if result.Sticky && o.activeAgent == agents.General {
		return agents.General
	}
	return intent.AgentFor(result.Label)
}

func (o *Orchestrator) record(ctx context.Context, query, response, agentID string) {
	err := o.memory.AddInteraction(ctx, memory.Interaction{
		Query:    query,
		Response: response,
		AgentID:  agentID,
	})
	if err != nil {
		o.logger.Warn("interaction not recorded", "agent", agentID, "error", err)
	}
}

// fallback resets to the general agent and builds the apology envelope.
func (o *Orchestrator) fallback(err error) *Envelope {
	o.logger.Error("routing failed, falling back to general agent", "agent", o.activeAgent, "error", err)

	switched := o.activeAgent != agents.General
	o.activeAgent = agents.General
	o.conv.CurrentTopic = ""

	text := fallbackText
	if hint := coreerrors.Hint(err); hint != "" {
		text += " " + hint
	}
	env := &Envelope{
		Text:               text,
		ActiveAgent:        agents.General,
		SuggestedFollowups: append([]string(nil), agents.ApologySuggestions...),
		Sentiment:          agents.SentimentNeutral,
		IsAgentSwitch:      switched,
		Timestamp:          o.now(),
		Intent:             intent.General,
		Error:              err.Error(),
	}
	if a, ok := o.agents.Get(agents.General); ok {
		env.VoiceProfile = a.VoiceProfile()
	}
	return env
}

// =============================================================================
// Explicit control
// =============================================================================

// SwitchAgent makes nameOrID the active agent without classification. It
// accepts ids, display names and aliases, and returns false for anything
// unknown.
func (o *Orchestrator) SwitchAgent(nameOrID string) bool {
	agent, ok := o.agents.Resolve(nameOrID)
	if !ok {
		return false
	}
	id := agent.Descriptor().ID

	o.mu.Lock()
	previous := o.activeAgent
	o.activeAgent = id
	if id == agents.General {
		o.conv.CurrentTopic = ""
	} else {
		o.conv.CurrentTopic = id
	}
	o.mu.Unlock()

	if previous != id {
		o.publish(events.EventAgentSwitched, id, map[string]any{"from": previous, "to": id, "explicit": true})
	}
	return true
}

// ResetConversation restores the initial conversation state. Memory is
// left untouched.
func (o *Orchestrator) ResetConversation() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.activeAgent = agents.General
	o.conv = newConversationContext(o.now())
}

// =============================================================================
// Events
// =============================================================================

func (o *Orchestrator) announce(env *Envelope, previous string, session Session, result intent.Result) {
	o.publish(events.EventMessageRouted, env.ActiveAgent, map[string]any{
		"intent":   string(result.Label),
		"signals":  result.Signals,
		"sticky":   result.Sticky,
		"fallback": result.Fallback,
		"channel":  session.Channel,
	})
	if env.IsAgentSwitch {
		o.publish(events.EventAgentSwitched, env.ActiveAgent, map[string]any{"from": previous, "to": env.ActiveAgent})
	}
	for _, action := range env.Actions {
		o.publish(events.EventActionRequested, env.ActiveAgent, map[string]any{
			"action_type": action.Type,
			"payload":     action.Payload,
		})
	}
}

func (o *Orchestrator) publish(t events.EventType, agentID string, data map[string]any) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(events.NewEvent(t, o.memory.UserID(), data).WithAgent(agentID))
}

func topLevelKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

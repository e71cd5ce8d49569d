package orchestrator

import (
	"time"

	"github.com/adalundhe/parley/core/agents"
	"github.com/adalundhe/parley/core/intent"
)

// =============================================================================
// Conversation Context
// =============================================================================

// ConversationContext is owned by one Orchestrator and advanced once per
// routed message.
type ConversationContext struct {
	// CurrentTopic is the agent id of the topic in progress, or "".
	CurrentTopic           string    `json:"currentTopic,omitempty"`
	LastQuery              string    `json:"lastQuery,omitempty"`
	ContinuingConversation bool      `json:"continuingConversation"`
	SessionStart           time.Time `json:"sessionStart"`
	MessageCount           int       `json:"messageCount"`
}

func newConversationContext(now time.Time) ConversationContext {
	return ConversationContext{SessionStart: now}
}

func (c *ConversationContext) advance(text string) {
	c.LastQuery = text
	c.MessageCount++
	c.ContinuingConversation = c.MessageCount > 1
}

func (c ConversationContext) intentContext() intent.Context {
	return intent.Context{
		ContinuingConversation: c.ContinuingConversation,
		CurrentTopic:           c.CurrentTopic,
	}
}

// =============================================================================
// Session and Envelope
// =============================================================================

// Session describes the caller of a turn. Every field is optional.
type Session struct {
	// Channel names the inbound surface, e.g. "text", "voice" or "sms".
	Channel  string         `json:"channel,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Envelope is the uniform result of RouteMessage. It is always well formed;
// Error is set only when the turn fell back to the general agent.
type Envelope struct {
	Text               string                 `json:"response"`
	VoiceProfile       agents.VoiceProfile    `json:"voiceProfile"`
	Actions            []agents.ActionRequest `json:"actions,omitempty"`
	ActiveAgent        string                 `json:"activeAgent"`
	SuggestedFollowups []string               `json:"suggestedFollowups"`
	Sentiment          agents.Sentiment       `json:"sentiment,omitempty"`
	IsAgentSwitch      bool                   `json:"isAgentSwitch"`
	Timestamp          time.Time              `json:"timestamp"`
	Intent             intent.Label           `json:"intent,omitempty"`
	ProcessingTime     time.Duration          `json:"processingTime"`
	Error              string                 `json:"error,omitempty"`
}

// Failed reports whether the envelope is a fallback apology.
func (e *Envelope) Failed() bool {
	return e.Error != ""
}

// Package agents defines the contract every conversational agent satisfies
// and the persona machinery the variants share.
package agents

import (
	"context"
	"time"

	"github.com/adalundhe/parley/core/memory"
)

// Well-known agent ids.
const (
	General        = "general"
	Research       = "research"
	Task           = "task"
	HomeAutomation = "home"
)

// VoiceProfile is the stable voice identity of an agent plus prosody hints
// for speech synthesis.
type VoiceProfile struct {
	Voice string  `json:"voice"`
	Rate  float64 `json:"rate"`
	Pitch float64 `json:"pitch"`
	Style string  `json:"style,omitempty"`
}

// Descriptor is immutable after construction.
type Descriptor struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Aliases      []string     `json:"aliases,omitempty"`
	Domains      []string     `json:"domains"`
	Voice        VoiceProfile `json:"voice"`
	SystemPrompt string       `json:"-"`
}

// ActionRequest describes a side effect the caller is expected to perform.
type ActionRequest struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Memory is the slice of the memory store agents read from.
type Memory interface {
	RecentInteractions(ctx context.Context) ([]memory.Interaction, error)
	RecallFacts(ctx context.Context, query string, limit int) ([]memory.KeyFact, error)
	GetAgentMemory(ctx context.Context, agentID string) (memory.AgentMemory, error)
}

// Request is one turn handed to an agent.
type Request struct {
	Text          string
	UserID        string
	Memory        Memory
	PreviousAgent string
	IsAgentSwitch bool
	CurrentTopic  string
}

// Response is what an agent returns for a turn. Agents never return errors;
// Err is set only for diagnostics when Text is an apology.
type Response struct {
	Text           string          `json:"text"`
	ProcessingTime time.Duration   `json:"processingTime"`
	Suggestions    []string        `json:"suggestions"`
	Actions        []ActionRequest `json:"actions,omitempty"`
	Sentiment      Sentiment       `json:"sentiment,omitempty"`
	NewTopic       string          `json:"newTopic,omitempty"`
	MemoryUpdates  map[string]any  `json:"memoryUpdates,omitempty"`
	Err            error           `json:"-"`
}

// Agent is implemented by every variant.
type Agent interface {
	Descriptor() Descriptor
	ProcessMessage(ctx context.Context, req *Request) *Response
	VoiceProfile() VoiceProfile
	GenerateSuggestions(lastMessage, lastResponse string) []string
}

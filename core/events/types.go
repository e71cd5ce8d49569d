package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a conversation lifecycle event.
type EventType int

const (
	EventMessageRouted EventType = iota
	EventAgentSwitched
	EventActionRequested
	EventMemoryUpdated
	EventSkillExecuted
	EventSkillFailed
	EventOfflineQueued
	EventOfflineReplayed
	EventConnectivityChanged
)

var eventTypeNames = map[EventType]string{
	EventMessageRouted:       "message_routed",
	EventAgentSwitched:       "agent_switched",
	EventActionRequested:     "action_requested",
	EventMemoryUpdated:       "memory_updated",
	EventSkillExecuted:       "skill_executed",
	EventSkillFailed:         "skill_failed",
	EventOfflineQueued:       "offline_queued",
	EventOfflineReplayed:     "offline_replayed",
	EventConnectivityChanged: "connectivity_changed",
}

func (et EventType) String() string {
	if name, ok := eventTypeNames[et]; ok {
		return name
	}
	return "unknown"
}

// Event is a single notification. Data carries type-specific fields such as
// "skill_id", "action_type" or "online".
type Event struct {
	ID        string
	Type      EventType
	UserID    string
	AgentID   string
	Timestamp time.Time
	Data      map[string]any
}

// NewEvent stamps a fresh id and timestamp.
func NewEvent(t EventType, userID string, data map[string]any) *Event {
	if data == nil {
		data = make(map[string]any)
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      t,
		UserID:    userID,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// WithAgent sets the agent the event concerns.
func (e *Event) WithAgent(agentID string) *Event {
	e.AgentID = agentID
	return e
}

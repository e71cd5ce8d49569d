// Package memory holds the durable per-user memory document: profile and
// preferences, remembered entities, per-agent memory and a conversation log.
package memory

import (
	"encoding/json"
	"time"
)

// GuestUserID is the UserID reported for an anonymous user. A named user
// called "guest" still gets a separate, durable document.
const GuestUserID = "guest"

// Document is everything remembered about one user.
type Document struct {
	UserID       string                       `json:"userId"`
	CreatedAt    time.Time                    `json:"createdAt"`
	UpdatedAt    time.Time                    `json:"updatedAt"`
	Profile      Profile                      `json:"profile"`
	Entities     map[string]map[string]Entity `json:"entities"`
	AgentMemory  map[string]AgentMemory       `json:"agentMemory"`
	Conversation ConversationLog              `json:"conversation"`
	IsTemporary  bool                         `json:"isTemporary"`
}

type Profile struct {
	Name        string         `json:"name,omitempty"`
	Preferences map[string]any `json:"preferences"`
}

// Entity is a remembered thing (a person, a place, a device) of some type.
type Entity struct {
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// AgentMemory is the subtree owned by a single agent.
type AgentMemory struct {
	History     []string       `json:"history,omitempty"`
	Preferences map[string]any `json:"preferences,omitempty"`
	KnownTopics []string       `json:"knownTopics,omitempty"`
}

type ConversationLog struct {
	RecentInteractions []Interaction `json:"recentInteractions"`
	KeyFacts           []KeyFact     `json:"keyFacts"`
}

type Interaction struct {
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	AgentID   string    `json:"agentId"`
	Timestamp time.Time `json:"timestamp"`
}

type KeyFact struct {
	ID       string         `json:"id"`
	Fact     string         `json:"fact"`
	Metadata map[string]any `json:"metadata,omitempty"`
	AddedAt  time.Time      `json:"addedAt"`
}

func newDocument(userID string, temporary bool, now time.Time) Document {
	d := Document{
		UserID:      userID,
		CreatedAt:   now,
		UpdatedAt:   now,
		IsTemporary: temporary,
	}
	d.normalize()
	return d
}

func (d *Document) normalize() {
	if d.Profile.Preferences == nil {
		d.Profile.Preferences = map[string]any{}
	}
	if d.Entities == nil {
		d.Entities = map[string]map[string]Entity{}
	}
	if d.AgentMemory == nil {
		d.AgentMemory = map[string]AgentMemory{}
	}
	if d.Conversation.RecentInteractions == nil {
		d.Conversation.RecentInteractions = []Interaction{}
	}
	if d.Conversation.KeyFacts == nil {
		d.Conversation.KeyFacts = []KeyFact{}
	}
}

func (d Document) toMap() (map[string]any, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func documentFromMap(m map[string]any) (Document, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return Document{}, err
	}
	var d Document
	if err := json.Unmarshal(raw, &d); err != nil {
		return Document{}, err
	}
	d.normalize()
	return d, nil
}

// clone returns a copy that shares no maps or slices with d.
func (d Document) clone() Document {
	m, err := d.toMap()
	if err != nil {
		return d
	}
	out, err := documentFromMap(m)
	if err != nil {
		return d
	}
	return out
}

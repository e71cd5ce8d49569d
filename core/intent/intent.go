// Package intent classifies a message into the coarse label that drives
// agent selection. Classification is keyword matching with a fixed
// precedence and no confidence score.
package intent

import (
	"regexp"
	"strings"
	"sync"

	"github.com/adalundhe/parley/core/agents"
)

type Label string

const (
	Research       Label = "research"
	Task           Label = "task"
	HomeAutomation Label = "homeAutomation"
	General        Label = "general"
)

// Precedence is the order labels are tried in; the first with a keyword
// match wins.
var Precedence = []Label{Research, Task, HomeAutomation}

// Keywords lists the trigger phrases for each specialized label.
type Keywords map[Label][]string

func DefaultKeywords() Keywords {
	return Keywords{
		Research: {
			"what is", "what are", "what was", "who is", "who was", "tell me about", "explain",
			"research", "look up", "search for", "how does", "how do", "why is", "why does",
			"define", "history of", "learn about", "find out", "facts about",
		},
		Task: {
			"remind me", "reminder", "make a note", "take a note", "note that", "write down",
			"jot down", "to-do", "todo", "to do list", "schedule", "appointment", "calendar",
			"task", "tasks", "plan my",
		},
		HomeAutomation: {
			"turn on", "turn off", "switch on", "switch off", "lights", "light", "lamp",
			"thermostat", "temperature", "heating", "lock", "unlock", "door", "tv", "television",
			"blinds", "curtains", "fan", "dim", "brighten", "smart home", "speaker",
		},
	}
}

// Context is the slice of conversation state classification looks at.
type Context struct {
	ContinuingConversation bool
	// CurrentTopic is the agent id of the current topic, if any.
	CurrentTopic string
}

// Result of classifying one message.
type Result struct {
	Label Label
	// Signals are the keywords that matched for Label.
	Signals []string
	// Sticky is set when Label came from the current topic rather than a
	// keyword.
	Sticky bool
	// Fallback is set when nothing matched and General is the default.
	Fallback bool
}

type Classifier struct {
	mu       sync.RWMutex
	patterns map[Label][]keywordPattern
}

type keywordPattern struct {
	keyword string
	re      *regexp.Regexp
}

// NewClassifier compiles kw, or DefaultKeywords when kw is nil.
func NewClassifier(kw Keywords) *Classifier {
	c := &Classifier{}
	c.UpdateKeywords(kw)
	return c
}

func (c *Classifier) UpdateKeywords(kw Keywords) {
	if kw == nil {
		kw = DefaultKeywords()
	}
	patterns := make(map[Label][]keywordPattern, len(kw))
	for label, words := range kw {
		patterns[label] = compileKeywordPatterns(words)
	}

	c.mu.Lock()
	c.patterns = patterns
	c.mu.Unlock()
}

func compileKeywordPatterns(keywords []string) []keywordPattern {
	patterns := make([]keywordPattern, 0, len(keywords))
	for _, kw := range keywords {
		escaped := regexp.QuoteMeta(strings.ToLower(kw))
		re, err := regexp.Compile(`(?i)\b` + escaped + `\b`)
		if err == nil {
			patterns = append(patterns, keywordPattern{keyword: kw, re: re})
		}
	}
	return patterns
}

// Classify is deterministic: the same text and context always give the same
// result. Precedence is research, task, homeAutomation, then the current
// topic of a continuing conversation, then general.
func (c *Classifier) Classify(text string, ctx Context) Result {
	c.mu.RLock()
	defer c.mu.RUnlock()

	query := strings.ToLower(text)
	for _, label := range Precedence {
		if signals := c.matches(label, query); len(signals) > 0 {
			return Result{Label: label, Signals: signals}
		}
	}

	if ctx.ContinuingConversation && ctx.CurrentTopic != "" {
		if label, ok := LabelForAgent(ctx.CurrentTopic); ok && label != General {
			return Result{Label: label, Sticky: true}
		}
	}
	return Result{Label: General, Fallback: true}
}

func (c *Classifier) matches(label Label, query string) []string {
	var signals []string
	for _, p := range c.patterns[label] {
		if p.re.MatchString(query) {
			signals = append(signals, p.keyword)
		}
	}
	return signals
}

// AgentFor maps a label to the agent id that handles it.
func AgentFor(label Label) string {
	switch label {
	case Research:
		return agents.Research
	case Task:
		return agents.Task
	case HomeAutomation:
		return agents.HomeAutomation
	default:
		return agents.General
	}
}

// LabelForAgent is the inverse of AgentFor.
func LabelForAgent(agentID string) (Label, bool) {
	switch agentID {
	case agents.Research:
		return Research, true
	case agents.Task:
		return Task, true
	case agents.HomeAutomation:
		return HomeAutomation, true
	case agents.General:
		return General, true
	default:
		return "", false
	}
}

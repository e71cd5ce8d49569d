package offline

import (
	"regexp"
	"strings"

	"github.com/adalundhe/parley/agents/task"
	"github.com/adalundhe/parley/core/calc"
)

// Intent is what the offline handler can tell apart without a network.
type Intent string

const (
	IntentTime     Intent = "time"
	IntentDate     Intent = "date"
	IntentMath     Intent = "math"
	IntentReminder Intent = "reminder"
	IntentNote     Intent = "note"
	IntentUnknown  Intent = "unknown"
)

var (
	timeQuery = regexp.MustCompile(`\b(?:what time|what's the time|current time|time is it|the time now)\b`)
	dateQuery = regexp.MustCompile(`\b(?:what day|what's the date|what is the date|today's date|current date|what date|day is it)\b`)
	mathWords = regexp.MustCompile(`\b(?:calculate|compute|plus|minus|times|multiplied|divided|how much is)\b`)
	mathLead  = regexp.MustCompile(`^(?:what is|what's|whats|what are)\s+`)
	// binaryOp needs spaces around a minus so dates, phone numbers and
	// ranges like 4-6 are not read as subtraction.
	binaryOp = regexp.MustCompile(`\d\s*[+*/]\s*[\d(.]|\d\s+-\s+[\d(.]|\)\s*[-+*/]|[-+*/]\s*\(`)
)

// DetectOfflineIntent classifies text for local handling. Reminders and
// notes are checked first so "remind me at 5" is not mistaken for math.
func DetectOfflineIntent(text string) Intent {
	lower := strings.ToLower(strings.TrimSpace(text))

	switch task.Detect(lower).Kind {
	case task.KindReminder:
		return IntentReminder
	case task.KindNote:
		return IntentNote
	}

	switch {
	case timeQuery.MatchString(lower):
		return IntentTime
	case dateQuery.MatchString(lower):
		return IntentDate
	}

	if isMath(lower) {
		return IntentMath
	}
	return IntentUnknown
}

// isMath needs an explicit cue: a math keyword, or a message that is only
// an expression (after "what is") with a binary operator in it.
func isMath(lower string) bool {
	expr, ok := calc.Extract(lower)
	if !ok || !strings.ContainsAny(expr, "+-*/") {
		return false
	}
	if mathWords.MatchString(lower) {
		return true
	}
	rest := strings.TrimRight(mathLead.ReplaceAllString(lower, ""), "?=! ")
	whole, ok := calc.Whole(rest)
	return ok && binaryOp.MatchString(whole)
}

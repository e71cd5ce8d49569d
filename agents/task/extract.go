package task

import (
	"regexp"
	"sort"
	"strings"
)

// Kind of task intent found in a message.
type Kind string

const (
	KindNone     Kind = ""
	KindReminder Kind = "reminder"
	KindNote     Kind = "note"
)

// Intent is the structured form of a reminder or note request.
type Intent struct {
	Kind    Kind
	Content string
	Time    string
}

var (
	reminderTriggers = regexp.MustCompile(`\b(?:remind me|set (?:a|an) reminder|create (?:a|an) reminder|add (?:a|an) reminder)\b`)
	noteTriggers     = regexp.MustCompile(`\b(?:make (?:a|an) note|take (?:a|an) note|write down|jot down|note that|add (?:a|an) note)\b`)

	connectors = regexp.MustCompile(`^(?:to|that|about|of|for|:)\s*`)

	timeTokens = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:at|by|around)\s+\d{1,2}(?::\d{2})?\s*(?:am|pm|a\.m\.|p\.m\.)?(?:\s|$|[,.!?])`),
		regexp.MustCompile(`\bat\s+(?:noon|midnight)\b`),
		regexp.MustCompile(`\bin\s+(?:\d+|an?|one|two|three|five|ten|thirty)\s+(?:minutes?|mins?|hours?|days?|weeks?)\b`),
		regexp.MustCompile(`\b(?:tomorrow|tonight|today|this (?:morning|afternoon|evening|weekend))\b`),
		regexp.MustCompile(`\b(?:next|on|this)\s+(?:week|month|monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`),
	}

	spaces = regexp.MustCompile(`\s+`)
)

// Detect finds a reminder or note request and pulls out its content and an
// optional time expression. Reminders win when both triggers are present.
func Detect(text string) Intent {
	lower := strings.ToLower(strings.TrimSpace(text))

	var kind Kind
	var loc []int
	if loc = reminderTriggers.FindStringIndex(lower); loc != nil {
		kind = KindReminder
	} else if loc = noteTriggers.FindStringIndex(lower); loc != nil {
		kind = KindNote
	} else {
		return Intent{}
	}

	rest := strings.TrimSpace(lower[loc[1]:])
	when := ""
	if kind == KindReminder {
		rest, when = extractTime(rest)
	}
	rest = connectors.ReplaceAllString(strings.TrimSpace(rest), "")
	rest = strings.TrimRight(strings.TrimSpace(rest), ",.!? ")

	return Intent{Kind: kind, Content: rest, Time: when}
}

type timeMatch struct {
	at   int
	text string
}

// extractTime removes every time expression from text and returns them
// joined in the order they appeared.
func extractTime(text string) (rest, when string) {
	var found []timeMatch
	rest = text
	for _, re := range timeTokens {
		for _, loc := range re.FindAllStringIndex(rest, -1) {
			m := strings.TrimRight(strings.TrimSpace(rest[loc[0]:loc[1]]), ",.!?")
			found = append(found, timeMatch{at: loc[0], text: m})
		}
		// blank out matches in place so later offsets stay valid
		rest = re.ReplaceAllStringFunc(rest, func(m string) string {
			return strings.Repeat(" ", len(m))
		})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].at < found[j].at })

	parts := make([]string, len(found))
	for i, f := range found {
		parts[i] = f.text
	}
	rest = strings.TrimSpace(spaces.ReplaceAllString(rest, " "))
	return rest, strings.Join(parts, " ")
}

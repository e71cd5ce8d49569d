package agents

import "strings"

const maxSuggestions = 3

// SuggestionRule offers follow-ups when the last message mentions any of
// its keywords.
type SuggestionRule struct {
	Keywords    []string
	Suggestions []string
}

// SuggestionSet picks follow-ups from the first matching rule, or Default.
type SuggestionSet struct {
	Rules   []SuggestionRule
	Default []string
}

func (s SuggestionSet) For(lastMessage, lastResponse string) []string {
	text := strings.ToLower(lastMessage + " " + lastResponse)
	for _, rule := range s.Rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(text, kw) {
				return limit(rule.Suggestions)
			}
		}
	}
	return limit(s.Default)
}

func limit(in []string) []string {
	n := len(in)
	if n > maxSuggestions {
		n = maxSuggestions
	}
	return append([]string{}, in[:n]...)
}

var (
	positiveWords = []string{"thanks", "thank you", "great", "awesome", "love", "perfect", "nice", "wonderful"}
	negativeWords = []string{"hate", "angry", "terrible", "awful", "annoyed", "broken", "wrong", "bad", "frustrated"}
)

// DetectSentiment is a small lexicon scan of the user's text.
func DetectSentiment(text string) Sentiment {
	lower := strings.ToLower(text)
	score := 0
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			score++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			score--
		}
	}
	switch {
	case score > 0:
		return SentimentPositive
	case score < 0:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

package errors

var kindHints = map[Kind]string{
	KindNotFound:           "Try asking in a different way.",
	KindDisabled:           "That capability is switched off right now.",
	KindConfiguration:      "That integration isn't set up yet. Check your settings.",
	KindRemoteAPI:          "The service didn't answer properly. Try again in a moment.",
	KindTimeout:            "That took too long. Try again in a moment.",
	KindStorageUnavailable: "I couldn't save that. Try again shortly.",
	KindInvalidInput:       "Try rephrasing your request.",
}

// Hint returns a user-facing next step for err. It never includes the error
// text itself.
func Hint(err error) string {
	if hint, ok := kindHints[KindOf(err)]; ok {
		return hint
	}
	return "Try again, or rephrase your request."
}

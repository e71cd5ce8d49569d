package home

import (
	"regexp"
	"strings"
)

// ParamKind is the single optional parameter a device accepts.
type ParamKind int

const (
	ParamNone ParamKind = iota
	ParamColor
	ParamTemperature
)

// Action is a device action and the phrasings that select it.
type Action struct {
	Name     string
	patterns []*regexp.Regexp
}

// Device is one entry of the fixed catalog.
type Device struct {
	ID       string
	Keywords []string
	Actions  []Action
	Param    ParamKind
}

func phrase(words ...string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + strings.Join(words, `\s+`) + `\b`)
}

func action(name string, patterns ...*regexp.Regexp) Action {
	if len(patterns) == 0 {
		patterns = []*regexp.Regexp{phrase(strings.Fields(name)...)}
	}
	return Action{Name: name, patterns: patterns}
}

var (
	turnOn  = action("turn on", phrase("turn", "on"), phrase("switch", "on"), regexp.MustCompile(`\bturn\s+(?:\w+\s+){1,3}on\b`))
	turnOff = action("turn off", phrase("turn", "off"), phrase("switch", "off"), regexp.MustCompile(`\bturn\s+(?:\w+\s+){1,3}off\b`))
)

// Catalog is the fixed set of controllable devices. Within a device, actions
// are tried in order, so more specific phrasings come first.
var Catalog = []Device{
	{
		ID:       "lights",
		Keywords: []string{"lights", "light", "lamps", "lamp"},
		Actions:  []Action{turnOff, turnOn, action("dim"), action("brighten"), action("set color", phrase("change", "(?:the\\s+)?colou?r"), phrase("make"), phrase("set"))},
		Param:    ParamColor,
	},
	{
		ID:       "thermostat",
		Keywords: []string{"thermostat", "temperature", "heating", "heat", "air conditioning", "ac"},
		Actions: []Action{
			action("increase", phrase("increase"), phrase("raise"), phrase("turn", "up"), phrase("warmer")),
			action("decrease", phrase("decrease"), phrase("lower"), phrase("turn", "down"), phrase("cooler")),
			turnOff, turnOn,
			action("set", phrase("set"), phrase("change"), phrase("make")),
		},
		Param: ParamTemperature,
	},
	{
		ID:       "lock",
		Keywords: []string{"front door", "back door", "door", "doors", "lock"},
		Actions:  []Action{action("unlock"), action("lock")},
	},
	{
		ID:       "tv",
		Keywords: []string{"tv", "television"},
		Actions:  []Action{turnOff, turnOn, action("unmute"), action("mute"), action("pause"), action("play")},
	},
	{
		ID:       "blinds",
		Keywords: []string{"blinds", "curtains", "shades"},
		Actions:  []Action{action("open", phrase("open"), phrase("raise")), action("close", phrase("close"), phrase("lower"), phrase("shut"))},
	},
	{
		ID:       "fan",
		Keywords: []string{"fan", "ceiling fan"},
		Actions:  []Action{turnOff, turnOn, action("speed up", phrase("speed", "up"), phrase("faster")), action("slow down", phrase("slow", "down"), phrase("slower"))},
	},
	{
		ID:       "speaker",
		Keywords: []string{"music", "speaker", "speakers"},
		Actions:  []Action{action("volume up", phrase("volume", "up"), phrase("louder")), action("volume down", phrase("volume", "down"), phrase("quieter")), action("pause"), action("stop"), action("play")},
	},
}

var colors = []string{"warm white", "cool white", "white", "red", "orange", "yellow", "green", "blue", "purple", "pink"}

var temperature = regexp.MustCompile(`\b(\d{2,3}(?:\.\d+)?)\s*(?:degrees|°|f\b|c\b)?`)

var (
	keywordPatterns = map[string]*regexp.Regexp{}
	colorPatterns   = make([]*regexp.Regexp, len(colors))
)

func init() {
	for i, c := range colors {
		colorPatterns[i] = phrase(strings.Fields(c)...)
	}
	for _, d := range Catalog {
		for _, kw := range d.Keywords {
			keywordPatterns[kw] = phrase(strings.Fields(kw)...)
		}
	}
}

// FindDevice returns the catalog device mentioned earliest in text.
func FindDevice(text string) (Device, bool) {
	best, bestAt := Device{}, -1
	for _, d := range Catalog {
		for _, kw := range d.Keywords {
			loc := keywordPatterns[kw].FindStringIndex(text)
			if loc != nil && (bestAt == -1 || loc[0] < bestAt) {
				best, bestAt = d, loc[0]
			}
		}
	}
	return best, bestAt >= 0
}

// FindAction returns the first of d's actions whose phrasing appears in text.
func (d Device) FindAction(text string) (string, bool) {
	for _, a := range d.Actions {
		for _, p := range a.patterns {
			if p.MatchString(text) {
				return a.Name, true
			}
		}
	}
	return "", false
}

// ExtractParameters returns at most one parameter for d found in text.
func (d Device) ExtractParameters(text string) []string {
	switch d.Param {
	case ParamColor:
		for i, p := range colorPatterns {
			if p.MatchString(text) {
				return []string{colors[i]}
			}
		}
	case ParamTemperature:
		if m := temperature.FindStringSubmatch(text); m != nil {
			return []string{m[1]}
		}
	}
	return []string{}
}

// Package home implements the smart-home agent. It maps requests onto a
// fixed device catalog and emits device actions for the caller to execute.
package home

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/adalundhe/parley/core/agents"
	"github.com/adalundhe/parley/core/providers"
)

const (
	ActionDeviceControl = "device_control"
	ActionDeviceInfo    = "device_info"
)

type Config struct {
	Provider providers.Provider
	Logger   *slog.Logger
	Now      func() time.Time
}

type Agent struct {
	*agents.Persona
}

func Descriptor() agents.Descriptor {
	return agents.Descriptor{
		ID:           agents.HomeAutomation,
		Name:         "Home Assistant",
		Description:  "Controls and checks smart-home devices",
		Aliases:      []string{"smart home", "home automation", "house"},
		Domains:      []string{"smart home", "devices", "automation"},
		Voice:        agents.VoiceProfile{Voice: "echo", Rate: 1.0, Pitch: 0.95, Style: "calm"},
		SystemPrompt: DefaultSystemPrompt,
	}
}

var suggestions = agents.SuggestionSet{
	Rules: []agents.SuggestionRule{
		{Keywords: []string{"light", "lamp"}, Suggestions: []string{"Dim the lights", "Make the lights blue", "Turn off the lights"}},
		{Keywords: []string{"thermostat", "temperature", "heat"}, Suggestions: []string{"Set the thermostat to 70", "Make it warmer", "What's the temperature?"}},
		{Keywords: []string{"door", "lock"}, Suggestions: []string{"Is the front door locked?", "Unlock the door", "Lock all doors"}},
	},
	Default: []string{"Turn on the lights", "Set the thermostat to 72", "Lock the front door"},
}

func New(cfg Config) *Agent {
	return &Agent{agents.NewPersona(agents.PersonaConfig{
		Descriptor:  Descriptor(),
		Suggestions: suggestions,
		Compose: func(*agents.Request) string {
			return "I can control your lights, thermostat, locks, TV, blinds, fans and speakers. Which device?"
		},
		Provider: cfg.Provider,
		Logger:   cfg.Logger,
		Now:      cfg.Now,
	})}
}

func (a *Agent) ProcessMessage(ctx context.Context, req *agents.Request) *agents.Response {
	return a.Handle(ctx, req, a.detect)
}

func (a *Agent) detect(ctx context.Context, req *agents.Request) (*agents.Response, error) {
	lower := strings.ToLower(req.Text)

	device, ok := FindDevice(lower)
	if !ok {
		text, err := a.Reply(ctx, req)
		if err != nil {
			return nil, err
		}
		return &agents.Response{Text: text, NewTopic: agents.HomeAutomation}, nil
	}

	name, ok := device.FindAction(lower)
	if !ok {
		return &agents.Response{
			Text: fmt.Sprintf("Let me check the %s for you.", device.ID),
			Actions: []agents.ActionRequest{{
				Type:    ActionDeviceInfo,
				Payload: map[string]any{"device": device.ID},
			}},
			NewTopic: agents.HomeAutomation,
		}, nil
	}

	params := device.ExtractParameters(lower)
	return &agents.Response{
		Text: confirm(device.ID, name, params),
		Actions: []agents.ActionRequest{{
			Type: ActionDeviceControl,
			Payload: map[string]any{
				"device":     device.ID,
				"action":     name,
				"parameters": params,
			},
		}},
		NewTopic: agents.HomeAutomation,
	}, nil
}

func confirm(device, action string, params []string) string {
	if len(params) == 0 {
		return fmt.Sprintf("Okay, I'll %s the %s.", action, device)
	}
	return fmt.Sprintf("Okay, I'll %s the %s to %s.", action, device, params[0])
}

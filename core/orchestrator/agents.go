package orchestrator

import (
	"log/slog"
	"time"

	"github.com/adalundhe/parley/agents/general"
	"github.com/adalundhe/parley/agents/home"
	"github.com/adalundhe/parley/agents/research"
	"github.com/adalundhe/parley/agents/task"
	"github.com/adalundhe/parley/core/agents"
	"github.com/adalundhe/parley/core/providers"
	"github.com/adalundhe/parley/core/skills"
)

// AgentsConfig is shared by every variant built by StandardAgents.
type AgentsConfig struct {
	Skills   *skills.Registry
	Provider providers.Provider
	Logger   *slog.Logger
	Now      func() time.Time
}

// StandardAgents builds a registry holding one instance of each variant.
// Agents keep no per-user state, so one registry can serve every session.
func StandardAgents(cfg AgentsConfig) *agents.Registry {
	return agents.NewRegistry(
		general.New(general.Config{Provider: cfg.Provider, Logger: cfg.Logger, Now: cfg.Now}),
		research.New(research.Config{Provider: cfg.Provider, Logger: cfg.Logger, Now: cfg.Now}),
		task.New(task.Config{Skills: cfg.Skills, Provider: cfg.Provider, Logger: cfg.Logger, Now: cfg.Now}),
		home.New(home.Config{Provider: cfg.Provider, Logger: cfg.Logger, Now: cfg.Now}),
	)
}

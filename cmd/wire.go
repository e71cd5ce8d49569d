package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/adalundhe/parley/core/agents"
	"github.com/adalundhe/parley/core/config"
	"github.com/adalundhe/parley/core/credentials"
	"github.com/adalundhe/parley/core/events"
	"github.com/adalundhe/parley/core/intent"
	"github.com/adalundhe/parley/core/offline"
	"github.com/adalundhe/parley/core/orchestrator"
	"github.com/adalundhe/parley/core/providers"
	coreskills "github.com/adalundhe/parley/core/skills"
	"github.com/adalundhe/parley/core/storage"
	"github.com/adalundhe/parley/core/storage/redisstore"
	"github.com/adalundhe/parley/core/storage/sqlitestore"
	"github.com/adalundhe/parley/skills"
)

// runtime is everything a command needs, built from configuration.
type runtime struct {
	cfg     *config.Config
	dirs    *storage.Dirs
	logger  *slog.Logger
	backend storage.Backend
	bus     *events.Bus
	skills  *coreskills.Registry
	agents  *agents.Registry
	pool    *orchestrator.Pool
	monitor offline.Monitor
	offline *offline.Handler
	user    string

	closers []func() error
}

// loadConfig layers config files and fills secrets from the credential
// store.
func loadConfig(dirs *storage.Dirs, logger *slog.Logger) (*config.Config, error) {
	mgr := config.NewManager(dirs, projectRoot, logger)
	if err := mgr.Load(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := mgr.Get()
	if creds, err := credentials.NewManager(dirs, ""); err == nil {
		creds.Fill(cfg)
	} else {
		logger.Debug("credential store unavailable", "error", err)
	}
	return cfg, nil
}

func buildRuntime(ctx context.Context) (*runtime, error) {
	logger := slog.Default()
	dirs := storage.ResolveDirs()

	cfg, err := loadConfig(dirs, logger)
	if err != nil {
		return nil, err
	}
	applyConfigLevel(cfg.Log.Level)

	rt := &runtime{cfg: cfg, dirs: dirs, logger: logger, user: userID}
	if rt.user == "" {
		rt.user = cfg.Memory.DefaultUser
	}

	if rt.backend, err = openBackend(ctx, cfg.Storage, dirs); err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, rt.backend.Close)

	rt.bus = events.NewBus(0, logger)
	rt.bus.Start()
	rt.closers = append(rt.closers, func() error { rt.bus.Close(); return nil })

	if err := rt.buildSkills(); err != nil {
		rt.Close()
		return nil, err
	}
	if err := rt.buildAgents(); err != nil {
		rt.Close()
		return nil, err
	}
	rt.buildOffline(ctx)
	return rt, nil
}

func openBackend(ctx context.Context, sc config.StorageConfig, dirs *storage.Dirs) (storage.Backend, error) {
	var backend storage.Backend
	switch sc.Backend {
	case config.BackendMemory:
		return storage.NewMemoryBackend(), nil
	case config.BackendRedis:
		store, err := redisstore.Open(ctx, redisstore.Config{
			Addr:     sc.Redis.Addr,
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
			Prefix:   sc.Redis.Prefix,
		})
		if err != nil {
			return nil, err
		}
		backend = store
	default:
		path := sc.SQLitePath
		if path == "" {
			path = dirs.DatabasePath()
		}
		store, err := sqlitestore.Open(path)
		if err != nil {
			return nil, err
		}
		backend = store
	}

	if !sc.Cache.Enabled {
		return backend, nil
	}
	cached, err := storage.NewCached(backend, storage.CacheConfig{MaxCost: sc.Cache.MaxCost})
	if err != nil {
		backend.Close()
		return nil, err
	}
	return cached, nil
}

func (rt *runtime) buildSkills() error {
	sc := rt.cfg.Skills
	dispatcher := coreskills.NewDispatcher(coreskills.DispatcherConfig{
		RemoteTimeout: sc.RemoteTimeout,
		RetryCount:    sc.RetryCount,
		Workflow: coreskills.WorkflowSettings{
			APIURL:  sc.Workflow.APIURL,
			APIKey:  sc.Workflow.APIKey,
			Timeout: sc.Workflow.Timeout,
		},
		Logger: rt.logger,
	})
	rt.skills = coreskills.NewRegistry(coreskills.RegistryConfig{Logger: rt.logger, Dispatcher: dispatcher})
	rt.skills.RegisterAll(coreskills.Builtins(nil)...)

	dir := sc.ManifestDir
	if dir == "" {
		dir = rt.dirs.ConfigDir("skills")
	}
	n, err := skills.RegisterDir(rt.skills, dir, rt.logger)
	if err != nil {
		return fmt.Errorf("load skill manifests: %w", err)
	}
	rt.logger.Debug("skill manifests loaded", "dir", dir, "count", n)

	orchestrator.PublishSkillEvents(rt.skills, rt.bus)
	return nil
}

func (rt *runtime) buildAgents() error {
	reg, err := providers.FromConfig(rt.cfg.Providers)
	if err != nil {
		return err
	}
	var provider providers.Provider
	if p, err := reg.Default(); err == nil {
		provider = p
	} else if !errors.Is(err, providers.ErrNoProvider) {
		return err
	}

	rt.agents = orchestrator.StandardAgents(orchestrator.AgentsConfig{
		Skills:   rt.skills,
		Provider: provider,
		Logger:   rt.logger,
	})
	rt.pool, err = orchestrator.NewPool(orchestrator.PoolConfig{
		Backend:         rt.backend,
		Agents:          rt.agents,
		Classifier:      intent.NewClassifier(nil),
		Bus:             rt.bus,
		MaxSessions:     rt.cfg.Session.MaxSessions,
		MaxKeyFacts:     rt.cfg.Memory.MaxKeyFacts,
		MaxInteractions: rt.cfg.Memory.MaxInteractions,
		Logger:          rt.logger,
	})
	if err != nil {
		return err
	}
	rt.closers = append(rt.closers, func() error { rt.pool.Close(); return nil })
	return nil
}

func (rt *runtime) buildOffline(ctx context.Context) {
	oc := rt.cfg.Offline
	switch {
	case offlineMode:
		rt.monitor = offline.NewStaticMonitor(false)
	case oc.ProbeURL != "":
		probe := offline.NewProbeMonitor(offline.ProbeConfig{
			URL:      oc.ProbeURL,
			Interval: oc.ProbeInterval,
			Logger:   rt.logger,
		})
		probe.Start(ctx)
		rt.closers = append(rt.closers, func() error { probe.Stop(); return nil })
		rt.monitor = probe
	default:
		rt.monitor = offline.NewStaticMonitor(true)
	}

	rt.offline = offline.NewHandler(offline.Config{
		Backend:       rt.backend,
		Monitor:       rt.monitor,
		Dispatch:      rt.replay,
		Bus:           rt.bus,
		UserID:        rt.user,
		DrainMode:     oc.DrainMode,
		ReplayRetries: oc.ReplayRetries,
		Logger:        rt.logger,
	})
	rt.offline.Start(ctx)
	rt.closers = append(rt.closers, func() error { rt.offline.Close(); return nil })
}

// replay routes a queued request through the same path as a live one.
func (rt *runtime) replay(ctx context.Context, action offline.PendingAction) error {
	o, err := rt.pool.Get(rt.user)
	if err != nil {
		return err
	}
	env := o.RouteMessage(ctx, action.Text, orchestrator.Session{
		Channel:  "offline-replay",
		Metadata: map[string]any{"idempotency_key": action.ID},
	})
	if env.Failed() {
		return errors.New(env.Error)
	}
	fmt.Printf("[replayed] %s\n  %s: %s\n", action.Text, env.ActiveAgent, env.Text)
	return nil
}

// session returns the orchestrator for the current user.
func (rt *runtime) session() (*orchestrator.Orchestrator, error) {
	return rt.pool.Get(rt.user)
}

// Close releases everything in reverse order of construction.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Warn("shutdown", "error", err)
		}
	}
	rt.closers = nil
}

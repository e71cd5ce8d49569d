// Package config loads layered YAML configuration and keeps it current.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/adalundhe/parley/core/storage"
)

var ErrManagerClosed = errors.New("config manager closed")

// Manager owns the active Config. Layers are applied in order: defaults,
// user config, project config, project-local config, environment.
type Manager struct {
	cfg         atomic.Pointer[Config]
	dirs        *storage.Dirs
	projectRoot string
	logger      *slog.Logger

	watchers  []func(*Config)
	watcherMu sync.RWMutex

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	watching bool
	closed   bool
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewManager(dirs *storage.Dirs, projectRoot string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		dirs:        dirs,
		projectRoot: projectRoot,
		logger:      logger,
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}
	m.cfg.Store(DefaultConfig())
	return m
}

func (m *Manager) Get() *Config {
	return m.cfg.Load()
}

// Paths lists the config files in the order they are layered.
func (m *Manager) Paths() []string {
	project := storage.ResolveProjectDirs(m.projectRoot)
	return []string{
		m.dirs.ConfigDir("config.yaml"),
		project.Config,
		filepath.Join(project.Local, "config.yaml"),
	}
}

func (m *Manager) Load() error {
	cfg := DefaultConfig()

	for _, path := range m.Paths() {
		if err := loadYAMLFile(path, cfg); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	applyEnvironment(cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	m.cfg.Store(cfg)
	m.notifyWatchers(cfg)
	return nil
}

func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

type envBinding struct {
	name  string
	apply func(cfg *Config, v string) error
}

var envBindings = []envBinding{
	{"PARLEY_LOG_LEVEL", func(c *Config, v string) error { c.Log.Level = v; return nil }},
	{"PARLEY_STORAGE_BACKEND", func(c *Config, v string) error { c.Storage.Backend = v; return nil }},
	{"PARLEY_SQLITE_PATH", func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil }},
	{"PARLEY_REDIS_ADDR", func(c *Config, v string) error { c.Storage.Redis.Addr = v; return nil }},
	{"PARLEY_REDIS_PASSWORD", func(c *Config, v string) error { c.Storage.Redis.Password = v; return nil }},
	{"PARLEY_WORKFLOW_API_URL", func(c *Config, v string) error { c.Skills.Workflow.APIURL = v; return nil }},
	{"PARLEY_WORKFLOW_API_KEY", func(c *Config, v string) error { c.Skills.Workflow.APIKey = v; return nil }},
	{"PARLEY_SKILLS_DIR", func(c *Config, v string) error { c.Skills.ManifestDir = v; return nil }},
	{"PARLEY_SKILLS_REMOTE_TIMEOUT", func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		c.Skills.RemoteTimeout = pick(err, d, c.Skills.RemoteTimeout)
		return err
	}},
	{"PARLEY_OFFLINE_PROBE_URL", func(c *Config, v string) error { c.Offline.ProbeURL = v; return nil }},
	{"PARLEY_OFFLINE_DRAIN_MODE", func(c *Config, v string) error { c.Offline.DrainMode = v; return nil }},
	{"PARLEY_MAX_SESSIONS", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		c.Session.MaxSessions = pick(err, n, c.Session.MaxSessions)
		return err
	}},
	{"PARLEY_PROVIDER", func(c *Config, v string) error { c.Providers.Default = v; return nil }},
	{"ANTHROPIC_API_KEY", func(c *Config, v string) error { c.Providers.Anthropic.APIKey = v; return nil }},
	{"OPENAI_API_KEY", func(c *Config, v string) error { c.Providers.OpenAI.APIKey = v; return nil }},
}

func pick[T any](err error, parsed, fallback T) T {
	if err != nil {
		return fallback
	}
	return parsed
}

// applyEnvironment ignores malformed values and keeps the file setting.
func applyEnvironment(cfg *Config) {
	for _, b := range envBindings {
		if v := os.Getenv(b.name); v != "" {
			_ = b.apply(cfg, v)
		}
	}
}

func (m *Manager) OnChange(fn func(*Config)) {
	m.watcherMu.Lock()
	m.watchers = append(m.watchers, fn)
	m.watcherMu.Unlock()
}

func (m *Manager) notifyWatchers(cfg *Config) {
	m.watcherMu.RLock()
	watchers := m.watchers
	m.watcherMu.RUnlock()

	for _, fn := range watchers {
		fn(cfg)
	}
}

func (m *Manager) Reload() error {
	return m.Load()
}

// Watch reloads the config whenever one of its files changes. Reload errors
// are logged and the previous config stays active.
func (m *Manager) Watch(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	if m.watching {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	watched := make(map[string]bool)
	for _, path := range m.Paths() {
		dir := filepath.Dir(path)
		if watched[dir] {
			continue
		}
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := w.Add(dir); err != nil {
			w.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		watched[dir] = true
	}

	m.watcher = w
	m.watching = true
	go m.watchLoop(ctx)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context) {
	defer close(m.doneChan)

	paths := make(map[string]bool)
	for _, p := range m.Paths() {
		paths[filepath.Clean(p)] = true
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if !paths[filepath.Clean(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := m.Load(); err != nil {
				m.logger.Warn("config reload failed", "path", event.Name, "error", err)
				continue
			}
			m.logger.Info("config reloaded", "path", event.Name)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	watching := m.watching
	m.mu.Unlock()

	close(m.stopChan)
	if !watching {
		return nil
	}
	<-m.doneChan
	return m.watcher.Close()
}

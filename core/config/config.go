package config

import (
	"fmt"
	"time"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Offline queue drain modes.
const (
	DrainPerItem      = "per_item"
	DrainAllOrNothing = "all_or_nothing"
)

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Storage   StorageConfig   `yaml:"storage"`
	Skills    SkillsConfig    `yaml:"skills"`
	Memory    MemoryConfig    `yaml:"memory"`
	Offline   OfflineConfig   `yaml:"offline"`
	Providers ProvidersConfig `yaml:"providers"`
	Session   SessionConfig   `yaml:"session"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type StorageConfig struct {
	Backend    string      `yaml:"backend"`
	SQLitePath string      `yaml:"sqlite_path"`
	Redis      RedisConfig `yaml:"redis"`
	Cache      CacheConfig `yaml:"cache"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type CacheConfig struct {
	Enabled bool  `yaml:"enabled"`
	MaxCost int64 `yaml:"max_cost"`
}

type SkillsConfig struct {
	RemoteTimeout time.Duration  `yaml:"remote_timeout"`
	RetryCount    int            `yaml:"retry_count"`
	ManifestDir   string         `yaml:"manifest_dir"`
	Workflow      WorkflowConfig `yaml:"workflow"`
}

// WorkflowConfig is the process-wide webhook integration. Leaving either
// field empty disables ExternalWorkflow skills.
type WorkflowConfig struct {
	APIURL  string        `yaml:"api_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// Enabled reports whether both endpoint and key are present.
func (w WorkflowConfig) Enabled() bool {
	return w.APIURL != "" && w.APIKey != ""
}

type MemoryConfig struct {
	MaxKeyFacts     int    `yaml:"max_key_facts"`
	MaxInteractions int    `yaml:"max_interactions"`
	DefaultUser     string `yaml:"default_user"`
}

type OfflineConfig struct {
	ProbeURL      string        `yaml:"probe_url"`
	ProbeInterval time.Duration `yaml:"probe_interval"`
	DrainMode     string        `yaml:"drain_mode"`
	ReplayRetries int           `yaml:"replay_retries"`
}

type ProvidersConfig struct {
	Default   string         `yaml:"default"`
	Anthropic ProviderConfig `yaml:"anthropic"`
	OpenAI    ProviderConfig `yaml:"openai"`
}

type ProviderConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
	BaseURL   string `yaml:"base_url"`
}

type SessionConfig struct {
	MaxSessions int `yaml:"max_sessions"`
}

func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Storage: StorageConfig{
			Backend: BackendSQLite,
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "parley:"},
			Cache:   CacheConfig{Enabled: true, MaxCost: 32 << 20},
		},
		Skills: SkillsConfig{
			RemoteTimeout: 10 * time.Second,
			RetryCount:    2,
			Workflow:      WorkflowConfig{Timeout: 10 * time.Second},
		},
		Memory: MemoryConfig{
			MaxKeyFacts:     50,
			MaxInteractions: 20,
		},
		Offline: OfflineConfig{
			ProbeInterval: 15 * time.Second,
			DrainMode:     DrainPerItem,
			ReplayRetries: 2,
		},
		Providers: ProvidersConfig{
			Anthropic: ProviderConfig{Model: "claude-sonnet-4-20250514", MaxTokens: 512},
			OpenAI:    ProviderConfig{Model: "gpt-4o-mini", MaxTokens: 512},
		},
		Session: SessionConfig{MaxSessions: 256},
	}
}

// Validate rejects values the runtime cannot work with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend)
	}
	switch c.Offline.DrainMode {
	case DrainPerItem, DrainAllOrNothing:
	default:
		return fmt.Errorf("offline.drain_mode: unknown mode %q", c.Offline.DrainMode)
	}
	if c.Memory.MaxKeyFacts <= 0 {
		return fmt.Errorf("memory.max_key_facts must be positive")
	}
	if c.Skills.RemoteTimeout <= 0 {
		return fmt.Errorf("skills.remote_timeout must be positive")
	}
	switch c.Providers.Default {
	case "", "anthropic", "openai":
	default:
		return fmt.Errorf("providers.default: unknown provider %q", c.Providers.Default)
	}
	return nil
}

package providers

import (
	"errors"
	"fmt"
	"time"
)

var ErrMissingAPIKey = errors.New("api_key is required")

// BaseConfig contains configuration common to all providers
type BaseConfig struct {
	APIKey      string        `json:"api_key" yaml:"api_key"`
	Model       string        `json:"model" yaml:"model"`
	MaxTokens   int           `json:"max_tokens" yaml:"max_tokens"`
	Temperature float64       `json:"temperature" yaml:"temperature"`
	BaseURL     string        `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
	MaxRetries  int           `json:"max_retries" yaml:"max_retries"`
}

func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		MaxTokens:   512,
		Temperature: 0.7,
		Timeout:     30 * time.Second,
		MaxRetries:  2,
	}
}

func (c *BaseConfig) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	return nil
}

func (c *BaseConfig) fillDefaults(model string) {
	d := DefaultBaseConfig()
	if c.Model == "" {
		c.Model = model
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = d.MaxRetries
	}
}

type AnthropicConfig struct {
	BaseConfig `json:",inline" yaml:",inline"`
}

const DefaultAnthropicModel = "claude-sonnet-4-20250514"

func (c *AnthropicConfig) Validate() error {
	if err := c.BaseConfig.Validate(); err != nil {
		return fmt.Errorf("anthropic config: %w", err)
	}
	return nil
}

type OpenAIConfig struct {
	BaseConfig `json:",inline" yaml:",inline"`

	Organization string `json:"organization,omitempty" yaml:"organization,omitempty"`
}

const DefaultOpenAIModel = "gpt-4o-mini"

func (c *OpenAIConfig) Validate() error {
	if err := c.BaseConfig.Validate(); err != nil {
		return fmt.Errorf("openai config: %w", err)
	}
	return nil
}

// ProviderType identifies the provider
type ProviderType string

const (
	ProviderTypeAnthropic ProviderType = "anthropic"
	ProviderTypeOpenAI    ProviderType = "openai"
)

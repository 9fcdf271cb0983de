package generate

import (
	"fmt"
	"time"
)

// ProviderOpenAI is the only supported provider.
const ProviderOpenAI = "openai"

// Defaults applied by Config.withDefaults.
const (
	DefaultModel           = "gpt-5"
	DefaultBaseURL         = "https://api.openai.com/v1"
	DefaultTimeout         = 60 * time.Second
	DefaultMaxOutputTokens = 256
	DefaultToolName        = "sql_query"
)

// Config configures the model client.
type Config struct {
	Provider        string        `koanf:"provider"`
	APIKey          string        `koanf:"api_key"`
	Model           string        `koanf:"model"`
	BaseURL         string        `koanf:"base_url"`
	Timeout         time.Duration `koanf:"timeout"`
	MaxOutputTokens int           `koanf:"max_output_tokens"`
	ToolName        string        `koanf:"tool_name"`
}

// UnsupportedError reports an unknown generator provider.
type UnsupportedError struct {
	Provider string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported generator provider %q (supported: %s)", e.Provider, ProviderOpenAI)
}

func (c Config) withDefaults() Config {
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxOutputTokens <= 0 {
		c.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if c.ToolName == "" {
		c.ToolName = DefaultToolName
	}
	return c
}

// Validate checks the provider and the credentials.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.Provider != ProviderOpenAI {
		return &UnsupportedError{Provider: c.Provider}
	}
	if c.APIKey == "" {
		return ErrNotConfigured
	}
	return nil
}

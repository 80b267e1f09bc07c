package config

import (
	"fmt"
	"os"
	"time"
)

// EmbeddingConfig selects and configures the image embedding model.
type EmbeddingConfig struct {
	Name       string        `mapstructure:"name"`
	Provider   string        `mapstructure:"provider"` // "local" or "jina"
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api_key"`
	APIKeyEnv  string        `mapstructure:"api_key_env"`
	BaseURL    string        `mapstructure:"base_url"`
	Dimensions int           `mapstructure:"dimensions"`
	InputSize  int           `mapstructure:"input_size"` // square model input edge in pixels
	Workers    int           `mapstructure:"workers"`    // concurrent forward passes
	Timeout    time.Duration `mapstructure:"timeout"`
}

// ResolveEnvVars fills APIKey from APIKeyEnv when it was not set directly.
func (c *EmbeddingConfig) ResolveEnvVars() {
	if c.APIKeyEnv != "" && c.APIKey == "" {
		c.APIKey = os.Getenv(c.APIKeyEnv)
	}
}

// Validate returns an error describing the first validation failure, or nil.
func (c *EmbeddingConfig) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("embedding %q: provider is required", c.Name)
	}
	if c.Model == "" {
		return fmt.Errorf("embedding %q: model is required", c.Name)
	}
	if c.Dimensions <= 0 {
		return fmt.Errorf("embedding %q: dimensions must be positive", c.Name)
	}
	if c.InputSize <= 0 {
		return fmt.Errorf("embedding %q: input_size must be positive", c.Name)
	}

	switch c.Provider {
	case "local":
		if c.Dimensions%3 != 0 {
			return fmt.Errorf("embedding %q: local provider needs dimensions divisible by 3", c.Name)
		}
	case "jina":
		if c.APIKey == "" {
			return fmt.Errorf("embedding %q: api_key is required (set directly or via %s)", c.Name, c.APIKeyEnv)
		}
	default:
		return fmt.Errorf("embedding %q: unknown provider %q", c.Name, c.Provider)
	}
	return nil
}

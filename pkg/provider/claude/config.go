package claude

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

const (
	defaultModel          = "claude-sonnet-4-5"
	defaultThinkingBudget = 8192
)

type Config struct {
	ConfigName       string `toml:"name"`
	Model            string `toml:"model"`
	BaseURL          string `toml:"base_url"`
	APIKey           string `toml:"api_key"`
	APIKeyFromEnv    string `toml:"api_key_env"`
	AnthropicVersion string `toml:"anthropic_version"`
	MaxTokens        int    `toml:"max_tokens"`
	// ThinkingBudget of zero disables extended thinking.
	ThinkingBudget int `toml:"thinking_budget"`
}

func (c *Config) Name() string {
	return c.ConfigName
}

func (c *Config) model() string {
	if c.Model == "" {
		return defaultModel
	}
	return c.Model
}

func (c *Config) apiKey(getenv func(string) string) (string, error) {
	if c.APIKey != "" {
		return c.APIKey, nil
	}
	if c.APIKeyFromEnv == "" {
		return "", fmt.Errorf("either api_key or api_key_env must be specified")
	}
	apiKey := getenv(c.APIKeyFromEnv)
	if apiKey == "" {
		return "", fmt.Errorf("env variable %s not defined", c.APIKeyFromEnv)
	}
	return apiKey, nil
}

func ParseConfig(data []byte) (*Config, error) {
	config := *DefaultConfig()
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

func DefaultConfig() *Config {
	return &Config{
		BaseURL:          "https://api.anthropic.com/",
		APIKeyFromEnv:    "ANTHROPIC_API_KEY",
		AnthropicVersion: "2023-06-01",
		MaxTokens:        32768,
		ThinkingBudget:   defaultThinkingBudget,
	}
}

package openai

import (
	"encoding/json"
	"fmt"

	"github.com/jmuk/sleek/pkg/tools"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/responses"
)

const defaultModel = "gpt-5"

type Config struct {
	ConfigName    string `toml:"name"`
	BaseURL       string `toml:"base_url"`
	APIKey        string `toml:"api_key"`
	APIKeyFromEnv string `toml:"api_key_env"`
	Model         string `toml:"model"`
	// ReasoningEffort is sent only when set; non-reasoning models reject it.
	ReasoningEffort string `toml:"reasoning_effort"`
	MaxOutputTokens int64  `toml:"max_output_tokens"`
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

func (c *Config) requestOptions(getenv func(string) string) ([]option.RequestOption, error) {
	opts := []option.RequestOption{option.WithEnvironmentProduction()}
	if c.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.BaseURL))
	}
	switch {
	case c.APIKey != "":
		opts = append(opts, option.WithAPIKey(c.APIKey))
	case c.APIKeyFromEnv != "":
		apikey := getenv(c.APIKeyFromEnv)
		if apikey == "" {
			return nil, fmt.Errorf("environment variable %s not found", c.APIKeyFromEnv)
		}
		opts = append(opts, option.WithAPIKey(apikey))
	default:
		return nil, fmt.Errorf("either api_key or api_key_env must be specified")
	}
	return opts, nil
}

func convertToolDef(d tools.ToolDefinition) (responses.ToolUnionParam, error) {
	encoded, err := json.Marshal(d.RequestSchema())
	if err != nil {
		return responses.ToolUnionParam{}, err
	}
	parameters := map[string]any{}
	if err := json.Unmarshal(encoded, &parameters); err != nil {
		return responses.ToolUnionParam{}, err
	}
	return responses.ToolUnionParam{
		OfFunction: &responses.FunctionToolParam{
			Parameters:  parameters,
			Name:        d.Name(),
			Description: param.NewOpt(d.Description()),
			Strict:      param.NewOpt(false),
			Type:        "function",
		},
	}, nil
}

func DefaultConfig() *Config {
	return &Config{APIKeyFromEnv: "OPENAI_API_KEY"}
}

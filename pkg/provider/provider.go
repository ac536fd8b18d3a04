// Package provider builds model backends from their config entries.
package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BurntSushi/toml"
	"github.com/jmuk/sleek/pkg/agent"
	"github.com/jmuk/sleek/pkg/config"
	"github.com/jmuk/sleek/pkg/provider/claude"
	"github.com/jmuk/sleek/pkg/provider/gemini"
	"github.com/jmuk/sleek/pkg/provider/openai"
	"github.com/jmuk/sleek/pkg/tools"
	"google.golang.org/genai"
)

type Type string

const (
	TypeGemini Type = "gemini"
	TypeClaude Type = "claude"
	TypeOpenAI Type = "openai"
)

// Config is the decoded form of one backend entry.
type Config interface {
	Name() string
}

// ConfigFrom decodes a raw backend entry into the config type named by its
// "type" field.
func ConfigFrom(m map[string]any) (Config, error) {
	mtData, ok := m["type"]
	if !ok {
		return nil, fmt.Errorf("missing field type for backend config")
	}
	mtStr, ok := mtData.(string)
	if !ok {
		return nil, fmt.Errorf("type mismatch for type field: want string got %T", mtData)
	}
	marshaled, err := toml.Marshal(m)
	if err != nil {
		return nil, err
	}
	switch Type(mtStr) {
	case TypeGemini:
		c := &gemini.Config{}
		if err := toml.Unmarshal(marshaled, c); err != nil {
			return nil, err
		}
		return c, nil
	case TypeClaude:
		return claude.ParseConfig(marshaled)
	case TypeOpenAI:
		c := openai.DefaultConfig()
		if err := toml.Unmarshal(marshaled, c); err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown backend type %s", mtStr)
}

func newProvider(ctx context.Context, c Config) (agent.Provider, error) {
	var p agent.Provider
	var err error
	switch c := c.(type) {
	case *gemini.Config:
		p, err = gemini.New(ctx, c)
	case *claude.Config:
		p, err = claude.New(c)
	case *openai.Config:
		p, err = openai.New(c)
	default:
		return nil, fmt.Errorf("unsupported backend config %T", c)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// New creates the provider of the backend called name.
func New(ctx context.Context, c *config.Config, name string) (agent.Provider, error) {
	raw, err := c.BackendConfig(name)
	if err != nil {
		return nil, err
	}
	bc, err := ConfigFrom(raw)
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", name, err)
	}
	return newProvider(ctx, bc)
}

func geminiClient(ctx context.Context, c *config.Config, name string) (*genai.Client, error) {
	raw, err := c.BackendConfig(name)
	if err != nil {
		return nil, err
	}
	bc, err := ConfigFrom(raw)
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", name, err)
	}
	gc, ok := bc.(*gemini.Config)
	if !ok {
		return nil, fmt.Errorf("backend %s is not a gemini backend", name)
	}
	return gc.NewClient(ctx)
}

// NewPlanner returns nil when planning is disabled.
func NewPlanner(ctx context.Context, c *config.Config) (agent.Planner, error) {
	if !c.Planner.Enabled {
		return nil, nil
	}
	client, err := geminiClient(ctx, c, c.Planner.Backend)
	if err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}
	return gemini.NewPlanner(client, c.Planner.Model), nil
}

// NewImageSource chains the configured image API, Imagen and stock photos, in
// that order. Sources that cannot be set up are left out.
func NewImageSource(ctx context.Context, c *config.Config, logger *slog.Logger) tools.ImageChain {
	var chain tools.ImageChain
	if c.Images.APIURL != "" {
		chain = append(chain, &tools.HTTPImageSource{URL: c.Images.APIURL})
	}
	if c.Images.Backend != "" {
		client, err := geminiClient(ctx, c, c.Images.Backend)
		if err != nil {
			logger.Warn("Imagen disabled", "backend", c.Images.Backend, "error", err)
		} else {
			chain = append(chain, gemini.NewImageSource(client, c.Images.Model))
		}
	}
	return append(chain, tools.PicsumSource{})
}

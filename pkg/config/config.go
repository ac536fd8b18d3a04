package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

var ErrBackendNotFound = errors.New("backend config not found")

// Duration is a time.Duration written as "30s" in the config file.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

type AgentConfig struct {
	MaxSteps        int      `toml:"max_steps"`
	MaxDuration     Duration `toml:"max_duration"`
	PreviewInterval Duration `toml:"preview_interval"`
	// Instructions names a file with extra system prompt text.
	Instructions string `toml:"instructions,omitempty"`
}

type PlannerConfig struct {
	Enabled bool `toml:"enabled"`
	// Backend names a gemini backend whose credentials the planner uses.
	Backend string `toml:"backend,omitempty"`
	Model   string `toml:"model"`
}

type ImagesConfig struct {
	APIURL string `toml:"api_url,omitempty"`
	// Backend names a gemini backend used for Imagen; empty disables it.
	Backend string `toml:"backend,omitempty"`
	Model   string `toml:"model"`
}

type Config struct {
	Backend  string     `toml:"backend"`
	LogLevel slog.Level `toml:"loglevel"`

	// Backends are decoded by the provider named in each entry's "type".
	Backends []map[string]any `toml:"backends"`

	Agent   AgentConfig   `toml:"agent"`
	Planner PlannerConfig `toml:"planner"`
	Images  ImagesConfig  `toml:"images"`
	MCP     []MCPConfig   `toml:"mcp,omitempty"`
}

func Default() *Config {
	return &Config{
		Backend:  "gemini",
		LogLevel: slog.LevelInfo,
		Backends: []map[string]any{
			{"type": "gemini", "name": "gemini", "model": "gemini-3-pro-preview"},
			{"type": "claude", "name": "claude", "model": "claude-sonnet-4-5"},
			{"type": "openai", "name": "openai", "model": "gpt-5"},
		},
		Agent: AgentConfig{
			MaxSteps:        10,
			MaxDuration:     Duration{30 * time.Second},
			PreviewInterval: Duration{120 * time.Millisecond},
		},
		Planner: PlannerConfig{
			Enabled: true,
			Backend: "gemini",
			Model:   "gemini-2.0-flash",
		},
		Images: ImagesConfig{
			Backend: "gemini",
			Model:   "imagen-3.0-fast-generate-001",
		},
	}
}

// BackendConfig returns the raw entry of the backend called name.
func (c *Config) BackendConfig(name string) (map[string]any, error) {
	for _, b := range c.Backends {
		if n, _ := b["name"].(string); n == name {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrBackendNotFound, name)
}

func (c *Config) BackendNames() []string {
	names := make([]string, 0, len(c.Backends))
	for _, b := range c.Backends {
		if n, ok := b["name"].(string); ok {
			names = append(names, n)
		}
	}
	return names
}

// ApplyEnv fills settings left empty from the environment.
func (c *Config) ApplyEnv() {
	if c.Images.APIURL == "" {
		c.Images.APIURL = os.Getenv("IMAGE_GEN_API_URL")
	}
	if c.Agent.MaxSteps <= 0 {
		c.Agent.MaxSteps = 10
	}
	if c.Agent.MaxDuration.Duration <= 0 {
		c.Agent.MaxDuration.Duration = 30 * time.Second
	}
	if c.Agent.PreviewInterval.Duration <= 0 {
		c.Agent.PreviewInterval.Duration = 120 * time.Millisecond
	}
}

// DefaultPath is config.toml in the user config dir.
func DefaultPath() (string, error) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userConfigDir, "sleek", "config.toml"), nil
}

// Load reads the config at path, writing the defaults there first when the
// file does not exist, and applies environment fallbacks.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv()
	return c, nil
}

func read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		c := Default()
		if err := Save(path, c); err != nil {
			return nil, err
		}
		return c, nil
	} else if err != nil {
		return nil, err
	}

	c := Default()
	c.Backends = nil
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return c, nil
}

func Save(path string, c *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Edit loads the config at path, applies fn and writes it back.
func Edit(path string, fn func(*Config) error) error {
	c, err := read(path)
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		return err
	}
	return Save(path, c)
}

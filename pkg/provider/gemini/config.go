package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/auth/credentials"
	"google.golang.org/genai"
)

const (
	defaultModel           = "gemini-3-pro-preview"
	defaultLocation        = "us-central1"
	defaultMaxOutputTokens = 32768
	cloudPlatformScope     = "https://www.googleapis.com/auth/cloud-platform"
)

var ErrNoAuth = errors.New("GenAI auth not configured. Set GOOGLE_CLOUD_PROJECT (and optionally GOOGLE_CLIENT_EMAIL + GOOGLE_PRIVATE_KEY) for Vertex, or GEMINI_API_KEY for Gemini API")

type Config struct {
	ConfigName      string `toml:"name"`
	Model           string `toml:"model"`
	APIKey          string `toml:"api_key,omitempty"`
	Backend         string `toml:"backend,omitempty"`
	Project         string `toml:"project,omitempty"`
	Location        string `toml:"location,omitempty"`
	MaxOutputTokens int32  `toml:"max_output_tokens,omitempty"`
	// StreamArgs asks the model to stream function call arguments.
	StreamArgs      bool `toml:"stream_args,omitempty"`
	ExcludeThoughts bool `toml:"exclude_thoughts,omitempty"`
}

func (c *Config) Name() string {
	return c.ConfigName
}

func firstEnv(getenv func(string) string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

// serviceAccountJSON builds a service account key from GOOGLE_CLIENT_EMAIL
// and GOOGLE_PRIVATE_KEY.
func serviceAccountJSON(getenv func(string) string) ([]byte, bool) {
	email := getenv("GOOGLE_CLIENT_EMAIL")
	key := getenv("GOOGLE_PRIVATE_KEY")
	if email == "" || key == "" {
		return nil, false
	}
	data, err := json.Marshal(map[string]string{
		"type":           "service_account",
		"client_email":   email,
		"private_key":    strings.ReplaceAll(key, `\n`, "\n"),
		"private_key_id": getenv("GOOGLE_PRIVATE_KEY_ID"),
		"token_uri":      "https://oauth2.googleapis.com/token",
	})
	if err != nil {
		return nil, false
	}
	return data, true
}

// clientConfig resolves the backend and credentials. Settings missing from
// the config file come from the environment; a project selects Vertex AI.
func (c *Config) clientConfig(getenv func(string) string) (*genai.ClientConfig, error) {
	cc := &genai.ClientConfig{
		APIKey:   c.APIKey,
		Project:  strings.TrimSpace(c.Project),
		Location: c.Location,
	}
	if cc.APIKey == "" {
		cc.APIKey = firstEnv(getenv, "GEMINI_API_KEY", "GOOGLE_GENERATIVE_AI_API_KEY", "GOOGLE_API_KEY")
	}
	if cc.Project == "" {
		cc.Project = firstEnv(getenv, "GOOGLE_CLOUD_PROJECT", "GOOGLE_VERTEX_PROJECT")
	}
	if cc.Location == "" {
		cc.Location = firstEnv(getenv, "GOOGLE_CLOUD_LOCATION", "GOOGLE_VERTEX_LOCATION")
	}
	if cc.Location == "" {
		cc.Location = defaultLocation
	}

	// Accepts genai's names ("BackendVertexAI") as well as "vertex" and
	// "gemini".
	backend := strings.ToLower(strings.TrimPrefix(c.Backend, "Backend"))
	switch {
	case backend == "vertexai" || backend == "vertex":
		cc.Backend = genai.BackendVertexAI
	case backend == "geminiapi" || backend == "gemini":
		cc.Backend = genai.BackendGeminiAPI
	case backend != "":
		return nil, fmt.Errorf("unknown gemini backend %q", c.Backend)
	case cc.Project != "":
		cc.Backend = genai.BackendVertexAI
	case cc.APIKey != "":
		cc.Backend = genai.BackendGeminiAPI
	default:
		return nil, ErrNoAuth
	}

	if cc.Backend == genai.BackendVertexAI {
		// Vertex authenticates with credentials, not the API key.
		cc.APIKey = ""
		if cc.Project == "" {
			return nil, ErrNoAuth
		}
	} else {
		cc.Project = ""
		cc.Location = ""
		if cc.APIKey == "" {
			return nil, ErrNoAuth
		}
	}
	return cc, nil
}

// NewClient creates a genai client for c.
func (c *Config) NewClient(ctx context.Context) (*genai.Client, error) {
	cc, err := c.clientConfig(os.Getenv)
	if err != nil {
		return nil, err
	}
	if cc.Backend == genai.BackendVertexAI {
		if data, ok := serviceAccountJSON(os.Getenv); ok {
			creds, err := credentials.DetectDefault(&credentials.DetectOptions{
				Scopes:          []string{cloudPlatformScope},
				CredentialsJSON: data,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to load service account credentials: %w", err)
			}
			cc.Credentials = creds
		}
	}
	return genai.NewClient(ctx, cc)
}

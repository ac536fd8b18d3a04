package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/jmuk/sleek/pkg/config"
	"github.com/jmuk/sleek/pkg/session"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type headerRoundTripper struct {
	headers http.Header
	next    http.RoundTripper
}

func (rt *headerRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	for k, v := range rt.headers {
		if _, ok := r.Header[k]; !ok {
			r.Header[k] = v
		}
	}
	return rt.next.RoundTrip(r)
}

// MCP contributes the tools of one MCP server.
type MCP struct {
	name      string
	client    *mcp.Client
	transport func() mcp.Transport

	mu   sync.Mutex
	sess *mcp.ClientSession
}

// NewMCP returns a manager for the server described by c, or nil when c names
// neither a command nor an endpoint.
func NewMCP(c config.MCPConfig) *MCP {
	switch {
	case len(c.Command) > 0:
		return newMCP(c.Name, func() mcp.Transport {
			return &mcp.CommandTransport{Command: exec.Command(c.Command[0], c.Command[1:]...)}
		})
	case c.Endpoint != "":
		client := http.DefaultClient
		if len(c.RequestHeaders) > 0 {
			h := http.Header{}
			for k, v := range c.RequestHeaders {
				h.Add(k, v)
			}
			client = &http.Client{Transport: &headerRoundTripper{headers: h, next: http.DefaultTransport}}
		}
		if c.Transport == "sse" {
			return newMCP(c.Name, func() mcp.Transport {
				return &mcp.SSEClientTransport{Endpoint: c.Endpoint, HTTPClient: client}
			})
		}
		return newMCP(c.Name, func() mcp.Transport {
			return &mcp.StreamableClientTransport{Endpoint: c.Endpoint, HTTPClient: client}
		})
	default:
		return nil
	}
}

func newMCP(name string, transport func() mcp.Transport) *MCP {
	m := &MCP{name: name, transport: transport}
	m.client = mcp.NewClient(
		&mcp.Implementation{Name: "sleek", Version: "v0.1.0"},
		&mcp.ClientOptions{LoggingMessageHandler: m.logMessage},
	)
	return m
}

func (m *MCP) logMessage(ctx context.Context, req *mcp.LoggingMessageRequest) {
	p := req.Params
	name := "mcp-" + strings.ReplaceAll(m.name, "/", "_")
	lvl := slog.LevelInfo
	switch p.Level {
	case "debug":
		lvl = slog.LevelDebug
	case "warning":
		lvl = slog.LevelWarn
	case "error", "critical", "alert", "emergency":
		lvl = slog.LevelError
	}
	session.Logger(ctx, name).Log(ctx, lvl, "server log", "logger", p.Logger, "data", p.Data)
}

func (m *MCP) connect(ctx context.Context) (*mcp.ClientSession, error) {
	transport := m.transport()
	if s, ok := session.FromContext(ctx); ok {
		logname := strings.ReplaceAll(m.name, "/", "_")
		if len(logname) > 64 {
			logname = logname[:64]
		}
		w, err := s.GetLogFile(fmt.Sprintf("mcp-%s-wire.txt", logname))
		if err != nil {
			return nil, err
		}
		transport = &mcp.LoggingTransport{Transport: transport, Writer: w}
	}
	return m.client.Connect(ctx, transport, nil)
}

func (m *MCP) session(ctx context.Context) (*mcp.ClientSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess != nil {
		return m.sess, nil
	}
	cs, err := m.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MCP server %s: %w", m.name, err)
	}
	m.sess = cs
	return cs, nil
}

func (m *MCP) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return nil
	}
	err := m.sess.Close()
	m.sess = nil
	return err
}

func (m *MCP) ToolDefs(ctx context.Context) ([]ToolDefinition, error) {
	cs, err := m.session(ctx)
	if err != nil {
		return nil, err
	}
	var results []ToolDefinition
	var cursor string
	for {
		res, err := cs.ListTools(ctx, &mcp.ListToolsParams{Cursor: cursor})
		if err != nil {
			return nil, err
		}
		for _, t := range res.Tools {
			encoded, err := json.Marshal(t.InputSchema)
			if err != nil {
				return nil, err
			}
			schema := &jsonschema.Schema{}
			if err := json.Unmarshal(encoded, schema); err != nil {
				return nil, err
			}
			results = append(results, &mcpTool{
				name:        t.Name,
				description: t.Description,
				schema:      schema,
				server:      m,
			})
		}
		if res.NextCursor == "" {
			return results, nil
		}
		cursor = res.NextCursor
	}
}

type mcpTool struct {
	name        string
	description string
	schema      *jsonschema.Schema
	server      *MCP
}

func (t *mcpTool) Name() string {
	return t.name
}

func (t *mcpTool) Description() string {
	return t.description
}

func (t *mcpTool) RequestSchema() *jsonschema.Schema {
	return t.schema
}

func (t *mcpTool) process(ctx context.Context, in map[string]any) (any, error) {
	cs, err := t.server.session(ctx)
	if err != nil {
		return nil, err
	}
	result, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: t.name, Arguments: in})
	if err != nil {
		return nil, err
	}
	texts := []string{}
	for _, content := range result.Content {
		switch c := content.(type) {
		case *mcp.TextContent:
			texts = append(texts, c.Text)
		case *mcp.ImageContent:
			texts = append(texts, fmt.Sprintf("[image %s, %d bytes]", c.MIMEType, len(c.Data)))
		case *mcp.AudioContent:
			texts = append(texts, fmt.Sprintf("[audio %s, %d bytes]", c.MIMEType, len(c.Data)))
		default:
			getLogger(ctx).Warn("Unknown MCP content", "tool", t.name, "content", content)
		}
	}
	if result.IsError {
		return nil, &ToolError{errors.New(strings.Join(texts, "\n"))}
	}
	if result.StructuredContent != nil {
		return result.StructuredContent, nil
	}
	return strings.Join(texts, "\n"), nil
}

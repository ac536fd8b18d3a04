package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/invopop/jsonschema"
	"github.com/jmuk/sleek/pkg/session"
)

var ErrUnknownTool = errors.New("unknown tool")

// ToolError is a failure the model should see as the tool's result rather
// than a failure of the request.
type ToolError struct {
	Err error
}

func (e *ToolError) Error() string {
	return e.Err.Error()
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

func toolErrorf(format string, args ...any) error {
	return &ToolError{fmt.Errorf(format, args...)}
}

type ToolDefinition interface {
	Name() string
	Description() string
	RequestSchema() *jsonschema.Schema
	process(ctx context.Context, in map[string]any) (any, error)
}

type toolDefinition[Req any, Resp any] struct {
	name        string
	description string
	proc        func(ctx context.Context, req Req) (Resp, error)
}

// NewTool defines a tool whose arguments decode into Req. The input schema is
// reflected from Req.
func NewTool[Req any, Resp any](name, description string, proc func(ctx context.Context, req Req) (Resp, error)) ToolDefinition {
	return &toolDefinition[Req, Resp]{
		name:        name,
		description: description,
		proc:        proc,
	}
}

func (d *toolDefinition[Req, Resp]) Name() string {
	return d.name
}

func (d *toolDefinition[Req, Resp]) Description() string {
	return d.description
}

func (d *toolDefinition[Req, Resp]) RequestSchema() *jsonschema.Schema {
	var t Req
	s := (&jsonschema.Reflector{
		DoNotReference: true,
		Anonymous:      true,
	}).Reflect(&t)
	s.Version = ""
	return s
}

func (d *toolDefinition[Req, Resp]) process(ctx context.Context, in map[string]any) (any, error) {
	// Might not be ideal as it copies the data.
	logger := getLogger(ctx)
	jsonIn, err := json.Marshal(in)
	if err != nil {
		logger.Error("Failed to marshal input", "tool", d.name, "error", err)
		return nil, err
	}
	var req Req
	if err := json.Unmarshal(jsonIn, &req); err != nil {
		logger.Error("Failed to unmarshal input", "tool", d.name, "error", err)
		return nil, &ToolError{fmt.Errorf("malformed arguments: %w", err)}
	}
	resp, err := d.proc(ctx, req)
	if err != nil {
		return nil, err
	}
	jsonResp, err := json.Marshal(resp)
	if err != nil {
		logger.Error("Failed to marshal output", "tool", d.name, "error", err)
		return nil, err
	}
	var out any
	if err := json.Unmarshal(jsonResp, &out); err != nil {
		logger.Error("Failed to unmarshal output", "tool", d.name, "error", err)
		return nil, err
	}
	return out, nil
}

func getLogger(ctx context.Context) *slog.Logger {
	return session.Logger(ctx, "tools")
}

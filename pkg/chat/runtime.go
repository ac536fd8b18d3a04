package chat

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/jmuk/sleek/pkg/agent"
	"github.com/jmuk/sleek/pkg/config"
	"github.com/jmuk/sleek/pkg/design"
	"github.com/jmuk/sleek/pkg/provider"
	"github.com/jmuk/sleek/pkg/session"
	"github.com/jmuk/sleek/pkg/tools"
)

// Runtime is everything a request needs besides the conversation: the loop
// bound to a backend, the image sources and the MCP tools. MCP sessions live
// as long as the runtime; design tools are built for each request.
type Runtime struct {
	Loop    *agent.Loop
	Backend string

	images   tools.ImageSource
	mcpTools tools.Static
	managers []tools.Manager
}

// NewRuntime wires the backend called backend (the configured one when
// empty).
func NewRuntime(ctx context.Context, cfg *config.Config, backend string, cwd string) (*Runtime, error) {
	logger := session.Logger(ctx, "chat")
	if backend == "" {
		backend = cfg.Backend
	}
	p, err := provider.New(ctx, cfg, backend)
	if err != nil {
		return nil, err
	}
	opts := []agent.Option{
		agent.WithLogger(session.Logger(ctx, "agent")),
		agent.WithMaxSteps(cfg.Agent.MaxSteps),
		agent.WithMaxDuration(cfg.Agent.MaxDuration.Duration),
		agent.WithPreviewInterval(cfg.Agent.PreviewInterval.Duration),
	}
	planner, err := provider.NewPlanner(ctx, cfg)
	if err != nil {
		logger.Warn("Planner disabled", "error", err)
	} else if planner != nil {
		opts = append(opts, agent.WithPlanner(planner))
	}
	instructions, err := Instructions(cwd, cfg.Agent.Instructions)
	if err != nil {
		return nil, err
	}
	if instructions != "" {
		opts = append(opts, agent.WithInstructions(instructions))
	}

	mgrs := tools.NewMCPManagers(cfg.MCP)
	reg, err := tools.Collect(ctx, mgrs)
	if err != nil {
		return nil, errors.Join(err, tools.CloseAll(mgrs))
	}
	logger.Info("Runtime ready", "backend", backend, "mcp_tools", len(reg.Defs()))
	return &Runtime{
		Loop:     agent.New(p, opts...),
		Backend:  backend,
		images:   provider.NewImageSource(ctx, cfg, logger),
		mcpTools: tools.Static(reg.Defs()),
		managers: mgrs,
	}, nil
}

// registry builds the tools of one request. Design tools come first and win
// name conflicts with MCP tools.
func (r *Runtime) registry(ctx context.Context, state *design.State) (*tools.Registry, error) {
	return tools.Collect(ctx, []tools.Manager{tools.NewDesign(state, r.images), r.mcpTools})
}

// Run runs one request against state, appending the new turns to history.
func (r *Runtime) Run(ctx context.Context, state *design.State, history *[]agent.Message, input string) iter.Seq2[*agent.Event, error] {
	return func(yield func(*agent.Event, error) bool) {
		reg, err := r.registry(ctx, state)
		if err != nil {
			yield(nil, err)
			return
		}
		req := &agent.RunRequest{History: *history, State: state, Tools: reg, Input: input}
		defer func() { *history = req.History }()
		for ev, err := range r.Loop.Run(ctx, req) {
			if !yield(ev, err) {
				return
			}
		}
	}
}

func (r *Runtime) Close() error {
	if err := tools.CloseAll(r.managers); err != nil {
		return fmt.Errorf("failed to close tools: %w", err)
	}
	return nil
}

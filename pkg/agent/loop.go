package agent

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/jmuk/sleek/pkg/design"
	"github.com/jmuk/sleek/pkg/tools"
)

// ErrInference marks a failure of the model request itself. It aborts the
// whole run.
var ErrInference = errors.New("inference failed")

const (
	DefaultMaxSteps        = 10
	DefaultMaxDuration     = 30 * time.Second
	DefaultPreviewInterval = 120 * time.Millisecond
)

type Loop struct {
	provider Provider
	planner  Planner
	logger   *slog.Logger

	maxSteps        int
	maxDuration     time.Duration
	previewInterval time.Duration
	now             func() time.Time
	instructions    string
}

type Option func(*Loop)

func WithPlanner(p Planner) Option {
	return func(l *Loop) { l.planner = p }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

func WithMaxSteps(n int) Option {
	return func(l *Loop) { l.maxSteps = n }
}

func WithMaxDuration(d time.Duration) Option {
	return func(l *Loop) { l.maxDuration = d }
}

func WithPreviewInterval(d time.Duration) Option {
	return func(l *Loop) { l.previewInterval = d }
}

// WithClock replaces the clock used for preview throttling.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// WithInstructions appends custom instructions to the system prompt.
func WithInstructions(text string) Option {
	return func(l *Loop) { l.instructions = text }
}

func New(provider Provider, opts ...Option) *Loop {
	l := &Loop{
		provider:        provider,
		maxSteps:        DefaultMaxSteps,
		maxDuration:     DefaultMaxDuration,
		previewInterval: DefaultPreviewInterval,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.New(slog.DiscardHandler)
	}
	if l.maxSteps <= 0 {
		l.maxSteps = DefaultMaxSteps
	}
	return l
}

// RunRequest is the input of one run. Run appends the user input and every
// turn it produces to History, and mutates State through the tools.
type RunRequest struct {
	History []Message
	State   *design.State
	Tools   *tools.Registry
	Input   string
}

// Run drives the model until it stops calling tools, the step limit is hit,
// or the run is cancelled. Events are yielded in the order they happen; a
// run ends with a done event, or with a single error if the inference
// failed or the context was cancelled or timed out. Once ctx is done or the
// max duration has passed no further event is yielded; the only remaining
// value is (nil, ctx.Err()). Breaking out of the iteration cancels the run
// and yields nothing more.
func (l *Loop) Run(ctx context.Context, req *RunRequest) iter.Seq2[*Event, error] {
	return func(yield func(*Event, error) bool) {
		runCtx := ctx
		if l.maxDuration > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(runCtx, l.maxDuration)
			defer cancel()
		}
		runCtx, cancel := context.WithCancel(runCtx)
		defer cancel()

		r := &run{
			Loop:  l,
			req:   req,
			yield: yield,
		}
		r.cancel = cancel
		if err := r.run(runCtx); err != nil && !r.stopped {
			l.logger.Error("Run failed", "error", err)
			yield(nil, err)
		}
	}
}

type run struct {
	*Loop
	req     *RunRequest
	yield   func(*Event, error) bool
	cancel  context.CancelFunc
	stopped bool
	ctx     context.Context
}

func (r *run) emit(ev *Event) {
	if r.stopped || r.ctx.Err() != nil {
		return
	}
	if !r.yield(ev, nil) {
		r.stopped = true
		r.cancel()
	}
}

func (r *run) run(ctx context.Context) error {
	r.ctx = ctx
	req := r.req
	if req.State == nil {
		req.State = design.New()
	}
	if req.Tools == nil {
		req.Tools, _ = tools.NewRegistry(nil)
	}
	restore := req.State.Observe(func(c design.Change) {
		r.emit(frameEvent(c))
	})
	defer restore()

	r.emit(&Event{Kind: EventStatus, Status: "received"})

	var planContext string
	if r.planner != nil && req.State.IsInitial() && strings.TrimSpace(req.Input) != "" {
		plan, err := RunPlan(ctx, r.planner, req.Input, r.emit)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			r.logger.Warn("Planner failed, continuing without a plan", "error", err)
		} else {
			planContext = plan.Context()
		}
	}

	if req.Input != "" {
		req.History = append(req.History, UserText(req.Input))
	}

	throttle := NewPreviewThrottle(r.previewInterval, r.now)
	executor := NewExecutor(req.Tools, r.emit, r.logger)
	steps := 0
	for steps < r.maxSteps {
		steps++
		more, err := r.step(ctx, steps, planContext, throttle, executor)
		if err != nil {
			return err
		}
		if !more {
			break
		}
		if steps == r.maxSteps {
			r.logger.Info("Step limit reached", "steps", steps)
		}
	}
	r.emit(&Event{Kind: EventDone, Step: steps})
	return nil
}

// step runs one inference and its tool calls. It reports whether the model
// should be asked again.
func (r *run) step(ctx context.Context, n int, planContext string, throttle *PreviewThrottle, executor *Executor) (bool, error) {
	req := r.req
	system := design.SystemPrompt(req.State, planContext, r.instructions)
	asm := NewAssembler(req.State, throttle, r.emit, r.logger)
	r.logger.Info("Step started", "step", n, "messages", len(req.History))

	var text strings.Builder
	var reasoning []Part
	stream := r.provider.Stream(ctx, &Request{
		System:   system,
		Messages: req.History,
		Tools:    req.Tools.Defs(),
	})
	for chunk, err := range stream {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		if err != nil {
			return false, fmt.Errorf("%w: %w", ErrInference, err)
		}
		switch c := chunk.(type) {
		case TextChunk:
			if c.Text == "" {
				continue
			}
			text.WriteString(c.Text)
			r.emit(&Event{Kind: EventTextDelta, Text: c.Text})
		case ReasoningChunk:
			if c.Text != "" {
				r.emit(&Event{Kind: EventReasoningDelta, Text: c.Text})
			}
			reasoning = appendReasoning(reasoning, c)
		default:
			asm.Handle(chunk)
		}
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	lead := signedParts(reasoning)
	if text.Len() > 0 {
		lead = append(lead, Part{Text: text.String()})
	}
	calls := asm.Finish()
	if len(calls) == 0 {
		r.logger.Info("Step finished without tool calls", "step", n)
		if text.Len() > 0 {
			req.History = append(req.History, Message{Role: RoleAssistant, Parts: lead})
		}
		return false, nil
	}

	modelTurn, toolTurn, err := executor.Execute(ctx, calls, lead)
	if err != nil {
		return false, err
	}
	r.logger.Info("Step finished", "step", n, "calls", len(calls), "results", len(toolTurn.Parts))
	if len(toolTurn.Parts) == 0 {
		if text.Len() > 0 {
			req.History = append(req.History, Message{Role: RoleAssistant, Parts: lead})
		}
		return false, nil
	}
	req.History = append(req.History, modelTurn, toolTurn)
	r.emit(&Event{Kind: EventStepBoundary, Step: n})
	return true, nil
}

// appendReasoning extends the open thinking part. A signature closes it.
func appendReasoning(parts []Part, c ReasoningChunk) []Part {
	if len(parts) == 0 || parts[len(parts)-1].Signature != "" {
		parts = append(parts, Part{Thought: true})
	}
	last := &parts[len(parts)-1]
	last.Text += c.Text
	if c.Signature != "" {
		last.Signature = c.Signature
	}
	return parts
}

func signedParts(parts []Part) []Part {
	var signed []Part
	for _, p := range parts {
		if p.Signature != "" {
			signed = append(signed, p)
		}
	}
	return signed
}

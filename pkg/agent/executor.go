package agent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jmuk/sleek/pkg/tools"
)

const defaultToolTimeout = time.Minute

// Executor runs the completed calls of one model response in order.
type Executor struct {
	registry *tools.Registry
	emit     func(*Event)
	logger   *slog.Logger
	timeout  time.Duration
}

func NewExecutor(registry *tools.Registry, emit func(*Event), logger *slog.Logger) *Executor {
	return &Executor{
		registry: registry,
		emit:     emit,
		logger:   logger,
		timeout:  defaultToolTimeout,
	}
}

// Execute runs calls and returns the assistant turn that made them and the
// tool turn carrying their results. Calls to unknown tools are dropped from
// both turns. reasoning holds the signed thinking parts of the response,
// which lead the assistant turn. Cancellation of ctx stops execution before
// the next call and is returned as the error.
func (e *Executor) Execute(ctx context.Context, calls []*CallRecord, reasoning []Part) (Message, Message, error) {
	modelTurn := Message{Role: RoleAssistant, Parts: append([]Part(nil), reasoning...)}
	toolTurn := Message{Role: RoleTool}

	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return modelTurn, toolTurn, err
		}
		if call.Status != CallAvailable {
			continue
		}
		if !e.registry.Has(call.Name) {
			e.logger.Warn("Skipping call to unknown tool", "id", call.ID, "name", call.Name)
			continue
		}

		start := time.Now()
		result, err := e.run(ctx, call)
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return modelTurn, toolTurn, ctxErr
		}

		tr := &ToolResult{ID: call.ID, Name: call.Name}
		if err != nil {
			call.Status = CallErrored
			tr.Error = err
			e.logger.Info("Tool failed", "id", call.ID, "name", call.Name, "duration", time.Since(start), "error", err)
			e.emit(&Event{Kind: EventToolError, CallID: call.ID, ToolName: call.Name, Error: err.Error()})
		} else {
			call.Status = CallExecuted
			tr.Result = result
			e.logger.Info("Tool succeeded", "id", call.ID, "name", call.Name, "duration", time.Since(start))
			e.emit(&Event{Kind: EventToolOutput, CallID: call.ID, ToolName: call.Name, Result: result})
		}

		modelTurn.Parts = append(modelTurn.Parts, Part{ToolCall: &ToolCall{
			ID:    call.ID,
			Name:  call.Name,
			Args:  call.Args,
			Token: call.Token,
		}})
		toolTurn.Parts = append(toolTurn.Parts, Part{ToolResult: tr})
	}
	return modelTurn, toolTurn, nil
}

func (e *Executor) run(ctx context.Context, call *CallRecord) (any, error) {
	ctx, cancel := context.WithTimeout(tools.WithCallID(ctx, call.ID), e.timeout)
	defer cancel()
	return e.registry.Run(ctx, call.Name, call.Args)
}

package openai

import (
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"

	"github.com/jmuk/sleek/pkg/agent"
	"github.com/openai/openai-go/v3/responses"
)

type openCall struct {
	callID string
	name   string
}

// outputProcessor maps Responses stream events to chunks. Argument events
// are keyed by output item id; chunks carry the model's call id.
type outputProcessor struct {
	logger     *slog.Logger
	calls      map[string]*openCall
	responseID string
}

func newOutputProcessor(logger *slog.Logger) *outputProcessor {
	return &outputProcessor{logger: logger, calls: map[string]*openCall{}}
}

func (p *outputProcessor) process(ev responses.ResponseStreamEventUnion) (agent.Chunk, error) {
	switch variant := ev.AsAny().(type) {
	case responses.ResponseCreatedEvent:
		p.responseID = variant.Response.ID
	case responses.ResponseErrorEvent:
		return nil, fmt.Errorf("openai: %s: %s", variant.Code, variant.Message)
	case responses.ResponseFailedEvent:
		e := variant.Response.Error
		return nil, fmt.Errorf("openai: response failed: %s: %s", e.Code, e.Message)
	case responses.ResponseIncompleteEvent:
		p.logger.Warn("Response incomplete", "id", p.responseID, "reason", variant.Response.IncompleteDetails.Reason)
	case responses.ResponseTextDeltaEvent:
		return agent.TextChunk{Text: variant.Delta}, nil
	case responses.ResponseReasoningTextDeltaEvent:
		return agent.ReasoningChunk{Text: variant.Delta}, nil
	case responses.ResponseReasoningSummaryTextDeltaEvent:
		return agent.ReasoningChunk{Text: variant.Delta}, nil
	case responses.ResponseOutputItemAddedEvent:
		if variant.Item.Type != "function_call" {
			return nil, nil
		}
		call := variant.Item.AsFunctionCall()
		p.calls[variant.Item.ID] = &openCall{callID: call.CallID, name: call.Name}
		return agent.CallDeltaChunk{ID: call.CallID, Name: call.Name, Text: call.Arguments}, nil
	case responses.ResponseFunctionCallArgumentsDeltaEvent:
		c, ok := p.calls[variant.ItemID]
		if !ok {
			p.logger.Warn("Arguments for an unknown item", "item", variant.ItemID)
			return nil, nil
		}
		return agent.CallDeltaChunk{ID: c.callID, Name: c.name, Text: variant.Delta}, nil
	case responses.ResponseFunctionCallArgumentsDoneEvent:
		c, ok := p.calls[variant.ItemID]
		if !ok {
			p.logger.Error("Missing function call item", "item", variant.ItemID)
			return nil, nil
		}
		delete(p.calls, variant.ItemID)
		final := agent.CallFinalChunk{ID: c.callID, Name: c.name}
		args := map[string]any{}
		if err := json.Unmarshal([]byte(variant.Arguments), &args); err != nil {
			p.logger.Warn("Malformed arguments", "id", c.callID, "error", err)
			return final, nil
		}
		final.Args = args
		return final, nil
	default:
		p.logger.Debug("Ignoring event", "type", ev.Type)
	}
	return nil, nil
}

type eventStream interface {
	Next() bool
	Current() responses.ResponseStreamEventUnion
	Err() error
	Close() error
}

func (p *outputProcessor) processStream(st eventStream) iter.Seq2[agent.Chunk, error] {
	return func(yield func(agent.Chunk, error) bool) {
		defer st.Close()
		for st.Next() {
			chunk, err := p.process(st.Current())
			if err != nil {
				yield(nil, err)
				return
			}
			if chunk != nil && !yield(chunk, nil) {
				return
			}
		}
		if err := st.Err(); err != nil {
			yield(nil, err)
		}
	}
}

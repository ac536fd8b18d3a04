package claude

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/jmuk/sleek/pkg/agent"
	"github.com/jmuk/sleek/pkg/sse"
	"github.com/tidwall/gjson"
)

type eventType string

const (
	eventTypePing              eventType = "ping"
	eventTypeError             eventType = "error"
	eventTypeMessageStart      eventType = "message_start"
	eventTypeMessageDelta      eventType = "message_delta"
	eventTypeMessageStop       eventType = "message_stop"
	eventTypeContentBlockStart eventType = "content_block_start"
	eventTypeContentBlockDelta eventType = "content_block_delta"
	eventTypeContentBlockStop  eventType = "content_block_stop"
)

type deltaType string

const (
	deltaTypeText      deltaType = "text_delta"
	deltaTypeJSON      deltaType = "input_json_delta"
	deltaTypeThinking  deltaType = "thinking_delta"
	deltaTypeSignature deltaType = "signature_delta"
)

type contentBlockDelta struct {
	Type  eventType `json:"type"`
	Index int       `json:"index"`
	Delta struct {
		Type        deltaType `json:"type"`
		Text        string    `json:"text"`
		PartialJSON string    `json:"partial_json"`
		Thinking    string    `json:"thinking"`
		Signature   string    `json:"signature"`
	} `json:"delta"`
}

type blockType string

const (
	blockTypeText             blockType = "text"
	blockTypeToolUse          blockType = "tool_use"
	blockTypeThinking         blockType = "thinking"
	blockTypeRedactedThinking blockType = "redacted_thinking"
)

type contentBlock struct {
	Type         eventType `json:"type"`
	Index        int       `json:"index"`
	ContentBlock struct {
		Type blockType `json:"type"`

		Text string `json:"text"`

		ID    string         `json:"id"`
		Name  string         `json:"name"`
		Input map[string]any `json:"input"`

		Thinking  string `json:"thinking"`
		Signature string `json:"signature"`
	} `json:"content_block"`

	// Raw tool input accumulated from input_json deltas.
	json string
}

type eventProcessor struct {
	scanner *sse.Scanner
	logger  *slog.Logger

	currentBlock *contentBlock
}

func newEventProcessor(reader io.Reader, logger *slog.Logger) *eventProcessor {
	return &eventProcessor{
		scanner: sse.NewScanner(reader),
		logger:  logger,
	}
}

func (ep *eventProcessor) processContentBlockStart(ev *sse.Event) (agent.Chunk, error) {
	if ep.currentBlock != nil {
		return nil, fmt.Errorf("content block start appears before closing a previous one")
	}
	ep.currentBlock = &contentBlock{}
	if err := json.Unmarshal([]byte(ev.Data), ep.currentBlock); err != nil {
		return nil, err
	}
	cb := ep.currentBlock.ContentBlock
	switch cb.Type {
	case blockTypeText:
		if cb.Text != "" {
			return agent.TextChunk{Text: cb.Text}, nil
		}
	case blockTypeThinking:
		if cb.Thinking != "" {
			return agent.ReasoningChunk{Text: cb.Thinking}, nil
		}
	case blockTypeToolUse:
		// Opens the call so its progress shows before any argument arrives.
		return agent.CallDeltaChunk{ID: cb.ID, Name: cb.Name}, nil
	}
	return nil, nil
}

func (ep *eventProcessor) processContentBlockDelta(ev *sse.Event) (agent.Chunk, error) {
	delta := &contentBlockDelta{}
	if err := json.Unmarshal([]byte(ev.Data), delta); err != nil {
		return nil, err
	}
	cb := ep.currentBlock
	if cb == nil {
		return nil, fmt.Errorf("missing content block start")
	}
	if cb.Index != delta.Index {
		return nil, fmt.Errorf("index mismatch: want %d got %d", cb.Index, delta.Index)
	}
	want := map[deltaType]blockType{
		deltaTypeText:      blockTypeText,
		deltaTypeJSON:      blockTypeToolUse,
		deltaTypeThinking:  blockTypeThinking,
		deltaTypeSignature: blockTypeThinking,
	}[delta.Delta.Type]
	if want == "" {
		return nil, fmt.Errorf("unknown delta type %s", delta.Delta.Type)
	}
	if cb.ContentBlock.Type != want {
		return nil, fmt.Errorf("type mismatch: want %s got %s", cb.ContentBlock.Type, delta.Delta.Type)
	}

	switch delta.Delta.Type {
	case deltaTypeText:
		return agent.TextChunk{Text: delta.Delta.Text}, nil
	case deltaTypeJSON:
		cb.json += delta.Delta.PartialJSON
		if delta.Delta.PartialJSON == "" {
			return nil, nil
		}
		return agent.CallDeltaChunk{
			ID:   cb.ContentBlock.ID,
			Name: cb.ContentBlock.Name,
			Text: delta.Delta.PartialJSON,
		}, nil
	case deltaTypeThinking:
		return agent.ReasoningChunk{Text: delta.Delta.Thinking}, nil
	default:
		cb.ContentBlock.Signature += delta.Delta.Signature
		return nil, nil
	}
}

func (ep *eventProcessor) processContentBlockStop() (agent.Chunk, error) {
	cb := ep.currentBlock
	if cb == nil {
		return nil, fmt.Errorf("content_block_stop appears without start")
	}
	ep.currentBlock = nil
	switch cb.ContentBlock.Type {
	case blockTypeThinking:
		if cb.ContentBlock.Signature == "" {
			return nil, nil
		}
		return agent.ReasoningChunk{Signature: cb.ContentBlock.Signature}, nil
	case blockTypeToolUse:
		final := agent.CallFinalChunk{ID: cb.ContentBlock.ID, Name: cb.ContentBlock.Name}
		if cb.json == "" {
			// Calls without arguments carry their (empty) input in the start block.
			final.Args = cb.ContentBlock.Input
			if final.Args == nil {
				final.Args = map[string]any{}
			}
			return final, nil
		}
		args := map[string]any{}
		if err := json.Unmarshal([]byte(cb.json), &args); err != nil {
			// The assembler falls back to repairing what streamed.
			ep.logger.Warn("Malformed tool input", "id", cb.ContentBlock.ID, "error", err)
			return final, nil
		}
		final.Args = args
		return final, nil
	case blockTypeText, blockTypeRedactedThinking:
		return nil, nil
	}
	return nil, fmt.Errorf("unknown block type %s", cb.ContentBlock.Type)
}

func streamError(data string) error {
	if msg := gjson.Get(data, "error.message"); msg.Exists() {
		return fmt.Errorf("claude: %s: %s", gjson.Get(data, "error.type").String(), msg.String())
	}
	return errors.New(data)
}

func (ep *eventProcessor) processEvents() iter.Seq2[agent.Chunk, error] {
	return func(yield func(agent.Chunk, error) bool) {
		for {
			ev, err := ep.scanner.Scan()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			var chunk agent.Chunk
			switch eventType(ev.Event) {
			case eventTypeError:
				yield(nil, streamError(ev.Data))
				return
			case eventTypeContentBlockStart:
				chunk, err = ep.processContentBlockStart(ev)
			case eventTypeContentBlockDelta:
				chunk, err = ep.processContentBlockDelta(ev)
			case eventTypeContentBlockStop:
				chunk, err = ep.processContentBlockStop()
			case eventTypeMessageDelta:
				if reason := gjson.Get(ev.Data, "delta.stop_reason").String(); reason != "" {
					ep.logger.Info("Message stopped", "reason", reason)
				}
			case eventTypeMessageStop:
				return
			case eventTypePing, eventTypeMessageStart:
			default:
				ep.logger.Debug("Ignoring event", "event", ev.Event)
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if chunk != nil && !yield(chunk, nil) {
				return
			}
		}
	}
}

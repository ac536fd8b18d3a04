package agent

import (
	"context"
	"iter"

	"github.com/jmuk/sleek/pkg/partial"
	"github.com/jmuk/sleek/pkg/tools"
)

// Chunk is one unit of a model's streamed response.
type Chunk interface {
	isChunk()
}

type TextChunk struct {
	Text string
}

// ReasoningChunk carries model thinking. Signature, when set, must be sent
// back with the assistant turn that contained the thinking.
type ReasoningChunk struct {
	Text      string
	Signature string
}

// CallDeltaChunk streams part of a tool call's arguments, either as raw JSON
// text or as path-addressed patches.
type CallDeltaChunk struct {
	ID      string
	Name    string
	Text    string
	Patches []partial.Patch
	Token   string
}

// CallFinalChunk ends a tool call. Args, when non-nil, are authoritative.
type CallFinalChunk struct {
	ID    string
	Name  string
	Args  map[string]any
	Token string
}

func (TextChunk) isChunk()      {}
func (ReasoningChunk) isChunk() {}
func (CallDeltaChunk) isChunk() {}
func (CallFinalChunk) isChunk() {}

// Request is one inference request.
type Request struct {
	System   string
	Messages []Message
	Tools    []tools.ToolDefinition
}

// Provider streams a model's response to a request.
type Provider interface {
	Stream(ctx context.Context, req *Request) iter.Seq2[Chunk, error]
}

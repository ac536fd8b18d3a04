package agent

import "github.com/jmuk/sleek/pkg/design"

type EventKind string

const (
	EventStatus            EventKind = "status"
	EventTextDelta         EventKind = "text-delta"
	EventReasoningDelta    EventKind = "reasoning-delta"
	EventToolInputStart    EventKind = "tool-input-start"
	EventToolInputPreview  EventKind = "tool-input-preview"
	EventToolInputComplete EventKind = "tool-input-complete"
	EventToolOutput        EventKind = "tool-output"
	EventToolError         EventKind = "tool-error"
	EventStepBoundary      EventKind = "step-boundary"
	EventFrame             EventKind = "frame"
	EventDone              EventKind = "done"
)

// Event is one progress notification of a request. Which fields are set
// depends on Kind.
type Event struct {
	Kind EventKind `json:"type"`

	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`

	Text string `json:"text,omitempty"`

	CallID   string         `json:"call_id,omitempty"`
	ToolName string         `json:"tool_name,omitempty"`
	Args     map[string]any `json:"args,omitempty"`
	Result   any            `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`

	Step int `json:"step,omitempty"`

	Action design.ChangeKind `json:"action,omitempty"`
	Screen *design.Screen    `json:"screen,omitempty"`
	Theme  map[string]string `json:"theme,omitempty"`
}

func frameEvent(c design.Change) *Event {
	return &Event{
		Kind:   EventFrame,
		Action: c.Kind,
		Screen: c.Screen,
		Theme:  c.Theme,
	}
}

package agent

import (
	"encoding/json"
	"errors"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a call the model made. Token is the provider's opaque
// continuity token, echoed back when the call is replayed.
type ToolCall struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Args  map[string]any `json:"args"`
	Token string         `json:"token,omitempty"`
}

// ToolResult is the outcome of a ToolCall. Exactly one of Result and Error
// is meaningful.
type ToolResult struct {
	ID     string
	Name   string
	Result any
	Error  error
}

type toolResultJSON struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (tr *ToolResult) MarshalJSON() ([]byte, error) {
	v := toolResultJSON{ID: tr.ID, Name: tr.Name, Result: tr.Result}
	if tr.Error != nil {
		v.Error = tr.Error.Error()
	}
	return json.Marshal(v)
}

func (tr *ToolResult) UnmarshalJSON(data []byte) error {
	var v toolResultJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	tr.ID = v.ID
	tr.Name = v.Name
	tr.Result = v.Result
	tr.Error = nil
	if v.Error != "" {
		tr.Error = errors.New(v.Error)
	}
	return nil
}

// Payload is the object sent to the model as the tool's response.
func (tr *ToolResult) Payload() map[string]any {
	if tr.Error != nil {
		return map[string]any{"error": tr.Error.Error()}
	}
	return map[string]any{"result": tr.Result}
}

type Part struct {
	Thought    bool        `json:"thought,omitempty"`
	Text       string      `json:"text,omitempty"`
	Signature  string      `json:"signature,omitempty"`
	ToolCall   *ToolCall   `json:"tool_call,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

func UserText(text string) Message {
	return Message{Role: RoleUser, Parts: []Part{{Text: text}}}
}

func AssistantText(text string) Message {
	return Message{Role: RoleAssistant, Parts: []Part{{Text: text}}}
}

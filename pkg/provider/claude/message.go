package claude

import (
	"encoding/json"

	"github.com/jmuk/sleek/pkg/agent"
)

type contentType string

const (
	contentTypeThinking   contentType = "thinking"
	contentTypeToolUse    contentType = "tool_use"
	contentTypeToolResult contentType = "tool_result"
	contentTypeText       contentType = "text"
)

// content is one block of an input message. Only the fields of its Type are
// set.
type content struct {
	Type contentType `json:"type"`

	Text string `json:"text,omitempty"`

	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`

	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// Tool use input must be an object even when the call had no arguments.
func (c content) MarshalJSON() ([]byte, error) {
	type plain content
	if c.Type != contentTypeToolUse {
		return json.Marshal(plain(c))
	}
	input := c.Input
	if input == nil {
		input = map[string]any{}
	}
	return json.Marshal(struct {
		Type  contentType    `json:"type"`
		ID    string         `json:"id"`
		Name  string         `json:"name"`
		Input map[string]any `json:"input"`
	}{c.Type, c.ID, c.Name, input})
}

type role string

const (
	roleUser      role = "user"
	roleAssistant role = "assistant"
)

type inputMessage struct {
	Content []content `json:"content"`
	Role    role      `json:"role"`
}

func toolResultContent(tr *agent.ToolResult) (content, error) {
	c := content{
		Type:      contentTypeToolResult,
		ToolUseID: tr.ID,
		IsError:   tr.Error != nil,
	}
	switch {
	case tr.Error != nil:
		c.Content = tr.Error.Error()
	default:
		if s, ok := tr.Result.(string); ok {
			c.Content = s
			break
		}
		encoded, err := json.Marshal(tr.Result)
		if err != nil {
			return content{}, err
		}
		c.Content = string(encoded)
	}
	return c, nil
}

// toMessages converts the conversation. Tool results travel in user turns and
// consecutive turns of the same role are merged. Thinking without a signature
// cannot be replayed and is dropped.
func toMessages(history []agent.Message) ([]inputMessage, error) {
	var msgs []inputMessage
	for _, m := range history {
		r := roleUser
		if m.Role == agent.RoleAssistant {
			r = roleAssistant
		}
		var blocks []content
		for _, p := range m.Parts {
			switch {
			case p.ToolCall != nil:
				blocks = append(blocks, content{
					Type:  contentTypeToolUse,
					ID:    p.ToolCall.ID,
					Name:  p.ToolCall.Name,
					Input: p.ToolCall.Args,
				})
			case p.ToolResult != nil:
				c, err := toolResultContent(p.ToolResult)
				if err != nil {
					return nil, err
				}
				blocks = append(blocks, c)
			case p.Thought:
				if p.Signature == "" || r != roleAssistant {
					continue
				}
				blocks = append(blocks, content{
					Type:      contentTypeThinking,
					Thinking:  p.Text,
					Signature: p.Signature,
				})
			case p.Text != "":
				blocks = append(blocks, content{Type: contentTypeText, Text: p.Text})
			}
		}
		if len(blocks) == 0 {
			continue
		}
		if n := len(msgs); n > 0 && msgs[n-1].Role == r {
			msgs[n-1].Content = append(msgs[n-1].Content, blocks...)
			continue
		}
		msgs = append(msgs, inputMessage{Role: r, Content: blocks})
	}
	return msgs, nil
}

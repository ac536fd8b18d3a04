package gemini

import (
	"github.com/jmuk/sleek/pkg/agent"
	"github.com/jmuk/sleek/pkg/tools"
	"google.golang.org/genai"
)

// toContents converts the conversation. Tool results travel in user turns;
// replayed calls carry their signature, or the skip marker when the model
// gave none.
func toContents(messages []agent.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		c := &genai.Content{Role: genai.RoleUser}
		if m.Role == agent.RoleAssistant {
			c.Role = genai.RoleModel
		}
		for _, p := range m.Parts {
			switch {
			case p.ToolCall != nil:
				sig := decodeSignature(p.ToolCall.Token)
				if len(sig) == 0 {
					sig = []byte(skipSignature)
				}
				args := p.ToolCall.Args
				if args == nil {
					args = map[string]any{}
				}
				c.Parts = append(c.Parts, &genai.Part{
					FunctionCall:     &genai.FunctionCall{Name: p.ToolCall.Name, Args: args},
					ThoughtSignature: sig,
				})
			case p.ToolResult != nil:
				c.Parts = append(c.Parts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{
						Name:     p.ToolResult.Name,
						Response: p.ToolResult.Payload(),
					},
				})
			case p.Thought:
				if p.Signature == "" {
					continue
				}
				c.Parts = append(c.Parts, &genai.Part{
					Text:             p.Text,
					Thought:          true,
					ThoughtSignature: decodeSignature(p.Signature),
				})
			case p.Text != "":
				c.Parts = append(c.Parts, &genai.Part{Text: p.Text})
			}
		}
		if len(c.Parts) > 0 {
			contents = append(contents, c)
		}
	}
	return contents
}

func toFunctions(defs []tools.ToolDefinition) []*genai.FunctionDeclaration {
	funcs := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, d := range defs {
		funcs = append(funcs, &genai.FunctionDeclaration{
			Name:                 d.Name(),
			Description:          d.Description(),
			ParametersJsonSchema: d.RequestSchema(),
		})
	}
	return funcs
}

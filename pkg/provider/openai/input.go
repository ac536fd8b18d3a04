package openai

import (
	"encoding/json"

	"github.com/jmuk/sleek/pkg/agent"
	"github.com/openai/openai-go/v3/responses"
)

func funcRespToInput(tr *agent.ToolResult) (responses.ResponseInputItemUnionParam, error) {
	outputStr, err := json.Marshal(tr.Payload())
	if err != nil {
		return responses.ResponseInputItemUnionParam{}, err
	}
	return responses.ResponseInputItemParamOfFunctionCallOutput(tr.ID, string(outputStr)), nil
}

func funcCallToInput(tc *agent.ToolCall) (responses.ResponseInputItemUnionParam, error) {
	args := tc.Args
	if args == nil {
		args = map[string]any{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return responses.ResponseInputItemUnionParam{}, err
	}
	return responses.ResponseInputItemParamOfFunctionCall(string(encoded), tc.ID, tc.Name), nil
}

// toInput replays the whole conversation; no response state is kept on the
// server. Reasoning is not replayed.
func toInput(history []agent.Message) (responses.ResponseInputParam, error) {
	var items responses.ResponseInputParam
	for _, m := range history {
		role := responses.EasyInputMessageRoleUser
		if m.Role == agent.RoleAssistant {
			role = responses.EasyInputMessageRoleAssistant
		}
		for _, p := range m.Parts {
			switch {
			case p.ToolCall != nil:
				item, err := funcCallToInput(p.ToolCall)
				if err != nil {
					return nil, err
				}
				items = append(items, item)
			case p.ToolResult != nil:
				item, err := funcRespToInput(p.ToolResult)
				if err != nil {
					return nil, err
				}
				items = append(items, item)
			case p.Thought:
			case p.Text != "":
				items = append(items, responses.ResponseInputItemParamOfMessage(p.Text, role))
			}
		}
	}
	return items, nil
}

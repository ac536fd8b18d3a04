package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/invopop/jsonschema"
	"github.com/jmuk/sleek/pkg/agent"
	"github.com/tidwall/gjson"
)

type thinkingConfig struct {
	BudgetTokens int    `json:"budget_tokens"`
	Type         string `json:"type"`
}

type toolChoice struct {
	Type string `json:"type"`
}

type tool struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"input_schema"`
}

type bodyData struct {
	Model      string          `json:"model"`
	Messages   []inputMessage  `json:"messages"`
	MaxTokens  int             `json:"max_tokens"`
	Stream     bool            `json:"stream,omitempty"`
	System     string          `json:"system,omitempty"`
	Thinking   *thinkingConfig `json:"thinking,omitempty"`
	ToolChoice *toolChoice     `json:"tool_choice,omitempty"`
	Tools      []tool          `json:"tools,omitempty"`
}

func (p *Provider) buildRequestBody(req *agent.Request) ([]byte, error) {
	msgs, err := toMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	body := bodyData{
		Model:     p.config.model(),
		Messages:  msgs,
		MaxTokens: p.config.MaxTokens,
		Stream:    true,
		System:    req.System,
	}
	if b := p.config.ThinkingBudget; b > 0 && b < body.MaxTokens {
		body.Thinking = &thinkingConfig{BudgetTokens: b, Type: "enabled"}
	}
	for _, def := range req.Tools {
		body.Tools = append(body.Tools, tool{
			Name:        def.Name(),
			Description: def.Description(),
			InputSchema: def.RequestSchema(),
		})
	}
	if len(body.Tools) > 0 {
		body.ToolChoice = &toolChoice{Type: "auto"}
	}
	return json.Marshal(body)
}

func (p *Provider) request(ctx context.Context, req *agent.Request) (io.ReadCloser, error) {
	body, err := p.buildRequestBody(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", p.config.AnthropicVersion)
	httpReq.Header.Set("content-type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return nil, apiError(resp.StatusCode, data)
	}
	return resp.Body, nil
}

func apiError(status int, data []byte) error {
	if msg := gjson.GetBytes(data, "error.message"); msg.Exists() {
		return fmt.Errorf("claude: %s (status %d): %s", gjson.GetBytes(data, "error.type").String(), status, msg.String())
	}
	return fmt.Errorf("claude: status %d: %s", status, string(data))
}

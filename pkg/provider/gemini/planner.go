package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/jmuk/sleek/pkg/agent"
	"github.com/jmuk/sleek/pkg/session"
	"google.golang.org/genai"
)

const defaultPlannerModel = "gemini-2.0-flash"

// Planner implements agent.Planner with structured JSON output.
type Planner struct {
	models *genai.Models
	model  string
}

func NewPlanner(client *genai.Client, model string) *Planner {
	if model == "" {
		model = defaultPlannerModel
	}
	return &Planner{models: client.Models, model: model}
}

type intentResult struct {
	Intent string `json:"intent" jsonschema:"enum=generate,enum=edit"`
}

type screensResult struct {
	Screens []agent.PlannedScreen `json:"screens"`
}

func schemaOf[T any]() *jsonschema.Schema {
	var t T
	s := (&jsonschema.Reflector{
		DoNotReference: true,
		Anonymous:      true,
	}).Reflect(&t)
	s.Version = ""
	return s
}

func generateObject[T any](ctx context.Context, p *Planner, prompt string) (*T, error) {
	logger := session.Logger(ctx, "planner")
	resp, err := p.models.GenerateContent(ctx, p.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType:   "application/json",
		ResponseJsonSchema: schemaOf[T](),
	})
	if err != nil {
		return nil, err
	}
	text := resp.Text()
	logger.Debug("Planner response", "model", p.model, "text", text)
	if text == "" {
		return nil, errors.New("empty planner response")
	}
	var out T
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("malformed planner response: %w", err)
	}
	return &out, nil
}

func (p *Planner) ClassifyIntent(ctx context.Context, request string) (string, error) {
	res, err := generateObject[intentResult](ctx, p, agent.ClassifyPrompt(request))
	if err != nil {
		return "", err
	}
	return res.Intent, nil
}

func (p *Planner) PlanScreens(ctx context.Context, request string) ([]agent.PlannedScreen, error) {
	res, err := generateObject[screensResult](ctx, p, agent.ScreensPrompt(request))
	if err != nil {
		return nil, err
	}
	return res.Screens, nil
}

func (p *Planner) PlanStyle(ctx context.Context, request string, screens []agent.PlannedScreen) (*agent.Style, error) {
	return generateObject[agent.Style](ctx, p, agent.StylePrompt(request, screens))
}

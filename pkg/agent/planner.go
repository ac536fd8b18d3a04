package agent

import (
	"context"
	"encoding/json"
	"fmt"
)

const (
	IntentGenerate = "generate"
	IntentEdit     = "edit"
)

const (
	classifyPrompt = `Given a user request for a mobile app, determine if they want to "generate" (create new screens) or "edit" (modify existing). Reply with intent only.`
	screensPrompt  = `Given a user request and that intent is "generate", list the screens to create. Each screen has name and description.`
	stylePrompt    = `Given a user request and the screens to create, provide visual guidelines (colors, mood, typography) and whether to generate (true for new designs).`
)

type PlannedScreen struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Style struct {
	Guidelines     string `json:"guidelines"`
	ShouldGenerate bool   `json:"shouldGenerate"`
}

// Planner runs the planning phases of a fresh design request with a small
// structured-output model.
type Planner interface {
	ClassifyIntent(ctx context.Context, request string) (string, error)
	PlanScreens(ctx context.Context, request string) ([]PlannedScreen, error)
	PlanStyle(ctx context.Context, request string, screens []PlannedScreen) (*Style, error)
}

func ClassifyPrompt(request string) string {
	return classifyPrompt + "\n\nUser request:\n" + request
}

func ScreensPrompt(request string) string {
	return screensPrompt + "\n\nUser request:\n" + request
}

func StylePrompt(request string, screens []PlannedScreen) string {
	encoded, _ := json.Marshal(screens)
	return fmt.Sprintf("%s\n\nUser request:\n%s\n\nScreens: %s\n\nOutput visual guidelines and whether to generate (true for new designs).",
		stylePrompt, request, encoded)
}

type Plan struct {
	Intent  string
	Screens []PlannedScreen
	Style   *Style
}

// Context renders the plan for the system prompt.
func (p *Plan) Context() string {
	if p == nil {
		return ""
	}
	screens := p.Screens
	if screens == nil {
		screens = []PlannedScreen{}
	}
	encoded, _ := json.MarshalIndent(screens, "", "  ")
	guidelines := ""
	if p.Style != nil {
		guidelines = p.Style.Guidelines
	}
	return fmt.Sprintf("## Planning (from pipeline)\n- Intent: %s\n- Screens to create: %s\n- Visual guidelines: %s\n",
		p.Intent, encoded, guidelines)
}

// RunPlan runs the planner phases, emitting a status event after each.
func RunPlan(ctx context.Context, planner Planner, request string, emit func(*Event)) (*Plan, error) {
	intent, err := planner.ClassifyIntent(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("failed to classify intent: %w", err)
	}
	if intent != IntentGenerate && intent != IntentEdit {
		return nil, fmt.Errorf("unexpected intent %q", intent)
	}
	emit(&Event{Kind: EventStatus, Status: "classifyIntent", Data: map[string]any{"intent": intent}})

	plan := &Plan{Intent: intent}
	if intent == IntentGenerate {
		if plan.Screens, err = planner.PlanScreens(ctx, request); err != nil {
			return nil, fmt.Errorf("failed to plan screens: %w", err)
		}
	}
	emit(&Event{Kind: EventStatus, Status: "planScreens", Data: map[string]any{"screens": plan.Screens}})

	if plan.Style, err = planner.PlanStyle(ctx, request, plan.Screens); err != nil {
		return nil, fmt.Errorf("failed to plan style: %w", err)
	}
	emit(&Event{Kind: EventStatus, Status: "planStyle", Data: plan.Style})
	return plan, nil
}

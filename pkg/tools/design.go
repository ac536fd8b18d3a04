package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmuk/sleek/pkg/design"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Design exposes a design state to the model. Generated image URLs are kept
// for the lifetime of the value and substituted into screen bodies.
type Design struct {
	state  *design.State
	images ImageSource
	urls   map[string]string
}

func NewDesign(state *design.State, images ImageSource) *Design {
	if images == nil {
		images = ImageChain{PicsumSource{}}
	}
	return &Design{
		state:  state,
		images: images,
		urls:   map[string]string{},
	}
}

type readScreenRequest struct {
	ID string `json:"id"`
}

type readThemeRequest struct{}

type createScreenRequest struct {
	Name       string `json:"name" jsonschema_description:"Screen label/name"`
	ScreenHTML string `json:"screen_html" jsonschema_description:"HTML for body content only"`
}

type createScreenResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

type updateScreenRequest struct {
	ID         string `json:"id" jsonschema_description:"Frame id"`
	ScreenHTML string `json:"screen_html" jsonschema_description:"HTML for body content only"`
}

type editScreenRequest struct {
	ID      string `json:"id"`
	Find    string `json:"find" jsonschema_description:"Exact string to find (from read_screen)"`
	Replace string `json:"replace" jsonschema_description:"Replacement string"`
}

type updateThemeRequest struct {
	Updates map[string]string `json:"updates" jsonschema_description:"CSS variable names to values"`
}

type buildThemeRequest struct {
	Description string            `json:"description,omitempty"`
	ThemeVars   map[string]string `json:"theme_vars"`
}

type generateImageRequest struct {
	ID          string `json:"id" jsonschema_description:"Placeholder id, e.g. img-1"`
	Prompt      string `json:"prompt" jsonschema_description:"Detailed image description"`
	AspectRatio string `json:"aspect_ratio" jsonschema:"enum=square,enum=landscape,enum=portrait"`
	Background  string `json:"background" jsonschema:"enum=opaque,enum=transparent"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	URL     string `json:"url,omitempty"`
}

type callIDKey struct{}

// WithCallID attaches the id of the tool call being executed. create_screen
// binds the new screen to it.
func WithCallID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callIDKey{}, id)
}

func callIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(callIDKey{}).(string)
	return id
}

func (d *Design) ToolDefs(context.Context) ([]ToolDefinition, error) {
	return []ToolDefinition{
		NewTool(
			"read_screen",
			"Returns the current HTML of a screen. Call this before editing. id must be from the Current Screens table in the system context.",
			d.readScreen,
		),
		NewTool(
			"read_theme",
			"Returns current CSS theme variables and fonts.",
			d.readTheme,
		),
		NewTool(
			"create_screen",
			`Creates a new screen. screen_html is inner body content only (no html, head, or body tags). Use src="placeholder:{id}" for AI-generated images; call generate_image first with the same id.`,
			d.createScreen,
		),
		NewTool(
			"update_screen",
			"Replaces the ENTIRE screen body. Use only for broad layout redesigns. Do NOT use for small targeted edits.",
			d.updateScreen,
		),
		NewTool(
			"edit_screen",
			"Targeted find/replace on screen HTML. Use for specific-section edits (e.g., change one button color). Preserves the rest of the UI. find must match read_screen output exactly. One edit per screen.",
			d.editScreen,
		),
		NewTool(
			"update_theme",
			"Updates CSS theme variables. Example: { '--primary': '#2563EB' }",
			d.updateTheme,
		),
		NewTool(
			"build_theme",
			`Creates or replaces the global theme. Pass theme_vars as an object: CSS variable names (with -- prefix) to values. Required keys: --background, --foreground, --primary, --primary-foreground, --secondary, --muted, --card, --border, --radius, --font-sans, --font-heading. Example: {"--primary":"#2563eb","--background":"#0f172a","--foreground":"#f8fafc","--card":"#1e293b","--radius":"0.5rem"}`,
			d.buildTheme,
		),
		NewTool(
			"generate_image",
			`Generates an AI image. Call FIRST before create_screen/update_screen that uses it. In HTML use src="placeholder:{id}" to reference. aspect_ratio: square|landscape|portrait. background: opaque (photos) or transparent (icons).`,
			d.generateImage,
		),
	}, nil
}

func (d *Design) Close() error {
	return nil
}

func (d *Design) readScreen(ctx context.Context, req readScreenRequest) (string, error) {
	sc, ok := d.state.Screen(req.ID)
	if !ok {
		return "(empty screen)", nil
	}
	body := design.ExtractBody(sc.Body)
	if body == "" {
		return "(empty screen)", nil
	}
	return body, nil
}

func (d *Design) readTheme(ctx context.Context, req readThemeRequest) (string, error) {
	data, err := json.MarshalIndent(d.state.Theme(), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (d *Design) createScreen(ctx context.Context, req createScreenRequest) (*createScreenResponse, error) {
	id := callIDFrom(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	body := design.SubstituteImages(design.ExtractBody(req.ScreenHTML), d.urls)
	d.state.AddScreen(id, req.Name, body)
	getLogger(ctx).Info("Created screen", "id", id, "name", req.Name, "bytes", len(body))
	return &createScreenResponse{
		Success: true,
		ID:      id,
		Message: fmt.Sprintf("Created screen %q", req.Name),
	}, nil
}

func (d *Design) updateScreen(ctx context.Context, req updateScreenRequest) (*successResponse, error) {
	body := design.SubstituteImages(design.ExtractBody(req.ScreenHTML), d.urls)
	if _, ok := d.state.UpdateScreen(req.ID, func(sc *design.Screen) { sc.Body = body }); !ok {
		getLogger(ctx).Info("update_screen on unknown screen", "id", req.ID)
	}
	return &successResponse{Success: true}, nil
}

func (d *Design) editScreen(ctx context.Context, req editScreenRequest) (*successResponse, error) {
	logger := getLogger(ctx)
	before, _ := d.state.Screen(req.ID)
	after, err := d.state.Edit(req.ID, req.Find, req.Replace)
	switch {
	case errors.Is(err, design.ErrScreenNotFound):
		return nil, &ToolError{fmt.Errorf("%w: %s", err, req.ID)}
	case errors.Is(err, design.ErrFindNotFound):
		return nil, &ToolError{fmt.Errorf("%w - ensure exact match from read_screen", err)}
	case err != nil:
		return nil, err
	}
	dmp := diffmatchpatch.New()
	patches := dmp.PatchMake(before.Body, after.Body)
	logger.Info("Edited screen", "id", req.ID, "patch", dmp.PatchToText(patches))
	return &successResponse{Success: true}, nil
}

func (d *Design) updateTheme(ctx context.Context, req updateThemeRequest) (*successResponse, error) {
	d.state.MergeTheme(req.Updates)
	return &successResponse{Success: true}, nil
}

func (d *Design) buildTheme(ctx context.Context, req buildThemeRequest) (*successResponse, error) {
	if req.ThemeVars == nil {
		return nil, toolErrorf("theme_vars is required")
	}
	d.state.ReplaceTheme(req.ThemeVars)
	getLogger(ctx).Info("Built theme", "description", req.Description, "vars", len(req.ThemeVars))
	return &successResponse{Success: true, Message: "Theme built"}, nil
}

// generateImage always answers with a URL; when every source fails it falls
// back to a stock photo.
func (d *Design) generateImage(ctx context.Context, req generateImageRequest) (*successResponse, error) {
	ireq := ImageRequest{
		ID:          strings.TrimSpace(req.ID),
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
		Background:  req.Background,
	}
	url, err := d.images.Generate(ctx, ireq)
	if err != nil || url == "" {
		getLogger(ctx).Warn("Image generation failed, using a stock photo", "id", ireq.ID, "error", err)
		url, _ = PicsumSource{}.Generate(ctx, ireq)
	}
	if ireq.ID != "" {
		d.urls[ireq.ID] = url
	}
	return &successResponse{Success: true, URL: url}, nil
}

// ImageURL returns the URL recorded for placeholder id.
func (d *Design) ImageURL(id string) (string, bool) {
	url, ok := d.urls[id]
	return url, ok
}

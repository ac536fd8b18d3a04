package agent

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/jmuk/sleek/pkg/design"
	"github.com/jmuk/sleek/pkg/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor(t *testing.T) {
	st := design.New()
	st.AddScreen("s1", "Home", "<p>Hi</p>")
	rec := &recorder{}
	e := NewExecutor(designRegistry(t, st), rec.emit, slog.New(slog.DiscardHandler))

	calls := []*CallRecord{
		{ID: "c1", Name: "edit_screen", Args: map[string]any{"id": "s1", "find": "Hey", "replace": "Bye"}, Status: CallAvailable},
		{ID: "c2", Name: "no_such_tool", Args: map[string]any{}, Status: CallAvailable},
		{ID: "c3", Name: "read_screen", Args: map[string]any{"id": "s1"}, Token: "sig", Status: CallAvailable},
		{ID: "c4", Name: "read_theme", Status: CallStreaming},
	}
	lead := []Part{{Thought: true, Text: "hmm", Signature: "abc"}}
	modelTurn, toolTurn, err := e.Execute(context.Background(), calls, lead)
	require.NoError(t, err)

	assert.Equal(t, []EventKind{EventToolError, EventToolOutput}, rec.kinds())
	assert.Equal(t, "c1", rec.events[0].CallID)
	assert.Contains(t, rec.events[0].Error, "find string not found")
	assert.Equal(t, "<p>Hi</p>", rec.events[1].Result)

	assert.Equal(t, CallErrored, calls[0].Status)
	assert.Equal(t, CallAvailable, calls[1].Status)
	assert.Equal(t, CallExecuted, calls[2].Status)
	assert.Equal(t, CallStreaming, calls[3].Status)

	assert.Equal(t, RoleAssistant, modelTurn.Role)
	require.Len(t, modelTurn.Parts, 3)
	assert.Equal(t, lead[0], modelTurn.Parts[0])
	assert.Equal(t, "c1", modelTurn.Parts[1].ToolCall.ID)
	assert.Equal(t, "sig", modelTurn.Parts[2].ToolCall.Token)

	assert.Equal(t, RoleTool, toolTurn.Role)
	require.Len(t, toolTurn.Parts, 2)
	first := toolTurn.Parts[0].ToolResult
	var toolErr *tools.ToolError
	assert.True(t, errors.As(first.Error, &toolErr))
	assert.True(t, errors.Is(first.Error, design.ErrFindNotFound))
	assert.Contains(t, first.Payload(), "error")
	assert.Equal(t, map[string]any{"result": "<p>Hi</p>"}, toolTurn.Parts[1].ToolResult.Payload())

	sc, _ := st.Screen("s1")
	assert.Equal(t, "<p>Hi</p>", sc.Body)
}

func TestExecutorStopsOnCancel(t *testing.T) {
	st := design.New()
	rec := &recorder{}
	e := NewExecutor(designRegistry(t, st), rec.emit, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, toolTurn, err := e.Execute(ctx, []*CallRecord{
		{ID: "c1", Name: "create_screen", Args: map[string]any{"name": "A", "screen_html": "<p/>"}, Status: CallAvailable},
	}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, toolTurn.Parts)
	assert.Empty(t, rec.events)
	assert.Equal(t, 0, st.Len())
}

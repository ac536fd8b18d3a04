package chat

import (
	"bytes"
	"context"
	"iter"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmuk/sleek/pkg/agent"
	"github.com/jmuk/sleek/pkg/config"
	"github.com/jmuk/sleek/pkg/design"
	"github.com/jmuk/sleek/pkg/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	for _, tc := range []struct {
		line string
		cmd  command
		args []string
	}{
		{"make a login screen", commandNone, nil},
		{"/quit", commandQuit, []string{}},
		{"  /Q ", commandQuit, []string{}},
		{"/session last", commandSession, []string{"last"}},
		{"/backends", commandBackend, []string{}},
		{"/?", commandList, []string{}},
		{"/", commandUnknown, nil},
		{"/frobnicate now", commandUnknown, []string{"frobnicate", "now"}},
	} {
		t.Run(tc.line, func(t *testing.T) {
			cmd, args := parseCommand(tc.line)
			assert.Equal(t, tc.cmd, cmd)
			assert.Equal(t, tc.args, args)
		})
	}
}

func TestPrintCommands(t *testing.T) {
	var b bytes.Buffer
	printCommands(&b)
	assert.Contains(t, b.String(), "- /quit, /q, /exit: quit this program.")
	assert.Contains(t, b.String(), "- /screens:")
}

func completions(c *combinedCompleter, line string) ([]string, int) {
	got, n := c.Do([]rune(line), len([]rune(line)))
	var out []string
	for _, r := range got {
		out = append(out, string(r))
	}
	return out, n
}

func TestCompleter(t *testing.T) {
	st := design.New()
	st.AddScreen("s1", "Login", "<div></div>")
	st.AddScreen("s2", "Home", "<div></div>")
	st.AddScreen("s3", design.LoadingLabel, "")
	c := newCombinedCompleter(func() *design.State { return st })

	got, n := completions(c, "/se")
	assert.Equal(t, []string{"ssion"}, got)
	assert.Equal(t, 3, n)

	got, n = completions(c, "  /t")
	assert.Equal(t, []string{"heme"}, got)
	assert.Equal(t, 2, n)

	got, n = completions(c, "tweak @lo")
	assert.Equal(t, []string{"gin "}, got)
	assert.Equal(t, 3, n)

	got, _ = completions(c, "@")
	assert.Equal(t, []string{"Login ", "Home "}, got)

	got, _ = completions(c, "mail@ho")
	assert.Empty(t, got)

	got, _ = completions(c, "no trigger here")
	assert.Empty(t, got)
}

func TestLineDiff(t *testing.T) {
	assert.Equal(t, []string{"- b", "+ c"}, lineDiff("a\nb\n", "a\nc\n"))
	assert.Empty(t, lineDiff("same\n", "same\n"))
	assert.Equal(t, []string{"+ new"}, lineDiff("", "new"))
}

func TestRenderer(t *testing.T) {
	st := design.New()
	st.AddScreen("s1", "Login", "<h1>Hi</h1>\n<p>old</p>\n")
	var b bytes.Buffer
	r := newRenderer(&b, st)

	r.render(&agent.Event{Kind: agent.EventStatus, Status: "received"})
	r.render(&agent.Event{Kind: agent.EventTextDelta, Text: "hello "})
	r.render(&agent.Event{Kind: agent.EventTextDelta, Text: "world"})
	r.render(&agent.Event{Kind: agent.EventToolInputStart, CallID: "c1", ToolName: "edit_screen"})
	r.render(&agent.Event{
		Kind:     agent.EventToolInputComplete,
		CallID:   "c1",
		ToolName: "edit_screen",
		Args:     map[string]any{"id": "s1", "find": "old", "replace": "new"},
	})
	_, err := st.Edit("s1", "old", "new")
	require.NoError(t, err)
	r.render(&agent.Event{Kind: agent.EventToolOutput, CallID: "c1", ToolName: "edit_screen", Result: map[string]any{"success": true}})
	r.render(&agent.Event{Kind: agent.EventToolError, CallID: "c2", ToolName: "read_screen", Error: "screen not found"})
	r.render(&agent.Event{Kind: agent.EventDone})

	out := b.String()
	assert.NotContains(t, out, "received")
	assert.Contains(t, out, "hello world\n")
	assert.Contains(t, out, "edit_screen")
	assert.Contains(t, out, "- <p>old</p>")
	assert.Contains(t, out, "+ <p>new</p>")
	assert.NotContains(t, out, "<h1>Hi</h1>")
	assert.Contains(t, out, "read_screen: screen not found")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "a b", truncate("a\n  b", 10))
	assert.Equal(t, "abc…", truncate("abcdef", 3))
	assert.Equal(t, `{"a":1}`, summarize(map[string]any{"a": 1}))
	assert.Equal(t, "", summarize(nil))
}

func TestInstructions(t *testing.T) {
	dir := t.TempDir()

	got, err := Instructions(dir, "")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "DESIGN_GUIDE.md"), []byte("use blue\n"), 0644))
	got, err = Instructions(dir, "")
	require.NoError(t, err)
	assert.Equal(t, "use blue", got)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "SLEEK.md"), []byte("  \n"), 0644))
	got, err = Instructions(dir, "")
	require.NoError(t, err)
	assert.Equal(t, "use blue", got)

	custom := filepath.Join(t.TempDir(), "brand.md")
	require.NoError(t, os.WriteFile(custom, []byte("rounded corners"), 0644))
	got, err = Instructions(dir, custom)
	require.NoError(t, err)
	assert.Equal(t, "rounded corners", got)
}

func TestDesignCommands(t *testing.T) {
	st := design.New()
	var b bytes.Buffer
	c := &Chat{cfg: config.Default(), out: &b, cs: &chatSession{state: st}}

	c.handleScreensCommand()
	c.handleThemeCommand()
	c.handleMCPCommand()
	assert.Equal(t, "No screens yet\nNo theme variables yet\nNo MCP servers configured\n", b.String())

	b.Reset()
	st.AddScreen("s1", "Login", "<div></div>")
	st.MergeTheme(map[string]string{"primary": "#2563eb"})
	c.cfg.MCP = []config.MCPConfig{{Name: "figma", Endpoint: "http://localhost:3845/mcp"}}
	c.handleScreensCommand()
	c.handleThemeCommand()
	c.handleMCPCommand()
	out := b.String()
	assert.Contains(t, out, "Login")
	assert.Contains(t, out, "--primary: #2563eb\n")
	assert.Contains(t, out, "figma: http://localhost:3845/mcp\n")
}

// turnProvider answers the n-th inference with turns[n] and records the tool
// names it was offered.
type turnProvider struct {
	turns   [][]agent.Chunk
	offered [][]string
}

func (p *turnProvider) Stream(ctx context.Context, req *agent.Request) iter.Seq2[agent.Chunk, error] {
	n := len(p.offered)
	var names []string
	for _, d := range req.Tools {
		names = append(names, d.Name())
	}
	p.offered = append(p.offered, names)
	return func(yield func(agent.Chunk, error) bool) {
		if n >= len(p.turns) {
			return
		}
		for _, c := range p.turns[n] {
			if !yield(c, nil) {
				return
			}
		}
	}
}

type echoRequest struct {
	Text string `json:"text"`
}

func TestRuntimeBuildsDesignToolsPerRequest(t *testing.T) {
	echo := tools.NewTool("echo", "Echo text", func(ctx context.Context, req echoRequest) (string, error) {
		return req.Text, nil
	})
	p := &turnProvider{turns: [][]agent.Chunk{
		{agent.CallFinalChunk{ID: "g1", Name: "generate_image", Args: map[string]any{"id": "img-1", "prompt": "a cat"}}},
		{agent.TextChunk{Text: "done"}},
		{agent.CallFinalChunk{ID: "c1", Name: "create_screen", Args: map[string]any{"name": "Cat", "screen_html": `<img src="placeholder:img-1">`}}},
		{agent.TextChunk{Text: "done"}},
	}}
	rt := &Runtime{
		Loop:     agent.New(p),
		images:   tools.PicsumSource{},
		mcpTools: tools.Static{echo},
	}
	st := design.New()
	var history []agent.Message

	for _, input := range []string{"make an image", "use it"} {
		for _, err := range rt.Run(context.Background(), st, &history, input) {
			require.NoError(t, err)
		}
	}

	// The image id recorded by the first request is unknown to the second.
	sc, ok := st.Screen("c1")
	require.True(t, ok)
	assert.Equal(t, `<img src="placeholder:img-1">`, sc.Body)

	require.Len(t, p.offered, 4)
	for _, names := range p.offered {
		assert.Equal(t, "read_screen", names[0])
		assert.Equal(t, "echo", names[len(names)-1])
	}
	assert.Equal(t, agent.RoleUser, history[0].Role)
	assert.Len(t, history, 8)
}

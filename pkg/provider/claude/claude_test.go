package claude

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jmuk/sleek/pkg/agent"
	"github.com/jmuk/sleek/pkg/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func sseBody(events ...[2]string) string {
	var b strings.Builder
	for _, ev := range events {
		fmt.Fprintf(&b, "event: %s\ndata: %s\n\n", ev[0], ev[1])
	}
	return b.String()
}

var loginStream = sseBody(
	[2]string{"message_start", `{"type":"message_start","message":{"id":"m1"}}`},
	[2]string{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"thinking","thinking":""}}`},
	[2]string{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"Plan a form."}}`},
	[2]string{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"signature_delta","signature":"sig"}}`},
	[2]string{"content_block_stop", `{"type":"content_block_stop","index":0}`},
	[2]string{"ping", `{"type":"ping"}`},
	[2]string{"content_block_start", `{"type":"content_block_start","index":1,"content_block":{"type":"text","text":""}}`},
	[2]string{"content_block_delta", `{"type":"content_block_delta","index":1,"delta":{"type":"text_delta","text":"Creating."}}`},
	[2]string{"content_block_stop", `{"type":"content_block_stop","index":1}`},
	[2]string{"content_block_start", `{"type":"content_block_start","index":2,"content_block":{"type":"tool_use","id":"toolu_1","name":"create_screen","input":{}}}`},
	[2]string{"content_block_delta", `{"type":"content_block_delta","index":2,"delta":{"type":"input_json_delta","partial_json":"{\"name\":\"Lo"}}`},
	[2]string{"content_block_delta", `{"type":"content_block_delta","index":2,"delta":{"type":"input_json_delta","partial_json":"gin\"}"}}`},
	[2]string{"content_block_stop", `{"type":"content_block_stop","index":2}`},
	[2]string{"content_block_start", `{"type":"content_block_start","index":3,"content_block":{"type":"tool_use","id":"toolu_2","name":"read_theme","input":{}}}`},
	[2]string{"content_block_stop", `{"type":"content_block_stop","index":3}`},
	[2]string{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"tool_use"}}`},
	[2]string{"message_stop", `{"type":"message_stop"}`},
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func collect(t *testing.T, body string) ([]agent.Chunk, error) {
	t.Helper()
	var out []agent.Chunk
	for c, err := range newEventProcessor(strings.NewReader(body), discard()).processEvents() {
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
	return out, nil
}

func TestProcessEvents(t *testing.T) {
	got, err := collect(t, loginStream)
	require.NoError(t, err)
	assert.Equal(t, []agent.Chunk{
		agent.ReasoningChunk{Text: "Plan a form."},
		agent.ReasoningChunk{Signature: "sig"},
		agent.TextChunk{Text: "Creating."},
		agent.CallDeltaChunk{ID: "toolu_1", Name: "create_screen"},
		agent.CallDeltaChunk{ID: "toolu_1", Name: "create_screen", Text: `{"name":"Lo`},
		agent.CallDeltaChunk{ID: "toolu_1", Name: "create_screen", Text: `gin"}`},
		agent.CallFinalChunk{ID: "toolu_1", Name: "create_screen", Args: map[string]any{"name": "Login"}},
		agent.CallDeltaChunk{ID: "toolu_2", Name: "read_theme"},
		agent.CallFinalChunk{ID: "toolu_2", Name: "read_theme", Args: map[string]any{}},
	}, got)
}

func TestProcessEventsMalformedInput(t *testing.T) {
	got, err := collect(t, sseBody(
		[2]string{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"t","name":"create_screen"}}`},
		[2]string{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"name\":\"A"}}`},
		[2]string{"content_block_stop", `{"type":"content_block_stop","index":0}`},
	))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, agent.CallFinalChunk{ID: "t", Name: "create_screen"}, got[2])
}

func TestProcessEventsErrors(t *testing.T) {
	_, err := collect(t, sseBody(
		[2]string{"error", `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`},
	))
	assert.EqualError(t, err, "claude: overloaded_error: Overloaded")

	_, err = collect(t, sseBody(
		[2]string{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"x"}}`},
	))
	assert.ErrorContains(t, err, "missing content block start")

	_, err = collect(t, sseBody(
		[2]string{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
		[2]string{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{"}}`},
	))
	assert.ErrorContains(t, err, "type mismatch")
}

func TestToMessages(t *testing.T) {
	msgs, err := toMessages([]agent.Message{
		agent.UserText("make a login"),
		{Role: agent.RoleAssistant, Parts: []agent.Part{
			{Thought: true, Text: "unsigned"},
			{Thought: true, Text: "signed", Signature: "sig"},
			{Text: "Sure."},
			{ToolCall: &agent.ToolCall{ID: "t1", Name: "read_theme"}},
			{ToolCall: &agent.ToolCall{ID: "t2", Name: "create_screen", Args: map[string]any{"name": "A"}}},
		}},
		{Role: agent.RoleTool, Parts: []agent.Part{
			{ToolResult: &agent.ToolResult{ID: "t1", Name: "read_theme", Result: "{}"}},
			{ToolResult: &agent.ToolResult{ID: "t2", Name: "create_screen", Result: map[string]any{"success": true}}},
		}},
		agent.UserText("thanks"),
	})
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	encoded, err := json.Marshal(msgs)
	require.NoError(t, err)
	doc := string(encoded)
	assert.Equal(t, "assistant", gjson.Get(doc, "1.role").String())
	assert.Equal(t, []string{"thinking", "text", "tool_use", "tool_use"}, strs(gjson.Get(doc, "1.content.#.type")))
	assert.Equal(t, "sig", gjson.Get(doc, "1.content.0.signature").String())
	assert.JSONEq(t, `{}`, gjson.Get(doc, "1.content.2.input").Raw)

	// Tool results and the following user text share one user turn.
	assert.Equal(t, "user", gjson.Get(doc, "2.role").String())
	assert.Equal(t, []string{"tool_result", "tool_result", "text"}, strs(gjson.Get(doc, "2.content.#.type")))
	assert.Equal(t, "{}", gjson.Get(doc, "2.content.0.content").String())
	assert.Equal(t, `{"success":true}`, gjson.Get(doc, "2.content.1.content").String())
}

func TestToolResultError(t *testing.T) {
	c, err := toolResultContent(&agent.ToolResult{ID: "x", Error: errors.New("Screen not found")})
	require.NoError(t, err)
	assert.True(t, c.IsError)
	assert.Equal(t, "Screen not found", c.Content)
}

func strs(r gjson.Result) []string {
	var out []string
	for _, v := range r.Array() {
		out = append(out, v.String())
	}
	return out
}

type echoRequest struct {
	Text string `json:"text"`
}

func TestStream(t *testing.T) {
	var captured []byte
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		headers = r.Header.Clone()
		captured, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, loginStream)
	}))
	defer srv.Close()

	c := DefaultConfig()
	c.BaseURL = srv.URL
	c.APIKey = "key"
	p, err := New(c)
	require.NoError(t, err)

	echo := tools.NewTool("echo", "Echoes text.", func(_ context.Context, req echoRequest) (string, error) {
		return req.Text, nil
	})
	var chunks []agent.Chunk
	for chunk, err := range p.Stream(context.Background(), &agent.Request{
		System:   "be helpful",
		Messages: []agent.Message{agent.UserText("hi")},
		Tools:    []tools.ToolDefinition{echo},
	}) {
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}
	assert.Len(t, chunks, 9)

	assert.Equal(t, "key", headers.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", headers.Get("anthropic-version"))
	body := string(captured)
	assert.Equal(t, defaultModel, gjson.Get(body, "model").String())
	assert.True(t, gjson.Get(body, "stream").Bool())
	assert.Equal(t, "be helpful", gjson.Get(body, "system").String())
	assert.Equal(t, int64(8192), gjson.Get(body, "thinking.budget_tokens").Int())
	assert.Equal(t, "echo", gjson.Get(body, "tools.0.name").String())
	assert.Equal(t, "object", gjson.Get(body, "tools.0.input_schema.type").String())
	assert.Equal(t, "hi", gjson.Get(body, "messages.0.content.0.text").String())
}

func TestStreamHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	}))
	defer srv.Close()

	c := DefaultConfig()
	c.BaseURL = srv.URL
	c.APIKey = "bad"
	p, err := New(c)
	require.NoError(t, err)
	for _, err := range p.Stream(context.Background(), &agent.Request{}) {
		assert.EqualError(t, err, "claude: authentication_error (status 401): invalid x-api-key")
	}
}

func TestAPIKey(t *testing.T) {
	env := func(m map[string]string) func(string) string {
		return func(k string) string { return m[k] }
	}
	key, err := DefaultConfig().apiKey(env(map[string]string{"ANTHROPIC_API_KEY": "from-env"}))
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)

	_, err = DefaultConfig().apiKey(env(nil))
	assert.ErrorContains(t, err, "ANTHROPIC_API_KEY")

	_, err = (&Config{}).apiKey(env(nil))
	assert.Error(t, err)
}

func TestParseConfig(t *testing.T) {
	c, err := ParseConfig([]byte(`
name = "claude"
model = "claude-opus-4-1"
thinking_budget = 0
`))
	require.NoError(t, err)
	assert.Equal(t, "claude-opus-4-1", c.model())
	assert.Equal(t, 32768, c.MaxTokens)
	assert.Equal(t, 0, c.ThinkingBudget)
}

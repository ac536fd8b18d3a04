package agent

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jmuk/sleek/pkg/design"
	"github.com/jmuk/sleek/pkg/partial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAssembler(st *design.State, interval time.Duration, now func() time.Time) (*Assembler, *recorder) {
	rec := &recorder{}
	a := NewAssembler(st, NewPreviewThrottle(interval, now), rec.emit, slog.New(slog.DiscardHandler))
	return a, rec
}

func TestAssemblerRawTextScreen(t *testing.T) {
	st := design.New()
	a, rec := newTestAssembler(st, 0, nil)

	a.Handle(CallDeltaChunk{ID: "c1", Name: "create_screen", Text: `{"na`})
	sc, ok := st.Screen("c1")
	require.True(t, ok)
	assert.Equal(t, design.LoadingLabel, sc.Label)
	assert.Empty(t, sc.Body)

	for _, text := range []string{`me":"Login","screen_html":"<form>`, `<input>`, `</form>"}`} {
		a.Handle(CallDeltaChunk{ID: "c1", Text: text})
	}
	sc, _ = st.Screen("c1")
	assert.Equal(t, "Login", sc.Label)
	assert.Equal(t, "<form><input></form>", sc.Body)

	a.Handle(CallFinalChunk{ID: "c1", Name: "create_screen", Token: "tok"})
	calls := a.Finish()
	require.Len(t, calls, 1)
	assert.Equal(t, CallAvailable, calls[0].Status)
	assert.Equal(t, FormatRawText, calls[0].Format)
	assert.Equal(t, "tok", calls[0].Token)
	assert.Equal(t, map[string]any{"name": "Login", "screen_html": "<form><input></form>"}, calls[0].Args)

	kinds := rec.kinds()
	assert.Equal(t, EventToolInputStart, kinds[0])
	assert.Equal(t, EventToolInputComplete, kinds[len(kinds)-1])

	// Previews only grow, and always agree with the final body.
	final := "<form><input></form>"
	prev := ""
	for _, ev := range rec.ofKind(EventToolInputPreview) {
		body, _ := ev.Args["screen_html"].(string)
		assert.GreaterOrEqual(t, len(body), len(prev))
		assert.True(t, strings.HasPrefix(final, body), body)
		prev = body
	}
	assert.Equal(t, final, prev)
}

func TestAssemblerDanglingEscape(t *testing.T) {
	st := design.New()
	a, rec := newTestAssembler(st, 0, nil)

	// A split escape is held back until the rest of it arrives.
	a.Handle(CallDeltaChunk{ID: "c1", Name: "create_screen", Text: `{"name":"A","screen_html":"<p class=\"x\`})
	previews := rec.ofKind(EventToolInputPreview)
	require.NotEmpty(t, previews)
	assert.Equal(t, `<p class="x`, previews[len(previews)-1].Args["screen_html"])

	a.Handle(CallDeltaChunk{ID: "c1", Text: `">`})
	previews = rec.ofKind(EventToolInputPreview)
	assert.Equal(t, `<p class="x">`, previews[len(previews)-1].Args["screen_html"])
	sc, _ := st.Screen("c1")
	assert.Equal(t, `<p class="x">`, sc.Body)
}

func TestAssemblerSplitSurrogatePair(t *testing.T) {
	st := design.New()
	a, rec := newTestAssembler(st, 0, nil)

	a.Handle(CallDeltaChunk{ID: "c1", Name: "create_screen", Text: `{"name":"A","screen_html":"<p>x\ud83d`})
	a.Handle(CallDeltaChunk{ID: "c1", Text: `\ude00</p>"}`})
	a.Handle(CallFinalChunk{ID: "c1", Name: "create_screen"})
	calls := a.Finish()
	require.Len(t, calls, 1)

	final := "<p>x\U0001F600</p>"
	assert.Equal(t, final, calls[0].Args["screen_html"])
	previews := rec.ofKind(EventToolInputPreview)
	require.NotEmpty(t, previews)
	for _, ev := range previews {
		body, _ := ev.Args["screen_html"].(string)
		assert.True(t, strings.HasPrefix(final, body), body)
		assert.NotContains(t, body, "\uFFFD")
	}
	sc, _ := st.Screen("c1")
	assert.Equal(t, final, sc.Body)
}

func TestAssemblerPatchList(t *testing.T) {
	st := design.New()
	a, rec := newTestAssembler(st, 0, nil)

	a.Handle(CallDeltaChunk{ID: "c1", Name: "update_theme", Patches: []partial.Patch{
		partial.StringPatch("$.updates.--primary", "#25"),
	}})
	a.Handle(CallDeltaChunk{ID: "c1", Patches: []partial.Patch{
		partial.StringPatch("$.updates.--primary", "63eb"),
	}})
	a.Handle(CallFinalChunk{ID: "c1"})

	calls := a.Finish()
	require.Len(t, calls, 1)
	assert.Equal(t, FormatPatchList, calls[0].Format)
	assert.Equal(t, map[string]any{"updates": map[string]any{"--primary": "#2563eb"}}, calls[0].Args)

	previews := rec.ofKind(EventToolInputPreview)
	require.NotEmpty(t, previews)
	assert.Equal(t, calls[0].Args, previews[len(previews)-1].Args)
}

func TestAssemblerFinalArgsWin(t *testing.T) {
	st := design.New()
	a, _ := newTestAssembler(st, 0, nil)

	a.Handle(CallDeltaChunk{ID: "c1", Name: "edit_screen", Patches: []partial.Patch{
		partial.StringPatch("id", "s1"),
		partial.StringPatch("find", "Go"),
	}})
	a.Handle(CallFinalChunk{ID: "c1", Args: map[string]any{"find": "Go!", "replace": "Start"}})

	calls := a.Finish()
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]any{"id": "s1", "find": "Go!", "replace": "Start"}, calls[0].Args)
}

func TestAssemblerFinalOnly(t *testing.T) {
	st := design.New()
	a, rec := newTestAssembler(st, 0, nil)

	a.Handle(CallFinalChunk{ID: "c1", Name: "read_theme", Args: map[string]any{}, Token: "sig"})
	calls := a.Finish()
	require.Len(t, calls, 1)
	assert.Equal(t, FormatUnknown, calls[0].Format)
	assert.Equal(t, "sig", calls[0].Token)
	assert.Equal(t, []EventKind{EventToolInputStart, EventToolInputPreview, EventToolInputComplete}, rec.kinds())
}

func TestAssemblerFinishFlushes(t *testing.T) {
	st := design.New()
	a, rec := newTestAssembler(st, time.Hour, newFakeClock().Now)

	a.Handle(CallDeltaChunk{ID: "c1", Name: "update_screen", Text: `{"id":"s1","screen_html":"<main>`})
	calls := a.Finish()
	require.Len(t, calls, 1)
	assert.Equal(t, CallAvailable, calls[0].Status)
	assert.Equal(t, map[string]any{"id": "s1", "screen_html": "<main>"}, calls[0].Args)
	assert.Len(t, rec.ofKind(EventToolInputComplete), 1)
}

func TestAssemblerDropsUnknownCall(t *testing.T) {
	st := design.New()
	a, rec := newTestAssembler(st, 0, nil)

	a.Handle(CallDeltaChunk{ID: "x", Text: `{}`})
	a.Handle(TextChunk{Text: "ignored"})
	assert.Empty(t, a.Finish())
	assert.Empty(t, rec.events)
}

func TestAssemblerThrottlesPreviews(t *testing.T) {
	const interval = 100 * time.Millisecond
	clock := newFakeClock()
	st := design.New()
	rec := &recorder{}
	var times []time.Time
	emit := func(ev *Event) {
		rec.emit(ev)
		times = append(times, clock.Now())
	}
	a := NewAssembler(st, NewPreviewThrottle(interval, clock.Now), emit, slog.New(slog.DiscardHandler))

	a.Handle(CallDeltaChunk{ID: "c1", Name: "create_screen", Text: `{"name":"A","screen_html":"`})
	for range 30 {
		clock.Advance(10 * time.Millisecond)
		a.Handle(CallDeltaChunk{ID: "c1", Text: "x"})
	}
	a.Handle(CallDeltaChunk{ID: "c1", Text: `"}`})
	a.Handle(CallFinalChunk{ID: "c1"})

	var previewTimes []time.Time
	var bodies []string
	for i, ev := range rec.events {
		if ev.Kind == EventToolInputPreview {
			previewTimes = append(previewTimes, times[i])
			body, _ := ev.Args["screen_html"].(string)
			bodies = append(bodies, body)
		}
	}
	require.GreaterOrEqual(t, len(previewTimes), 3)
	assert.Less(t, len(previewTimes), 10)

	// Intermediate previews are at least one interval apart.
	intermediate := previewTimes[:len(previewTimes)-1]
	for i := 1; i < len(intermediate); i++ {
		assert.GreaterOrEqual(t, intermediate[i].Sub(intermediate[i-1]), interval)
	}
	// The terminal preview is never dropped.
	assert.Equal(t, strings.Repeat("x", 30), bodies[len(bodies)-1])
}

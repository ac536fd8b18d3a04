package chat

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jmuk/sleek/pkg/agent"
	"github.com/jmuk/sleek/pkg/design"
	"github.com/manifoldco/promptui"
	"github.com/sergi/go-diff/diffmatchpatch"
)

var (
	faint = promptui.Styler(promptui.FGFaint)
	cyan  = promptui.Styler(promptui.FGCyan)
	green = promptui.Styler(promptui.FGGreen)
	red   = promptui.Styler(promptui.FGRed)
)

type streamMode int

const (
	modeNone streamMode = iota
	modeText
	modeReasoning
)

// renderer prints loop events for a terminal. Text streams inline; every
// other event starts on its own line.
type renderer struct {
	w     io.Writer
	state *design.State
	mode  streamMode

	// Screen bodies before an edit_screen call, by call id.
	before map[string]string
	// Screen targeted by each edit_screen call, by call id.
	targets map[string]string
}

func newRenderer(w io.Writer, state *design.State) *renderer {
	return &renderer{
		w:       w,
		state:   state,
		before:  map[string]string{},
		targets: map[string]string{},
	}
}

func (r *renderer) endLine() {
	if r.mode != modeNone {
		fmt.Fprintln(r.w)
		r.mode = modeNone
	}
}

func (r *renderer) line(format string, args ...any) {
	r.endLine()
	fmt.Fprintf(r.w, format+"\n", args...)
}

func (r *renderer) render(ev *agent.Event) {
	switch ev.Kind {
	case agent.EventTextDelta:
		if r.mode != modeText {
			r.endLine()
			r.mode = modeText
		}
		fmt.Fprint(r.w, ev.Text)
	case agent.EventReasoningDelta:
		if r.mode != modeReasoning {
			r.endLine()
			r.mode = modeReasoning
		}
		fmt.Fprint(r.w, faint(ev.Text))
	case agent.EventStatus:
		if ev.Status == "received" {
			return
		}
		r.line("%s", faint(fmt.Sprintf("· %s %s", ev.Status, summarize(ev.Data))))
	case agent.EventToolInputStart:
		r.line("%s %s", cyan("⋯"), ev.ToolName)
	case agent.EventToolInputComplete:
		if ev.ToolName == "edit_screen" {
			id, _ := ev.Args["id"].(string)
			r.targets[ev.CallID] = id
			if sc, ok := r.state.Screen(id); ok {
				r.before[ev.CallID] = sc.Body
			}
		}
	case agent.EventToolOutput:
		r.line("%s %s %s", green("✔"), ev.ToolName, faint(summarize(ev.Result)))
		if ev.ToolName == "edit_screen" {
			r.printEditDiff(ev.CallID)
		}
	case agent.EventToolError:
		r.line("%s %s: %s", red("✗"), ev.ToolName, ev.Error)
	case agent.EventFrame:
		if ev.Action == design.ScreenAdded && ev.Screen != nil {
			r.line("%s", faint(fmt.Sprintf("+ screen %s", ev.Screen.ID)))
		}
	case agent.EventDone:
		r.endLine()
	}
}

func (r *renderer) printEditDiff(callID string) {
	old, ok := r.before[callID]
	if !ok {
		return
	}
	sc, ok := r.state.Screen(r.targets[callID])
	if !ok {
		return
	}
	for _, l := range lineDiff(old, sc.Body) {
		switch l[0] {
		case '+':
			fmt.Fprintln(r.w, green(l))
		case '-':
			fmt.Fprintln(r.w, red(l))
		}
	}
}

// lineDiff returns the changed lines between a and b prefixed with + or -.
func lineDiff(a, b string) []string {
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)
	var out []string
	for _, d := range diffs {
		prefix := ""
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		default:
			continue
		}
		for l := range strings.Lines(d.Text) {
			out = append(out, prefix+strings.TrimRight(l, "\n"))
		}
	}
	return out
}

func summarize(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return truncate(s, 80)
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return truncate(string(encoded), 80)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "…"
	}
	return s
}

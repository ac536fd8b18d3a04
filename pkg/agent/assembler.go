package agent

import (
	"encoding/json"
	"log/slog"
	"maps"
	"strings"

	"github.com/jmuk/sleek/pkg/design"
	"github.com/jmuk/sleek/pkg/partial"
)

// WireFormat is how a call's arguments arrive. It is fixed by the first
// delta of the call.
type WireFormat int

const (
	FormatUnknown WireFormat = iota
	FormatRawText
	FormatPatchList
)

type CallStatus int

const (
	CallStreaming CallStatus = iota
	CallAvailable
	CallExecuted
	CallErrored
)

type CallRecord struct {
	ID     string
	Name   string
	Args   map[string]any
	Token  string
	Format WireFormat
	Status CallStatus
}

const (
	createScreenTool = "create_screen"
	updateScreenTool = "update_screen"
	screenHTMLField  = "screen_html"
)

type pendingCall struct {
	rec *CallRecord
	raw strings.Builder
	acc *partial.Accumulator

	// Best preview shown so far for screen tools.
	label string
	body  string
	// Last preview emitted for other tools.
	lastArgs string
}

// Assembler turns call chunks of one model response into complete tool
// calls, emitting previews of the arguments while they stream.
type Assembler struct {
	state    *design.State
	throttle *PreviewThrottle
	emit     func(*Event)
	logger   *slog.Logger

	calls map[string]*pendingCall
	order []*CallRecord
}

func NewAssembler(state *design.State, throttle *PreviewThrottle, emit func(*Event), logger *slog.Logger) *Assembler {
	return &Assembler{
		state:    state,
		throttle: throttle,
		emit:     emit,
		logger:   logger,
		calls:    map[string]*pendingCall{},
	}
}

// Handle consumes a call chunk. Other chunks are ignored.
func (a *Assembler) Handle(c Chunk) {
	switch c := c.(type) {
	case CallDeltaChunk:
		a.delta(c)
	case CallFinalChunk:
		a.complete(c)
	}
}

// Finish completes every call still streaming and returns all calls of the
// response in the order they started.
func (a *Assembler) Finish() []*CallRecord {
	for _, rec := range a.order {
		if rec.Status == CallStreaming {
			a.complete(CallFinalChunk{ID: rec.ID, Name: rec.Name})
		}
	}
	return a.order
}

func (a *Assembler) start(id, name string) *pendingCall {
	pc := &pendingCall{
		rec: &CallRecord{ID: id, Name: name, Status: CallStreaming},
		acc: partial.NewAccumulator(),
	}
	a.calls[id] = pc
	a.order = append(a.order, pc.rec)
	a.emit(&Event{Kind: EventToolInputStart, CallID: id, ToolName: name})
	if name == createScreenTool {
		a.state.AddScreen(id, design.LoadingLabel, "")
	}
	return pc
}

func (a *Assembler) lookup(id, name string) *pendingCall {
	if pc, ok := a.calls[id]; ok {
		return pc
	}
	if name == "" || id == "" {
		a.logger.Warn("Dropping chunk of an unknown call", "id", id)
		return nil
	}
	return a.start(id, name)
}

func (a *Assembler) delta(c CallDeltaChunk) {
	pc := a.lookup(c.ID, c.Name)
	if pc == nil {
		return
	}
	if pc.rec.Status != CallStreaming {
		a.logger.Warn("Delta after the call completed", "id", c.ID)
		return
	}
	if c.Token != "" {
		pc.rec.Token = c.Token
	}
	if pc.rec.Format == FormatUnknown {
		switch {
		case c.Text != "":
			pc.rec.Format = FormatRawText
		case len(c.Patches) > 0:
			pc.rec.Format = FormatPatchList
		}
	}
	switch pc.rec.Format {
	case FormatRawText:
		pc.raw.WriteString(c.Text)
		if len(c.Patches) > 0 {
			a.logger.Warn("Ignoring patches on a raw text call", "id", c.ID)
		}
	case FormatPatchList:
		pc.acc.Apply(c.Patches...)
		if c.Text != "" {
			a.logger.Warn("Ignoring raw text on a patch call", "id", c.ID)
		}
	}

	if !a.throttle.Due(c.ID) {
		return
	}
	a.preview(pc, a.partialArgs(pc), false)
}

func (a *Assembler) partialArgs(pc *pendingCall) map[string]any {
	switch pc.rec.Format {
	case FormatRawText:
		args, _ := partial.Repair(pc.raw.String())
		return args
	case FormatPatchList:
		if pc.acc.Len() > 0 {
			return pc.acc.Object()
		}
	}
	return nil
}

func (a *Assembler) finalArgs(pc *pendingCall) map[string]any {
	args := map[string]any{}
	switch pc.rec.Format {
	case FormatRawText:
		raw := pc.raw.String()
		if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
			repaired, ok := partial.Repair(raw)
			if !ok {
				a.logger.Warn("Unparseable tool arguments", "id", pc.rec.ID, "error", err)
				repaired = map[string]any{}
			}
			args = repaired
		}
	case FormatPatchList:
		args = pc.acc.Object()
	}
	return args
}

func (a *Assembler) complete(c CallFinalChunk) {
	pc := a.lookup(c.ID, c.Name)
	if pc == nil {
		return
	}
	if pc.rec.Status != CallStreaming {
		return
	}
	if c.Token != "" {
		pc.rec.Token = c.Token
	}
	args := a.finalArgs(pc)
	maps.Copy(args, c.Args)
	pc.rec.Args = args
	pc.rec.Status = CallAvailable

	a.preview(pc, args, true)
	a.throttle.Done(c.ID)
	a.emit(&Event{Kind: EventToolInputComplete, CallID: pc.rec.ID, ToolName: pc.rec.Name, Args: args})
}

// preview emits a tool-input-preview. Intermediate previews are emitted only
// when they show something new; screen bodies never shrink.
func (a *Assembler) preview(pc *pendingCall, args map[string]any, final bool) {
	name := pc.rec.Name
	if name != createScreenTool && name != updateScreenTool {
		if args == nil && !final {
			return
		}
		encoded, _ := json.Marshal(args)
		if !final && string(encoded) == pc.lastArgs {
			return
		}
		if !final && !a.throttle.Allow(pc.rec.ID) {
			return
		}
		pc.lastArgs = string(encoded)
		a.emit(&Event{Kind: EventToolInputPreview, CallID: pc.rec.ID, ToolName: name, Args: args})
		return
	}

	label, _ := args["name"].(string)
	body, _ := args[screenHTMLField].(string)
	if !final {
		if pc.rec.Format == FormatRawText && len(body) <= len(pc.body) {
			if scanned, ok := partial.ScanString(pc.raw.String(), screenHTMLField); ok && len(scanned) > len(body) {
				body = scanned
			}
		}
		changed := false
		if label != "" && label != pc.label {
			changed = true
		}
		if len(body) > len(pc.body) {
			changed = true
		} else {
			body = pc.body
		}
		if !changed || !a.throttle.Allow(pc.rec.ID) {
			return
		}
	}
	if label != "" {
		pc.label = label
	}
	pc.body = body

	shown := maps.Clone(args)
	if shown == nil {
		shown = map[string]any{}
	}
	if body != "" {
		shown[screenHTMLField] = body
	}
	a.applyScreenPreview(pc, shown)
	a.logger.Debug("Screen preview", "id", pc.rec.ID, "tool", name, "bytes", len(body), "final", final)
	a.emit(&Event{Kind: EventToolInputPreview, CallID: pc.rec.ID, ToolName: name, Args: shown})
}

func (a *Assembler) applyScreenPreview(pc *pendingCall, args map[string]any) {
	switch pc.rec.Name {
	case createScreenTool:
		a.state.UpdateScreen(pc.rec.ID, func(sc *design.Screen) {
			if pc.label != "" {
				sc.Label = pc.label
			}
			sc.Body = pc.body
		})
	case updateScreenTool:
		target, _ := args["id"].(string)
		if target == "" || pc.body == "" {
			return
		}
		a.state.UpdateScreen(target, func(sc *design.Screen) {
			sc.Body = pc.body
		})
	}
}

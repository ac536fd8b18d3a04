package agent

import (
	"context"
	"iter"
	"slices"
	"testing"
	"time"

	"github.com/jmuk/sleek/pkg/design"
	"github.com/jmuk/sleek/pkg/tools"
	"github.com/stretchr/testify/require"
)

// scriptedProvider replays one chunk list per inference call. Calls past the
// end of responses use next, or return nothing.
type scriptedProvider struct {
	responses [][]Chunk
	next      func(n int) []Chunk
	err       error
	requests  []*Request
}

func (p *scriptedProvider) Stream(ctx context.Context, req *Request) iter.Seq2[Chunk, error] {
	n := len(p.requests)
	p.requests = append(p.requests, &Request{
		System:   req.System,
		Messages: slices.Clone(req.Messages),
		Tools:    req.Tools,
	})
	return func(yield func(Chunk, error) bool) {
		if p.err != nil {
			yield(nil, p.err)
			return
		}
		var chunks []Chunk
		switch {
		case n < len(p.responses):
			chunks = p.responses[n]
		case p.next != nil:
			chunks = p.next(n)
		}
		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
	}
}

func designRegistry(t *testing.T, st *design.State) *tools.Registry {
	t.Helper()
	defs, err := tools.NewDesign(st, nil).ToolDefs(context.Background())
	require.NoError(t, err)
	r, err := tools.NewRegistry(defs)
	require.NoError(t, err)
	return r
}

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

type recorder struct {
	events []*Event
}

func (r *recorder) emit(ev *Event) {
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []EventKind {
	var kinds []EventKind
	for _, ev := range r.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func (r *recorder) ofKind(kind EventKind) []*Event {
	var out []*Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

package partial

import (
	"encoding/json"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type PatchKind int

const (
	PatchString PatchKind = iota
	PatchNumber
	PatchBool
	PatchNull
)

// Patch is one path-addressed fragment of a streamed argument object. String
// fragments are appended to the existing value; the other kinds replace it.
type Patch struct {
	Path   string
	Kind   PatchKind
	String string
	Number float64
	Bool   bool
}

func StringPatch(path, s string) Patch {
	return Patch{Path: path, Kind: PatchString, String: s}
}

func NumberPatch(path string, n float64) Patch {
	return Patch{Path: path, Kind: PatchNumber, Number: n}
}

func BoolPatch(path string, v bool) Patch {
	return Patch{Path: path, Kind: PatchBool, Bool: v}
}

func NullPatch(path string) Patch {
	return Patch{Path: path, Kind: PatchNull}
}

type node = orderedmap.OrderedMap[string, any]

// Accumulator merges patches into a nested object, preserving the order in
// which keys first appeared.
type Accumulator struct {
	root *node
}

func NewAccumulator() *Accumulator {
	return &Accumulator{root: orderedmap.New[string, any]()}
}

// splitPath turns "$.a.b" into ["a", "b"]. Paths that name no field are
// rejected.
func splitPath(path string) []string {
	path = strings.TrimPrefix(path, "$")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Apply merges patches in order.
func (a *Accumulator) Apply(patches ...Patch) {
	for _, p := range patches {
		a.apply(p)
	}
}

func (a *Accumulator) apply(p Patch) {
	segments := splitPath(p.Path)
	if len(segments) == 0 {
		return
	}
	cur := a.root
	for _, seg := range segments[:len(segments)-1] {
		v, ok := cur.Get(seg)
		child, isNode := v.(*node)
		if !ok || !isNode {
			child = orderedmap.New[string, any]()
			cur.Set(seg, child)
		}
		cur = child
	}

	last := segments[len(segments)-1]
	switch p.Kind {
	case PatchString:
		if existing, ok := cur.Get(last); ok {
			if s, isString := existing.(string); isString {
				cur.Set(last, s+p.String)
				return
			}
			if p.String == "" {
				return
			}
		}
		cur.Set(last, p.String)
	case PatchNumber:
		cur.Set(last, p.Number)
	case PatchBool:
		cur.Set(last, p.Bool)
	case PatchNull:
		cur.Set(last, nil)
	}
}

// Len reports the number of top-level keys.
func (a *Accumulator) Len() int {
	return a.root.Len()
}

// Object returns a plain copy of the accumulated value.
func (a *Accumulator) Object() map[string]any {
	return toMap(a.root)
}

func (a *Accumulator) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.root)
}

func toMap(n *node) map[string]any {
	out := make(map[string]any, n.Len())
	for pair := n.Oldest(); pair != nil; pair = pair.Next() {
		if child, ok := pair.Value.(*node); ok {
			out[pair.Key] = toMap(child)
			continue
		}
		out[pair.Key] = pair.Value
	}
	return out
}

// Package design holds the screens and theme a design session works on.
package design

import (
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	FrameWidth   = 430
	FrameHeight  = 932
	FrameSpacing = 420

	// LoadingLabel is shown on a screen whose create_screen call is still
	// streaming.
	LoadingLabel = "Loading…"
)

var (
	ErrScreenNotFound = errors.New("screen not found")
	ErrFindNotFound   = errors.New("find string not found in screen")
)

type Screen struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Left      float64   `json:"left"`
	Top       float64   `json:"top"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ChangeKind string

const (
	ScreenAdded   ChangeKind = "add"
	ScreenUpdated ChangeKind = "update"
	ThemeUpdated  ChangeKind = "set-theme"
	ThemeReplaced ChangeKind = "replace-theme"
)

// Change describes one mutation of a State. Screen is a copy taken after the
// mutation; Theme holds the variables that were written.
type Change struct {
	Kind   ChangeKind
	Screen *Screen
	Theme  map[string]string
}

// State is the set of screens and theme variables of a session. It is owned
// by a single request at a time and is not safe for concurrent use.
type State struct {
	screens  *orderedmap.OrderedMap[string, *Screen]
	theme    *orderedmap.OrderedMap[string, string]
	observer func(Change)
	now      func() time.Time
}

func New() *State {
	return &State{
		screens: orderedmap.New[string, *Screen](),
		theme:   orderedmap.New[string, string](),
		now:     time.Now,
	}
}

// Observe registers fn to be called after each mutation. The returned
// function restores the previous observer.
func (s *State) Observe(fn func(Change)) func() {
	prev := s.observer
	s.observer = fn
	return func() { s.observer = prev }
}

func (s *State) notify(c Change) {
	if s.observer != nil {
		s.observer(c)
	}
}

func (s *State) Len() int {
	return s.screens.Len()
}

// Screens returns copies of all screens in insertion order.
func (s *State) Screens() []Screen {
	out := make([]Screen, 0, s.screens.Len())
	for pair := s.screens.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, *pair.Value)
	}
	return out
}

func (s *State) Screen(id string) (Screen, bool) {
	sc, ok := s.screens.Get(id)
	if !ok {
		return Screen{}, false
	}
	return *sc, true
}

// NextPosition returns where the next screen goes: one slot right of the
// most recently added screen, on the same row.
func (s *State) NextPosition() (left, top float64) {
	last := s.screens.Newest()
	if last == nil {
		return 0, 0
	}
	return last.Value.Left + FrameSpacing, last.Value.Top
}

// AddScreen places a new screen in the next slot. If id already exists the
// existing screen takes the new label and body.
func (s *State) AddScreen(id, label, body string) Screen {
	if _, ok := s.screens.Get(id); ok {
		sc, _ := s.UpdateScreen(id, func(sc *Screen) {
			sc.Label = label
			sc.Body = body
		})
		return sc
	}
	left, top := s.NextPosition()
	now := s.now()
	sc := &Screen{
		ID:        id,
		Label:     label,
		Left:      left,
		Top:       top,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.screens.Set(id, sc)
	cp := *sc
	s.notify(Change{Kind: ScreenAdded, Screen: &cp})
	return cp
}

// UpdateScreen applies fn to the screen with id.
func (s *State) UpdateScreen(id string, fn func(*Screen)) (Screen, bool) {
	sc, ok := s.screens.Get(id)
	if !ok {
		return Screen{}, false
	}
	fn(sc)
	sc.ID = id
	sc.UpdatedAt = s.now()
	cp := *sc
	s.notify(Change{Kind: ScreenUpdated, Screen: &cp})
	return cp, true
}

// Edit replaces the first occurrence of find in the body of screen id.
func (s *State) Edit(id, find, replace string) (Screen, error) {
	sc, ok := s.screens.Get(id)
	if !ok || sc.Body == "" {
		return Screen{}, ErrScreenNotFound
	}
	if find == "" || !strings.Contains(sc.Body, find) {
		return Screen{}, ErrFindNotFound
	}
	updated, _ := s.UpdateScreen(id, func(sc *Screen) {
		sc.Body = strings.Replace(sc.Body, find, replace, 1)
	})
	return updated, nil
}

// NormalizeThemeKey returns the custom-property form of a theme variable name.
func NormalizeThemeKey(k string) string {
	k = strings.TrimSpace(k)
	if strings.HasPrefix(k, "--") {
		return k
	}
	return "--" + strings.TrimLeft(k, "-")
}

func (s *State) ThemeLen() int {
	return s.theme.Len()
}

// Theme returns a copy of the theme variables.
func (s *State) Theme() map[string]string {
	out := make(map[string]string, s.theme.Len())
	for pair := s.theme.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = pair.Value
	}
	return out
}

// ThemeVar is one theme entry in declaration order.
type ThemeVar struct {
	Name  string
	Value string
}

func (s *State) ThemeVars() []ThemeVar {
	out := make([]ThemeVar, 0, s.theme.Len())
	for pair := s.theme.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, ThemeVar{Name: pair.Key, Value: pair.Value})
	}
	return out
}

// MergeTheme sets the given variables, keeping every other variable.
func (s *State) MergeTheme(updates map[string]string) map[string]string {
	written := s.setTheme(updates)
	s.notify(Change{Kind: ThemeUpdated, Theme: written})
	return written
}

// ReplaceTheme discards the current theme and installs vars.
func (s *State) ReplaceTheme(vars map[string]string) map[string]string {
	s.theme = orderedmap.New[string, string]()
	written := s.setTheme(vars)
	s.notify(Change{Kind: ThemeReplaced, Theme: written})
	return written
}

func (s *State) setTheme(vars map[string]string) map[string]string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	written := make(map[string]string, len(vars))
	for _, k := range keys {
		name := NormalizeThemeKey(k)
		if name == "--" {
			continue
		}
		v := strings.TrimSpace(vars[k])
		s.theme.Set(name, v)
		written[name] = v
	}
	return written
}

type stateJSON struct {
	Screens []Screen                               `json:"screens"`
	Theme   *orderedmap.OrderedMap[string, string] `json:"theme"`
}

func (s *State) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateJSON{Screens: s.Screens(), Theme: s.theme})
}

func (s *State) UnmarshalJSON(data []byte) error {
	var v stateJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	s.screens = orderedmap.New[string, *Screen]()
	for i := range v.Screens {
		sc := v.Screens[i]
		s.screens.Set(sc.ID, &sc)
	}
	s.theme = v.Theme
	if s.theme == nil {
		s.theme = orderedmap.New[string, string]()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return nil
}

package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmuk/sleek/pkg/design"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

func TestSessionLifecycle(t *testing.T) {
	store := NewStore(t.TempDir())
	s, err := store.New("/work")
	require.NoError(t, err)
	defer s.Close()

	st := design.New()
	st.AddScreen("a", "Home", "<p>hi</p>")
	st.MergeTheme(map[string]string{"--primary": "#000"})
	require.NoError(t, s.SaveState(st))
	require.NoError(t, AppendHistory(s, entry{"user", "hello"}, entry{"assistant", "hi"}))
	require.NoError(t, AppendHistory(s, entry{"user", "again"}))
	require.NoError(t, s.SetBackend("gemini"))

	reopened, err := store.Open(s.ID())
	require.NoError(t, err)
	assert.Equal(t, "/work", reopened.WorkingDir())
	assert.Equal(t, "gemini", reopened.Backend())

	loaded, err := reopened.LoadState()
	require.NoError(t, err)
	assert.Equal(t, st.Screens()[0].Body, loaded.Screens()[0].Body)
	assert.Equal(t, st.Theme(), loaded.Theme())

	history, err := LoadHistory[entry](reopened)
	require.NoError(t, err)
	assert.Equal(t, []entry{{"user", "hello"}, {"assistant", "hi"}, {"user", "again"}}, history)
}

func TestEmptySession(t *testing.T) {
	store := NewStore(t.TempDir())
	s, err := store.New("/work")
	require.NoError(t, err)

	st, err := s.LoadState()
	require.NoError(t, err)
	assert.Equal(t, 0, st.Len())

	history, err := LoadHistory[entry](s)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestList(t *testing.T) {
	store := NewStore(t.TempDir())
	first, err := store.New("/a")
	require.NoError(t, err)
	second, err := store.New("/a")
	require.NoError(t, err)
	_, err = store.New("/b")
	require.NoError(t, err)

	sessions, err := store.List("/a")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, second.ID(), sessions[0].ID())
	assert.Equal(t, first.ID(), sessions[1].ID())

	none, err := store.List("/c")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = store.Open("not-a-uuid")
	assert.Error(t, err)
}

func TestLoggers(t *testing.T) {
	store := NewStore(t.TempDir())
	s, err := store.New("/work")
	require.NoError(t, err)

	ctx := With(context.Background(), s)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, s, got)

	Logger(ctx, "agent").Info("hello", "n", 1)
	_, err = s.GetLogger("bad/name")
	assert.Error(t, err)
	require.NoError(t, s.Close())

	data, err := os.ReadFile(filepath.Join(s.Path(), "logs", "agent.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)

	assert.NotNil(t, Logger(context.Background(), "agent"))
}

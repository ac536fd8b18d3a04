package sse

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan(t *testing.T) {
	input := strings.Join([]string{
		": keep-alive",
		"",
		"event: message_start",
		"data: {\"a\":1}",
		"",
		"",
		"id: 7",
		"data: line1",
		"data:line2",
		"",
		"event: ping",
	}, "\n")
	s := NewScanner(strings.NewReader(input))

	ev, err := s.Scan()
	require.NoError(t, err)
	assert.Equal(t, &Event{Event: "message_start", Data: `{"a":1}`}, ev)

	ev, err = s.Scan()
	require.NoError(t, err)
	assert.Equal(t, &Event{ID: "7", Data: "line1\nline2"}, ev)

	ev, err = s.Scan()
	require.NoError(t, err)
	assert.Equal(t, &Event{Event: "ping"}, ev)

	_, err = s.Scan()
	assert.ErrorIs(t, err, io.EOF)
}

func TestScanMalformed(t *testing.T) {
	s := NewScanner(strings.NewReader("garbage\ndata: x\n\nevent: ok\n\n"))
	_, err := s.Scan()
	assert.ErrorContains(t, err, "colon not found")

	ev, err := s.Scan()
	require.NoError(t, err)
	assert.Equal(t, "ok", ev.Event)
}

func TestAll(t *testing.T) {
	s := NewScanner(strings.NewReader("event: a\n\nevent: b\n\nevent: c\n\n"))
	var names []string
	for ev, err := range s.All() {
		require.NoError(t, err)
		names = append(names, ev.Event)
		if ev.Event == "b" {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestLongLine(t *testing.T) {
	long := strings.Repeat("x", 200*1024)
	s := NewScanner(strings.NewReader("data: " + long + "\n\n"))
	ev, err := s.Scan()
	require.NoError(t, err)
	assert.Len(t, ev.Data, len(long))
}

func TestBOMAndRetry(t *testing.T) {
	s := NewScanner(strings.NewReader("\ufeffevent: open\nretry: 3000\n\n"))
	ev, err := s.Scan()
	require.NoError(t, err)
	assert.Equal(t, &Event{Event: "open", Retry: "3000"}, ev)
}

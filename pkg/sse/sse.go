// Package sse parses server-sent event streams.
package sse

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
)

const maxLineSize = 4 << 20

// Event is a single dispatched event.
type Event struct {
	Event string `json:"event"`
	Data  string `json:"data"`
	ID    string `json:"id"`
	// Retry is the reconnection time the server asked for, if any.
	Retry string `json:"retry,omitempty"`
}

type Scanner struct {
	scanner *bufio.Scanner
	started bool
}

func NewScanner(r io.Reader) *Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Scanner{scanner: s}
}

// Scan reads the next event. It returns io.EOF once the input is exhausted.
// Blocks that hold only comments are skipped.
func (s *Scanner) Scan() (*Event, error) {
	for {
		ev, read, err := s.block()
		if err != nil {
			return nil, err
		}
		if !read {
			if err := s.scanner.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		if ev != nil {
			return ev, nil
		}
	}
}

func (s *Scanner) block() (*Event, bool, error) {
	ev := &Event{}
	var err error
	var read, fields bool
	var data []string
	for s.scanner.Scan() {
		l := s.scanner.Text()
		if !s.started {
			l = strings.TrimPrefix(l, "\ufeff")
			s.started = true
		}
		if l == "" {
			if read {
				break
			}
			continue
		}
		read = true
		if strings.HasPrefix(l, ":") {
			continue
		}
		tag, value, ok := strings.Cut(l, ":")
		if !ok {
			err = errors.Join(err, fmt.Errorf("colon not found: %s", l))
			continue
		}
		value = strings.TrimPrefix(value, " ")
		switch tag {
		case "event":
			ev.Event = value
			fields = true
		case "data":
			data = append(data, value)
			fields = true
		case "id":
			ev.ID = value
			fields = true
		case "retry":
			ev.Retry = value
			fields = true
		}
	}
	if err != nil {
		return nil, read, err
	}
	if !fields {
		return nil, read, nil
	}
	ev.Data = strings.Join(data, "\n")
	return ev, read, nil
}

// All iterates over the remaining events. A malformed block is reported and
// scanning continues; read errors end the iteration.
func (s *Scanner) All() iter.Seq2[*Event, error] {
	return func(yield func(*Event, error) bool) {
		for {
			ev, err := s.Scan()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(ev, err) {
				return
			}
			if err != nil && s.scanner.Err() != nil {
				return
			}
		}
	}
}

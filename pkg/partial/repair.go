// Package partial reconstructs tool-call arguments while they are still being
// streamed by a model.
package partial

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Repair parses a possibly truncated JSON object. Unterminated strings,
// dangling colons, trailing commas and unclosed containers are closed so that
// the longest complete prefix can be decoded. The second return value is false
// when the text does not begin an object or cannot be made valid.
func Repair(text string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
		return obj, obj != nil
	}

	fixed, ok := closeJSON(trimmed)
	if !ok {
		return nil, false
	}
	if err := json.Unmarshal([]byte(fixed), &obj); err != nil {
		return nil, false
	}
	return obj, obj != nil
}

// closeJSON appends whatever is needed to terminate text.
func closeJSON(text string) (string, bool) {
	var stack []byte
	inString := false
	escaped := false
	escapeStart := -1

	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
				escapeStart = i
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return "", false
			}
			stack = stack[:len(stack)-1]
		}
	}

	var b strings.Builder
	if inString {
		b.WriteString(trimEscape(text, escaped, escapeStart))
		b.WriteByte('"')
	} else {
		body := strings.TrimRightFunc(text, isSpace)
		switch {
		case strings.HasSuffix(body, ":"):
			b.WriteString(body)
			b.WriteString(`""`)
		case strings.HasSuffix(body, ","):
			b.WriteString(strings.TrimSuffix(body, ","))
		default:
			b.WriteString(body)
		}
	}
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String(), true
}

// trimEscape drops an escape sequence cut off by the end of the buffer. A
// high surrogate whose low half has not arrived yet is dropped too.
func trimEscape(text string, escaped bool, start int) string {
	switch {
	case escaped:
		text = text[:len(text)-1]
	case start >= 0 && start+1 < len(text) && text[start+1] == 'u' && len(text)-start < 6:
		text = text[:start]
	}
	return dropHighSurrogate(text)
}

func dropHighSurrogate(text string) string {
	if len(text) < 6 {
		return text
	}
	tail := text[len(text)-6:]
	if tail[0] != '\\' || tail[1] != 'u' {
		return text
	}
	// The backslash must not be escaped itself.
	n := 0
	for i := len(text) - 7; i >= 0 && text[i] == '\\'; i-- {
		n++
	}
	if n%2 == 1 {
		return text
	}
	v, err := strconv.ParseUint(tail[2:], 16, 16)
	if err != nil || v < 0xD800 || v > 0xDBFF {
		return text
	}
	return text[:len(text)-6]
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

package partial

import (
	"strconv"
	"strings"
	"unicode/utf16"
)

// ScanString extracts the value of a string field directly from raw,
// possibly truncated, JSON text. It locates the literal "key" token, skips to
// the next quote and decodes escapes until the closing quote or the end of
// the buffer. An escape sequence cut off by the end of the buffer is not
// emitted, so successive calls over a growing buffer return growing prefixes
// of the final value. The second return value is false when nothing was
// decoded.
func ScanString(buf, key string) (string, bool) {
	token := `"` + key + `"`
	idx := strings.Index(buf, token)
	if idx < 0 {
		return "", false
	}
	rest := buf[idx+len(token):]
	start := strings.IndexByte(rest, '"')
	if start < 0 {
		return "", false
	}
	rest = rest[start+1:]

	var b strings.Builder
	for i := 0; i < len(rest); {
		c := rest[i]
		if c == '"' {
			break
		}
		if c != '\\' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 >= len(rest) {
			break
		}
		n, ok := decodeEscape(rest[i:], &b)
		if !ok {
			break
		}
		i += n
	}
	out := b.String()
	return out, out != ""
}

// decodeEscape writes the escape at the start of s and returns its length.
func decodeEscape(s string, b *strings.Builder) (int, bool) {
	switch s[1] {
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'u':
		r, ok := hexRune(s)
		if !ok {
			return 0, false
		}
		if utf16.IsSurrogate(r) {
			if len(s) < 12 {
				return 0, false
			}
			if s[6] == '\\' && s[7] == 'u' {
				if lo, ok := hexRune(s[6:]); ok {
					b.WriteRune(utf16.DecodeRune(r, lo))
					return 12, true
				}
			}
		}
		b.WriteRune(r)
		return 6, true
	default:
		b.WriteByte(s[1])
	}
	return 2, true
}

func hexRune(s string) (rune, bool) {
	if len(s) < 6 {
		return 0, false
	}
	v, err := strconv.ParseUint(s[2:6], 16, 32)
	if err != nil {
		return 0, false
	}
	return rune(v), true
}

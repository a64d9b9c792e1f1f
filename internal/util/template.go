package util

import (
	"fmt"
	"strings"
)

// RenderTemplate substitutes {name} placeholders in text with values from vars.
// Names missing from vars render as the empty string. Literal braces are
// written as {{ and }}. A placeholder that is never closed, or whose name is
// not a plain identifier, is an error.
// This lives in internal to avoid committing to public API stability prematurely.
func RenderTemplate(text string, vars map[string]string) (string, error) {
	if !strings.ContainsAny(text, "{}") { // fast path: no template markers
		return text, nil
	}

	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case '{':
			if i+1 < len(text) && text[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}

			end := strings.IndexByte(text[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("unterminated placeholder at offset %d", i)
			}

			name := text[i+1 : i+1+end]
			if !isIdentifier(name) {
				return "", fmt.Errorf("invalid placeholder %q at offset %d", name, i)
			}

			b.WriteString(vars[name])
			i += end + 1
		case '}':
			if i+1 < len(text) && text[i+1] == '}' {
				i++
			}
			b.WriteByte('}')
		default:
			b.WriteByte(c)
		}
	}

	return b.String(), nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}

	return true
}

package utils

import "strings"

// RenderTemplate substitutes {key} markers found in values. Unknown markers,
// unbalanced braces and empty {} are copied to the output verbatim.
func RenderTemplate(tmpl string, values map[string]string) string {
	if !strings.Contains(tmpl, "{") {
		return tmpl
	}

	var b strings.Builder
	b.Grow(len(tmpl))
	rest := tmpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String()
		}
		b.WriteString(rest[:open])
		rest = rest[open:]

		end := strings.IndexAny(rest[1:], "{}")
		if end < 0 || rest[1+end] == '{' {
			// no closing brace before the next opening one
			b.WriteByte('{')
			rest = rest[1:]
			continue
		}
		key := rest[1 : 1+end]
		if value, ok := values[key]; ok && key != "" {
			b.WriteString(value)
		} else {
			b.WriteString(rest[:end+2])
		}
		rest = rest[end+2:]
	}
}

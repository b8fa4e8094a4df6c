package tools

import "strings"

// Quote escapes s for embedding inside a double-quoted AppleScript
// string literal. Backslashes and double quotes are escaped; everything
// else (including newlines via the literal form AppleScript accepts)
// passes through. Every user-supplied value interpolated into a script
// must go through this; it is the injection boundary.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\', '"':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

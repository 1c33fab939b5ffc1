package sanitize

import (
	"strings"
	"unicode"
)

// Content normalizes user-supplied message text. Control characters are
// stripped except newline and tab, and surrounding whitespace is trimmed.
// Content is stored and rendered as plain text, so no HTML escaping
// happens here.
func Content(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// Filename strips path separators, traversal sequences, and control
// characters from attachment filenames.
func Filename(name string) string {
	name = strings.TrimSpace(name)

	for _, seq := range []string{"../", "..\\", "./", ".\\"} {
		name = strings.ReplaceAll(name, seq, "")
	}
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

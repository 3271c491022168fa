package chat

import (
	"strings"
	"unicode/utf8"

	"github.com/onnwee/streamctl/alias"
)

// Message is one observed chat entry. It is immutable once constructed; two
// messages are duplicates when author, timestamp, and text are all equal.
type Message struct {
	Author    string
	Timestamp string
	Text      string
}

// Normalize applies the light cleanup every incoming message receives and, for
// text that looks like a command, rewrites recognized alias substrings to their
// canonical form.
//
// Cleanup: trim, then `@` and the full-width `！` become `!`, and `+` becomes a
// space (mobile keyboards produce all three in place of the ASCII originals).
// Alias rewriting only applies when the cleaned text is longer than one rune
// and starts with the command prefix; every alias occurrence is replaced, not
// just the first.
func Normalize(text, prefix string, aliases alias.Table) string {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.NewReplacer("@", "!", "！", "!", "+", " ").Replace(cleaned)

	if utf8.RuneCountInString(cleaned) <= 1 || !strings.HasPrefix(cleaned, prefix) {
		return cleaned
	}
	for a, canonical := range aliases {
		if a == canonical {
			continue
		}
		cleaned = strings.ReplaceAll(cleaned, a, canonical)
	}
	return cleaned
}

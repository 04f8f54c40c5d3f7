package convert

import (
	"strings"
	"unicode/utf8"
)

// TextConverter passes plain text through with normalized line endings.
type TextConverter struct{}

// Convert normalizes CRLF and CR line endings to LF and drops invalid UTF-8.
func (TextConverter) Convert(raw []byte) (*Converted, error) {
	return &Converted{Content: normalizeText(raw)}, nil
}

func normalizeText(raw []byte) string {
	text := string(raw)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

package domain

import (
	"regexp"
	"strings"
)

var codeFenceRegex = regexp.MustCompile("^```[a-zA-Z0-9]*\n|\n```$")

// StripCodeFences removes wrapping markdown code-fence markers a generative
// model may emit despite instructions. Applied before any structured parse of
// completer output.
func StripCodeFences(text string) string {
	return codeFenceRegex.ReplaceAllString(strings.TrimSpace(text), "")
}

package prompt

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// whitespaceRegex matches one or more whitespace characters
var whitespaceRegex = regexp.MustCompile(`\s+`)

// Normalize cleans prompt text before it is stored:
// 1. Trim leading/trailing whitespace
// 2. Collapse each whitespace run containing a line break to a single "\n"
// 3. Collapse every other whitespace run to a single space
func Normalize(text string) string {
	text = strings.TrimSpace(text)
	return whitespaceRegex.ReplaceAllStringFunc(text, func(run string) string {
		if strings.ContainsAny(run, "\r\n") {
			return "\n"
		}
		return " "
	})
}

// CountChars returns the character count as runes (not bytes).
func CountChars(text string) int {
	return utf8.RuneCountInString(text)
}

// Truncate shortens text to at most maxChars runes, appending "..." when cut.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || CountChars(text) <= maxChars {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxChars]) + "..."
}

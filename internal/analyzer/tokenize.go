package analyzer

import (
	"strings"
	"unicode"
)

// Tokenize splits text into lower-cased word tokens. A token is a maximal run
// of letters, digits and inner apostrophes; leading and trailing apostrophes
// are dropped.
func Tokenize(text string) []string {
	text = normalizeApostrophes.Replace(text)
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "'")
		if f == "" {
			continue
		}
		tokens = append(tokens, strings.ToLower(f))
	}
	return tokens
}

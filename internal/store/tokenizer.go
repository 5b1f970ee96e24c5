package store

import (
	"regexp"
	"strings"
)

// wordRegex matches runs of letters and digits; everything else separates tokens.
var wordRegex = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Tokenize lowercases text and splits it on non-alphanumeric boundaries.
// Indexing and querying must use the same function.
func Tokenize(text string) []string {
	return wordRegex.FindAllString(strings.ToLower(text), -1)
}

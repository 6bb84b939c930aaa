// Package tokenizer provides the canonical tokenisation shared by vocabulary
// construction and every encoder. It lower-cases input and splits it into
// maximal runs of word runes other than decimal digits: letters, the
// underscore, and non-decimal numerals such as superscripts or roman numeral
// runes. Decimal digits, other punctuation and whitespace separate tokens.
// The rule is locale-independent so that every consumer derives the same ids.
package tokenizer

import (
	"strings"
	"unicode"
)

// Tokenize breaks text into lower-cased word tokens in their original order.
// Repeated tokens are kept; callers count or dedupe as they need.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	words := strings.FieldsFunc(text, func(r rune) bool { return !isWordRune(r) })
	if len(words) == 0 {
		return nil
	}
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		tokens = append(tokens, lower(word))
	}
	return tokens
}

func isWordRune(r rune) bool {
	switch {
	case unicode.IsLetter(r), r == '_':
		return true
	case unicode.IsNumber(r):
		return !unicode.IsDigit(r)
	}
	return false
}

// TokenizePtr tokenizes an optional field; a nil field has no tokens.
func TokenizePtr(text *string) []string {
	if text == nil {
		return nil
	}
	return Tokenize(*text)
}

// lower applies simple per-rune case folding, avoiding the special-casing
// rules strings.ToLower takes from the Unicode tables for some scripts.
func lower(word string) string {
	var b strings.Builder
	b.Grow(len(word))
	for _, r := range word {
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

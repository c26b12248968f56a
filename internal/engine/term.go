// Package engine implements the term-level index machinery: tokenization,
// stemming, the query tree, its parser, and the matcher that evaluates
// trees against a db.Store.
package engine

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball"
)

// Tokenize splits text into lowercased word tokens. A token is a maximal
// run of letters and digits.
func Tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(unicode.ToLower(r))
			continue
		}
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

// Stemmer reduces words to snowball stems for a fixed language. The zero
// value (or an empty language) disables stemming.
type Stemmer struct {
	lang string
}

// NewStemmer creates a stemmer for a snowball language name ("english",
// "russian", ...). An empty name disables stemming.
func NewStemmer(lang string) *Stemmer {
	return &Stemmer{lang: lang}
}

// Stem returns the stem of word. ok is false when stemming is disabled.
// Words the algorithm cannot process are returned unchanged.
func (s *Stemmer) Stem(word string) (string, bool) {
	if s == nil || s.lang == "" {
		return word, false
	}
	stemmed, err := snowball.Stem(word, s.lang, false)
	if err != nil || stemmed == "" {
		return word, true
	}
	return stemmed, true
}

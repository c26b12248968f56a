package engine

import (
	"context"
	"strings"
	"unicode"
)

const maxEditDistance = 2

// Suggest proposes a corrected spelling for word from the indexed term
// dictionary. It returns "" when no unprefixed term lies within two edits.
// A word that is itself indexed is returned unchanged.
func (e *Engine) Suggest(ctx context.Context, word string) (string, error) {
	word = strings.ToLower(word)

	terms, err := e.Store.TermsWithPrefix(ctx, "")
	if err != nil {
		return "", err
	}

	best := ""
	bestDist := maxEditDistance + 1
	for _, term := range terms {
		// Prefixed terms (field, stem, identifier) start with an upper-case
		// marker; only plain content terms are candidates.
		first, _ := firstRune(term)
		if unicode.IsUpper(first) {
			continue
		}
		d := editDistance(word, term)
		if d < bestDist || (d == bestDist && best != "" && term < best) {
			best = term
			bestDist = d
		}
		if bestDist == 0 {
			break
		}
	}
	if bestDist > maxEditDistance {
		return "", nil
	}
	return best, nil
}

func firstRune(s string) (rune, bool) {
	for _, r := range s {
		return r, true
	}
	return 0, false
}

func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(min(cur[j-1]+1, prev[j]+1), prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Package highlight wraps query words found in result text with emphasis
// tags.
package highlight

import (
	"regexp"
	"sort"
	"strings"
)

const tag = "em"

// Words extracts the highlightable words of a raw query: whitespace-split
// tokens with wildcard stars removed and the AND/OR operators skipped.
func Words(query string) []string {
	var words []string
	for _, w := range strings.Fields(query) {
		w = strings.ReplaceAll(w, "*", "")
		if w == "" || w == "AND" || w == "OR" {
			continue
		}
		words = append(words, w)
	}
	return words
}

// Highlight wraps each case-insensitive occurrence of the query words in
// text with <em> tags. The wrapped text is the word as the query spelled
// it, not as it appears in text. Text without any occurrence is returned
// unchanged.
func Highlight(text, query string) string {
	words := Words(query)
	if len(words) == 0 {
		return text
	}

	// Longest words first so overlapping alternatives prefer the longer
	// match.
	sort.Slice(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })
	quoted := make([]string, len(words))
	spelled := make(map[string]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
		spelled[strings.ToLower(w)] = w
	}

	re, err := regexp.Compile(`(?i)` + strings.Join(quoted, "|"))
	if err != nil {
		return text
	}
	return re.ReplaceAllStringFunc(text, func(m string) string {
		w, ok := spelled[strings.ToLower(m)]
		if !ok {
			w = m
		}
		return "<" + tag + ">" + w + "</" + tag + ">"
	})
}

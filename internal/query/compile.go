// Package query turns filter-node chains into boolean query expressions and
// resolves range tokens against the field schema.
package query

import (
	"fmt"
	"strings"

	"github.com/joshuajonah/xapian-haystack/internal/domain/document"
	"github.com/joshuajonah/xapian-haystack/internal/domain/search/filter"
	"github.com/joshuajonah/xapian-haystack/internal/value"
)

// Reserved words and characters of the query syntax. Compilation emits raw
// values without escaping; callers embedding user text into clauses should
// consult these lists.
var (
	ReservedWords = []string{"AND", "NOT", "OR", "XOR", "NEAR", "ADJ"}

	ReservedCharacters = []string{
		"\\", "+", "-", "&&", "||", "!", "(", ")", "{", "}",
		"[", "]", "^", "\"", "~", "*", "?", ":",
	}
)

// emission patterns per operator, indexed by negation.
var (
	positivePatterns = map[filter.Operator]string{
		filter.OpExact:      "%s:%s",
		filter.OpGTE:        "%s:%s..*",
		filter.OpGT:         "NOT %s:..%s",
		filter.OpLTE:        "%s:..%s",
		filter.OpLT:         "NOT %s:%s..*",
		filter.OpStartsWith: "%s:%s*",
	}

	// Negating gt emits the lte-style range and vice versa: a De Morgan
	// rewrite that keeps range boundaries inclusive/exclusive correctly.
	negatedPatterns = map[filter.Operator]string{
		filter.OpExact:      "NOT %s:%s",
		filter.OpGTE:        "NOT %s:%s..*",
		filter.OpGT:         "%s:..%s",
		filter.OpLTE:        "NOT %s:..%s",
		filter.OpLT:         "%s:%s..*",
		filter.OpStartsWith: "NOT %s:%s*",
	}
)

// Compile emits the query expression for an ordered filter-node chain,
// wrapped with a model-type restriction when models are given.
func Compile(nodes []filter.Node, models []filter.ModelRef) string {
	var q string

	if len(nodes) == 0 {
		q = "*" // universal match
	} else {
		var chunks []string

		for _, n := range nodes {
			if n.Connector == filter.ConnAnd {
				chunks = append(chunks, "AND")
			}
			if n.Connector == filter.ConnOr {
				chunks = append(chunks, "OR")
			}
			if n.Negated && n.Field == filter.ContentField {
				chunks = append(chunks, "NOT")
			}

			// Sequences keep their raw element values; scalars are
			// marshalled and phrase-quoted when they contain spaces.
			var val string
			if n.Op != filter.OpIn {
				val = value.Marshal(n.Value)
				if strings.Contains(val, " ") {
					val = `"` + val + `"`
				}
			}

			// content is a reserved pseudo-field meaning "no field prefix".
			if n.Field == filter.ContentField {
				chunks = append(chunks, val)
				continue
			}

			if n.Negated {
				chunks = append(chunks, "AND")
			}

			if n.Op != filter.OpIn {
				patterns := positivePatterns
				if n.Negated {
					patterns = negatedPatterns
				}
				chunks = append(chunks, fmt.Sprintf(patterns[n.Op], n.Field, val))
				continue
			}

			opts := make([]string, len(n.Values))
			for i, pv := range n.Values {
				opts[i] = fmt.Sprintf("%s:%s", n.Field, fmt.Sprint(pv))
			}
			if n.Negated {
				// Chained exclusion, not a single grouped NOT.
				chunks = append(chunks, "NOT "+strings.Join(opts, " NOT "))
			} else {
				chunks = append(chunks, "("+strings.Join(opts, " OR ")+")")
			}
		}

		// Pull off an undesirable leading AND or OR left by the first
		// node's connector.
		if chunks[0] == "AND" || chunks[0] == "OR" {
			chunks = chunks[1:]
		}

		q = strings.Join(chunks, " ")
	}

	if len(models) == 0 {
		return q
	}
	restrictions := make([]string, len(models))
	for i, m := range models {
		restrictions[i] = document.TypeRestrictionField + ":" + m.String()
	}
	return "(" + q + ") " + strings.Join(restrictions, " ")
}

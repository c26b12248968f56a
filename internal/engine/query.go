package engine

import (
	"fmt"
	"strings"
)

type queryKind int

const (
	kindMatchAll queryKind = iota
	kindMatchNone
	kindTerm
	kindWildcard
	kindValueRange
	kindOr
	kindAnd
	kindAndNot
	kindAndMaybe
	kindFilter
	kindScale
)

// Query is a node of the parsed query tree. Trees are built by the Parser
// or by the constructor helpers and evaluated by Engine.Match.
type Query struct {
	kind queryKind

	// kindTerm: the exact term; kindWildcard: the term prefix.
	term string

	// kindValueRange.
	slot   int
	lo, hi string

	// kindScale.
	factor float64

	subs []*Query
}

// MatchAll matches every document with zero weight.
func MatchAll() *Query { return &Query{kind: kindMatchAll} }

// MatchNone matches nothing.
func MatchNone() *Query { return &Query{kind: kindMatchNone} }

// Term matches documents carrying the exact term.
func Term(term string) *Query { return &Query{kind: kindTerm, term: term} }

// Wildcard matches documents carrying any term with the given prefix.
func Wildcard(prefix string) *Query { return &Query{kind: kindWildcard, term: prefix} }

// ValueRange matches documents whose slot value lies in [lo, hi].
func ValueRange(slot int, lo, hi string) *Query {
	return &Query{kind: kindValueRange, slot: slot, lo: lo, hi: hi}
}

// Or matches the union of its subqueries. Nil subqueries are dropped.
func Or(subs ...*Query) *Query { return combine(kindOr, subs) }

// And matches the intersection of its subqueries. Nil subqueries are dropped.
func And(subs ...*Query) *Query { return combine(kindAnd, subs) }

// AndNot matches left minus right. A nil right leaves left unchanged.
func AndNot(left, right *Query) *Query {
	if right == nil {
		return left
	}
	if left == nil {
		left = MatchAll()
	}
	return &Query{kind: kindAndNot, subs: []*Query{left, right}}
}

// AndMaybe matches left; documents also matching right gain its weight.
func AndMaybe(left, right *Query) *Query {
	if left == nil {
		return right
	}
	if right == nil {
		return left
	}
	return &Query{kind: kindAndMaybe, subs: []*Query{left, right}}
}

// FilterBy matches left intersected with right, with right contributing no
// weight. A nil left is treated as match-all.
func FilterBy(left, right *Query) *Query {
	if right == nil {
		return left
	}
	if left == nil {
		left = MatchAll()
	}
	return &Query{kind: kindFilter, subs: []*Query{left, right}}
}

// Scale multiplies the weight contributed by q's matches by factor. A nil
// q stays nil.
func Scale(q *Query, factor float64) *Query {
	if q == nil {
		return nil
	}
	return &Query{kind: kindScale, factor: factor, subs: []*Query{q}}
}

func combine(kind queryKind, subs []*Query) *Query {
	kept := make([]*Query, 0, len(subs))
	for _, s := range subs {
		if s != nil {
			kept = append(kept, s)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return &Query{kind: kind, subs: kept}
}

// String renders the tree for logs and tests.
func (q *Query) String() string {
	if q == nil {
		return "<nil>"
	}
	switch q.kind {
	case kindMatchAll:
		return "<all>"
	case kindMatchNone:
		return "<none>"
	case kindTerm:
		return q.term
	case kindWildcard:
		return q.term + "*"
	case kindValueRange:
		return fmt.Sprintf("VALUE_RANGE %d %q %q", q.slot, q.lo, q.hi)
	case kindScale:
		return fmt.Sprintf("%g * %s", q.factor, q.subs[0])
	}
	names := map[queryKind]string{
		kindOr:       "OR",
		kindAnd:      "AND",
		kindAndNot:   "AND_NOT",
		kindAndMaybe: "AND_MAYBE",
		kindFilter:   "FILTER",
	}
	parts := make([]string, len(q.subs))
	for i, s := range q.subs {
		parts[i] = s.String()
	}
	return "(" + strings.Join(parts, " "+names[q.kind]+" ") + ")"
}

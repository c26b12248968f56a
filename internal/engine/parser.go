package engine

import (
	"strings"

	"github.com/joshuajonah/xapian-haystack/internal/domain/document"
)

// RangeFunc resolves a `field:lo..hi` pair into a value slot and marshalled
// bounds. ok=false drops the clause.
type RangeFunc func(begin, end string) (slot int, lo, hi string, ok bool)

// Parser turns a compiled query string into a Query tree.
//
// The grammar follows the query strings the compiler emits plus what users
// type into the content clause: AND/OR/NOT operators, parentheses, quoted
// phrases, field:value tokens, field:lo..hi ranges, trailing-star wildcards
// and +required/-excluded markers. Juxtaposed tokens join with OR.
//
// Type-restriction tokens (django_ct:...) are boolean: they carry no weight
// and are OR-grouped into a filter over the rest of their group.
type Parser struct {
	Stemmer *Stemmer
	Ranges  RangeFunc
}

type tokKind int

const (
	tokTerm tokKind = iota
	tokLParen
	tokRParen
	tokAnd
	tokOr
	tokNot
)

type token struct {
	kind     tokKind
	field    string
	text     string
	phrase   bool
	wildcard bool
	isRange  bool
	rangeEnd string
	love     bool
	hate     bool
}

// groupState collects the operand-less clauses of one parenthesized group:
// required (+) and excluded (-) terms and boolean type-restriction terms.
type groupState struct {
	loves []*Query
	hates []*Query
	types []*Query
}

type parser struct {
	cfg    *Parser
	toks   []token
	pos    int
	groups []*groupState
}

// Parse builds the query tree for q. A query that resolves to nothing (all
// clauses dropped) yields MatchNone.
func (p *Parser) Parse(q string) *Query {
	ps := &parser{cfg: p, toks: lex(q)}
	root := ps.parseGroup()
	if root == nil {
		return MatchNone()
	}
	return root
}

func lex(q string) []token {
	var toks []token
	i := 0
	for i < len(q) {
		c := q[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen})
			i++
		default:
			chunk, next := lexChunk(q, i)
			i = next
			if chunk == "" {
				continue
			}
			toks = append(toks, classify(chunk))
		}
	}
	return toks
}

// lexChunk reads one non-space run starting at i. Double quotes open a
// region where spaces and parens are part of the chunk.
func lexChunk(q string, i int) (string, int) {
	var b strings.Builder
	inQuote := false
	for i < len(q) {
		c := q[i]
		if c == '"' {
			inQuote = !inQuote
			b.WriteByte(c)
			i++
			continue
		}
		if !inQuote && (c == ' ' || c == '\t' || c == '\n' || c == '(' || c == ')') {
			break
		}
		b.WriteByte(c)
		i++
	}
	return b.String(), i
}

func classify(chunk string) token {
	switch chunk {
	case "AND":
		return token{kind: tokAnd}
	case "OR":
		return token{kind: tokOr}
	case "NOT":
		return token{kind: tokNot}
	}

	t := token{kind: tokTerm}
	if strings.HasPrefix(chunk, "+") {
		t.love = true
		chunk = chunk[1:]
	} else if strings.HasPrefix(chunk, "-") {
		t.hate = true
		chunk = chunk[1:]
	}

	if colon := strings.Index(chunk, ":"); colon > 0 {
		t.field = chunk[:colon]
		chunk = chunk[colon+1:]
	}

	if dots := strings.Index(chunk, ".."); dots >= 0 && t.field != "" {
		t.isRange = true
		t.text = chunk[:dots]
		t.rangeEnd = chunk[dots+2:]
		return t
	}

	if strings.HasPrefix(chunk, `"`) && strings.HasSuffix(chunk, `"`) && len(chunk) >= 2 {
		t.phrase = true
		chunk = chunk[1 : len(chunk)-1]
	} else if strings.HasSuffix(chunk, "*") && len(chunk) > 1 {
		t.wildcard = true
		chunk = chunk[:len(chunk)-1]
	}
	t.text = chunk
	return t
}

func (ps *parser) peek() (token, bool) {
	if ps.pos >= len(ps.toks) {
		return token{}, false
	}
	return ps.toks[ps.pos], true
}

func (ps *parser) parseGroup() *Query {
	g := &groupState{}
	ps.groups = append(ps.groups, g)
	q := ps.parseOr()
	ps.groups = ps.groups[:len(ps.groups)-1]

	if len(g.loves) > 0 {
		q = AndMaybe(And(g.loves...), q)
	}
	if len(g.hates) > 0 {
		q = AndNot(q, Or(g.hates...))
	}
	if len(g.types) > 0 {
		q = FilterBy(q, Or(g.types...))
	}
	return q
}

func (ps *parser) parseOr() *Query {
	q := ps.parseAnd()
	for {
		tok, ok := ps.peek()
		if !ok {
			return q
		}
		switch tok.kind {
		case tokOr:
			ps.pos++
			q = Or(q, ps.parseAnd())
		case tokTerm, tokLParen, tokNot:
			// Implicit juxtaposition joins with OR; a bare NOT starts a
			// pure-negation clause against match-all.
			q = Or(q, ps.parseAnd())
		default:
			return q
		}
	}
}

func (ps *parser) parseAnd() *Query {
	var q *Query
	if tok, ok := ps.peek(); ok && tok.kind != tokNot {
		q = ps.parsePrimary()
	}
	for {
		tok, ok := ps.peek()
		if !ok {
			return q
		}
		switch tok.kind {
		case tokAnd:
			ps.pos++
			// AND NOT folds into a single exclusion.
			if next, ok := ps.peek(); ok && next.kind == tokNot {
				ps.pos++
				q = AndNot(q, ps.parsePrimary())
				continue
			}
			q = And(q, ps.parsePrimary())
		case tokNot:
			ps.pos++
			q = AndNot(q, ps.parsePrimary())
		default:
			return q
		}
	}
}

// parsePrimary consumes one operand. It returns nil for clauses that carry
// no operand: dropped ranges, +/- markers and type-restriction terms, which
// are folded in at group level.
func (ps *parser) parsePrimary() *Query {
	tok, ok := ps.peek()
	if !ok {
		return nil
	}
	switch tok.kind {
	case tokLParen:
		ps.pos++
		q := ps.parseGroup()
		if next, ok := ps.peek(); ok && next.kind == tokRParen {
			ps.pos++
		}
		return q
	case tokTerm:
		ps.pos++
		return ps.termQuery(tok)
	default:
		// An operator where an operand belongs; skip it.
		ps.pos++
		return nil
	}
}

func (ps *parser) termQuery(t token) *Query {
	g := ps.groups[len(ps.groups)-1]

	if t.field == document.TypeRestrictionField {
		g.types = append(g.types, Term(document.ContentTypeTermPrefix+t.text))
		return nil
	}

	q := ps.buildTerm(t)
	if q == nil {
		return nil
	}
	if t.love {
		g.loves = append(g.loves, q)
		return nil
	}
	if t.hate {
		g.hates = append(g.hates, q)
		return nil
	}
	return q
}

func (ps *parser) buildTerm(t token) *Query {
	if t.isRange {
		if ps.cfg.Ranges == nil {
			return nil
		}
		slot, lo, hi, ok := ps.cfg.Ranges(t.field+":"+t.text, t.rangeEnd)
		if !ok {
			return nil
		}
		return ValueRange(slot, lo, hi)
	}

	if t.field == "" && t.text == "*" {
		return MatchAll()
	}

	prefix := ""
	if t.field != "" {
		prefix = document.FieldPrefix(t.field)
	}

	if t.wildcard {
		return Wildcard(prefix + strings.ToLower(t.text))
	}

	words := Tokenize(t.text)
	if len(words) == 0 {
		return nil
	}

	subs := make([]*Query, len(words))
	for i, w := range words {
		subs[i] = ps.wordQuery(prefix, w)
	}
	if t.phrase {
		return And(subs...)
	}
	return Or(subs...)
}

// wordQuery matches either the literal word or its stemmed form.
func (ps *parser) wordQuery(prefix, word string) *Query {
	plain := Term(prefix + word)
	stem, ok := ps.cfg.Stemmer.Stem(word)
	if !ok {
		return plain
	}
	return Or(plain, Term(document.StemTermPrefix+prefix+stem))
}

package haystack

import (
	"context"

	"github.com/joshuajonah/xapian-haystack/internal/domain/search/filter"
	"github.com/joshuajonah/xapian-haystack/internal/query"
)

// FilterOp is the comparison applied by one filter clause.
type FilterOp string

// Supported filter operators.
const (
	Exact      FilterOp = "exact"
	GT         FilterOp = "gt"
	GTE        FilterOp = "gte"
	LT         FilterOp = "lt"
	LTE        FilterOp = "lte"
	StartsWith FilterOp = "startswith"
)

// ContentField is the reserved pseudo-field meaning "no explicit field
// prefix": its clauses match the document body.
const ContentField = "content"

// QueryBuilder is a fluent builder compiling structured clauses into the
// query language. Clauses join left to right; the connector of the first
// clause is discarded.
type QueryBuilder struct {
	backend *Backend
	nodes   []filter.Node
	models  []filter.ModelRef
}

// Filter AND-joins a positive clause.
func (q *QueryBuilder) Filter(field string, op FilterOp, value any) *QueryBuilder {
	return q.add(field, op, value, nil, filter.ConnAnd, false)
}

// OrFilter OR-joins a positive clause.
func (q *QueryBuilder) OrFilter(field string, op FilterOp, value any) *QueryBuilder {
	return q.add(field, op, value, nil, filter.ConnOr, false)
}

// Exclude AND-joins a negated clause.
func (q *QueryBuilder) Exclude(field string, op FilterOp, value any) *QueryBuilder {
	return q.add(field, op, value, nil, filter.ConnAnd, true)
}

// OrExclude OR-joins a negated clause.
func (q *QueryBuilder) OrExclude(field string, op FilterOp, value any) *QueryBuilder {
	return q.add(field, op, value, nil, filter.ConnOr, true)
}

// FilterIn AND-joins a membership clause over the raw values.
func (q *QueryBuilder) FilterIn(field string, values ...any) *QueryBuilder {
	return q.add(field, FilterOp(filter.OpIn), nil, values, filter.ConnAnd, false)
}

// ExcludeIn AND-joins a negated membership clause.
func (q *QueryBuilder) ExcludeIn(field string, values ...any) *QueryBuilder {
	return q.add(field, FilterOp(filter.OpIn), nil, values, filter.ConnAnd, true)
}

// Content AND-joins a body clause: the value is emitted without a field
// prefix.
func (q *QueryBuilder) Content(value any) *QueryBuilder {
	return q.Filter(ContentField, Exact, value)
}

// Models restricts the query to the given entity types.
func (q *QueryBuilder) Models(models ...ModelRef) *QueryBuilder {
	for _, m := range models {
		q.models = append(q.models, filter.ModelRef{Namespace: m.Namespace, Name: m.Name})
	}
	return q
}

func (q *QueryBuilder) add(field string, op FilterOp, value any, values []any, conn filter.Connector, negated bool) *QueryBuilder {
	q.nodes = append(q.nodes, filter.Node{
		Field:     field,
		Op:        filter.Operator(op),
		Value:     value,
		Values:    values,
		Connector: conn,
		Negated:   negated,
	})
	return q
}

// String compiles the accumulated clauses into the query language.
func (q *QueryBuilder) String() string {
	return query.Compile(q.nodes, q.models)
}

// Run compiles and executes the query.
func (q *QueryBuilder) Run(ctx context.Context, opts *SearchOptions) (*ResultSet, error) {
	return q.backend.Search(ctx, q.String(), opts)
}

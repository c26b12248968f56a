// Package filter models the structured predicate a search is compiled from.
package filter

// Operator is the comparison applied by one filter node.
type Operator string

// Supported operators.
const (
	OpExact      Operator = "exact"
	OpGT         Operator = "gt"
	OpGTE        Operator = "gte"
	OpLT         Operator = "lt"
	OpLTE        Operator = "lte"
	OpStartsWith Operator = "startswith"
	OpIn         Operator = "in"
)

// Connector joins a node to the nodes before it. The connector of the first
// node is discarded when the final expression is emitted.
type Connector string

// Connector values.
const (
	ConnNone Connector = ""
	ConnAnd  Connector = "AND"
	ConnOr   Connector = "OR"
)

// ContentField is the reserved pseudo-field meaning "no explicit field
// prefix", matching the pk-style shorthand of the host entity layer.
const ContentField = "content"

// Node is one clause of the compiled predicate.
type Node struct {
	Field     string
	Op        Operator
	Value     any   // scalar value; unused when Values is set
	Values    []any // ordered values for OpIn
	Connector Connector
	Negated   bool
}

// ModelRef names one declared entity type for model-type restriction.
type ModelRef struct {
	Namespace string
	Name      string
}

func (m ModelRef) String() string {
	return m.Namespace + "." + m.Name
}

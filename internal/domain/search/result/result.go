// Package result defines the ephemeral per-match record built from a
// decoded document payload.
package result

// Record is one search match. Constructed per match, never persisted.
type Record struct {
	Namespace   string
	TypeName    string
	PK          string
	Score       float64
	Fields      map[string]any
	Highlighted map[string]string
}

// ID returns the dotted entity identity of the record.
func (r Record) ID() string {
	return r.Namespace + "." + r.TypeName + "." + r.PK
}

// Field returns a decoded field value.
func (r Record) Field(name string) any {
	return r.Fields[name]
}

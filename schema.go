package haystack

// FieldType tags a declared field with its value encoding.
type FieldType string

// Supported field types.
const (
	Text     FieldType = "text"
	Long     FieldType = "long"
	Float    FieldType = "float"
	Date     FieldType = "date"
	DateTime FieldType = "datetime"
	Boolean  FieldType = "boolean"
)

// FieldDeclaration describes one field of an entity index.
type FieldDeclaration struct {
	Name        string
	Type        FieldType
	Indexed     bool
	Document    bool // marks the body/content field
	MultiValued bool
}

// ModelRef names one declared entity type.
type ModelRef struct {
	Namespace string
	Name      string
}

// ModelIndex declares how one entity type is indexed: its identity, its
// field schema, and how an object is turned into prepared field values.
type ModelIndex interface {
	Namespace() string
	TypeName() string
	Fields() []FieldDeclaration
	// PrimaryKey returns the stable identifier of obj within the type.
	PrimaryKey(obj any) string
	// Prepare converts obj into per-field values keyed by field name.
	Prepare(obj any) map[string]any
}

// Package document defines stored-document identity, term prefixes, and the
// versioned payload record persisted with each document.
package document

import "strings"

// Term prefixes, shared by indexing and query parsing.
const (
	// IDTermPrefix starts every unique document identifier term.
	IDTermPrefix = "Q"
	// CustomTermPrefix starts every field-prefixed term.
	CustomTermPrefix = "X"
	// ContentTypeTermPrefix starts every type-marker term.
	ContentTypeTermPrefix = CustomTermPrefix + "CONTENTTYPE"
	// StemTermPrefix starts every stemmed term.
	StemTermPrefix = "Z"
)

// TypeRestrictionField is the pseudo-field used to restrict a query to
// declared entity types. It is registered as a boolean prefix on the parser.
const TypeRestrictionField = "django_ct"

// Identifier builds the unique identifier term for one entity instance.
func Identifier(namespace, typeName, pk string) string {
	return IDTermPrefix + namespace + "." + typeName + "." + pk
}

// TypeMarker builds the type-marker term for an entity type.
func TypeMarker(namespace, typeName string) string {
	return ContentTypeTermPrefix + namespace + "." + typeName
}

// FieldPrefix builds the term prefix for a declared field.
func FieldPrefix(field string) string {
	return CustomTermPrefix + strings.ToUpper(field)
}

// PayloadVersion is the current payload record format.
const PayloadVersion = 1

// Payload is the opaque per-document record: entity identity plus the
// prepared field values, serialised via internal/codec. Field-tagged rather
// than position-tagged so the stored format survives implementation changes.
type Payload struct {
	Version   int            `json:"v"`
	Namespace string         `json:"namespace"`
	TypeName  string         `json:"type"`
	PK        string         `json:"pk"`
	Fields    map[string]any `json:"fields"`
}

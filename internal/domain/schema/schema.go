// Package schema derives and persists the field schema of an index store.
package schema

import (
	"encoding/json"
	"fmt"
)

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

// Valid reports whether t is one of the supported field types.
func (t FieldType) Valid() bool {
	switch t {
	case Text, Long, Float, Date, DateTime, Boolean:
		return true
	}
	return false
}

// Declaration describes one field of an entity index.
type Declaration struct {
	Name        string
	Type        FieldType
	Indexed     bool
	Document    bool // marks the body/content field
	MultiValued bool
}

// Field is one schema entry. Column assignment is stable for the lifetime of
// an index generation; reopening the store reloads the identical schema.
type Field struct {
	Name        string    `json:"field_name"`
	Type        FieldType `json:"type"`
	MultiValued bool      `json:"multi_valued"`
	Column      int       `json:"column"`
}

// Schema is an ordered field list plus the content-field name.
type Schema struct {
	ContentField string
	Fields       []Field
}

// Build derives the schema from field declarations. Only indexed fields get
// columns, assigned sequentially from 0. When two fields are declared as the
// document field the later declaration wins (observed behaviour, kept as-is).
func Build(decls []Declaration) Schema {
	var s Schema
	column := 0
	for _, d := range decls {
		if d.Document {
			s.ContentField = d.Name
		}
		if !d.Indexed {
			continue
		}
		typ := d.Type
		if !typ.Valid() {
			typ = Text
		}
		s.Fields = append(s.Fields, Field{
			Name:        d.Name,
			Type:        typ,
			MultiValued: d.MultiValued,
			Column:      column,
		})
		column++
	}
	return s
}

// Field returns the schema entry for name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Column returns the value slot for a field, 0 when the field is unknown.
func (s Schema) Column(name string) int {
	if f, ok := s.Field(name); ok {
		return f.Column
	}
	return 0
}

// persisted is the versioned on-store form of the field list.
type persisted struct {
	Version int     `json:"v"`
	Fields  []Field `json:"fields"`
}

const formatVersion = 1

// EncodeFields serialises the field list for the store metadata slot.
func EncodeFields(fields []Field) ([]byte, error) {
	data, err := json.Marshal(persisted{Version: formatVersion, Fields: fields})
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	return data, nil
}

// DecodeFields deserialises a field list written by EncodeFields.
func DecodeFields(data []byte) ([]Field, error) {
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	if p.Version != formatVersion {
		return nil, fmt.Errorf("unsupported schema format version %d", p.Version)
	}
	return p.Fields, nil
}

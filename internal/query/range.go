package query

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/joshuajonah/xapian-haystack/internal/domain/schema"
	"github.com/joshuajonah/xapian-haystack/internal/value"
)

// RangeResolver resolves `field:lo..hi` tokens against a schema. It is
// injected into the engine's query parser as its value-range callback.
type RangeResolver struct {
	schema schema.Schema
}

// NewRangeResolver creates a resolver over the given schema.
func NewRangeResolver(s schema.Schema) *RangeResolver {
	return &RangeResolver{schema: s}
}

// Resolve parses a range token pair.
//
// begin is "field:lo" (lo may be empty, meaning the type minimum) and end is
// "hi" or "*" (the type maximum). Numeric bounds are marshalled before being
// returned; text and date bounds are passed through. ok is false when the
// field is not in the schema or a numeric bound does not parse, which drops
// the clause from the compiled query.
func (r *RangeResolver) Resolve(begin, end string) (slot int, lo, hi string, ok bool) {
	colon := strings.Index(begin, ":")
	if colon < 0 {
		return 0, "", "", false
	}
	fieldName := begin[:colon]
	lo = begin[colon+1:]
	hi = end

	f, found := r.schema.Field(fieldName)
	if !found {
		return 0, "", "", false
	}

	if lo == "" {
		switch f.Type {
		case schema.Text:
			lo = "a"
		case schema.Long:
			lo = strconv.FormatInt(math.MinInt64, 10)
		case schema.Float:
			lo = "-inf"
		case schema.Date, schema.DateTime:
			lo = "00010101000000"
		}
	}
	if hi == "*" {
		switch f.Type {
		case schema.Text:
			hi = strings.Repeat("z", 100)
		case schema.Long:
			hi = strconv.FormatInt(math.MaxInt64, 10)
		case schema.Float:
			hi = "inf"
		case schema.Date, schema.DateTime:
			hi = "99990101000000"
		}
	}

	switch f.Type {
	case schema.Float:
		flo, err := strconv.ParseFloat(lo, 64)
		if err != nil {
			return 0, "", "", false
		}
		fhi, err := strconv.ParseFloat(hi, 64)
		if err != nil {
			return 0, "", "", false
		}
		lo = value.SortableSerialise(flo)
		hi = value.SortableSerialise(fhi)
	case schema.Long:
		ilo, err := strconv.ParseInt(lo, 10, 64)
		if err != nil {
			return 0, "", "", false
		}
		ihi, err := strconv.ParseInt(hi, 10, 64)
		if err != nil {
			return 0, "", "", false
		}
		lo = fmt.Sprintf("%012d", ilo)
		hi = fmt.Sprintf("%012d", ihi)
	}

	return f.Column, lo, hi, true
}

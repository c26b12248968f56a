// Package facet defines transient facet buckets derived from a result set.
package facet

import "time"

// FieldBucket counts one distinct observed value of a faceted field.
type FieldBucket struct {
	Value any
	Count int
}

// DateBucket counts results falling after one bucket start timestamp.
type DateBucket struct {
	Start time.Time
	Label string // ISO-8601 without zone, e.g. 2009-02-01T00:00:00
	Count int
}

// QueryBucket reports the hit count of one sub-query facet.
type QueryBucket struct {
	Query string
	Hits  int
}

// GapUnit is the stepping unit of a date facet.
type GapUnit string

// Gap units.
const (
	GapYear   GapUnit = "year"
	GapMonth  GapUnit = "month"
	GapDay    GapUnit = "day"
	GapHour   GapUnit = "hour"
	GapMinute GapUnit = "minute"
	GapSecond GapUnit = "second"
)

// DateOptions parameterises one date facet.
type DateOptions struct {
	Start     time.Time
	End       time.Time
	GapBy     GapUnit
	GapAmount int
}

// Counts groups every facet kind computed for one search.
type Counts struct {
	Fields  map[string][]FieldBucket
	Dates   map[string][]DateBucket
	Queries map[string]QueryBucket
}

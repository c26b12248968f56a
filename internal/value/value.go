// Package value encodes typed field values into order-preserving strings
// used in document value slots and compiled range queries.
package value

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"
)

// Marshal converts a Go value to its sortable slot representation.
//
// Integers are zero-padded to twelve digits without a sign transform, so
// negative integers do not sort below zero lexicographically. Callers depend
// on the encoding as-is; changing it would invalidate existing stores.
func Marshal(v any) string {
	switch t := v.(type) {
	case time.Time:
		micro := t.Nanosecond() / 1000
		if micro != 0 {
			return fmt.Sprintf("%04d%02d%02d%02d%02d%02d%06d",
				t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second(), micro)
		}
		return fmt.Sprintf("%04d%02d%02d%02d%02d%02d",
			t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
	case bool:
		if t {
			return "t"
		}
		return "f"
	case float32:
		return SortableSerialise(float64(t))
	case float64:
		return SortableSerialise(t)
	case int:
		return fmt.Sprintf("%012d", t)
	case int8:
		return fmt.Sprintf("%012d", t)
	case int16:
		return fmt.Sprintf("%012d", t)
	case int32:
		return fmt.Sprintf("%012d", t)
	case int64:
		return fmt.Sprintf("%012d", t)
	case uint:
		return fmt.Sprintf("%012d", t)
	case uint8:
		return fmt.Sprintf("%012d", t)
	case uint16:
		return fmt.Sprintf("%012d", t)
	case uint32:
		return fmt.Sprintf("%012d", t)
	case uint64:
		return fmt.Sprintf("%012d", t)
	case string:
		return t
	case nil:
		return ""
	default:
		// Unsupported types fall back to their text form.
		return fmt.Sprint(v)
	}
}

// SortableSerialise encodes a float64 as an 8-byte string whose byte order
// matches numeric order: the sign bit is flipped for non-negative values and
// all bits are inverted for negative ones.
func SortableSerialise(f float64) string {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], bits)
	return string(buf[:])
}

// SortableUnserialise reverses SortableSerialise.
func SortableUnserialise(s string) (float64, error) {
	if len(s) != 8 {
		return 0, fmt.Errorf("sortable value must be 8 bytes, got %d", len(s))
	}
	bits := binary.BigEndian.Uint64([]byte(s))
	if bits&(1<<63) != 0 {
		bits &^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits), nil
}

// Text converts a prepared field value to the text that is tokenised and
// indexed as terms. Slices index each element, joined by spaces.
func Text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.Format("2006-01-02 15:04:05")
	case bool:
		if t {
			return "true"
		}
		return "false"
	case []string:
		return strings.Join(t, " ")
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = Text(e)
		}
		return strings.Join(parts, " ")
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

package query

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/joshuajonah/xapian-haystack/internal/domain/schema"
	"github.com/joshuajonah/xapian-haystack/internal/value"
)

func testSchema() schema.Schema {
	return schema.Build([]schema.Declaration{
		{Name: "title", Type: schema.Text, Indexed: true},
		{Name: "status", Type: schema.Long, Indexed: true},
		{Name: "rating", Type: schema.Float, Indexed: true},
		{Name: "pub_date", Type: schema.DateTime, Indexed: true},
	})
}

func TestResolveUnknownFieldDropsClause(t *testing.T) {
	r := NewRangeResolver(testSchema())
	if _, _, _, ok := r.Resolve("missing:1", "5"); ok {
		t.Error("Resolve() ok = true for unknown field")
	}
	if _, _, _, ok := r.Resolve("no-colon", "5"); ok {
		t.Error("Resolve() ok = true for token without colon")
	}
}

func TestResolveLongBounds(t *testing.T) {
	r := NewRangeResolver(testSchema())

	slot, lo, hi, ok := r.Resolve("status:2", "9")
	if !ok {
		t.Fatal("Resolve() ok = false")
	}
	if slot != 1 {
		t.Errorf("slot = %d, want 1", slot)
	}
	if lo != "000000000002" || hi != "000000000009" {
		t.Errorf("bounds = %q..%q", lo, hi)
	}
}

func TestResolveLongSentinels(t *testing.T) {
	r := NewRangeResolver(testSchema())

	_, lo, hi, ok := r.Resolve("status:", "*")
	if !ok {
		t.Fatal("Resolve() ok = false")
	}
	if lo != fmt.Sprintf("%012d", math.MinInt64) {
		t.Errorf("lo = %q", lo)
	}
	if hi != fmt.Sprintf("%012d", math.MaxInt64) {
		t.Errorf("hi = %q", hi)
	}
}

func TestResolveFloatBoundsAreSerialised(t *testing.T) {
	r := NewRangeResolver(testSchema())

	_, lo, hi, ok := r.Resolve("rating:1.5", "4.5")
	if !ok {
		t.Fatal("Resolve() ok = false")
	}
	if lo != value.SortableSerialise(1.5) || hi != value.SortableSerialise(4.5) {
		t.Error("float bounds were not serialised")
	}

	// Open bounds become infinities before serialisation.
	_, lo, hi, ok = r.Resolve("rating:", "*")
	if !ok {
		t.Fatal("Resolve() ok = false")
	}
	if lo != value.SortableSerialise(math.Inf(-1)) || hi != value.SortableSerialise(math.Inf(1)) {
		t.Error("open float bounds are not infinities")
	}
}

func TestResolveTextSentinels(t *testing.T) {
	r := NewRangeResolver(testSchema())

	slot, lo, hi, ok := r.Resolve("title:", "*")
	if !ok {
		t.Fatal("Resolve() ok = false")
	}
	if slot != 0 {
		t.Errorf("slot = %d, want 0", slot)
	}
	if lo != "a" {
		t.Errorf("lo = %q, want a", lo)
	}
	if hi != strings.Repeat("z", 100) {
		t.Errorf("hi = %q, want 100 z's", hi)
	}
}

func TestResolveDateSentinels(t *testing.T) {
	r := NewRangeResolver(testSchema())

	_, lo, hi, ok := r.Resolve("pub_date:", "*")
	if !ok {
		t.Fatal("Resolve() ok = false")
	}
	if lo != "00010101000000" || hi != "99990101000000" {
		t.Errorf("bounds = %q..%q", lo, hi)
	}
}

func TestResolveSentinelsApplyIndependently(t *testing.T) {
	r := NewRangeResolver(testSchema())

	_, lo, hi, ok := r.Resolve("status:", "7")
	if !ok {
		t.Fatal("Resolve() ok = false")
	}
	if lo != fmt.Sprintf("%012d", math.MinInt64) {
		t.Errorf("lo = %q", lo)
	}
	if hi != "000000000007" {
		t.Errorf("hi = %q", hi)
	}

	_, lo, hi, ok = r.Resolve("status:7", "*")
	if !ok {
		t.Fatal("Resolve() ok = false")
	}
	if lo != "000000000007" {
		t.Errorf("lo = %q", lo)
	}
	if hi != strconv.FormatInt(math.MaxInt64, 10) {
		t.Errorf("hi = %q", hi)
	}
}

func TestResolveUnparsableNumericDropsClause(t *testing.T) {
	r := NewRangeResolver(testSchema())
	if _, _, _, ok := r.Resolve("status:abc", "5"); ok {
		t.Error("Resolve() ok = true for unparsable long bound")
	}
	if _, _, _, ok := r.Resolve("rating:abc", "5"); ok {
		t.Error("Resolve() ok = true for unparsable float bound")
	}
}

package codec

import (
	"testing"
)

type sample struct {
	Name  string         `json:"name"`
	Count int            `json:"count"`
	Meta  map[string]any `json:"meta"`
}

func roundTrip(t *testing.T, c Codec) {
	t.Helper()
	in := sample{Name: "note", Count: 3, Meta: map[string]any{"k": "v"}}

	data, err := c.Marshal(in)
	if err != nil {
		t.Fatalf("%s Marshal() error = %v", c.Name(), err)
	}
	var out sample
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatalf("%s Unmarshal() error = %v", c.Name(), err)
	}
	if out.Name != in.Name || out.Count != in.Count || out.Meta["k"] != "v" {
		t.Errorf("%s round trip = %+v, want %+v", c.Name(), out, in)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	roundTrip(t, JSON{})
}

func TestZstdRoundTrip(t *testing.T) {
	roundTrip(t, Default)
}

func TestZstdRejectsGarbage(t *testing.T) {
	var out sample
	if err := Default.Unmarshal([]byte("not zstd"), &out); err == nil {
		t.Error("Unmarshal(garbage) error = nil")
	}
}

package highlight

import (
	"reflect"
	"testing"
)

func TestWords(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"hello world", []string{"hello", "world"}},
		{"hello AND world", []string{"hello", "world"}},
		{"foo OR bar", []string{"foo", "bar"}},
		{"wild*", []string{"wild"}},
		{"*", nil},
		{"", nil},
	}
	for _, tt := range tests {
		if got := Words(tt.query); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Words(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestHighlight(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		query string
		want  string
	}{
		{
			name:  "single word",
			text:  "a simple search result",
			query: "search",
			want:  "a simple <em>search</em> result",
		},
		{
			name:  "case insensitive",
			text:  "Search and SEARCH",
			query: "search",
			want:  "<em>search</em> and <em>search</em>",
		},
		{
			name:  "query spelling wins",
			text:  "Move along",
			query: "move",
			want:  "<em>move</em> along",
		},
		{
			name:  "operators skipped",
			text:  "and or search",
			query: "foo AND OR search",
			want:  "and or <em>search</em>",
		},
		{
			name:  "wildcard stripped",
			text:  "searching along",
			query: "search*",
			want:  "<em>search</em>ing along",
		},
		{
			name:  "no match",
			text:  "nothing here",
			query: "absent",
			want:  "nothing here",
		},
		{
			name:  "empty query",
			text:  "unchanged",
			query: "",
			want:  "unchanged",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Highlight(tt.text, tt.query); got != tt.want {
				t.Errorf("Highlight() = %q, want %q", got, tt.want)
			}
		})
	}
}

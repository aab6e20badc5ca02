package routing

import "testing"

func TestMatchPattern(t *testing.T) {
	cases := []struct {
		pattern, name string
		want          bool
	}{
		{"gpt-4", "gpt-4", true},
		{"gpt-4", "gpt-4-turbo", false},
		{"gpt-4*", "gpt-4-turbo", true},
		{"gpt-4*", "gpt-3.5", false},
		{"*-sonnet", "claude-3-5-sonnet", true},
		{"claude-?-opus", "claude-3-opus", true},
		{"claude-?-opus", "claude-35-opus", false},
		{"*", "anything", true},
		{"meta/llama-3*", "meta/llama-3-8b", true},
		{"", "", true},
		{"", "x", false},
	}
	for _, c := range cases {
		if got := matchPattern(c.pattern, c.name); got != c.want {
			t.Errorf("matchPattern(%q, %q) = %v, want %v", c.pattern, c.name, got, c.want)
		}
	}
}

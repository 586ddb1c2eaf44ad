package logutil

import (
	"strings"
	"testing"
)

func TestRedactKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{"Short", "abc", "********"},
		{"ExactlyEight", "12345678", "********"},
		{"Long", "sk-or-v1-1234567890abcdef", "sk-o...cdef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RedactKey(tt.key); got != tt.want {
				t.Errorf("RedactKey(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestSanitizeText(t *testing.T) {
	got := SanitizeText("line1\nline2\ttab\rend")
	if got != "line1\\nline2\\ttab\\nend" {
		t.Errorf("SanitizeText = %q", got)
	}

	if got := SanitizeText(string(rune(7)) + "bell"); got != "?bell" {
		t.Errorf("control char not replaced: %q", got)
	}

	long := strings.Repeat("a", 150)
	got = SanitizeText(long)
	if len(got) != 103 || !strings.HasSuffix(got, "...") {
		t.Errorf("long text not truncated: len=%d", len(got))
	}
}

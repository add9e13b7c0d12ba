package models

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "hello", "hello"},
		{"uppercase", "Hello World", "hello-world"},
		{"underscores", "my_doc_name", "my-doc-name"},
		{"special chars stripped", "Hello, World!", "hello-world"},
		{"phone identity", "+923001234567", "-923001234567"},
		{"empty string", "", ""},
		{"only special chars", "!@#$%", ""},
		{"unicode stripped", "café résumé", "caf-rsum"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Slugify(tt.in)
			if got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewID(t *testing.T) {
	a := NewID("offer")
	b := NewID("offer")
	if !strings.HasPrefix(a, "offer_") {
		t.Errorf("NewID prefix missing: %q", a)
	}
	if len(a) != len("offer_")+12 {
		t.Errorf("NewID length = %d, want %d", len(a), len("offer_")+12)
	}
	if a == b {
		t.Errorf("NewID returned duplicate %q", a)
	}
	if got := NewID(""); len(got) != 12 {
		t.Errorf("NewID(\"\") = %q, want 12 chars", got)
	}
}

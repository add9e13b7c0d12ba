package models

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a fresh identifier with the given prefix, e.g. "offer_3f2a9c1d".
func NewID(prefix string) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}

// Slugify turns an identity into a filesystem-safe token.
func Slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '_' || r == '-' || r == '+':
			b.WriteRune('-')
		}
	}
	return b.String()
}

package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	tests := map[string]string{
		"ana.lopez@example.com":       "Ana Lopez",
		"ana.lopez+legal@example.com": "Ana Lopez",
		"j_doe-smith@example.com":     "J Doe Smith",
		"paralegal":                   "Paralegal",
		"+tag@example.com":            "",
		"":                            "",
	}
	for in, want := range tests {
		assert.Equal(t, want, DisplayName(in), in)
	}
}

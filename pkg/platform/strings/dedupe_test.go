package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimDedupe(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil", input: nil, expected: nil},
		{name: "empty", input: []string{}, expected: []string{}},
		{name: "trims", input: []string{" 12 months ", "renewable"}, expected: []string{"12 months", "renewable"}},
		{name: "drops repeats in order", input: []string{"b", "a", "b", " a"}, expected: []string{"b", "a"}},
		{name: "only blanks", input: []string{"", "  "}, expected: []string{}},
		{name: "case is significant", input: []string{"Fire", "fire"}, expected: []string{"Fire", "fire"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TrimDedupe(tt.input))
		})
	}
}

func TestTrimDedupeLeavesInputIntact(t *testing.T) {
	in := []string{" a", "a"}
	TrimDedupe(in)
	assert.Equal(t, []string{" a", "a"}, in)
}

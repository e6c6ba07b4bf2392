package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeFold(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: nil},
		{name: "empty slice", input: []string{}, expected: []string{}},
		{name: "drops blanks", input: []string{"", "  ", "DOB"}, expected: []string{"DOB"}},
		{name: "keeps first spelling", input: []string{" Name ", "DOB", "name", "NAME"}, expected: []string{"Name", "DOB"}},
		{name: "keeps order", input: []string{"PAN Number", "Father's Name", "DOB"}, expected: []string{"PAN Number", "Father's Name", "DOB"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeFold(tt.input))
		})
	}
}

package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCount(t *testing.T) {
	assert.Zero(t, Count(""))
	assert.Greater(t, Count("hello world, this is a sentence"), 3)
	assert.Equal(t, Count("repeatable"), Count("repeatable"))
}

func TestApprox(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"日本語です", 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Approx(tt.in), tt.in)
	}
}

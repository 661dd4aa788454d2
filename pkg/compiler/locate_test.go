package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocate(t *testing.T) {
	src := "ab\ncd\n\nxé]"
	tests := []struct {
		offset int
		want   Location
	}{
		{0, Location{Line: 1, Column: 1}},
		{1, Location{Line: 1, Column: 2}},
		{2, Location{Line: 2, Column: 1}}, // newline at the offset counts
		{3, Location{Line: 2, Column: 1}},
		{4, Location{Line: 2, Column: 2}},
		{5, Location{Line: 3, Column: 1}},
		{6, Location{Line: 4, Column: 1}},
		{7, Location{Line: 4, Column: 1}},
		{10, Location{Line: 4, Column: 3}}, // é is two bytes, one column
		{100, Location{Line: 4, Column: 4}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Locate(src, tt.offset), "offset %d", tt.offset)
	}
}

func TestLocateIsStableAndMonotonic(t *testing.T) {
	src := "+++ some comment +++ [->+<]"
	prev := Locate(src, 0)
	for off := 0; off < len(src); off++ {
		first := Locate(src, off)
		assert.Equal(t, first, Locate(src, off))
		assert.Equal(t, 1, first.Line)
		if off > 0 {
			assert.Greater(t, first.Column, prev.Column)
		}
		prev = first
	}
}

func TestLocationString(t *testing.T) {
	assert.Equal(t, "12:7", Location{Line: 12, Column: 7}.String())
}

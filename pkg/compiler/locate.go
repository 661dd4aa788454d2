package compiler

import (
	"fmt"
	"unicode/utf8"
)

// Location is a 1-based line/column pair. Columns count characters, not bytes.
type Location struct {
	Line   int
	Column int
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// Locate converts a byte offset into src to a Location. Every newline at or
// before the offset starts a new line, so an offset that points at a newline
// lands on column 1 of the following line. Offsets past the end of src are
// clamped to the end.
func Locate(src string, offset int) Location {
	if offset > len(src) {
		offset = len(src)
	}
	loc := Location{Line: 1, Column: 1}
	for i := 0; i < offset; {
		r, size := utf8.DecodeRuneInString(src[i:])
		if r == '\n' {
			loc.Line++
			loc.Column = 1
		} else {
			loc.Column++
		}
		i += size
	}
	if offset < len(src) && src[offset] == '\n' {
		loc.Line++
		loc.Column = 1
	}
	return loc
}

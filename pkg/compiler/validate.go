package compiler

import (
	"errors"
	"fmt"
)

var (
	// ErrUnmatchedLoopOpen reports a '[' with no closing ']'.
	ErrUnmatchedLoopOpen = errors.New("Unmatched Jump Forward")
	// ErrUnmatchedLoopClose reports a ']' with no opening '['.
	ErrUnmatchedLoopClose = errors.New("Unmatched Jump Backward")
)

// BracketError is the only structural error a program can have.
type BracketError struct {
	Kind   Kind // LoopOpen or LoopClose
	Offset int  // source offset of the offending bracket
}

func (e *BracketError) Error() string {
	return e.Unwrap().Error()
}

func (e *BracketError) Unwrap() error {
	if e.Kind == LoopOpen {
		return ErrUnmatchedLoopOpen
	}
	return ErrUnmatchedLoopClose
}

// Validate checks that every '[' has a matching ']' and vice versa.
// A stray ']' is reported as soon as it is seen. When opens are left over at
// the end, the leftmost (outermost) one is reported.
func Validate(tokens []Token) error {
	var open []int
	for _, tok := range tokens {
		switch tok.Kind {
		case LoopOpen:
			open = append(open, tok.Offset)
		case LoopClose:
			if len(open) == 0 {
				return &BracketError{Kind: LoopClose, Offset: tok.Offset}
			}
			open = open[:len(open)-1]
		}
	}
	if len(open) > 0 {
		return &BracketError{Kind: LoopOpen, Offset: open[0]}
	}
	return nil
}

// FormatDiagnostic renders err as "<name>:<line>:<column>: <message>".
func FormatDiagnostic(name, src string, err *BracketError) string {
	loc := Locate(src, err.Offset)
	return fmt.Sprintf("%s:%s: %s", name, loc, err)
}

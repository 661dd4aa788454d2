package compiler

import "fmt"

// Kind identifies which of the eight source symbols a token stands for.
type Kind int

const (
	MoveRight Kind = iota // >
	MoveLeft              // <
	Increment             // +
	Decrement             // -
	Output                // .
	Input                 // ,
	LoopOpen              // [
	LoopClose             // ]
)

// symbols maps each recognized source byte to its Kind.
var symbols = map[byte]Kind{
	'>': MoveRight,
	'<': MoveLeft,
	'+': Increment,
	'-': Decrement,
	'.': Output,
	',': Input,
	'[': LoopOpen,
	']': LoopClose,
}

// kindNames is indexed by Kind.
var kindNames = [...]string{
	MoveRight: "MOVE_RIGHT",
	MoveLeft:  "MOVE_LEFT",
	Increment: "INCREMENT",
	Decrement: "DECREMENT",
	Output:    "OUTPUT",
	Input:     "INPUT",
	LoopOpen:  "LOOP_OPEN",
	LoopClose: "LOOP_CLOSE",
}

// kindSymbols is the inverse of symbols, indexed by Kind.
var kindSymbols = [...]byte{
	MoveRight: '>',
	MoveLeft:  '<',
	Increment: '+',
	Decrement: '-',
	Output:    '.',
	Input:     ',',
	LoopOpen:  '[',
	LoopClose: ']',
}

// Kinds lists every Kind in declaration order.
var Kinds = []Kind{MoveRight, MoveLeft, Increment, Decrement, Output, Input, LoopOpen, LoopClose}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Symbol returns the source character for k.
func (k Kind) Symbol() byte {
	if int(k) >= 0 && int(k) < len(kindSymbols) {
		return kindSymbols[k]
	}
	return '?'
}

// mergeable reports whether consecutive tokens of kind k may be folded into
// one counted instruction.
func (k Kind) mergeable() bool {
	switch k {
	case MoveRight, MoveLeft, Increment, Decrement:
		return true
	}
	return false
}

// KindOf returns the Kind for the source byte c, if c is one of the eight
// recognized symbols.
func KindOf(c byte) (Kind, bool) {
	k, ok := symbols[c]
	return k, ok
}

// Token is a single recognized symbol and where it was found.
type Token struct {
	Kind   Kind
	Offset int // 0-based byte offset into the source; the character index for ASCII text
}

func (t Token) String() string {
	return fmt.Sprintf("%-10s %q  offset %d", t.Kind, t.Kind.Symbol(), t.Offset)
}

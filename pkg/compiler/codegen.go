package compiler

import (
	"fmt"
	"math"
	"strings"
)

const (
	// DefaultTapeSize is the number of cells the prologue reserves.
	DefaultTapeSize = 30000
	// DefaultMaxRun is the largest repeat count folded into one instruction.
	// Cell arithmetic uses a byte immediate, so this is also the upper bound.
	DefaultMaxRun = 255
	// MaxTapeSize is the largest tape the prologue can reserve.
	MaxTapeSize = math.MaxInt32
)

// Options tunes code generation. Zero fields fall back to the defaults, so a
// zero Options is valid. Use Explicit to reject zeros coming from user input.
type Options struct {
	TapeSize int
	MaxRun   int
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{TapeSize: DefaultTapeSize, MaxRun: DefaultMaxRun}
}

// Validate rejects option values the generator cannot honour.
func (o Options) Validate() error {
	// The size is emitted as the immediate of "add rax, imm", which is a
	// sign-extended 32-bit field.
	if o.TapeSize < 0 || o.TapeSize > MaxTapeSize {
		return fmt.Errorf("tape size must be between 1 and %d, got %d", MaxTapeSize, o.TapeSize)
	}
	if o.MaxRun < 0 || o.MaxRun > DefaultMaxRun {
		return fmt.Errorf("max run must be between 1 and %d, got %d", DefaultMaxRun, o.MaxRun)
	}
	return nil
}

// Explicit validates options that were set by the user, where zero is not
// a meaningful value.
func (o Options) Explicit() error {
	if o.TapeSize == 0 {
		return fmt.Errorf("tape size must be between 1 and %d, got 0", MaxTapeSize)
	}
	if o.MaxRun == 0 {
		return fmt.Errorf("max run must be between 1 and %d, got 0", DefaultMaxRun)
	}
	return o.Validate()
}

func (o Options) withDefaults() Options {
	if o.TapeSize == 0 {
		o.TapeSize = DefaultTapeSize
	}
	if o.MaxRun == 0 {
		o.MaxRun = DefaultMaxRun
	}
	return o
}

// Stats describes one code generation run.
type Stats struct {
	Counts     [len(kindNames)]int // tokens seen, indexed by Kind
	Loops      int
	MaxDepth   int
	Operations int // instruction groups emitted for the program body
	MergedRuns int // runs of two or more identical tokens folded together
	Lines      int // lines of assembly text produced
}

// Tokens returns the total number of tokens counted in s.
func (s Stats) Tokens() int {
	total := 0
	for _, n := range s.Counts {
		total += n
	}
	return total
}

// CodeGen walks a validated token sequence and emits NASM x86-64 assembly.
type CodeGen struct {
	tokens []Token
	opts   Options
	out    strings.Builder
	stats  Stats
	depth  int
}

func newCodeGen(tokens []Token, opts Options) *CodeGen {
	return &CodeGen{tokens: tokens, opts: opts.withDefaults()}
}

func (cg *CodeGen) line(format string, args ...any) {
	fmt.Fprintf(&cg.out, format+"\n", args...)
	cg.stats.Lines++
}

// instr writes one indented instruction with a trailing comment aligned at
// column 33.
func (cg *CodeGen) instr(text, comment string) {
	if comment == "" {
		cg.line("    %s", text)
		return
	}
	cg.line("    %-28s; %s", text, comment)
}

func (cg *CodeGen) blank() {
	cg.line("")
}

func (cg *CodeGen) genPrologue() {
	cg.line("global _start")
	cg.blank()
	cg.line("section .text")
	cg.line("_start:")
	cg.instr("mov rax, 12", "system call for brk")
	cg.instr("mov rdi, 0", "query the current break")
	cg.instr("syscall", "invoke operating system to do the brk")
	cg.blank()
	cg.instr("mov [tape], rax", "save pointer to tape")
	cg.instr("mov [pointer], rax", "save pointer to current cell")
	cg.blank()
	cg.instr(fmt.Sprintf("add rax, %d", cg.opts.TapeSize), "move pointer to end of tape")
	cg.instr("mov rdi, rax", "")
	cg.instr("mov rax, 12", "system call for brk")
	cg.instr("syscall", "invoke operating system to do the brk")
	cg.blank()
}

func (cg *CodeGen) genEpilogue() {
	cg.blank()
	cg.instr("mov rax, 12", "system call for brk")
	cg.instr("mov rdi, [tape]", "release the tape")
	cg.instr("syscall", "invoke operating system to do the brk")
	cg.blank()
	cg.instr("mov rax, 60", "system call for exit")
	cg.instr("xor rdi, rdi", "exit code 0")
	cg.instr("syscall", "invoke operating system to exit")
	cg.blank()
	cg.line("section .data")
	cg.line("%-32s; pointer to tape", "tape: dq 0")
	cg.line("%-32s; pointer to current cell", "pointer: dq 0")
}

// genRun emits n repetitions of a pointer move or cell update as a single
// instruction. n is already bounded by the max run.
func (cg *CodeGen) genRun(kind Kind, n int) {
	cg.stats.Operations++
	switch kind {
	case MoveRight:
		if n == 1 {
			cg.instr("inc qword [pointer]", "increment pointer to current cell")
		} else {
			cg.instr(fmt.Sprintf("add qword [pointer], %d", n), fmt.Sprintf("move pointer %d cells right", n))
		}
	case MoveLeft:
		if n == 1 {
			cg.instr("dec qword [pointer]", "decrement pointer to current cell")
		} else {
			cg.instr(fmt.Sprintf("sub qword [pointer], %d", n), fmt.Sprintf("move pointer %d cells left", n))
		}
	case Increment:
		cg.instr("mov rax, [pointer]", "move pointer to current cell to rax")
		if n == 1 {
			cg.instr("inc byte [rax]", "increment current cell")
		} else {
			cg.instr(fmt.Sprintf("add byte [rax], %d", n), fmt.Sprintf("add %d to current cell", n))
		}
	case Decrement:
		cg.instr("mov rax, [pointer]", "move pointer to current cell to rax")
		if n == 1 {
			cg.instr("dec byte [rax]", "decrement current cell")
		} else {
			cg.instr(fmt.Sprintf("sub byte [rax], %d", n), fmt.Sprintf("subtract %d from current cell", n))
		}
	}
}

func (cg *CodeGen) genOutput() {
	cg.stats.Operations++
	cg.instr("mov rax, 1", "system call for write")
	cg.instr("mov rdi, 1", "file descriptor 1 is stdout")
	cg.instr("mov rsi, [pointer]", "address of current cell")
	cg.instr("mov rdx, 1", "write one byte")
	cg.instr("syscall", "invoke operating system to do the write")
}

// genInput reads one byte into the current cell. At end of input read
// returns 0 and the cell keeps its previous value.
func (cg *CodeGen) genInput() {
	cg.stats.Operations++
	cg.instr("mov rax, 0", "system call for read")
	cg.instr("mov rdi, 0", "file descriptor 0 is stdin")
	cg.instr("mov rsi, [pointer]", "address of current cell")
	cg.instr("mov rdx, 1", "read one byte")
	cg.instr("syscall", "invoke operating system to do the read")
}

func (cg *CodeGen) genLoopOpen(label int) {
	cg.stats.Operations++
	cg.instr("mov rax, [pointer]", "move pointer to current cell to rax")
	cg.instr("cmp byte [rax], 0", "compare current cell to 0")
	cg.instr(fmt.Sprintf("je .LB%d", label), "jump to closing bracket if equal")
	cg.line(".LF%d:", label)
}

func (cg *CodeGen) genLoopClose(label int) {
	cg.stats.Operations++
	cg.instr("mov rax, [pointer]", "move pointer to current cell to rax")
	cg.instr("cmp byte [rax], 0", "compare current cell to 0")
	cg.instr(fmt.Sprintf("jne .LF%d", label), "jump to opening bracket if not equal")
	cg.line(".LB%d:", label)
}

// genBlock translates tokens from pos until the end of the sequence or a
// LoopClose at this nesting level, and returns the position it stopped at.
// The LoopClose itself is left for the caller to consume.
func (cg *CodeGen) genBlock(pos int) int {
	for pos < len(cg.tokens) {
		tok := cg.tokens[pos]
		if tok.Kind.mergeable() {
			n := runLength(cg.tokens, pos)
			if n > 1 {
				cg.stats.MergedRuns++
			}
			for _, chunk := range splitRun(n, cg.opts.MaxRun) {
				cg.genRun(tok.Kind, chunk)
			}
			pos += n
			continue
		}

		switch tok.Kind {
		case Output:
			cg.genOutput()

		case Input:
			cg.genInput()

		case LoopOpen:
			// The token index doubles as the loop's label; indices are unique.
			label := pos
			cg.stats.Loops++
			cg.depth++
			cg.stats.MaxDepth = max(cg.stats.MaxDepth, cg.depth)
			cg.genLoopOpen(label)
			pos = cg.genBlock(pos + 1)
			cg.genLoopClose(label)
			cg.depth--

		case LoopClose:
			return pos
		}
		pos++
	}
	return pos
}

// Generate emits the complete assembly program for tokens, which must
// already have passed Validate.
func Generate(tokens []Token, opts Options) (string, Stats) {
	cg := newCodeGen(tokens, opts)
	for _, tok := range tokens {
		cg.stats.Counts[tok.Kind]++
	}

	cg.genPrologue()
	cg.genBlock(0)
	cg.genEpilogue()

	return cg.out.String(), cg.stats
}

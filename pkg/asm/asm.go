// Package asm parses the subset of NASM x86-64 syntax that the compiler
// emits into a Program that pkg/cpu can execute.
package asm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Register indices, in x86 encoding order.
const (
	RAX = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

// RegisterNames is indexed by register number.
var RegisterNames = [...]string{
	RAX: "rax", RCX: "rcx", RDX: "rdx", RBX: "rbx",
	RSP: "rsp", RBP: "rbp", RSI: "rsi", RDI: "rdi",
	R8: "r8", R9: "r9", R10: "r10", R11: "r11",
	R12: "r12", R13: "r13", R14: "r14", R15: "r15",
}

var registers = func() map[string]int {
	m := make(map[string]int, len(RegisterNames))
	for i, name := range RegisterNames {
		m[name] = i
	}
	return m
}()

// operandCounts lists every supported instruction with its operand count.
var operandCounts = map[string]int{
	"mov":     2,
	"add":     2,
	"sub":     2,
	"cmp":     2,
	"xor":     2,
	"inc":     1,
	"dec":     1,
	"jmp":     1,
	"je":      1,
	"jz":      1,
	"jne":     1,
	"jnz":     1,
	"syscall": 0,
}

var jumps = map[string]bool{"jmp": true, "je": true, "jz": true, "jne": true, "jnz": true}

// dataWidths maps data directives to their element width in bytes.
var dataWidths = map[string]int{"db": 1, "dw": 2, "dd": 4, "dq": 8}

var sizePrefixes = []struct {
	name  string
	bytes int
}{
	{"byte", 1},
	{"word", 2},
	{"dword", 4},
	{"qword", 8},
}

type OperandKind int

const (
	Register OperandKind = iota
	Immediate
	Memory // [reg] or [symbol]
	Symbol // bare label reference, evaluates to its address
)

type Operand struct {
	Kind OperandKind
	Reg  int    // Register, or base of Memory when Sym is empty
	Sym  string // Symbol, or base of Memory
	Imm  int64
	Size int // access width in bytes for Memory; 0 when not given
}

func (o Operand) String() string {
	switch o.Kind {
	case Register:
		return RegisterNames[o.Reg]
	case Immediate:
		return strconv.FormatInt(o.Imm, 10)
	case Symbol:
		return o.Sym
	}
	base := o.Sym
	if base == "" {
		base = RegisterNames[o.Reg]
	}
	for _, p := range sizePrefixes {
		if p.bytes == o.Size {
			return p.name + " [" + base + "]"
		}
	}
	return "[" + base + "]"
}

type Instruction struct {
	Line     int
	Mnemonic string
	Operands []Operand
	Target   int // instruction index for jumps, -1 otherwise
}

func (in Instruction) String() string {
	ops := make([]string, len(in.Operands))
	for i, op := range in.Operands {
		ops[i] = op.String()
	}
	return strings.TrimSpace(in.Mnemonic + " " + strings.Join(ops, ", "))
}

// DataSlot is one labelled initialised value in the data section.
type DataSlot struct {
	Name   string
	Width  int
	Values []int64
}

// Size returns the number of bytes the slot occupies.
func (d DataSlot) Size() int {
	return d.Width * len(d.Values)
}

type Program struct {
	Instructions []Instruction
	Labels       map[string]int // fully qualified code label -> instruction index
	Data         []DataSlot
	Globals      []string
	Entry        int
}

type Assembler struct {
	labels map[string]int
	data   map[string]bool
}

type parsedLine struct {
	lineNo   int
	labels   []string
	mnemonic string
	operands []string
}

func NewAssembler() *Assembler {
	return &Assembler{
		labels: make(map[string]int),
		data:   make(map[string]bool),
	}
}

func Assemble(code string) (*Program, error) {
	return NewAssembler().Assemble(code)
}

func (a *Assembler) Assemble(code string) (*Program, error) {
	lines := strings.Split(code, "\n")

	if err := a.pass1(lines); err != nil {
		return nil, err
	}

	return a.pass2(lines)
}

// pass1 records where every code label lands and which data symbols exist.
func (a *Assembler) pass1(lines []string) error {
	section := ".text"
	scope := ""
	count := 0

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return err
		}

		if p.mnemonic == "section" {
			section = p.operands[0]
			continue
		}

		for _, lbl := range p.labels {
			if section == ".data" {
				if a.data[lbl] {
					return fmt.Errorf("duplicate label '%s' on line %d", lbl, lineNo)
				}
				a.data[lbl] = true
				continue
			}
			if !isLocal(lbl) {
				scope = lbl
			}
			key := qualify(lbl, scope)
			if _, exists := a.labels[key]; exists {
				return fmt.Errorf("duplicate label '%s' on line %d", lbl, lineNo)
			}
			a.labels[key] = count
		}

		if _, ok := operandCounts[p.mnemonic]; ok && section == ".text" {
			count++
		}
	}

	return nil
}

func (a *Assembler) pass2(lines []string) (*Program, error) {
	prog := &Program{Labels: a.labels}
	section := ".text"
	scope := ""

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, err
		}

		for _, lbl := range p.labels {
			if section == ".text" && !isLocal(lbl) {
				scope = lbl
			}
		}

		if p.mnemonic == "" {
			continue
		}

		switch p.mnemonic {
		case "section":
			section = p.operands[0]
			if section != ".text" && section != ".data" {
				return nil, fmt.Errorf("unsupported section '%s' on line %d", section, lineNo)
			}
			continue
		case "global":
			prog.Globals = append(prog.Globals, p.operands...)
			continue
		}

		if width, ok := dataWidths[p.mnemonic]; ok {
			if section != ".data" || len(p.labels) != 1 {
				return nil, fmt.Errorf("%s expects a single label in the data section on line %d", p.mnemonic, lineNo)
			}
			slot := DataSlot{Name: p.labels[0], Width: width}
			for _, tok := range p.operands {
				v, err := strconv.ParseInt(tok, 0, 64)
				if err != nil {
					return nil, fmt.Errorf("invalid %s value on line %d: %s", p.mnemonic, lineNo, tok)
				}
				slot.Values = append(slot.Values, v)
			}
			if len(slot.Values) == 0 {
				return nil, fmt.Errorf("%s expects at least one value on line %d", p.mnemonic, lineNo)
			}
			prog.Data = append(prog.Data, slot)
			continue
		}

		want, ok := operandCounts[p.mnemonic]
		if !ok {
			return nil, fmt.Errorf("unknown instruction on line %d: %s", lineNo, p.mnemonic)
		}
		if section != ".text" {
			return nil, fmt.Errorf("instruction outside .text on line %d: %s", lineNo, p.mnemonic)
		}
		if len(p.operands) != want {
			return nil, fmt.Errorf("%s expects %d operands on line %d", p.mnemonic, want, lineNo)
		}

		in := Instruction{Line: lineNo, Mnemonic: p.mnemonic, Target: -1}
		for _, tok := range p.operands {
			op, err := parseOperand(tok, lineNo)
			if err != nil {
				return nil, err
			}
			if (op.Kind == Memory || op.Kind == Symbol) && op.Sym != "" && !jumps[p.mnemonic] && !a.data[op.Sym] {
				return nil, fmt.Errorf("undefined symbol '%s' on line %d", op.Sym, lineNo)
			}
			in.Operands = append(in.Operands, op)
		}

		if jumps[p.mnemonic] {
			op := in.Operands[0]
			if op.Kind != Symbol {
				return nil, fmt.Errorf("%s expects a label on line %d", p.mnemonic, lineNo)
			}
			target, ok := a.labels[qualify(op.Sym, scope)]
			if !ok {
				return nil, fmt.Errorf("undefined label '%s' on line %d", op.Sym, lineNo)
			}
			in.Target = target
		}

		prog.Instructions = append(prog.Instructions, in)
	}

	entry := "_start"
	if len(prog.Globals) > 0 {
		entry = prog.Globals[0]
	}
	idx, ok := a.labels[entry]
	if !ok {
		return nil, fmt.Errorf("entry point '%s' is not defined", entry)
	}
	prog.Entry = idx

	return prog, nil
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return p, nil
	}

	for {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			break
		}

		label := strings.TrimSpace(line[:colon])
		if strings.ContainsAny(label, " \t[") {
			break
		}
		if !isIdentifier(label) {
			return p, fmt.Errorf("invalid label '%s' on line %d", label, lineNo)
		}

		p.labels = append(p.labels, label)
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
	}

	mnemonic, rest := line, ""
	if sp := strings.IndexFunc(line, unicode.IsSpace); sp >= 0 {
		mnemonic, rest = line[:sp], strings.TrimSpace(line[sp:])
	}
	p.mnemonic = strings.ToLower(mnemonic)
	if rest != "" {
		for _, op := range strings.Split(rest, ",") {
			p.operands = append(p.operands, strings.TrimSpace(op))
		}
	}

	switch p.mnemonic {
	case "section", "global":
		if len(p.operands) != 1 {
			return p, fmt.Errorf("%s expects exactly one operand on line %d", p.mnemonic, lineNo)
		}
	}

	return p, nil
}

func parseOperand(tok string, lineNo int) (Operand, error) {
	text := strings.TrimSpace(tok)
	size := 0
	lower := strings.ToLower(text)
	for _, prefix := range sizePrefixes {
		if strings.HasPrefix(lower, prefix.name+" ") {
			size = prefix.bytes
			text = strings.TrimSpace(text[len(prefix.name):])
			lower = strings.ToLower(text)
			break
		}
	}

	if strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]") {
		inner := strings.TrimSpace(text[1 : len(text)-1])
		if reg, ok := registers[strings.ToLower(inner)]; ok {
			return Operand{Kind: Memory, Reg: reg, Size: size}, nil
		}
		if isIdentifier(inner) {
			return Operand{Kind: Memory, Sym: inner, Size: size}, nil
		}
		return Operand{}, fmt.Errorf("invalid memory operand '%s' on line %d", tok, lineNo)
	}

	if size != 0 {
		return Operand{}, fmt.Errorf("size prefix on non-memory operand '%s' on line %d", tok, lineNo)
	}

	if reg, ok := registers[lower]; ok {
		return Operand{Kind: Register, Reg: reg}, nil
	}
	if v, err := strconv.ParseInt(text, 0, 64); err == nil {
		return Operand{Kind: Immediate, Imm: v}, nil
	}
	if isIdentifier(text) {
		return Operand{Kind: Symbol, Sym: text}, nil
	}

	return Operand{}, fmt.Errorf("invalid operand '%s' on line %d", tok, lineNo)
}

func stripComments(line string) string {
	if semicolon := strings.IndexByte(line, ';'); semicolon >= 0 {
		return line[:semicolon]
	}
	return line
}

// qualify attaches a local label (".name") to the last non-local label,
// the way NASM scopes them.
func qualify(label, scope string) string {
	if isLocal(label) {
		return scope + label
	}
	return label
}

func isLocal(label string) bool {
	return strings.HasPrefix(label, ".")
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' && r != '.' {
				return false
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.' {
			return false
		}
	}

	return true
}

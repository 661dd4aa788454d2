// Package cpu executes an asm.Program on a small model of an x86-64 Linux
// process: sixteen general purpose registers, the zero flag, a data section,
// a brk-managed heap and the read/write/brk/exit system calls.
package cpu

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"bfnasm/pkg/asm"
)

// Memory layout of the modelled process.
const (
	DataBase uint64 = 0x402000 // first byte of the data section
	HeapBase uint64 = 0x600000 // initial program break
	MaxHeap  uint64 = 1 << 24  // largest heap brk will grant
)

// Linux x86-64 system call numbers.
const (
	SysRead      uint64 = 0
	SysWrite     uint64 = 1
	SysBrk       uint64 = 12
	SysExit      uint64 = 60
	SysExitGroup uint64 = 231
)

// ErrStepLimit is returned by Run when the program is still running after
// the allowed number of steps.
var ErrStepLimit = errors.New("step limit exceeded")

const eio = ^uint64(4) // -EIO

type CPU struct {
	Regs [16]uint64
	ZF   bool
	PC   int

	Halted   bool
	ExitCode int
	Steps    int

	// Input feeds read(0, ...). If nil, stdin is at end of input.
	Input io.Reader
	// Output receives write(1, ...). If nil, os.Stdout is used.
	Output io.Writer
	// Errors receives write(2, ...). If nil, the bytes are dropped.
	Errors io.Writer

	prog    *asm.Program
	data    []byte
	symbols map[string]uint64
	heap    []byte // bytes in [HeapBase, brk)
}

// NewCPU loads prog, lays out its data section and points PC at the entry.
func NewCPU(prog *asm.Program) *CPU {
	c := &CPU{
		prog:    prog,
		symbols: make(map[string]uint64, len(prog.Data)),
		PC:      prog.Entry,
	}
	for _, slot := range prog.Data {
		c.symbols[slot.Name] = DataBase + uint64(len(c.data))
		for _, v := range slot.Values {
			c.data = append(c.data, encode(uint64(v), slot.Width)...)
		}
	}
	c.Regs[asm.RSP] = HeapBase + MaxHeap + 0x1000
	return c
}

func (c *CPU) outputSink() io.Writer {
	if c.Output != nil {
		return c.Output
	}
	return os.Stdout
}

// Brk returns the current program break.
func (c *CPU) Brk() uint64 {
	return HeapBase + uint64(len(c.heap))
}

// SymbolAddress returns the address of a data symbol.
func (c *CPU) SymbolAddress(name string) (uint64, bool) {
	addr, ok := c.symbols[name]
	return addr, ok
}

// region returns the backing slice and offset for n bytes at addr.
func (c *CPU) region(addr uint64, n int) ([]byte, uint64, error) {
	end := addr + uint64(n)
	switch {
	case addr >= DataBase && end <= DataBase+uint64(len(c.data)):
		return c.data, addr - DataBase, nil
	case addr >= HeapBase && end <= c.Brk():
		return c.heap, addr - HeapBase, nil
	}
	return nil, 0, fmt.Errorf("segmentation fault at address 0x%x", addr)
}

func (c *CPU) ReadByte(addr uint64) (byte, error) {
	mem, off, err := c.region(addr, 1)
	if err != nil {
		return 0, err
	}
	return mem[off], nil
}

func (c *CPU) WriteByte(addr uint64, val byte) error {
	mem, off, err := c.region(addr, 1)
	if err != nil {
		return err
	}
	mem[off] = val
	return nil
}

func (c *CPU) read(addr uint64, width int) (uint64, error) {
	mem, off, err := c.region(addr, width)
	if err != nil {
		return 0, err
	}
	return decode(mem[off : off+uint64(width)]), nil
}

func (c *CPU) write(addr uint64, val uint64, width int) error {
	mem, off, err := c.region(addr, width)
	if err != nil {
		return err
	}
	copy(mem[off:], encode(val, width))
	return nil
}

func (c *CPU) address(op asm.Operand) (uint64, error) {
	if op.Sym != "" {
		addr, ok := c.symbols[op.Sym]
		if !ok {
			return 0, fmt.Errorf("undefined symbol '%s'", op.Sym)
		}
		return addr, nil
	}
	return c.Regs[op.Reg], nil
}

func (c *CPU) load(op asm.Operand, width int) (uint64, error) {
	switch op.Kind {
	case asm.Register:
		return mask(c.Regs[op.Reg], width), nil
	case asm.Immediate:
		return mask(uint64(op.Imm), width), nil
	case asm.Symbol:
		return c.address(op)
	case asm.Memory:
		addr, err := c.address(op)
		if err != nil {
			return 0, err
		}
		return c.read(addr, width)
	}
	return 0, fmt.Errorf("cannot load operand %s", op)
}

func (c *CPU) store(op asm.Operand, val uint64, width int) error {
	switch op.Kind {
	case asm.Register:
		c.Regs[op.Reg] = mask(val, width)
		return nil
	case asm.Memory:
		addr, err := c.address(op)
		if err != nil {
			return err
		}
		return c.write(addr, val, width)
	}
	return fmt.Errorf("cannot store to operand %s", op)
}

// Step executes one instruction.
func (c *CPU) Step() error {
	if c.Halted {
		return nil
	}
	if c.PC < 0 || c.PC >= len(c.prog.Instructions) {
		c.Halted = true
		return fmt.Errorf("execution ran past the last instruction")
	}

	in := c.prog.Instructions[c.PC]
	c.PC++
	c.Steps++

	if err := c.exec(in); err != nil {
		c.Halted = true
		return fmt.Errorf("line %d: %s: %w", in.Line, in, err)
	}
	return nil
}

func (c *CPU) exec(in asm.Instruction) error {
	ops := in.Operands
	width := operandWidth(ops)

	switch in.Mnemonic {
	case "mov":
		v, err := c.load(ops[1], width)
		if err != nil {
			return err
		}
		return c.store(ops[0], v, width)

	case "add", "sub", "xor", "cmp":
		a, err := c.load(ops[0], width)
		if err != nil {
			return err
		}
		b, err := c.load(ops[1], width)
		if err != nil {
			return err
		}
		var r uint64
		switch in.Mnemonic {
		case "add":
			r = a + b
		case "sub", "cmp":
			r = a - b
		case "xor":
			r = a ^ b
		}
		r = mask(r, width)
		c.ZF = r == 0
		if in.Mnemonic == "cmp" {
			return nil
		}
		return c.store(ops[0], r, width)

	case "inc", "dec":
		a, err := c.load(ops[0], width)
		if err != nil {
			return err
		}
		if in.Mnemonic == "inc" {
			a++
		} else {
			a--
		}
		a = mask(a, width)
		c.ZF = a == 0
		return c.store(ops[0], a, width)

	case "jmp":
		c.PC = in.Target
	case "je", "jz":
		if c.ZF {
			c.PC = in.Target
		}
	case "jne", "jnz":
		if !c.ZF {
			c.PC = in.Target
		}

	case "syscall":
		return c.syscall()

	default:
		return fmt.Errorf("unsupported instruction")
	}
	return nil
}

func (c *CPU) syscall() error {
	nr := c.Regs[asm.RAX]
	arg0, arg1, arg2 := c.Regs[asm.RDI], c.Regs[asm.RSI], c.Regs[asm.RDX]

	switch nr {
	case SysRead:
		if arg0 != 0 || c.Input == nil {
			c.Regs[asm.RAX] = 0
			return nil
		}
		buf := make([]byte, arg2)
		n, err := c.Input.Read(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			c.Regs[asm.RAX] = eio
			return nil
		}
		for i := 0; i < n; i++ {
			if err := c.WriteByte(arg1+uint64(i), buf[i]); err != nil {
				return err
			}
		}
		c.Regs[asm.RAX] = uint64(n)

	case SysWrite:
		buf := make([]byte, arg2)
		for i := range buf {
			b, err := c.ReadByte(arg1 + uint64(i))
			if err != nil {
				return err
			}
			buf[i] = b
		}
		var w io.Writer = io.Discard
		switch arg0 {
		case 1:
			w = c.outputSink()
		case 2:
			if c.Errors != nil {
				w = c.Errors
			}
		}
		n, err := w.Write(buf)
		if err != nil {
			c.Regs[asm.RAX] = eio
			return nil
		}
		c.Regs[asm.RAX] = uint64(n)

	case SysBrk:
		if arg0 >= HeapBase && arg0 <= HeapBase+MaxHeap {
			size := int(arg0 - HeapBase)
			if size > len(c.heap) {
				c.heap = append(c.heap, make([]byte, size-len(c.heap))...)
			} else {
				c.heap = c.heap[:size]
			}
		}
		c.Regs[asm.RAX] = c.Brk()

	case SysExit, SysExitGroup:
		c.Halted = true
		c.ExitCode = int(arg0 & 0xFF)

	default:
		return fmt.Errorf("unsupported system call %d", nr)
	}
	return nil
}

// Run steps until the program exits. A positive maxSteps bounds the number
// of instructions executed.
func (c *CPU) Run(maxSteps int) error {
	for !c.Halted {
		if maxSteps > 0 && c.Steps >= maxSteps {
			return ErrStepLimit
		}
		if err := c.Step(); err != nil {
			return err
		}
	}
	return nil
}

// RunAssembly assembles code, runs it with the given stdin and returns what
// it wrote to stdout and its exit status.
func RunAssembly(code string, input io.Reader, maxSteps int) ([]byte, int, error) {
	prog, err := asm.Assemble(code)
	if err != nil {
		return nil, 0, fmt.Errorf("assembly error: %w", err)
	}

	var out strings.Builder
	c := NewCPU(prog)
	c.Input = input
	c.Output = &out
	if err := c.Run(maxSteps); err != nil {
		return []byte(out.String()), c.ExitCode, err
	}
	return []byte(out.String()), c.ExitCode, nil
}

// operandWidth picks the access width of an instruction: registers are
// 64-bit, otherwise the explicit size of a memory operand applies.
func operandWidth(ops []asm.Operand) int {
	for _, op := range ops {
		if op.Kind == asm.Register {
			return 8
		}
	}
	for _, op := range ops {
		if op.Kind == asm.Memory && op.Size > 0 {
			return op.Size
		}
	}
	return 8
}

func mask(v uint64, width int) uint64 {
	if width >= 8 {
		return v
	}
	return v & (1<<(8*uint(width)) - 1)
}

func encode(v uint64, width int) []byte {
	b := make([]byte, width)
	for i := range b {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func decode(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

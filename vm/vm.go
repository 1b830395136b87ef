// Package vm implements the p-machine, the stack machine that executes
// programs produced by the code generator.
//
// The machine keeps three registers over an integer evaluation stack: the
// program counter, the base pointer of the current activation record, and
// the stack-top pointer. Every procedure call builds a four-slot
// activation record (functional value, static link, dynamic link, return
// address); non-local variable access and calls follow the static link
// chain by the instruction's lexical level difference.
//
// Execution stops on the halt instruction or when the outermost block
// returns. Division by zero, stack overflow, and undefined opcodes stop
// the machine with a runtime error.
package vm

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/dr8co/plz/code"
)

// StackSize is the capacity of the evaluation stack in slots.
const StackSize = 4096

// ErrStackOverflow is returned when the evaluation stack capacity is exceeded.
var ErrStackOverflow = errors.New("stack overflow")

// ErrDivideByZero is returned on integer division or remainder by zero.
var ErrDivideByZero = errors.New("division by zero")

// Machine is a single execution instance of the p-machine.
type Machine struct {
	program code.Program

	// stack is the evaluation stack. Slot 0 is unused; the outermost
	// activation record starts at slot 1.
	stack [StackSize]int

	pc int // program counter
	bp int // base pointer of the current activation record
	sp int // index of the current stack top

	in  *bufio.Reader
	out io.Writer

	halted bool
}

// New creates a machine for the given program with its input and output
// attached to the given reader and writer.
func New(program code.Program, in io.Reader, out io.Writer) *Machine {
	return &Machine{
		program: program,
		bp:      1,
		in:      bufio.NewReader(in),
		out:     out,
	}
}

// Run executes the program to completion.
// It returns a runtime error if the machine gets stuck; reaching the halt
// instruction or returning from the outermost block is a normal stop.
func (m *Machine) Run() error {
	for {
		if m.pc < 0 || m.pc >= len(m.program) {
			return fmt.Errorf("program counter %d out of range", m.pc)
		}
		ins := m.program[m.pc]
		m.pc++

		if err := m.step(ins); err != nil {
			return err
		}

		// A return from the outermost block restores a zeroed record,
		// which lands the program counter back at 0.
		if m.halted || m.pc == 0 {
			return nil
		}
	}
}

// step executes a single instruction.
//
//nolint:gocyclo
func (m *Machine) step(ins code.Instruction) error {
	switch ins.Op {
	case code.LIT:
		return m.push(ins.M)

	case code.LOD:
		return m.push(m.stack[m.base(ins.L)+ins.M])

	case code.STO:
		m.stack[m.base(ins.L)+ins.M] = m.stack[m.sp]
		m.sp--

	case code.CAL:
		if m.sp+4 >= StackSize {
			return ErrStackOverflow
		}
		m.stack[m.sp+1] = 0              // functional value
		m.stack[m.sp+2] = m.base(ins.L) // static link
		m.stack[m.sp+3] = m.bp          // dynamic link
		m.stack[m.sp+4] = m.pc          // return address
		m.bp = m.sp + 1
		m.pc = ins.M

	case code.INC:
		if m.sp+ins.M >= StackSize {
			return ErrStackOverflow
		}
		m.sp += ins.M

	case code.JMP:
		m.pc = ins.M

	case code.JPC:
		if m.stack[m.sp] == 0 {
			m.pc = ins.M
		}
		m.sp--

	case code.RTN:
		m.sp = m.bp - 1
		m.bp = m.stack[m.sp+3]
		m.pc = m.stack[m.sp+4]

	case code.SioWrite:
		value := m.stack[m.sp]
		m.sp--
		if _, err := fmt.Fprintln(m.out, value); err != nil {
			return fmt.Errorf("write: %w", err)
		}

	case code.SioRead:
		var value int
		if _, err := fmt.Fscan(m.in, &value); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		return m.push(value)

	case code.SioHalt:
		m.halted = true

	case code.NEG:
		m.stack[m.sp] = -m.stack[m.sp]

	case code.ADD:
		m.sp--
		m.stack[m.sp] += m.stack[m.sp+1]

	case code.SUB:
		m.sp--
		m.stack[m.sp] -= m.stack[m.sp+1]

	case code.MUL:
		m.sp--
		m.stack[m.sp] *= m.stack[m.sp+1]

	case code.DIV:
		m.sp--
		if m.stack[m.sp+1] == 0 {
			return ErrDivideByZero
		}
		m.stack[m.sp] /= m.stack[m.sp+1]

	case code.MOD:
		m.sp--
		if m.stack[m.sp+1] == 0 {
			return ErrDivideByZero
		}
		m.stack[m.sp] %= m.stack[m.sp+1]

	case code.ODD:
		if m.stack[m.sp]%2 != 0 {
			m.stack[m.sp] = 1
		} else {
			m.stack[m.sp] = 0
		}

	case code.EQL:
		m.compare(func(a, b int) bool { return a == b })

	case code.NEQ:
		m.compare(func(a, b int) bool { return a != b })

	case code.LSS:
		m.compare(func(a, b int) bool { return a < b })

	case code.LEQ:
		m.compare(func(a, b int) bool { return a <= b })

	case code.GTR:
		m.compare(func(a, b int) bool { return a > b })

	case code.GEQ:
		m.compare(func(a, b int) bool { return a >= b })

	default:
		return fmt.Errorf("opcode %d undefined", int(ins.Op))
	}
	return nil
}

// push grows the stack by one slot holding the given value.
func (m *Machine) push(value int) error {
	if m.sp+1 >= StackSize {
		return ErrStackOverflow
	}
	m.sp++
	m.stack[m.sp] = value
	return nil
}

// compare pops two values and pushes the boolean result of cmp as 1 or 0.
func (m *Machine) compare(cmp func(a, b int) bool) {
	m.sp--
	if cmp(m.stack[m.sp], m.stack[m.sp+1]) {
		m.stack[m.sp] = 1
	} else {
		m.stack[m.sp] = 0
	}
}

// base follows l static links from the current activation record and
// returns the base of the record reached.
func (m *Machine) base(l int) int {
	b := m.bp
	for ; l > 0; l-- {
		b = m.stack[b+1]
	}
	return b
}

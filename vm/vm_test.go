package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dr8co/plz/code"
	"github.com/dr8co/plz/gen"
	"github.com/dr8co/plz/lexer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run compiles the given source, executes it with the given input, and
// returns everything the program wrote.
func run(t *testing.T, src, input string) string {
	t.Helper()

	program, err := gen.Generate(lexer.New(src).Tokens())
	require.NoError(t, err)

	var out bytes.Buffer
	machine := New(program, strings.NewReader(input), &out)
	require.NoError(t, machine.Run())
	return out.String()
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		src      string
		expected string
	}{
		{"var x; begin x := 6 * 7; write x end.", "42\n"},
		{"var x; begin x := 10 - 2 - 3; write x end.", "5\n"},
		{"var x; begin x := 7 / 2; write x end.", "3\n"},
		{"var x; begin x := -3 + 10; write x end.", "7\n"},
		{"var x; begin x := 2 + 3 * 4; write x end.", "14\n"},
		{"var x; begin x := (2 + 3) * 4; write x end.", "20\n"},
		{"const c = 9; var x; begin x := c * c; write x end.", "81\n"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, run(t, tt.src, ""), "src: %s", tt.src)
	}
}

func TestIfElse(t *testing.T) {
	tests := []struct {
		src      string
		expected string
	}{
		{"var a, r; begin a := 4; if odd a then r := 1 else r := 0; write r end.", "0\n"},
		{"var a, r; begin a := 5; if odd a then r := 1 else r := 0; write r end.", "1\n"},
		{"var a, r; begin a := 2; r := 9; if a > 3 then r := 1; write r end.", "9\n"},
		{"var a, r; begin a := 4; if a >= 4 then r := 1 else r := 2; write r end.", "1\n"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, run(t, tt.src, ""), "src: %s", tt.src)
	}
}

func TestWhileLoop(t *testing.T) {
	src := `
		var i, s;
		begin
			i := 1;
			s := 0;
			while i <= 5 do
			begin
				s := s + i;
				i := i + 1
			end;
			write s
		end.`

	assert.Equal(t, "15\n", run(t, src, ""))
}

func TestCountdownWritesEachIteration(t *testing.T) {
	src := `
		var n;
		begin
			n := 3;
			while n > 0 do
			begin
				write n;
				n := n - 1
			end
		end.`

	assert.Equal(t, "3\n2\n1\n", run(t, src, ""))
}

func TestProcedureCall(t *testing.T) {
	src := `
		var x, squ;
		procedure square;
		begin
			squ := x * x
		end;
		begin
			x := 7;
			call square;
			write squ
		end.`

	assert.Equal(t, "49\n", run(t, src, ""))
}

func TestNestedProceduresFollowStaticLinks(t *testing.T) {
	src := `
		const step = 2;
		var total;
		procedure outer;
		var local;
			procedure inner;
			begin
				local := local + step;
				total := total + local
			end;
		begin
			local := 0;
			call inner;
			call inner
		end;
		begin
			total := 0;
			call outer;
			write total
		end.`

	// local goes 2 then 4; total accumulates 2 + 4
	assert.Equal(t, "6\n", run(t, src, ""))
}

func TestProcedureLocalsAreFreshPerCall(t *testing.T) {
	src := `
		var r;
		procedure p;
		var tmp;
		begin
			tmp := r + 1;
			r := tmp * 2
		end;
		begin
			r := 1;
			call p;
			call p;
			write r
		end.`

	// r: 1 -> 4 -> 10
	assert.Equal(t, "10\n", run(t, src, ""))
}

func TestReadWrite(t *testing.T) {
	src := `
		var x, y;
		begin
			read x;
			y := x * 2;
			write y
		end.`

	assert.Equal(t, "42\n", run(t, src, "21\n"))
}

func TestReadTwice(t *testing.T) {
	src := `
		var a, b, s;
		begin
			read a;
			read b;
			s := a + b;
			write s
		end.`

	assert.Equal(t, "30\n", run(t, src, "10 20\n"))
}

func TestDivideByZero(t *testing.T) {
	program, err := gen.Generate(lexer.New("var x; begin x := 0; x := 1 / x end.").Tokens())
	require.NoError(t, err)

	machine := New(program, strings.NewReader(""), &bytes.Buffer{})
	assert.ErrorIs(t, machine.Run(), ErrDivideByZero)
}

func TestReadFailsOnEmptyInput(t *testing.T) {
	program, err := gen.Generate(lexer.New("var x; read x.").Tokens())
	require.NoError(t, err)

	machine := New(program, strings.NewReader(""), &bytes.Buffer{})
	assert.Error(t, machine.Run())
}

func TestUnboundedRecursionOverflows(t *testing.T) {
	program, err := gen.Generate(lexer.New("procedure p; call p; call p.").Tokens())
	require.NoError(t, err)

	machine := New(program, strings.NewReader(""), &bytes.Buffer{})
	assert.ErrorIs(t, machine.Run(), ErrStackOverflow)
}

func TestHaltInstructionStopsMachine(t *testing.T) {
	program := code.Program{
		{Op: code.INC, M: 4},
		{Op: code.LIT, M: 42},
		{Op: code.SioWrite, M: 1},
		{Op: code.SioHalt, M: 3},
		{Op: code.LIT, M: 7}, // never reached
		{Op: code.SioWrite, M: 1},
	}

	var out bytes.Buffer
	machine := New(program, strings.NewReader(""), &out)
	require.NoError(t, machine.Run())
	assert.Equal(t, "42\n", out.String())
}

func TestUndefinedOpcode(t *testing.T) {
	program := code.Program{{Op: code.Opcode(99)}}

	machine := New(program, strings.NewReader(""), &bytes.Buffer{})
	assert.Error(t, machine.Run())
}

func TestProgramCounterOutOfRange(t *testing.T) {
	program := code.Program{{Op: code.JMP, M: 40}}

	machine := New(program, strings.NewReader(""), &bytes.Buffer{})
	assert.Error(t, machine.Run())
}

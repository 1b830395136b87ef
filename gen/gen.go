// Package gen transforms a PL/0 token stream directly into p-machine code.
//
// The generator is a single-pass recursive descent parser that emits
// instructions as it recognizes the grammar; there is no intermediate
// syntax tree. Three concerns share state across every production: the
// token cursor, the scope-chained symbol table, and the instruction
// vector with its back-patched forward jumps.
//
// # Generation Process
//
//  1. Expressions, terms, and factors emit postfix code: operands first,
//     then the operator, so the stack machine evaluates them directly
//  2. Identifiers are resolved through the symbol table; constants fold
//     to immediate loads, variables to frame accesses with a static
//     level difference
//  3. Control flow (if/else, while, procedure prologues) emits a
//     placeholder jump, remembers its index on the call stack, and
//     rewrites the target once the following code length is known
//  4. Each block reserves an activation-record header plus its local
//     variable slots with a single frame-setup instruction
//
// # Scoping
//
// Every declaration records the procedure symbol it belongs to; lookup
// walks this chain outward, so inner procedures see the declarations of
// all enclosing blocks and the most recent declaration shadows.
//
// All state lives in a per-run [Generator] value, so concurrent runs on
// separate values are independent and a run can be repeated for testing.
//
// The main entry points are [Generate], which compiles a token stream to
// a [code.Program], and [Emit], which additionally renders the listing to
// a sink, writing nothing on failure. Errors carry the numeric codes of
// the diagnostic contract; see [Error].
package gen

import (
	"io"
	"strconv"

	"github.com/dr8co/plz/code"
	"github.com/dr8co/plz/token"
)

const (
	// DefaultLimit is the default instruction capacity of a Generator.
	DefaultLimit = 2048

	// frameSize is the number of bookkeeping slots at the base of every
	// activation record. Variable slots are assigned past it.
	frameSize = 4
)

// relOps maps relational token kinds to their comparison opcodes.
var relOps = map[token.Type]code.Opcode{
	token.Eq:      code.EQL,
	token.Neq:     code.NEQ,
	token.Less:    code.LSS,
	token.Leq:     code.LEQ,
	token.Greater: code.GTR,
	token.Geq:     code.GEQ,
}

// Generator holds the mutable state of a single generation run: the token
// cursor, the instruction vector, the symbol table, and the current static
// level and scope.
type Generator struct {
	toks []token.Token
	pos  int

	ins   code.Program
	limit int

	table *SymbolTable

	// level is the static nesting depth of the block being generated,
	// 0 for the outermost block.
	level int

	// scope is the procedure symbol owning the block being generated,
	// nil for the outermost block.
	scope *Symbol
}

// New creates a generator for the given token stream with the default
// instruction capacity.
func New(toks []token.Token) *Generator {
	return NewWithLimit(toks, DefaultLimit)
}

// NewWithLimit creates a generator whose emitted program may hold at most
// limit instructions. Exceeding the limit aborts the run with
// [ErrTooManyInstructions].
func NewWithLimit(toks []token.Token, limit int) *Generator {
	return &Generator{
		toks:  toks,
		limit: limit,
		table: NewSymbolTable(),
	}
}

// Generate compiles a token stream into a p-machine program.
// On failure it returns a nil program and an error: an [*Error] carrying the
// numeric code of the first mismatch, or [ErrTooManyInstructions] when the
// instruction capacity is exceeded; the parse does not recover.
func Generate(toks []token.Token) (code.Program, error) {
	g := New(toks)
	if err := g.Run(); err != nil {
		return nil, err
	}
	return g.Program(), nil
}

// Emit compiles a token stream and writes the program listing to w in the
// machine's external format. Nothing is written when generation fails.
func Emit(toks []token.Token, w io.Writer) error {
	prog, err := Generate(toks)
	if err != nil {
		return err
	}
	_, err = prog.WriteTo(w)
	return err
}

// Run parses the whole program and generates its code.
func (g *Generator) Run() error {
	return g.program()
}

// Program returns the instructions emitted so far. After a successful
// [Generator.Run] this is the complete program.
func (g *Generator) Program() code.Program {
	return g.ins
}

// Table returns the symbol table populated during generation.
func (g *Generator) Table() *SymbolTable {
	return g.table
}

// kind returns the kind of the token under the cursor, or the null
// sentinel past the end of input.
func (g *Generator) kind() token.Type {
	if g.pos >= len(g.toks) {
		return token.Null
	}
	return g.toks[g.pos].Type
}

// peek returns the token under the cursor without advancing.
func (g *Generator) peek() token.Token {
	if g.pos >= len(g.toks) {
		return token.Token{Type: token.Null}
	}
	return g.toks[g.pos]
}

// advance moves the cursor one token forward. The cursor never rewinds.
func (g *Generator) advance() {
	if g.pos < len(g.toks) {
		g.pos++
	}
}

// expect consumes a token of the given kind or fails with the given code.
func (g *Generator) expect(t token.Type, errCode int) error {
	if g.kind() != t {
		return codeError(errCode)
	}
	g.advance()
	return nil
}

// emit appends one instruction and returns its index.
// Indices are dense and assigned in emission order starting at 0.
func (g *Generator) emit(op code.Opcode, r, l, m int) (int, error) {
	if len(g.ins) >= g.limit {
		return 0, ErrTooManyInstructions
	}
	g.ins = append(g.ins, code.Instruction{Op: op, R: r, L: l, M: m})
	return len(g.ins) - 1, nil
}

// patch rewrites the m field of an already-emitted instruction.
func (g *Generator) patch(index, m int) {
	g.ins[index].M = m
}

// next returns the index the next emitted instruction will receive.
func (g *Generator) next() int {
	return len(g.ins)
}

// program parses Block ".", then emits the halt instruction.
func (g *Generator) program() error {
	if err := g.block(); err != nil {
		return err
	}
	if err := g.expect(token.Period, ErrPeriodExpected); err != nil {
		return err
	}
	_, err := g.emit(code.SioHalt, 0, 0, 3)
	return err
}

// block parses [ ConstDecl ] [ VarDecl ] { ProcDecl } Statement and wraps
// the statement code in a frame prologue and a return.
func (g *Generator) block() error {
	// The placeholder jump skips over nested procedure bodies so that
	// falling through reaches this block's own entry.
	jump, err := g.emit(code.JMP, 0, 0, 0)
	if err != nil {
		return err
	}

	locals := 0
	if g.kind() == token.Const {
		if err := g.constDecl(); err != nil {
			return err
		}
	}
	if g.kind() == token.Var {
		if locals, err = g.varDecl(); err != nil {
			return err
		}
	}
	for g.kind() == token.Procedure {
		if err := g.procDecl(); err != nil {
			return err
		}
	}

	entry := g.next()
	g.patch(jump, entry)
	if g.scope != nil {
		// Calls resolve through the symbol, so fixing the address here
		// lands CAL on the entry INC rather than the placeholder jump.
		g.scope.Address = entry
	}

	if _, err := g.emit(code.INC, 0, 0, frameSize+locals); err != nil {
		return err
	}
	if err := g.statement(); err != nil {
		return err
	}
	_, err = g.emit(code.RTN, 0, 0, 0)
	return err
}

// constDecl parses "const" ident "=" number { "," ident "=" number } ";"
// and records one CONST symbol per item.
func (g *Generator) constDecl() error {
	g.advance() // const
	for {
		if g.kind() != token.Ident {
			return codeError(ErrIdentExpected)
		}
		name := g.peek().Literal
		g.advance()
		if err := g.expect(token.Eq, ErrEqExpected); err != nil {
			return err
		}
		if g.kind() != token.Number {
			return codeError(ErrNumberExpected)
		}
		value, err := strconv.Atoi(g.peek().Literal)
		if err != nil {
			return codeError(ErrNumberTooLarge)
		}
		g.advance()
		g.table.Insert(&Symbol{
			Name:  name,
			Kind:  ConstSymbol,
			Level: g.level,
			Scope: g.scope,
			Value: value,
		})
		if g.kind() != token.Comma {
			break
		}
		g.advance()
	}
	return g.expect(token.Semicolon, ErrSemicolonMissing)
}

// varDecl parses "var" ident { "," ident } ";", assigns each variable the
// next free frame slot past the activation-record header, and returns the
// number of variables declared.
func (g *Generator) varDecl() (int, error) {
	g.advance() // var
	count := 0
	for {
		if g.kind() != token.Ident {
			return count, codeError(ErrIdentExpected)
		}
		name := g.peek().Literal
		g.advance()
		g.table.Insert(&Symbol{
			Name:    name,
			Kind:    VarSymbol,
			Level:   g.level,
			Scope:   g.scope,
			Address: frameSize + count,
		})
		count++
		if g.kind() != token.Comma {
			break
		}
		g.advance()
	}
	if err := g.expect(token.Semicolon, ErrSemicolonMissing); err != nil {
		return count, err
	}
	return count, nil
}

// procDecl parses "procedure" ident ";" Block ";" with the nested block
// generated one level deeper under the new procedure symbol.
func (g *Generator) procDecl() error {
	g.advance() // procedure
	if g.kind() != token.Ident {
		return codeError(ErrIdentExpected)
	}
	sym := g.table.Insert(&Symbol{
		Name:    g.peek().Literal,
		Kind:    ProcSymbol,
		Level:   g.level,
		Scope:   g.scope,
		Address: g.next(),
	})
	g.advance()
	if err := g.expect(token.Semicolon, ErrSemicolonMissing); err != nil {
		return err
	}

	outer := g.scope
	g.scope = sym
	g.level++
	err := g.block()
	g.level--
	g.scope = outer
	if err != nil {
		return err
	}

	return g.expect(token.Semicolon, ErrSemicolonMissing)
}

// statement dispatches on the leading token. A token that opens no
// statement form is the empty statement and succeeds silently.
func (g *Generator) statement() error {
	switch g.kind() {
	case token.Ident:
		return g.assignment()
	case token.Call:
		return g.call()
	case token.Begin:
		return g.compound()
	case token.If:
		return g.ifStatement()
	case token.While:
		return g.whileStatement()
	case token.Read:
		return g.readStatement()
	case token.Write:
		return g.writeStatement()
	}
	return nil
}

// assignment parses ident ":=" Expression and stores the result in the
// resolved variable's frame slot.
func (g *Generator) assignment() error {
	sym := g.table.Lookup(g.peek().Literal, g.scope)
	if sym == nil {
		return codeError(ErrUndeclaredIdent)
	}
	if sym.Kind != VarSymbol {
		return codeError(ErrAssignToNonVar)
	}
	g.advance()
	if err := g.expect(token.Becomes, ErrBecomesExpected); err != nil {
		return err
	}
	if err := g.expression(); err != nil {
		return err
	}
	_, err := g.emit(code.STO, 0, g.level-sym.Level, sym.Address)
	return err
}

// call parses "call" ident and emits the procedure call with the static
// level difference between the use site and the declaration.
func (g *Generator) call() error {
	g.advance() // call
	if g.kind() != token.Ident {
		return codeError(ErrIdentExpected)
	}
	sym := g.table.Lookup(g.peek().Literal, g.scope)
	if sym == nil {
		return codeError(ErrUndeclaredIdent)
	}
	if sym.Kind != ProcSymbol {
		return codeError(ErrCallOfNonProc)
	}
	g.advance()
	_, err := g.emit(code.CAL, 0, g.level-sym.Level, sym.Address)
	return err
}

// compound parses "begin" Statement { ";" Statement } "end".
func (g *Generator) compound() error {
	g.advance() // begin
	if err := g.statement(); err != nil {
		return err
	}
	for g.kind() == token.Semicolon {
		g.advance()
		if err := g.statement(); err != nil {
			return err
		}
	}
	return g.expect(token.End, ErrEndExpected)
}

// ifStatement parses "if" Condition "then" Statement [ "else" Statement ].
// The conditional jump targets the else branch (or the end without one);
// the then branch ends with an unconditional jump past the else branch.
func (g *Generator) ifStatement() error {
	g.advance() // if
	if err := g.condition(); err != nil {
		return err
	}
	if err := g.expect(token.Then, ErrThenExpected); err != nil {
		return err
	}
	jumpFalse, err := g.emit(code.JPC, 0, 0, 0)
	if err != nil {
		return err
	}
	if err := g.statement(); err != nil {
		return err
	}

	if g.kind() != token.Else {
		g.patch(jumpFalse, g.next())
		return nil
	}

	jumpEnd, err := g.emit(code.JMP, 0, 0, 0)
	if err != nil {
		return err
	}
	g.advance() // else
	g.patch(jumpFalse, g.next())
	if err := g.statement(); err != nil {
		return err
	}
	g.patch(jumpEnd, g.next())
	return nil
}

// whileStatement parses "while" Condition "do" Statement with the loop
// closed by a jump back to the pre-condition index.
func (g *Generator) whileStatement() error {
	g.advance() // while
	top := g.next()
	if err := g.condition(); err != nil {
		return err
	}
	jumpOut, err := g.emit(code.JPC, 0, 0, 0)
	if err != nil {
		return err
	}
	if err := g.expect(token.Do, ErrDoExpected); err != nil {
		return err
	}
	if err := g.statement(); err != nil {
		return err
	}
	if _, err := g.emit(code.JMP, 0, 0, top); err != nil {
		return err
	}
	g.patch(jumpOut, g.next())
	return nil
}

// readStatement parses "read" ident: an input instruction followed by a
// store into the resolved variable.
func (g *Generator) readStatement() error {
	g.advance() // read
	if _, err := g.emit(code.SioRead, 0, 0, 2); err != nil {
		return err
	}
	if g.kind() != token.Ident {
		return codeError(ErrIdentExpected)
	}
	sym := g.table.Lookup(g.peek().Literal, g.scope)
	if sym == nil {
		return codeError(ErrUndeclaredIdent)
	}
	if sym.Kind != VarSymbol {
		return codeError(ErrReadOfNonVar)
	}
	g.advance()
	_, err := g.emit(code.STO, 0, g.level-sym.Level, sym.Address)
	return err
}

// writeStatement parses "write" ident: the value is pushed (an immediate
// for a constant, a frame load for a variable) and written out.
func (g *Generator) writeStatement() error {
	g.advance() // write
	if g.kind() != token.Ident {
		return codeError(ErrIdentExpected)
	}
	sym := g.table.Lookup(g.peek().Literal, g.scope)
	if sym == nil {
		return codeError(ErrUndeclaredIdent)
	}
	g.advance()
	switch sym.Kind {
	case ConstSymbol:
		if _, err := g.emit(code.LIT, 0, 0, sym.Value); err != nil {
			return err
		}
	case VarSymbol:
		if _, err := g.emit(code.LOD, 0, g.level-sym.Level, sym.Address); err != nil {
			return err
		}
	default:
		return codeError(ErrWriteOfProc)
	}
	_, err := g.emit(code.SioWrite, 0, 0, 1)
	return err
}

// condition parses "odd" Expression or Expression RelOp Expression.
// Both operands are generated before the comparison opcode, keeping the
// emission order postfix like the rest of the expression grammar.
func (g *Generator) condition() error {
	if g.kind() == token.Odd {
		g.advance()
		if err := g.expression(); err != nil {
			return err
		}
		_, err := g.emit(code.ODD, 0, 0, 0)
		return err
	}

	if err := g.expression(); err != nil {
		return err
	}
	op, ok := relOps[g.kind()]
	if !ok {
		return codeError(ErrRelOpExpected)
	}
	g.advance()
	if err := g.expression(); err != nil {
		return err
	}
	_, err := g.emit(op, 0, 0, 0)
	return err
}

// expression parses [ "+" | "-" ] Term { ("+"|"-") Term }. A leading minus
// negates the first term after it is generated.
func (g *Generator) expression() error {
	negate := false
	if g.kind() == token.Plus || g.kind() == token.Minus {
		negate = g.kind() == token.Minus
		g.advance()
	}
	if err := g.term(); err != nil {
		return err
	}
	if negate {
		if _, err := g.emit(code.NEG, 0, 0, 0); err != nil {
			return err
		}
	}
	for g.kind() == token.Plus || g.kind() == token.Minus {
		op := code.ADD
		if g.kind() == token.Minus {
			op = code.SUB
		}
		g.advance()
		if err := g.term(); err != nil {
			return err
		}
		if _, err := g.emit(op, 0, 0, 0); err != nil {
			return err
		}
	}
	return nil
}

// term parses Factor { ("*"|"/") Factor }.
func (g *Generator) term() error {
	if err := g.factor(); err != nil {
		return err
	}
	for g.kind() == token.Star || g.kind() == token.Slash {
		op := code.MUL
		if g.kind() == token.Slash {
			op = code.DIV
		}
		g.advance()
		if err := g.factor(); err != nil {
			return err
		}
		if _, err := g.emit(op, 0, 0, 0); err != nil {
			return err
		}
	}
	return nil
}

// factor parses ident, number, or "(" Expression ")". Constants fold to
// immediate loads at the use site.
func (g *Generator) factor() error {
	switch g.kind() {
	case token.Ident:
		sym := g.table.Lookup(g.peek().Literal, g.scope)
		if sym == nil {
			return codeError(ErrUndeclaredIdent)
		}
		g.advance()
		switch sym.Kind {
		case ConstSymbol:
			_, err := g.emit(code.LIT, 0, 0, sym.Value)
			return err
		case VarSymbol:
			_, err := g.emit(code.LOD, 0, g.level-sym.Level, sym.Address)
			return err
		default:
			return codeError(ErrProcInExpression)
		}
	case token.Number:
		value, err := strconv.Atoi(g.peek().Literal)
		if err != nil {
			return codeError(ErrNumberTooLarge)
		}
		g.advance()
		_, err = g.emit(code.LIT, 0, 0, value)
		return err
	case token.Lparen:
		g.advance()
		if err := g.expression(); err != nil {
			return err
		}
		return g.expect(token.Rparen, ErrRparenExpected)
	default:
		return codeError(ErrBadFactor)
	}
}

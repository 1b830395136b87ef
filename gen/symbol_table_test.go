package gen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupGlobal(t *testing.T) {
	table := NewSymbolTable()
	x := table.Insert(&Symbol{Name: "x", Kind: VarSymbol, Address: 4})

	require.Equal(t, x, table.Lookup("x", nil))
	assert.Nil(t, table.Lookup("y", nil))
}

func TestLookupWalksEnclosingScopes(t *testing.T) {
	table := NewSymbolTable()
	x := table.Insert(&Symbol{Name: "x", Kind: VarSymbol, Level: 0, Address: 4})
	p := table.Insert(&Symbol{Name: "p", Kind: ProcSymbol, Level: 0})
	inner := table.Insert(&Symbol{Name: "inner", Kind: ProcSymbol, Level: 1, Scope: p})
	local := table.Insert(&Symbol{Name: "local", Kind: VarSymbol, Level: 1, Scope: p, Address: 4})

	// from the innermost scope, everything on the chain is visible
	assert.Equal(t, local, table.Lookup("local", inner))
	assert.Equal(t, x, table.Lookup("x", inner))
	assert.Equal(t, p, table.Lookup("p", inner))

	// a local of p is not visible from the global scope
	assert.Nil(t, table.Lookup("local", nil))
}

func TestLookupShadowing(t *testing.T) {
	table := NewSymbolTable()
	outer := table.Insert(&Symbol{Name: "x", Kind: VarSymbol, Level: 0, Address: 4})
	p := table.Insert(&Symbol{Name: "p", Kind: ProcSymbol, Level: 0})
	shadow := table.Insert(&Symbol{Name: "x", Kind: VarSymbol, Level: 1, Scope: p, Address: 4})

	// the most recent declaration on the chain wins
	assert.Equal(t, shadow, table.Lookup("x", p))

	// the outer declaration is untouched for the outer scope
	assert.Equal(t, outer, table.Lookup("x", nil))
}

func TestLookupSiblingScopeInvisible(t *testing.T) {
	table := NewSymbolTable()
	p := table.Insert(&Symbol{Name: "p", Kind: ProcSymbol, Level: 0})
	q := table.Insert(&Symbol{Name: "q", Kind: ProcSymbol, Level: 0})
	table.Insert(&Symbol{Name: "secret", Kind: VarSymbol, Level: 1, Scope: p, Address: 4})

	assert.Nil(t, table.Lookup("secret", q))
}

func TestInsertDoesNotDetectRedeclaration(t *testing.T) {
	table := NewSymbolTable()
	table.Insert(&Symbol{Name: "x", Kind: ConstSymbol, Value: 1})
	second := table.Insert(&Symbol{Name: "x", Kind: ConstSymbol, Value: 2})

	got := table.Lookup("x", nil)
	require.NotNil(t, got)
	assert.Equal(t, second, got)
	assert.Equal(t, 2, got.Value)
}

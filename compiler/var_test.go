package compiler

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nilan/chunk"
)

func TestGlobalDeclarationEmitsDefineGlobal(t *testing.T) {
	ch := mustCompile(t, "var a = 1;")
	assert.Contains(t, opsOf(ch), chunk.DefineGlobal)
}

func TestLocalDeclarationEmitsNoDefineGlobal(t *testing.T) {
	ch := mustCompile(t, "{ var a = 1; }")
	assert.NotContains(t, opsOf(ch), chunk.DefineGlobal)
	assert.Contains(t, opsOf(ch), chunk.Pop) // scope-exit cleanup
}

func TestLocalGetSetUseSlotOpcodes(t *testing.T) {
	ch := mustCompile(t, "{ var a = 1; a = 2; print a; }")
	ops := opsOf(ch)
	assert.Contains(t, ops, chunk.SetLocal)
	assert.Contains(t, ops, chunk.GetLocal)
}

func TestReadLocalInOwnInitializerIsError(t *testing.T) {
	c := New()
	_, err := c.Compile("{ var a = a; }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "own initializer")
}

func TestRedeclareLocalInSameScopeIsError(t *testing.T) {
	c := New()
	_, err := c.Compile("{ var a; var a; }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Already a variable")
}

func TestShadowingAcrossScopesIsAllowed(t *testing.T) {
	c := New()
	_, err := c.Compile("var a = 1; { var a = 2; }")
	require.NoError(t, err)
}

func Test257thLocalIsError(t *testing.T) {
	source := "{\n"
	for i := 0; i < 257; i++ {
		source += "var v" + strconv.Itoa(i) + ";\n"
	}
	source += "}\n"

	c := New()
	_, err := c.Compile(source)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many local variables")
}

func Test257thConstantIsError(t *testing.T) {
	// Capacity is 256 values (spec.md §3: operand is one byte, indices
	// 0-255); the 257th distinct constant overflows it.
	source := ""
	for i := 0; i < 257; i++ {
		source += "print " + strconv.Itoa(i) + ";\n"
	}

	c := New()
	_, err := c.Compile(source)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many constants")
}

package vm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, source string) string {
	t.Helper()
	var buf bytes.Buffer
	m := New()
	m.SetOutput(&buf)
	err := m.Interpret(source)
	require.NoError(t, err)
	return buf.String()
}

func TestArithmeticPrecedence(t *testing.T) {
	assert.Equal(t, "7\n", run(t, "print 1 + 2 * 3;"))
}

func TestStringConcatenation(t *testing.T) {
	out := run(t, `var a = "hi "; var b = "there"; print a + b;`)
	assert.Equal(t, "hi there\n", out)
}

func TestLocalShadowsGlobal(t *testing.T) {
	out := run(t, `var x = 10; { var x = 1; print x; } print x;`)
	assert.Equal(t, "1\n10\n", out)
}

func TestWhileLoop(t *testing.T) {
	out := run(t, `var i = 0; while (i < 3) { print i; i = i + 1; }`)
	assert.Equal(t, "0\n1\n2\n", out)
}

func TestIfElse(t *testing.T) {
	out := run(t, `if (1 == 1) print "yes"; else print "no";`)
	assert.Equal(t, "yes\n", out)
}

func TestRuntimeErrorOnMixedTypeAddition(t *testing.T) {
	m := New()
	m.SetOutput(&bytes.Buffer{})
	err := m.Interpret(`print 1 + "x";`)
	require.Error(t, err)
	rt, ok := err.(*RuntimeError)
	require.True(t, ok)
	assert.Equal(t, "Operands must be numbers.", rt.Message)
}

func TestUndefinedGlobalReadIsRuntimeError(t *testing.T) {
	m := New()
	m.SetOutput(&bytes.Buffer{})
	err := m.Interpret(`print missing;`)
	require.Error(t, err)
	rt, ok := err.(*RuntimeError)
	require.True(t, ok)
	assert.Contains(t, rt.Message, "Undefined variable")
}

func TestAndOrShortCircuit(t *testing.T) {
	assert.Equal(t, "false\n", run(t, `print false and (1/0 == 1);`))
	assert.Equal(t, "true\n", run(t, `print true or (1/0 == 1);`))
}

func TestTruthinessOfZeroAndEmptyString(t *testing.T) {
	assert.Equal(t, "yes\n", run(t, `if (0) print "yes"; else print "no";`))
	assert.Equal(t, "yes\n", run(t, `if ("") print "yes"; else print "no";`))
}

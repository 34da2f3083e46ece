package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"nilan/value"
)

func TestWriteByteKeepsParallelArrays(t *testing.T) {
	c := New()
	c.WriteOp(Nil, 1)
	c.WriteOp(True, 1)
	c.WriteOp(Pop, 2)

	assert.Equal(t, len(c.Code), len(c.Lines))
	assert.Equal(t, []int{1, 1, 2}, c.Lines)
}

func TestAddConstant(t *testing.T) {
	c := New()
	idx := c.AddConstant(value.NewNumber(42))
	assert.Equal(t, 0, idx)
	assert.Equal(t, value.NewNumber(42), c.Constants[idx])

	idx2 := c.AddConstant(value.NewString("hi"))
	assert.Equal(t, 1, idx2)
}

func TestDisassembleWalksEntireCode(t *testing.T) {
	c := New()
	idx := c.AddConstant(value.NewNumber(1))
	c.WriteOp(Constant, 1)
	c.WriteByte(byte(idx), 1)
	c.WriteOp(Return, 1)

	out := c.Disassemble("test")
	assert.Contains(t, out, "Constant")
	assert.Contains(t, out, "Return")
}

func TestJumpInstructionDisassembly(t *testing.T) {
	c := New()
	c.WriteOp(JumpIfFalse, 1)
	c.WriteByte(0, 1)
	c.WriteByte(3, 1)
	c.WriteOp(Pop, 1)

	out := c.Disassemble("test")
	assert.Contains(t, out, "JumpIfFalse")
	assert.Contains(t, out, "-> 6")
}

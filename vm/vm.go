// Package vm implements the stack-machine interpreter: fetch-decode-execute
// over a compiled chunk.Chunk, a growable value stack, and a globals
// table. Generalized from informatter-nilan's two-opcode vm.go into the
// full spec.md §4.4 dispatch table.
package vm

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"nilan/chunk"
	"nilan/compiler"
	"nilan/value"
)

// VM executes compiled chunks. It owns no reference back to the
// compiler: a chunk handed to Run is logically immutable, read-only
// data (spec.md §5).
type VM struct {
	chunk   *chunk.Chunk
	ip      int
	stack   Stack
	globals map[string]value.Value

	out   io.Writer
	debug bool
}

func New() *VM {
	return &VM{globals: make(map[string]value.Value), out: os.Stdout}
}

// Debug enables dispatch tracing via logrus at Debug level; never
// affects stdout `print` output or the error formats spec.md §7 pins
// down.
func (vm *VM) Debug(on bool) { vm.debug = on }

// SetOutput redirects where Print writes; defaults to os.Stdout.
func (vm *VM) SetOutput(w io.Writer) { vm.out = w }

// Interpret compiles source and, on success, runs it. The returned
// error is either a compile-time error (unwraps via go-multierror to
// one or more *compiler.CompileError) or a *RuntimeError.
func (vm *VM) Interpret(source string) error {
	c := compiler.New()
	c.Debug(vm.debug)
	ch, err := c.Compile(source)
	if err != nil {
		return err
	}
	return vm.Run(ch)
}

// Run executes a Chunk to completion or the first runtime error.
func (vm *VM) Run(ch *chunk.Chunk) error {
	vm.chunk = ch
	vm.ip = 0

	for {
		if vm.debug {
			logrus.Debugf("stack=%v ip=%d", vm.stack.values, vm.ip)
		}

		op := chunk.OpCode(vm.readByte())

		switch op {
		case chunk.Constant:
			vm.stack.Push(vm.readConstant())

		case chunk.Nil:
			vm.stack.Push(value.NewNil())
		case chunk.True:
			vm.stack.Push(value.NewBool(true))
		case chunk.False:
			vm.stack.Push(value.NewBool(false))

		case chunk.Pop:
			vm.stack.Pop()

		case chunk.GetLocal:
			slot := int(vm.readByte())
			vm.stack.Push(vm.stack.Get(slot))
		case chunk.SetLocal:
			slot := int(vm.readByte())
			vm.stack.Set(slot, vm.stack.Peek(0))

		case chunk.GetGlobal:
			name := vm.readConstant().AsString()
			v, ok := vm.globals[name]
			if !ok {
				return vm.runtimeError("Undefined variable '%s'.", name)
			}
			vm.stack.Push(v)
		case chunk.DefineGlobal:
			name := vm.readConstant().AsString()
			vm.globals[name] = vm.stack.Peek(0)
			vm.stack.Pop()
		case chunk.SetGlobal:
			name := vm.readConstant().AsString()
			if _, ok := vm.globals[name]; !ok {
				return vm.runtimeError("Undefined variable '%s'.", name)
			}
			vm.globals[name] = vm.stack.Peek(0)

		case chunk.Equal:
			b := vm.stack.Pop()
			a := vm.stack.Pop()
			vm.stack.Push(value.NewBool(value.Equal(a, b)))
		case chunk.Greater:
			if err := vm.binaryNumberOp(func(a, b float64) value.Value {
				return value.NewBool(a > b)
			}); err != nil {
				return err
			}
		case chunk.Less:
			if err := vm.binaryNumberOp(func(a, b float64) value.Value {
				return value.NewBool(a < b)
			}); err != nil {
				return err
			}

		case chunk.Add:
			if err := vm.add(); err != nil {
				return err
			}
		case chunk.Subtract:
			if err := vm.binaryNumberOp(func(a, b float64) value.Value {
				return value.NewNumber(a - b)
			}); err != nil {
				return err
			}
		case chunk.Multiply:
			if err := vm.binaryNumberOp(func(a, b float64) value.Value {
				return value.NewNumber(a * b)
			}); err != nil {
				return err
			}
		case chunk.Divide:
			if err := vm.binaryNumberOp(func(a, b float64) value.Value {
				return value.NewNumber(a / b)
			}); err != nil {
				return err
			}

		case chunk.Not:
			v := vm.stack.Pop()
			vm.stack.Push(value.NewBool(v.IsFalsey()))
		case chunk.Negate:
			v := vm.stack.Peek(0)
			if !v.IsNumber() {
				return vm.runtimeError("Operand must be a number.")
			}
			vm.stack.Pop()
			vm.stack.Push(value.NewNumber(-v.AsNumber()))

		case chunk.Jump:
			offset := vm.readShort()
			vm.ip += offset
		case chunk.JumpIfFalse:
			offset := vm.readShort()
			if vm.stack.Peek(0).IsFalsey() {
				vm.ip += offset
			}
		case chunk.Loop:
			offset := vm.readShort()
			vm.ip -= offset

		case chunk.Print:
			v := vm.stack.Pop()
			fmt.Fprintln(vm.out, v.String())

		case chunk.Return:
			return nil

		default:
			return fmt.Errorf("unknown opcode %v at offset %d", op, vm.ip-1)
		}
	}
}

func (vm *VM) readByte() byte {
	b := vm.chunk.Code[vm.ip]
	vm.ip++
	return b
}

func (vm *VM) readShort() int {
	hi := vm.chunk.Code[vm.ip]
	lo := vm.chunk.Code[vm.ip+1]
	vm.ip += 2
	return int(binary.BigEndian.Uint16([]byte{hi, lo}))
}

func (vm *VM) readConstant() value.Value {
	return vm.chunk.Constants[vm.readByte()]
}

func (vm *VM) add() error {
	b := vm.stack.Peek(0)
	a := vm.stack.Peek(1)
	switch {
	case a.IsString() && b.IsString():
		vm.stack.Pop()
		vm.stack.Pop()
		vm.stack.Push(value.NewString(a.AsString() + b.AsString()))
		return nil
	case a.IsNumber() && b.IsNumber():
		vm.stack.Pop()
		vm.stack.Pop()
		vm.stack.Push(value.NewNumber(a.AsNumber() + b.AsNumber()))
		return nil
	default:
		return vm.runtimeError("Operands must be numbers.")
	}
}

func (vm *VM) binaryNumberOp(op func(a, b float64) value.Value) error {
	b := vm.stack.Peek(0)
	a := vm.stack.Peek(1)
	if !a.IsNumber() || !b.IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	vm.stack.Pop()
	vm.stack.Pop()
	vm.stack.Push(op(a.AsNumber(), b.AsNumber()))
	return nil
}

func (vm *VM) runtimeError(format string, args ...any) error {
	line := 0
	if vm.ip-1 >= 0 && vm.ip-1 < len(vm.chunk.Lines) {
		line = vm.chunk.Lines[vm.ip-1]
	}
	vm.stack.Reset()
	return &RuntimeError{Message: fmt.Sprintf(format, args...), Line: line}
}

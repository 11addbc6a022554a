// Package interp executes instruction streams on a wrapping cell tape.
package interp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/xplshn/bfc/pkg/ir"
)

var (
	ErrStepLimit  = errors.New("step limit exceeded")
	ErrOutOfRange = errors.New("pointer out of range")
)

// checkEvery is how many steps run between context checks.
const checkEvery = 4096

// Code is a program with its loop brackets resolved.
type Code struct {
	ops  []ir.Op
	jump []int
}

// Compile matches loop brackets. Each bracket's jump entry holds the index
// of its partner.
func Compile(prog *ir.Program) (*Code, error) {
	ops := prog.Ops()
	code := &Code{ops: ops, jump: make([]int, len(ops))}
	var stack []int
	for i, op := range ops {
		switch op {
		case ir.OpLoopOpen:
			stack = append(stack, i)
		case ir.OpLoopClose:
			if len(stack) == 0 {
				return nil, fmt.Errorf("unmatched ']' at instruction %d", i)
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			code.jump[open], code.jump[i] = i, open
		}
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("unmatched '[' at instruction %d", stack[len(stack)-1])
	}
	return code, nil
}

func (c *Code) Len() int { return len(c.ops) }

type Option func(vm *VM)

func WithTapeSize(n int) Option { return func(vm *VM) { vm.tapeSize = n } }
func WithCellBits(bits int) Option { return func(vm *VM) { vm.cellBits = bits } }
func WithInput(r io.Reader) Option { return func(vm *VM) { vm.in = bufio.NewReader(r) } }
func WithOutput(w io.Writer) Option { return func(vm *VM) { vm.out = bufio.NewWriter(w) } }
func WithStepLimit(n int64) Option { return func(vm *VM) { vm.stepLimit = n } }

// VM is a tape machine. The tape survives between runs so callers can
// seed cells before executing and inspect them afterwards.
type VM struct {
	tape      []uint32
	mask      uint32
	ptr       int
	steps     int64
	tapeSize  int
	cellBits  int
	stepLimit int64
	in        *bufio.Reader
	out       *bufio.Writer
}

func New(opts ...Option) (*VM, error) {
	vm := &VM{tapeSize: 30000, cellBits: 8}
	for _, opt := range opts {
		if opt != nil {
			opt(vm)
		}
	}
	if vm.tapeSize < 1 {
		return nil, fmt.Errorf("invalid tape size %d", vm.tapeSize)
	}
	switch vm.cellBits {
	case 8, 16, 32:
	default:
		return nil, fmt.Errorf("unsupported cell width %d", vm.cellBits)
	}
	if vm.in == nil {
		vm.in = bufio.NewReader(bytes.NewReader(nil))
	}
	if vm.out == nil {
		vm.out = bufio.NewWriter(io.Discard)
	}
	vm.mask = uint32(uint64(1)<<uint(vm.cellBits) - 1)
	vm.tape = make([]uint32, vm.tapeSize)
	return vm, nil
}

func (vm *VM) Cell(addr int) uint32 { return vm.tape[addr] }

func (vm *VM) SetCell(addr int, v uint32) { vm.tape[addr] = v & vm.mask }

func (vm *VM) Pointer() int { return vm.ptr }

// Steps reports how many instructions the last run executed.
func (vm *VM) Steps() int64 { return vm.steps }

// Reset clears the tape.
func (vm *VM) Reset() {
	for i := range vm.tape {
		vm.tape[i] = 0
	}
	vm.ptr = 0
}

// Run executes code from its first instruction with the pointer on cell 0.
// Output is flushed before returning.
func (vm *VM) Run(ctx context.Context, code *Code) (err error) {
	defer func() {
		if ferr := vm.out.Flush(); err == nil && ferr != nil {
			err = ferr
		}
	}()

	vm.ptr, vm.steps = 0, 0
	ops, jump, tape := code.ops, code.jump, vm.tape
	for pc := 0; pc < len(ops); pc++ {
		vm.steps++
		if vm.steps%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if vm.stepLimit > 0 && vm.steps > vm.stepLimit {
			return fmt.Errorf("%w after %d steps", ErrStepLimit, vm.stepLimit)
		}
		switch ops[pc] {
		case ir.OpRight:
			if vm.ptr++; vm.ptr >= len(tape) {
				return fmt.Errorf("%w: moved right of cell %d at instruction %d", ErrOutOfRange, len(tape)-1, pc)
			}
		case ir.OpLeft:
			if vm.ptr--; vm.ptr < 0 {
				return fmt.Errorf("%w: moved left of cell 0 at instruction %d", ErrOutOfRange, pc)
			}
		case ir.OpInc:
			tape[vm.ptr] = (tape[vm.ptr] + 1) & vm.mask
		case ir.OpDec:
			tape[vm.ptr] = (tape[vm.ptr] - 1) & vm.mask
		case ir.OpOut:
			if err := vm.out.WriteByte(byte(tape[vm.ptr])); err != nil {
				return err
			}
		case ir.OpIn:
			c, err := vm.in.ReadByte()
			switch {
			case err == io.EOF:
				tape[vm.ptr] = vm.mask
			case err != nil:
				return err
			default:
				tape[vm.ptr] = uint32(c)
			}
		case ir.OpLoopOpen:
			if tape[vm.ptr] == 0 {
				pc = jump[pc]
			}
		case ir.OpLoopClose:
			if tape[vm.ptr] != 0 {
				pc = jump[pc]
			}
		}
	}
	return nil
}

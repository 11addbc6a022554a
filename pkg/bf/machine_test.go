package bf

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xplshn/bfc/pkg/interp"
	"github.com/xplshn/bfc/pkg/ir"
)

func newTestMachine(t *testing.T, opts ...Option) (*Machine, *ir.Program) {
	t.Helper()
	prog := ir.NewProgram()
	m, err := New(prog, opts...)
	require.NoError(t, err)
	return m, prog
}

// execute runs prog on a fresh tape seeded with seed and returns the VM and
// everything the program printed.
func execute(t *testing.T, prog *ir.Program, seed map[int]uint32, opts ...interp.Option) (*interp.VM, []byte) {
	t.Helper()
	code, err := interp.Compile(prog)
	require.NoError(t, err)
	var out bytes.Buffer
	vm, err := interp.New(append([]interp.Option{interp.WithOutput(&out), interp.WithTapeSize(64)}, opts...)...)
	require.NoError(t, err)
	for addr, v := range seed {
		vm.SetCell(addr, v)
	}
	require.NoError(t, vm.Run(context.Background(), code))
	return vm, out.Bytes()
}

type failingSink struct {
	err   error
	after int
	n     int
}

func (f *failingSink) Emit(op ir.Op, count int) error {
	if f.n >= f.after {
		return f.err
	}
	f.n++
	return nil
}

func TestNewRejectsBadConfiguration(t *testing.T) {
	prog := ir.NewProgram()
	for name, opts := range map[string][]Option{
		"zero tape":      {WithTapeSize(0)},
		"negative tape":  {WithTapeSize(-5)},
		"odd cell width": {WithCellBits(12)},
	} {
		_, err := New(prog, opts...)
		require.True(t, errors.Is(err, ErrInvalidArgument), "%s: %v", name, err)
	}
	_, err := New(nil)
	require.True(t, errors.Is(err, ErrInvalidArgument))

	m, err := New(prog, WithTapeSize(100), WithCellBits(16))
	require.NoError(t, err)
	require.Equal(t, 100, m.TapeSize())
	require.Equal(t, int64(65536), m.Modulus())
}

func TestMoveTo(t *testing.T) {
	m, prog := newTestMachine(t, WithTapeSize(10))

	require.NoError(t, m.MoveTo(3))
	require.Equal(t, ">>>", prog.String())
	require.NoError(t, m.MoveTo(3))
	require.Equal(t, ">>>", prog.String(), "moving to the current cell emits nothing")
	require.NoError(t, m.MoveTo(1))
	require.Equal(t, ">>><<", prog.String())
	require.Equal(t, 1, m.Cursor())

	for _, bad := range []int{-1, 10, 1000} {
		err := m.MoveTo(bad)
		require.True(t, errors.Is(err, ErrOutOfBounds), "moveTo(%d): %v", bad, err)
	}
	require.Equal(t, 1, m.Cursor(), "failed moves keep the cursor")
	require.NoError(t, m.MoveTo(9))
	require.Equal(t, 9, m.Cursor())
}

func TestSetCell(t *testing.T) {
	m, prog := newTestMachine(t)
	require.NoError(t, m.SetCell(2, 3))
	require.Equal(t, ">>[-]+++", prog.String())
	require.NoError(t, m.SetCell(2, 0))
	require.Equal(t, ">>[-]+++[-]", prog.String())

	err := m.SetCell(2, -1)
	require.True(t, errors.Is(err, ErrInvalidArgument), "got %v", err)

	vm, _ := execute(t, prog, map[int]uint32{2: 200})
	require.Equal(t, uint32(0), vm.Cell(2))
}

func TestSetCellWraps(t *testing.T) {
	m, prog := newTestMachine(t)
	require.NoError(t, m.SetCell(0, 260))
	vm, _ := execute(t, prog, nil)
	require.Equal(t, uint32(4), vm.Cell(0))
}

func TestEmitOutIn(t *testing.T) {
	m, prog := newTestMachine(t)
	require.NoError(t, m.EmitIn(1))
	require.NoError(t, m.EmitOut(1))
	require.Equal(t, ">,.", prog.String())

	vm, out := execute(t, prog, nil, interp.WithInput(bytes.NewReader([]byte("Z"))))
	require.Equal(t, []byte("Z"), out)
	require.Equal(t, uint32('Z'), vm.Cell(1))
}

func TestSinkFailure(t *testing.T) {
	boom := errors.New("disk full")
	m, err := New(&failingSink{err: boom, after: 1})
	require.NoError(t, err)

	err = m.SetCell(4, 1)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrSink))
	require.True(t, errors.Is(err, boom))
	require.Equal(t, KindSink, KindOf(err))
	require.Equal(t, 4, m.Cursor(), "the move was emitted before the failure")
}

func TestCallocZeroesReusedCells(t *testing.T) {
	m, prog := newTestMachine(t)
	require.NoError(t, m.Assign("x", 9))
	require.NoError(t, m.Free("x"))

	addr, err := m.Calloc(2)
	require.NoError(t, err)
	require.Equal(t, 0, addr)

	vm, _ := execute(t, prog, map[int]uint32{1: 42})
	require.Equal(t, uint32(0), vm.Cell(0))
	require.Equal(t, uint32(0), vm.Cell(1))
}

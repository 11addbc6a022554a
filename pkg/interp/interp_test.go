package interp

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xplshn/bfc/pkg/ir"
)

const helloWorld = `++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++.`

func run(t *testing.T, src string, input string, opts ...Option) (*VM, string, error) {
	t.Helper()
	code, err := Compile(ir.Parse([]byte(src)))
	require.NoError(t, err)
	var out bytes.Buffer
	opts = append([]Option{WithOutput(&out), WithInput(strings.NewReader(input))}, opts...)
	vm, err := New(opts...)
	require.NoError(t, err)
	err = vm.Run(context.Background(), code)
	return vm, out.String(), err
}

func TestHelloWorld(t *testing.T) {
	_, out, err := run(t, helloWorld, "")
	require.NoError(t, err)
	require.Equal(t, "Hello World!\n", out)
}

func TestEcho(t *testing.T) {
	// copies input to output until EOF leaves 255 in the cell
	_, out, err := run(t, ",+[-.,+]", "abc")
	require.NoError(t, err)
	require.Equal(t, "abc", out)
}

func TestWrapping(t *testing.T) {
	vm, _, err := run(t, "-", "")
	require.NoError(t, err)
	require.Equal(t, uint32(255), vm.Cell(0))

	vm, _, err = run(t, "-", "", WithCellBits(16))
	require.NoError(t, err)
	require.Equal(t, uint32(65535), vm.Cell(0))

	vm, _, err = run(t, strings.Repeat("+", 257), "")
	require.NoError(t, err)
	require.Equal(t, uint32(1), vm.Cell(0))
}

func TestEOFStoresAllOnes(t *testing.T) {
	vm, _, err := run(t, ",", "")
	require.NoError(t, err)
	require.Equal(t, uint32(255), vm.Cell(0))
}

func TestCompileUnbalanced(t *testing.T) {
	for _, src := range []string{"[", "]", "[[]", "[]]", "+]["} {
		_, err := Compile(ir.Parse([]byte(src)))
		require.Error(t, err, "%q", src)
	}
}

func TestPointerBounds(t *testing.T) {
	_, _, err := run(t, "<", "")
	require.True(t, errors.Is(err, ErrOutOfRange), "got %v", err)

	_, _, err = run(t, ">>>", "", WithTapeSize(3))
	require.True(t, errors.Is(err, ErrOutOfRange), "got %v", err)

	vm, _, err := run(t, ">>", "", WithTapeSize(3))
	require.NoError(t, err)
	require.Equal(t, 2, vm.Pointer())
}

func TestStepLimit(t *testing.T) {
	_, _, err := run(t, "+[]", "", WithStepLimit(1000))
	require.True(t, errors.Is(err, ErrStepLimit), "got %v", err)
}

func TestContextCancellation(t *testing.T) {
	code, err := Compile(ir.Parse([]byte("+[]")))
	require.NoError(t, err)
	vm, err := New()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, vm.Run(ctx, code), context.Canceled)
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := New(WithTapeSize(0))
	require.Error(t, err)
	_, err = New(WithCellBits(7))
	require.Error(t, err)
}

func TestTapePersistsAcrossRuns(t *testing.T) {
	code, err := Compile(ir.Parse([]byte("[->+<]")))
	require.NoError(t, err)
	vm, err := New(WithTapeSize(4))
	require.NoError(t, err)

	vm.SetCell(0, 9)
	require.NoError(t, vm.Run(context.Background(), code))
	require.Equal(t, uint32(0), vm.Cell(0))
	require.Equal(t, uint32(9), vm.Cell(1))
	require.Equal(t, int64(1+9*5), vm.Steps())

	vm.Reset()
	require.Equal(t, uint32(0), vm.Cell(1))
}

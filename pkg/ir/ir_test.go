package ir

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestSymbolsRoundTrip(t *testing.T) {
	for op := Op(0); op < OpCount; op++ {
		got, ok := OpFromSymbol(op.Symbol())
		require.True(t, ok, "%v", op)
		require.Equal(t, op, got)
	}
	_, ok := OpFromSymbol('x')
	require.False(t, ok)
	require.Equal(t, byte('?'), Op(42).Symbol())
}

func TestParseSkipsComments(t *testing.T) {
	p := Parse([]byte("set x: [-] +++\n print it ."))
	require.Equal(t, "[-]+++.", p.String())
	require.Equal(t, 1, p.Count(OpOut))
	require.Equal(t, 3, p.Count(OpInc))
}

func TestProgramEmit(t *testing.T) {
	p := NewProgram()
	require.NoError(t, p.Emit(OpRight, 3))
	require.NoError(t, p.Emit(OpInc, 1))
	require.NoError(t, p.Emit(OpLeft, 0))
	require.Error(t, p.Emit(Op(99), 1))
	require.Equal(t, ">>>+", p.String())
	require.Equal(t, 4, p.Len())
}

func TestValidate(t *testing.T) {
	require.NoError(t, Parse([]byte("[[]][]")).Validate())
	require.Error(t, Parse([]byte("[[]")).Validate())
	require.Error(t, Parse([]byte("][")).Validate())
}

func TestRuns(t *testing.T) {
	got := Parse([]byte(">>>++[[-]]..<")).Runs()
	want := []Run{
		{OpRight, 3}, {OpInc, 2}, {OpLoopOpen, 1}, {OpLoopOpen, 1}, {OpDec, 1},
		{OpLoopClose, 1}, {OpLoopClose, 1}, {OpOut, 2}, {OpLeft, 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("runs mismatch (-want +got):\n%s", diff)
	}
}

func TestTextWriterWrapsLines(t *testing.T) {
	var buf bytes.Buffer
	w := NewTextWriter(&buf, 4)
	require.NoError(t, w.Emit(OpInc, 6))
	require.NoError(t, w.Emit(OpOut, 2))
	require.NoError(t, w.Emit(OpRight, 1))
	require.NoError(t, w.Flush())
	require.NoError(t, w.Flush())
	require.Equal(t, "++++\n++..\n>\n", buf.String())
	require.Equal(t, 9, w.Written())
}

func TestTextWriterUnwrapped(t *testing.T) {
	var buf bytes.Buffer
	w := NewTextWriter(&buf, 0)
	require.NoError(t, w.Emit(OpLoopOpen, 1))
	require.NoError(t, w.Emit(OpDec, 1))
	require.NoError(t, w.Emit(OpLoopClose, 1))
	require.NoError(t, w.Flush())
	require.Equal(t, "[-]", buf.String())
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestTextWriterReportsWriteErrors(t *testing.T) {
	w := NewTextWriter(brokenWriter{}, 0)
	require.NoError(t, w.Emit(OpInc, 10)) // buffered
	require.Error(t, w.Flush())
}

func TestSinksRejectInvalidInstructions(t *testing.T) {
	var buf bytes.Buffer
	w := NewTextWriter(&buf, 0)
	p := NewProgram()
	for _, op := range []Op{-1, OpCount, Op(99)} {
		werr, perr := w.Emit(op, 1), p.Emit(op, 1)
		require.Error(t, werr, "writer accepted %d", int(op))
		require.EqualError(t, werr, perr.Error())
	}
	require.NoError(t, w.Flush())
	require.Empty(t, buf.String())
	require.Zero(t, w.Written())
}

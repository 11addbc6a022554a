package ir

import (
	"bufio"
	"io"
)

// DefaultLineWidth is the number of instructions per line written by a
// TextWriter unless configured otherwise.
const DefaultLineWidth = 50

// TextWriter is a Sink that writes program text to an io.Writer, breaking
// lines every width instructions. A width of 0 disables line breaks.
type TextWriter struct {
	w       *bufio.Writer
	width   int
	written int
	col     int
}

func NewTextWriter(w io.Writer, width int) *TextWriter {
	if width < 0 {
		width = 0
	}
	return &TextWriter{w: bufio.NewWriter(w), width: width}
}

func (t *TextWriter) Emit(op Op, count int) error {
	if err := checkOp(op); err != nil {
		return err
	}
	c := op.Symbol()
	for i := 0; i < count; i++ {
		if err := t.w.WriteByte(c); err != nil {
			return err
		}
		t.written++
		t.col++
		if t.width > 0 && t.col == t.width {
			if err := t.w.WriteByte('\n'); err != nil {
				return err
			}
			t.col = 0
		}
	}
	return nil
}

// Written reports the number of instructions written so far.
func (t *TextWriter) Written() int { return t.written }

// Flush terminates a partial line and flushes buffered output.
func (t *TextWriter) Flush() error {
	if t.width > 0 && t.col > 0 {
		if err := t.w.WriteByte('\n'); err != nil {
			return err
		}
		t.col = 0
	}
	return t.w.Flush()
}

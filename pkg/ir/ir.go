// Package ir defines the primitive instruction set of the tape machine and
// the sinks that receive instruction streams from the code generator.
package ir

import (
	"fmt"
	"strings"
)

type Op int

const (
	OpRight Op = iota
	OpLeft
	OpInc
	OpDec
	OpOut
	OpIn
	OpLoopOpen
	OpLoopClose
	OpCount
)

var opSymbols = [OpCount]byte{'>', '<', '+', '-', '.', ',', '[', ']'}

var opNames = [OpCount]string{"right", "left", "inc", "dec", "out", "in", "loop", "end"}

// Symbol returns the single-byte source form of the instruction.
func (op Op) Symbol() byte {
	if op < 0 || op >= OpCount {
		return '?'
	}
	return opSymbols[op]
}

func (op Op) String() string {
	if op < 0 || op >= OpCount {
		return fmt.Sprintf("Op(%d)", int(op))
	}
	return opNames[op]
}

// OpFromSymbol maps a source byte back to its instruction.
func OpFromSymbol(c byte) (Op, bool) {
	for i, s := range opSymbols {
		if s == c {
			return Op(i), true
		}
	}
	return 0, false
}

// Sink receives instructions in emission order. Emit appends count copies
// of op; count is always positive.
type Sink interface {
	Emit(op Op, count int) error
}

// Program is an in-memory, append-only instruction stream.
type Program struct {
	ops []Op
}

func NewProgram() *Program { return &Program{} }

func (p *Program) Emit(op Op, count int) error {
	if err := checkOp(op); err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		p.ops = append(p.ops, op)
	}
	return nil
}

func checkOp(op Op) error {
	if op < 0 || op >= OpCount {
		return fmt.Errorf("invalid instruction %d", int(op))
	}
	return nil
}

// Ops returns the stream. The slice must not be modified.
func (p *Program) Ops() []Op { return p.ops }

func (p *Program) Len() int { return len(p.ops) }

// Count reports how many times op occurs in the stream.
func (p *Program) Count(op Op) int {
	n := 0
	for _, o := range p.ops {
		if o == op {
			n++
		}
	}
	return n
}

func (p *Program) String() string {
	var sb strings.Builder
	sb.Grow(len(p.ops))
	for _, op := range p.ops {
		sb.WriteByte(op.Symbol())
	}
	return sb.String()
}

// Validate checks that loop brackets are balanced.
func (p *Program) Validate() error {
	depth := 0
	for i, op := range p.ops {
		switch op {
		case OpLoopOpen:
			depth++
		case OpLoopClose:
			if depth == 0 {
				return fmt.Errorf("unmatched ']' at instruction %d", i)
			}
			depth--
		}
	}
	if depth != 0 {
		return fmt.Errorf("%d unclosed '['", depth)
	}
	return nil
}

// Parse reads program text. Bytes outside the instruction alphabet are
// comments and are skipped.
func Parse(src []byte) *Program {
	p := &Program{ops: make([]Op, 0, len(src))}
	for _, c := range src {
		if op, ok := OpFromSymbol(c); ok {
			p.ops = append(p.ops, op)
		}
	}
	return p
}

// Run is a maximal sequence of one repeated instruction.
type Run struct {
	Op    Op
	Count int
}

// Runs collapses consecutive repeats of the same instruction. Loop brackets
// are never merged.
func (p *Program) Runs() []Run {
	var runs []Run
	for _, op := range p.ops {
		if n := len(runs); n > 0 && runs[n-1].Op == op && op != OpLoopOpen && op != OpLoopClose {
			runs[n-1].Count++
			continue
		}
		runs = append(runs, Run{Op: op, Count: 1})
	}
	return runs
}

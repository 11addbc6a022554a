package codegen

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xplshn/bfc/pkg/config"
	"github.com/xplshn/bfc/pkg/ir"
)

// cBackend transliterates the instruction stream into a C program, one
// statement per run of identical instructions.
type cBackend struct{}

func NewCBackend() Backend { return &cBackend{} }

func cellType(bits int) string { return fmt.Sprintf("uint%d_t", bits) }

func (b *cBackend) Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error) {
	if err := prog.Validate(); err != nil {
		return nil, err
	}
	cell := cellType(cfg.CellBits)

	var buf bytes.Buffer
	buf.WriteString("#include <stdint.h>\n#include <stdio.h>\n\n")
	fmt.Fprintf(&buf, "static %s tape[%d];\n\n", cell, cfg.TapeSize)
	buf.WriteString("int main(void) {\n")
	fmt.Fprintf(&buf, "\t%s *p = tape;\n", cell)

	depth := 1
	for _, run := range prog.Runs() {
		if run.Op == ir.OpLoopClose {
			depth--
		}
		indent := strings.Repeat("\t", depth)
		switch run.Op {
		case ir.OpRight:
			fmt.Fprintf(&buf, "%sp += %d;\n", indent, run.Count)
		case ir.OpLeft:
			fmt.Fprintf(&buf, "%sp -= %d;\n", indent, run.Count)
		case ir.OpInc:
			fmt.Fprintf(&buf, "%s*p += %d;\n", indent, run.Count)
		case ir.OpDec:
			fmt.Fprintf(&buf, "%s*p -= %d;\n", indent, run.Count)
		case ir.OpOut:
			for i := 0; i < run.Count; i++ {
				fmt.Fprintf(&buf, "%sputchar(*p);\n", indent)
			}
		case ir.OpIn:
			for i := 0; i < run.Count; i++ {
				fmt.Fprintf(&buf, "%s*p = (%s)getchar();\n", indent, cell)
			}
		case ir.OpLoopOpen:
			fmt.Fprintf(&buf, "%swhile (*p) {\n", indent)
			depth++
		case ir.OpLoopClose:
			fmt.Fprintf(&buf, "%s}\n", indent)
		}
	}
	buf.WriteString("\treturn 0;\n}\n")
	return &buf, nil
}

func (b *cBackend) GenerateIR(prog *ir.Program, cfg *config.Config) (string, error) {
	buf, err := b.Generate(prog, cfg)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

package codegen

import (
	"fmt"
	"strings"

	"github.com/xplshn/bfc/pkg/config"
	"github.com/xplshn/bfc/pkg/ir"
)

type qbeBackend struct {
	out       *strings.Builder
	tempCount int
	load      string
	store     string
	cellSize  int
}

func NewQBEBackend() Backend { return &qbeBackend{} }

func (b *qbeBackend) newTemp() string {
	b.tempCount++
	return fmt.Sprintf("%%t%d", b.tempCount)
}

func (b *qbeBackend) setCellWidth(bits int) error {
	switch bits {
	case 8:
		b.load, b.store, b.cellSize = "loadub", "storeb", 1
	case 16:
		b.load, b.store, b.cellSize = "loaduh", "storeh", 2
	case 32:
		b.load, b.store, b.cellSize = "loadw", "storew", 4
	default:
		return fmt.Errorf("qbe backend: unsupported cell width %d", bits)
	}
	return nil
}

// GenerateIR emits QBE IL. The tape pointer lives in %p and every loop
// becomes a test block, a body block and an exit block. QBE builds SSA form
// itself, so %p is simply reassigned.
func (b *qbeBackend) GenerateIR(prog *ir.Program, cfg *config.Config) (string, error) {
	if err := prog.Validate(); err != nil {
		return "", err
	}
	if err := b.setCellWidth(cfg.CellBits); err != nil {
		return "", err
	}
	var sb strings.Builder
	b.out, b.tempCount = &sb, 0

	fmt.Fprintf(b.out, "data $tape = align 8 { z %d }\n\n", cfg.TapeSize*b.cellSize)
	b.out.WriteString("export function w $main() {\n@start\n")
	b.out.WriteString("\t%p =l copy $tape\n")

	var loops []int
	nextLoop := 0
	for _, run := range prog.Runs() {
		switch run.Op {
		case ir.OpRight:
			fmt.Fprintf(b.out, "\t%%p =l add %%p, %d\n", run.Count*b.cellSize)
		case ir.OpLeft:
			fmt.Fprintf(b.out, "\t%%p =l sub %%p, %d\n", run.Count*b.cellSize)
		case ir.OpInc:
			b.genUpdate("add", run.Count)
		case ir.OpDec:
			b.genUpdate("sub", run.Count)
		case ir.OpOut:
			for i := 0; i < run.Count; i++ {
				v := b.newTemp()
				fmt.Fprintf(b.out, "\t%s =w %s %%p\n", v, b.load)
				fmt.Fprintf(b.out, "\tcall $putchar(w %s)\n", v)
			}
		case ir.OpIn:
			for i := 0; i < run.Count; i++ {
				v := b.newTemp()
				fmt.Fprintf(b.out, "\t%s =w call $getchar()\n", v)
				fmt.Fprintf(b.out, "\t%s %s, %%p\n", b.store, v)
			}
		case ir.OpLoopOpen:
			id := nextLoop
			nextLoop++
			loops = append(loops, id)
			v := b.newTemp()
			fmt.Fprintf(b.out, "@loop%d\n", id)
			fmt.Fprintf(b.out, "\t%s =w %s %%p\n", v, b.load)
			fmt.Fprintf(b.out, "\tjnz %s, @body%d, @end%d\n", v, id, id)
			fmt.Fprintf(b.out, "@body%d\n", id)
		case ir.OpLoopClose:
			id := loops[len(loops)-1]
			loops = loops[:len(loops)-1]
			fmt.Fprintf(b.out, "\tjmp @loop%d\n", id)
			fmt.Fprintf(b.out, "@end%d\n", id)
		}
	}
	b.out.WriteString("\tret 0\n}\n")
	return sb.String(), nil
}

func (b *qbeBackend) genUpdate(op string, count int) {
	v, r := b.newTemp(), b.newTemp()
	fmt.Fprintf(b.out, "\t%s =w %s %%p\n", v, b.load)
	fmt.Fprintf(b.out, "\t%s =w %s %s, %d\n", r, op, v, count)
	fmt.Fprintf(b.out, "\t%s %s, %%p\n", b.store, r)
}

package codegen

import (
	"bytes"
	"fmt"

	"github.com/xplshn/bfc/pkg/config"
	"github.com/xplshn/bfc/pkg/ir"
)

// Backend is the interface that all code generation backends must implement.
type Backend interface {
	// Generate produces the final artifact: program text for bf, C source
	// for c and assembly for qbe.
	Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error)
	// GenerateIR produces the human readable form used by --dump-ir.
	GenerateIR(prog *ir.Program, cfg *config.Config) (string, error)
}

func SelectBackend(name string) (Backend, error) {
	switch name {
	case "bf":
		return NewBFBackend(), nil
	case "c":
		return NewCBackend(), nil
	case "qbe":
		return NewQBEBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported backend '%s'", name)
	}
}

type bfBackend struct{}

func NewBFBackend() Backend { return &bfBackend{} }

func (b *bfBackend) Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	w := ir.NewTextWriter(&buf, cfg.LineWidth)
	for _, run := range prog.Runs() {
		if err := w.Emit(run.Op, run.Count); err != nil {
			return nil, err
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return &buf, nil
}

func (b *bfBackend) GenerateIR(prog *ir.Program, cfg *config.Config) (string, error) {
	buf, err := b.Generate(prog, cfg)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

//go:build windows

package codegen

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"

	"github.com/xplshn/bfc/pkg/config"
	"github.com/xplshn/bfc/pkg/ir"
)

// Generate shells out to a qbe executable; libqbe is not built on windows.
func (b *qbeBackend) Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error) {
	if _, err := exec.LookPath("qbe"); err != nil {
		return nil, fmt.Errorf("qbe not found in PATH: %w", err)
	}

	qbeIR, err := b.GenerateIR(prog, cfg)
	if err != nil {
		return nil, err
	}

	in, err := os.CreateTemp("", "bfc-qbe-*.ssa")
	if err != nil {
		return nil, err
	}
	defer os.Remove(in.Name())
	if _, err = in.WriteString(qbeIR); err != nil {
		in.Close()
		return nil, err
	}
	in.Close()

	outName := in.Name() + ".s"
	defer os.Remove(outName)
	args := []string{"-o", outName, in.Name()}
	if cfg.BackendTarget != "" {
		args = append([]string{"-t", cfg.BackendTarget}, args...)
	}
	if output, err := exec.Command("qbe", args...).CombinedOutput(); err != nil {
		return nil, fmt.Errorf("qbe compilation failed: %w\n%s", err, output)
	}

	asm, err := os.ReadFile(outName)
	if err != nil {
		return nil, err
	}
	return bytes.NewBuffer(asm), nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/xplshn/bfc/pkg/ast"
	"github.com/xplshn/bfc/pkg/checker"
	"github.com/xplshn/bfc/pkg/cli"
	"github.com/xplshn/bfc/pkg/codegen"
	"github.com/xplshn/bfc/pkg/config"
	"github.com/xplshn/bfc/pkg/interp"
	"github.com/xplshn/bfc/pkg/ir"
	"github.com/xplshn/bfc/pkg/lexer"
	"github.com/xplshn/bfc/pkg/parser"
	"github.com/xplshn/bfc/pkg/token"
	"github.com/xplshn/bfc/pkg/util"
)

// noTok makes diagnostics print "bfc:" instead of a source position.
var noTok = token.Token{FileIndex: -1}

func main() {
	app := cli.NewApp("bfc")
	app.Synopsis = "[options] <input.bfs|input.bf> ..."
	app.Description = "Compiles a small language of byte-sized variables down to the eight-instruction tape machine, and from there to C or native code."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/bfc>"
	app.Since = 2025

	var (
		outFile    string
		target     string
		configPath string
		tapeSize   int
		cellBits   int
		lineWidth  int
		maxSteps   int
		linkerArgs []string
		runProgram bool
		dumpIR     bool
		emitSource bool
		verbose    bool
		wall       bool
		wnoall     bool
		pedantic   bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "", "Place the output into <file>.", "file")
	fs.String(&target, "target", "t", config.DefaultBackend, "Set the backend (bf, c, qbe) and, for qbe, the target ABI.", "backend[/target]")
	fs.String(&configPath, "config", "c", "", "Read settings from <file> instead of ./bfc.yaml.", "file")
	fs.Int(&tapeSize, "tape-size", "", config.DefaultTapeSize, "Number of cells on the tape.", "cells")
	fs.Int(&cellBits, "cell-bits", "", config.DefaultCellBits, "Width of a cell: 8, 16 or 32.", "bits")
	fs.Int(&lineWidth, "line-width", "", config.DefaultLineWidth, "Instructions per line of program text, 0 for one line.", "n")
	fs.Int(&maxSteps, "max-steps", "", 0, "Abort --run after <n> instructions, 0 for no limit.", "n")
	fs.List(&linkerArgs, "linker-arg", "L", []string{}, "Pass an argument to the linker.", "arg")
	fs.Bool(&runProgram, "run", "r", false, "Run the program with the built-in interpreter.")
	fs.Bool(&dumpIR, "dump-ir", "d", false, "Dump the backend's intermediate representation and exit.")
	fs.Bool(&emitSource, "emit-source", "S", false, "Write the C source or assembly instead of linking an executable.")
	fs.Bool(&verbose, "verbose", "v", false, "Report each compilation stage.")
	fs.Bool(&wall, "Wall", "", false, "Enable all warnings except pedantic ones.")
	fs.Bool(&wnoall, "Wno-all", "", false, "Disable all warnings.")
	fs.Bool(&pedantic, "pedantic", "", false, "Issue all warnings, including stylistic ones.")

	cfg := config.NewConfig()
	cfg.SetupFlagGroups(fs)

	info := func(format string, args ...interface{}) {
		if verbose {
			util.Info(format, args...)
		}
	}

	app.Action = func(inputFiles []string) error {
		if len(inputFiles) == 0 {
			util.Error(noTok, "no input files specified.")
		}

		// Settings are layered: defaults, config file, environment, then flags
		used, err := cfg.Load(configPath)
		if err != nil {
			util.Error(noTok, "%v", err)
		}
		if used != "" {
			info("using settings from %s", used)
		}
		cfg.ProcessFlags(fs.Visit)
		if fs.Changed("tape-size") {
			cfg.TapeSize = tapeSize
		}
		if fs.Changed("cell-bits") {
			cfg.CellBits = cellBits
		}
		if fs.Changed("line-width") {
			cfg.LineWidth = lineWidth
		}
		if fs.Changed("target") {
			backend, abi, _ := strings.Cut(target, "/")
			cfg.BackendName, cfg.BackendTarget = backend, abi
		}
		if err := cfg.Validate(); err != nil {
			util.Error(noTok, "%v", err)
		}
		cfg.SetTarget(runtime.GOOS, runtime.GOARCH, cfg.BackendTarget)

		prog := compile(inputFiles, cfg, info)

		if runProgram {
			info("running %d instructions on a %d-cell tape", prog.Len(), cfg.TapeSize)
			if err := runInterpreter(prog, cfg, int64(maxSteps)); err != nil {
				util.Error(noTok, "runtime error: %v", err)
			}
			return nil
		}

		backend, err := codegen.SelectBackend(cfg.BackendName)
		if err != nil {
			util.Error(noTok, "%v", err)
		}

		if dumpIR {
			info("dumping IR for '%s' backend", cfg.BackendName)
			irText, err := backend.GenerateIR(prog, cfg)
			if err != nil {
				util.Error(noTok, "backend IR generation failed: %v", err)
			}
			fmt.Print(irText)
			return nil
		}

		info("generating code with '%s' backend", cfg.BackendName)
		out, err := backend.Generate(prog, cfg)
		if err != nil {
			util.Error(noTok, "backend code generation failed: %v", err)
		}

		switch {
		case cfg.BackendName == "bf":
			err = writeOutput(defaultOutput(outFile, "a.bf"), out.Bytes())
		case emitSource && cfg.BackendName == "c":
			err = writeOutput(defaultOutput(outFile, "a.c"), out.Bytes())
		case emitSource:
			err = writeOutput(defaultOutput(outFile, "a.s"), out.Bytes())
		default:
			outFile = defaultOutput(outFile, "a.out")
			info("linking to create '%s'", outFile)
			ext := ".s"
			if cfg.BackendName == "c" {
				ext = ".c"
			}
			err = buildExecutable(outFile, ext, out.String(), linkerArgs)
		}
		if err != nil {
			util.Error(noTok, "%v", err)
		}
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// compile turns the inputs into one instruction stream. Program text (.bf)
// is read as is; source files are compiled together, in order.
func compile(inputFiles []string, cfg *config.Config, info func(string, ...interface{})) *ir.Program {
	var sources []string
	prog := ir.NewProgram()
	for _, path := range inputFiles {
		if filepath.Ext(path) != ".bf" {
			sources = append(sources, path)
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			util.Error(noTok, "could not read file '%s': %v", path, err)
		}
		for _, op := range ir.Parse(content).Ops() {
			if err := prog.Emit(op, 1); err != nil {
				util.Error(noTok, "%v", err)
			}
		}
	}
	if len(sources) == 0 {
		if err := prog.Validate(); err != nil {
			util.Error(noTok, "%v", err)
		}
		return prog
	}
	if prog.Len() > 0 {
		util.Error(noTok, "program text (.bf) and source files can't be mixed")
	}

	// First pass: scan for directives. Warnings wait for the second pass,
	// which re-applies any directive that changes them.
	warnings := maps.Clone(cfg.Warnings)
	for w := config.Warning(0); w < config.WarnCount; w++ {
		cfg.SetWarning(w, false)
	}
	records, allTokens := readAndTokenizeFiles(sources, cfg)
	util.SetSourceFiles(records)
	parser.NewParser(allTokens, cfg).Parse()
	cfg.Warnings = warnings

	// Second pass: compile with the final configuration
	info("tokenizing %d source file(s)", len(sources))
	records, allTokens = readAndTokenizeFiles(sources, cfg)
	util.SetSourceFiles(records)

	info("parsing tokens into AST")
	root := parser.NewParser(allTokens, cfg).Parse()

	info("folding constants")
	root = ast.FoldConstants(root)

	info("checking")
	checker.NewChecker(cfg).Check(root)

	info("lowering onto a %d-cell tape of %d-bit cells", cfg.TapeSize, cfg.CellBits)
	prog, err := codegen.GenerateIR(root, cfg)
	if err != nil {
		var cerr *codegen.Error
		if errors.As(err, &cerr) {
			util.Error(cerr.Tok, "%v", cerr.Err)
		}
		util.Error(noTok, "%v", err)
	}
	return prog
}

func readAndTokenizeFiles(paths []string, cfg *config.Config) ([]util.SourceFileRecord, []token.Token) {
	var records []util.SourceFileRecord
	var allTokens []token.Token

	for i, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			util.Error(noTok, "could not read file '%s': %v", path, err)
			continue
		}
		runeContent := []rune(string(content))
		records = append(records, util.SourceFileRecord{Name: path, Content: runeContent})
		l := lexer.NewLexer(runeContent, i, cfg)
		for {
			tok := l.Next()
			if tok.Type == token.EOF {
				break
			}
			allTokens = append(allTokens, tok)
		}
	}
	allTokens = append(allTokens, token.Token{Type: token.EOF, FileIndex: max(len(paths)-1, 0)})
	return records, allTokens
}

func runInterpreter(prog *ir.Program, cfg *config.Config, maxSteps int64) error {
	code, err := interp.Compile(prog)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	vm, err := interp.New(
		interp.WithTapeSize(cfg.TapeSize),
		interp.WithCellBits(cfg.CellBits),
		interp.WithInput(os.Stdin),
		interp.WithOutput(os.Stdout),
		interp.WithStepLimit(maxSteps),
	)
	if err != nil {
		return err
	}
	return vm.Run(ctx, code)
}

func defaultOutput(outFile, fallback string) string {
	if outFile != "" {
		return outFile
	}
	return fallback
}

func writeOutput(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write '%s': %w", path, err)
	}
	return nil
}

// buildExecutable hands C source or assembly to cc.
func buildExecutable(outFile, ext, source string, linkerArgs []string) error {
	srcFile, err := os.CreateTemp("", "bfc-main-*"+ext)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(srcFile.Name())
	if _, err := srcFile.WriteString(source); err != nil {
		srcFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	srcFile.Close()

	ccArgs := []string{"-o", outFile, srcFile.Name()}
	if ext == ".s" {
		ccArgs = append([]string{"-no-pie"}, ccArgs...)
	} else {
		ccArgs = append([]string{"-O2"}, ccArgs...)
	}
	ccArgs = append(ccArgs, linkerArgs...)

	cmd := exec.Command("cc", ccArgs...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("cc command failed: %w\nOutput:\n%s", err, string(output))
	}
	return nil
}

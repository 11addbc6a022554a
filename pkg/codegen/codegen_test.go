package codegen

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xplshn/bfc/pkg/ast"
	"github.com/xplshn/bfc/pkg/bf"
	"github.com/xplshn/bfc/pkg/config"
	"github.com/xplshn/bfc/pkg/interp"
	"github.com/xplshn/bfc/pkg/ir"
	"github.com/xplshn/bfc/pkg/lexer"
	"github.com/xplshn/bfc/pkg/parser"
	"github.com/xplshn/bfc/pkg/token"
	"github.com/xplshn/bfc/pkg/util"
)

func quiet(t *testing.T) {
	t.Helper()
	prev := util.Output
	util.Output = io.Discard
	t.Cleanup(func() { util.Output = prev })
}

func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.TapeSize = 256
	return cfg
}

func lower(t *testing.T, src string, cfg *config.Config) (*ir.Program, error) {
	t.Helper()
	quiet(t)
	toks := lexer.NewLexer([]rune(src), 0, cfg).Tokenize()
	root := ast.FoldConstants(parser.NewParser(toks, cfg).Parse())
	return GenerateIR(root, cfg)
}

func run(t *testing.T, src, input string, cfg *config.Config) string {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	prog, err := lower(t, src, cfg)
	require.NoError(t, err)
	code, err := interp.Compile(prog)
	require.NoError(t, err)

	var out bytes.Buffer
	vm, err := interp.New(
		interp.WithTapeSize(cfg.TapeSize), interp.WithCellBits(cfg.CellBits),
		interp.WithInput(strings.NewReader(input)), interp.WithOutput(&out),
		interp.WithStepLimit(50_000_000),
	)
	require.NoError(t, err)
	require.NoError(t, vm.Run(context.Background(), code))
	return out.String()
}

func TestScenarios(t *testing.T) {
	require.Equal(t, "#!", run(t, "var a = 35; var b = 33; print a; print b;", "", nil))
	require.Equal(t, "\x05", run(t, "var a = 2; var b = 3; a = a + b; print a;", "", nil))
	require.Equal(t, "HI", run(t, `print "HI";`, "", nil))
}

func TestArithmetic(t *testing.T) {
	for _, tc := range []struct {
		src  string
		want byte
	}{
		{"var a = 7; var b = a; print b;", 7},
		{"var a = 7; var b = 5; var c = a - b; print c;", 2},
		{"var a = 2; var b = 5; var c = a - b; print c;", 253},
		{"var a = 6; var b = 7; a = a * b; print a;", 42},
		{"var a = 6; a *= a; print a;", 36},
		{"var a = 200; a += 100; print a;", 44},
		{"var a = 10; a -= 3; a = a; print a;", 7},
		{"var a = 3; var b = 4; var c = (a + b) * (a - 1) + 2; print c;", 16},
		{"var a = 3; var b = -a; print b;", 253},
		{"var a = 3; a = -a * -a; print a;", 9},
		{"var a = 'A'; print a + 2;", 'C'},
		{"var x = 300; print x;", 44},
		{"var x = -1; print x;", 255},
	} {
		require.Equal(t, string([]byte{tc.want}), run(t, tc.src, "", nil), tc.src)
	}
}

func TestPrintMixedItems(t *testing.T) {
	out := run(t, `var n = 'a'; print "n=", n, '\n', n + 1;`, "", nil)
	require.Equal(t, "n=a\nb", out)
}

func TestInput(t *testing.T) {
	out := run(t, "input c; c += 1; print c; input d; print d;", "HI", nil)
	require.Equal(t, "II", out)

	out = run(t, "input c; print c;", "", nil)
	require.Equal(t, "\xff", out, "EOF reads as all ones")
}

func TestFreeReusesCells(t *testing.T) {
	cfg := testConfig()
	cfg.TapeSize = 4
	src := strings.Repeat("var a = 1; var b = 2; free a, b; ", 20) + "var c = 3; print c;"
	require.Equal(t, "\x03", run(t, src, "", cfg))
}

func TestWideCells(t *testing.T) {
	cfg := testConfig()
	cfg.CellBits = 16
	prog, err := lower(t, "var a = 300; var b = 2; a = a * b; b = a - 599;", cfg)
	require.NoError(t, err)
	code, err := interp.Compile(prog)
	require.NoError(t, err)
	vm, err := interp.New(interp.WithTapeSize(cfg.TapeSize), interp.WithCellBits(16))
	require.NoError(t, err)
	require.NoError(t, vm.Run(context.Background(), code))
	require.Equal(t, uint32(600), vm.Cell(0))
	require.Equal(t, uint32(1), vm.Cell(1))
}

func TestUndeclaredAssignment(t *testing.T) {
	_, err := lower(t, "x = 1;", testConfig())
	var cerr *Error
	require.True(t, errors.As(err, &cerr), "got %v", err)
	require.Equal(t, token.Ident, cerr.Tok.Type)
	require.True(t, errors.Is(err, bf.ErrUnboundName))

	cfg := testConfig()
	cfg.SetFeature(config.FeatImplicitDecl, true)
	require.Equal(t, "\x01", run(t, "x = 1; print x;", "", cfg))
	require.Equal(t, "\x01", run(t, "// [bfc]: -Fimplicit-decl\nx = 1; print x;", "", nil))
}

func TestLoweringErrors(t *testing.T) {
	for _, tc := range []struct {
		src  string
		kind bf.Kind
		line int
	}{
		{"print y;", bf.KindUnboundName, 1},
		{"var a = 1;\nfree a;\nfree a;", bf.KindUnboundName, 3},
		{"var a = b + 1;", bf.KindUnboundName, 1},
		{"var a = 1;\na += c;", bf.KindUnboundName, 2},
		{"var a = 1; var b = 2; var c = 3; var d = a + b;", bf.KindOutOfMemory, 1},
	} {
		cfg := testConfig()
		cfg.TapeSize = 4
		_, err := lower(t, tc.src, cfg)
		require.Error(t, err, tc.src)
		require.Equal(t, tc.kind, bf.KindOf(err), "%s: %v", tc.src, err)
		var cerr *Error
		require.True(t, errors.As(err, &cerr), tc.src)
		require.Equal(t, tc.line, cerr.Tok.Line, tc.src)
	}
}

func TestReadBeforeDeclareEmitsNothing(t *testing.T) {
	prog := ir.NewProgram()
	ctx, err := NewContext(testConfig(), prog)
	require.NoError(t, err)
	cfg := testConfig()
	quiet(t)
	root := parser.NewParser(lexer.NewLexer([]rune("var x = x + 1;"), 0, cfg).Tokenize(), cfg).Parse()
	require.Error(t, ctx.Lower(root))
	require.Zero(t, prog.Len())
	require.False(t, ctx.Machine().Bound("x"))
}

func TestScratchCellsAreReleased(t *testing.T) {
	prog := ir.NewProgram()
	cfg := testConfig()
	ctx, err := NewContext(cfg, prog)
	require.NoError(t, err)
	quiet(t)
	src := `var a = 5; var b = 6; var c = (a + 1) * (b - 2) - -a; print "ok", c * 2, 'x'; free b;`
	root := ast.FoldConstants(parser.NewParser(lexer.NewLexer([]rune(src), 0, cfg).Tokenize(), cfg).Parse())
	require.NoError(t, ctx.Lower(root))
	require.Equal(t, []string{"a", "c"}, ctx.Machine().Names())
	require.Equal(t, 2, ctx.Machine().Live())
	require.NoError(t, ctx.Machine().CheckHeap())
}

func TestOverflowWarningQuotesLiteral(t *testing.T) {
	for _, tc := range []struct {
		src  string
		want string
	}{
		{"var a = 300;", "constant 300 does not fit in a 8-bit cell, wraps to 44"},
		{"var a = -300;", "constant -300 does not fit in a 8-bit cell, wraps to 212"},
		{"var a = 9223372036854775808;", "constant 9223372036854775808 does not fit in a 8-bit cell, wraps to 0"},
		{"var a = 18446744073709551615;", "constant 18446744073709551615 does not fit in a 8-bit cell, wraps to 255"},
		{"var a = 0xffffffffffffffff;", "constant 18446744073709551615 does not fit in a 8-bit cell, wraps to 255"},
	} {
		var buf bytes.Buffer
		prev := util.Output
		util.Output = &buf
		cfg := testConfig()
		toks := lexer.NewLexer([]rune(tc.src), 0, cfg).Tokenize()
		_, err := GenerateIR(ast.FoldConstants(parser.NewParser(toks, cfg).Parse()), cfg)
		util.Output = prev

		require.NoError(t, err, tc.src)
		require.Contains(t, buf.String(), tc.want, tc.src)
	}

	require.Equal(t, "\xff", run(t, "var a = 18446744073709551615; print a;", "", nil))
}

package lexer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/bfc/pkg/config"
	"github.com/xplshn/bfc/pkg/token"
)

type lexeme struct {
	Type  token.Type
	Value string
}

func lex(t *testing.T, src string, cfg *config.Config) []lexeme {
	t.Helper()
	if cfg == nil {
		cfg = config.NewConfig()
	}
	var out []lexeme
	for _, tok := range NewLexer([]rune(src), 0, cfg).Tokenize() {
		out = append(out, lexeme{tok.Type, tok.Value})
	}
	return out
}

func TestStatements(t *testing.T) {
	got := lex(t, "var a = 0x2A; a += b*(3-1);\nprint \"hi\", a;", nil)
	want := []lexeme{
		{token.Var, ""}, {token.Ident, "a"}, {token.Eq, ""}, {token.Number, "42"}, {token.Semi, ""},
		{token.Ident, "a"}, {token.PlusEq, ""}, {token.Ident, "b"}, {token.Star, ""}, {token.LParen, ""},
		{token.Number, "3"}, {token.Minus, ""}, {token.Number, "1"}, {token.RParen, ""}, {token.Semi, ""},
		{token.Print, ""}, {token.String, "hi"}, {token.Comma, ""}, {token.Ident, "a"}, {token.Semi, ""},
		{token.EOF, ""},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestComments(t *testing.T) {
	src := "# hash\nfree x; // line\n/* block\n spans */ input y;"
	want := []lexeme{
		{token.Free, ""}, {token.Ident, "x"}, {token.Semi, ""},
		{token.Input, ""}, {token.Ident, "y"}, {token.Semi, ""}, {token.EOF, ""},
	}
	if diff := cmp.Diff(want, lex(t, src, nil)); diff != "" {
		t.Fatalf("tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestDirectives(t *testing.T) {
	got := lex(t, "// [bfc]: -Wno-overflow -Fimplicit-decl\nx = 1;", nil)
	require.Equal(t, lexeme{token.Directive, "-Wno-overflow -Fimplicit-decl"}, got[0])
	require.Equal(t, lexeme{token.Ident, "x"}, got[1])

	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatNoDirectives, true)
	got = lex(t, "// [bfc]: -Wall\nx = 1;", cfg)
	require.Equal(t, lexeme{token.Ident, "x"}, got[0])
}

func TestEscapes(t *testing.T) {
	got := lex(t, `"a\n\t\\\"\x41\101\0z" '\n' 'A' '\x7f' '\''`, nil)
	want := []lexeme{
		{token.String, "a\n\t\\\"AA\x00z"},
		{token.Number, "10"}, {token.Number, "65"}, {token.Number, "127"}, {token.Number, "39"},
		{token.EOF, ""},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestRawStringWithoutEscapes(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatCEsc, false)
	got := lex(t, `"a\n"`, cfg)
	require.Equal(t, lexeme{token.String, `a\n`}, got[0])
}

func TestPositions(t *testing.T) {
	toks := NewLexer([]rune("var x = 10;\n  print x;"), 3, config.NewConfig()).Tokenize()
	require.Equal(t, token.Token{Type: token.Number, Value: "10", FileIndex: 3, Line: 1, Column: 9, Len: 2}, toks[3])
	require.Equal(t, token.Token{Type: token.Print, FileIndex: 3, Line: 2, Column: 3, Len: 5}, toks[5])
}

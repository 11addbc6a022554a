package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xplshn/bfc/pkg/ast"
	"github.com/xplshn/bfc/pkg/config"
	"github.com/xplshn/bfc/pkg/lexer"
	"github.com/xplshn/bfc/pkg/token"
)

var opNames = map[token.Type]string{
	token.Plus: "+", token.Minus: "-", token.Star: "*",
	token.Eq: "=", token.PlusEq: "+=", token.MinusEq: "-=", token.StarEq: "*=",
}

// sexpr renders a tree compactly so expectations stay readable.
func sexpr(n *ast.Node) string {
	if n == nil {
		return "nil"
	}
	switch d := n.Data.(type) {
	case ast.NumberNode:
		return fmt.Sprint(d.Value)
	case ast.StringNode:
		return fmt.Sprintf("%q", d.Value)
	case ast.IdentNode:
		return d.Name
	case ast.BinaryOpNode:
		return fmt.Sprintf("(%s %s %s)", opNames[d.Op], sexpr(d.Left), sexpr(d.Right))
	case ast.UnaryOpNode:
		return fmt.Sprintf("(neg %s)", sexpr(d.Expr))
	case ast.VarDeclNode:
		return fmt.Sprintf("(var %s %s)", d.Name, sexpr(d.Init))
	case ast.AssignNode:
		return fmt.Sprintf("(%s %s %s)", opNames[d.Op], sexpr(d.Lhs), sexpr(d.Rhs))
	case ast.FreeNode:
		return "(free " + join(d.Names) + ")"
	case ast.PrintNode:
		return "(print " + join(d.Items) + ")"
	case ast.InputNode:
		return "(input " + sexpr(d.Target) + ")"
	case ast.DirectiveNode:
		return fmt.Sprintf("(directive %q)", d.Flags)
	case ast.BlockNode:
		return join(d.Stmts)
	}
	return "?"
}

func join(nodes []*ast.Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = sexpr(n)
	}
	return strings.Join(parts, " ")
}

func parse(t *testing.T, src string, cfg *config.Config) *ast.Node {
	t.Helper()
	if cfg == nil {
		cfg = config.NewConfig()
	}
	toks := lexer.NewLexer([]rune(src), 0, cfg).Tokenize()
	root := NewParser(toks, cfg).Parse()
	require.Equal(t, ast.Block, root.Type)
	return root
}

func TestStatements(t *testing.T) {
	for _, tc := range []struct{ src, want string }{
		{"var a = 35;", "(var a 35)"},
		{"a = b;", "(= a b)"},
		{"a += 1; a -= b; a *= 2;", "(+= a 1) (-= a b) (*= a 2)"},
		{"free a, b;", "(free a b)"},
		{`print "hi", a, 'x';`, `(print "hi" a 120)`},
		{"input c;", "(input c)"},
		{"", ""},
	} {
		require.Equal(t, tc.want, sexpr(parse(t, tc.src, nil)), tc.src)
	}
}

func TestPrecedence(t *testing.T) {
	for _, tc := range []struct{ src, want string }{
		{"x = a + b * c;", "(= x (+ a (* b c)))"},
		{"x = a - b - c;", "(= x (- (- a b) c))"},
		{"x = (a + b) * c;", "(= x (* (+ a b) c))"},
		{"x = -a * b;", "(= x (* (neg a) b))"},
		{"x = a * -(b + 1);", "(= x (* a (neg (+ b 1))))"},
	} {
		require.Equal(t, tc.want, sexpr(parse(t, tc.src, nil)), tc.src)
	}
}

func TestFoldConstants(t *testing.T) {
	for _, tc := range []struct{ src, want string }{
		{"var a = 2 + 3 * 4;", "(var a 14)"},
		{"x = -(5 - 7);", "(= x 2)"},
		{"x = a + 2 * 3;", "(= x (+ a 6))"},
		{"print 'A' + 1, \"s\";", `(print 66 "s")`},
		{"x = a * 0 + 1;", "(= x (+ (* a 0) 1))"},
	} {
		require.Equal(t, tc.want, sexpr(ast.FoldConstants(parse(t, tc.src, nil))), tc.src)
	}
}

func TestDirectivesUpdateConfig(t *testing.T) {
	cfg := config.NewConfig()
	root := parse(t, "// [bfc]: -Wno-overflow -Fimplicit-decl\nx = 1;", cfg)
	require.Equal(t, `(directive "-Wno-overflow -Fimplicit-decl") (= x 1)`, sexpr(root))
	require.False(t, cfg.IsWarningEnabled(config.WarnOverflow))
	require.True(t, cfg.IsFeatureEnabled(config.FeatImplicitDecl))
}

func TestParentLinks(t *testing.T) {
	root := parse(t, "x = a + 1;", nil)
	assign := root.Data.(ast.BlockNode).Stmts[0]
	require.Same(t, root, assign.Parent)
	sum := assign.Data.(ast.AssignNode).Rhs
	require.Same(t, assign, sum.Parent)
	require.Equal(t, 1, sum.Tok.Line)
	require.Equal(t, 7, sum.Tok.Column, "binary nodes carry their operator token")
}

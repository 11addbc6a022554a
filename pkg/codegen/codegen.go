package codegen

import (
	"fmt"

	"github.com/xplshn/bfc/pkg/ast"
	"github.com/xplshn/bfc/pkg/bf"
	"github.com/xplshn/bfc/pkg/config"
	"github.com/xplshn/bfc/pkg/ir"
	"github.com/xplshn/bfc/pkg/token"
	"github.com/xplshn/bfc/pkg/util"
)

// Error ties a lowering failure to the statement or expression that caused it.
type Error struct {
	Tok token.Token
	Err error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Context lowers a syntax tree onto a bf.Machine. A failed Lower leaves a
// partial stream in the sink, which must then be discarded.
type Context struct {
	cfg     *config.Config
	m       *bf.Machine
	modulus int64
}

func NewContext(cfg *config.Config, sink ir.Sink) (*Context, error) {
	m, err := bf.New(sink, bf.WithTapeSize(cfg.TapeSize), bf.WithCellBits(cfg.CellBits))
	if err != nil {
		return nil, err
	}
	return &Context{cfg: cfg, m: m, modulus: m.Modulus()}, nil
}

func (ctx *Context) Machine() *bf.Machine { return ctx.m }

// GenerateIR lowers root into an in-memory instruction stream.
func GenerateIR(root *ast.Node, cfg *config.Config) (*ir.Program, error) {
	prog := ir.NewProgram()
	ctx, err := NewContext(cfg, prog)
	if err != nil {
		return nil, err
	}
	if err := ctx.Lower(root); err != nil {
		return nil, err
	}
	return prog, nil
}

func (ctx *Context) fail(tok token.Token, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*Error); ok {
		return err
	}
	return &Error{Tok: tok, Err: err}
}

func (ctx *Context) Lower(node *ast.Node) error {
	if node == nil {
		return nil
	}
	switch d := node.Data.(type) {
	case ast.BlockNode:
		for _, stmt := range d.Stmts {
			if err := ctx.Lower(stmt); err != nil {
				return err
			}
		}
		return nil
	case ast.DirectiveNode:
		return nil
	case ast.VarDeclNode:
		return ctx.codegenVarDecl(node, d)
	case ast.AssignNode:
		return ctx.codegenAssign(node, d)
	case ast.FreeNode:
		for _, name := range d.Names {
			if err := ctx.m.Free(name.Data.(ast.IdentNode).Name); err != nil {
				return ctx.fail(name.Tok, err)
			}
		}
		return nil
	case ast.PrintNode:
		for _, item := range d.Items {
			if err := ctx.codegenPrintItem(item); err != nil {
				return err
			}
		}
		return nil
	case ast.InputNode:
		target := d.Target.Data.(ast.IdentNode).Name
		addr, err := ctx.m.Declare(target)
		if err != nil {
			return ctx.fail(d.Target.Tok, err)
		}
		return ctx.fail(node.Tok, ctx.m.EmitIn(addr))
	}
	return &Error{Tok: node.Tok, Err: fmt.Errorf("unexpected node in statement position")}
}

func (ctx *Context) codegenVarDecl(node *ast.Node, d ast.VarDeclNode) error {
	if ctx.m.Bound(d.Name) {
		util.Warn(ctx.cfg, config.WarnRedeclare, node.Tok, "'%s' is already declared; the declaration reassigns it", d.Name)
	}
	return ctx.assignTo(node.Tok, d.Name, d.Init)
}

func (ctx *Context) codegenAssign(node *ast.Node, d ast.AssignNode) error {
	lhs := d.Lhs.Data.(ast.IdentNode).Name
	rhs := d.Rhs

	if d.Op != token.Eq {
		if !ctx.m.Bound(lhs) {
			return &Error{Tok: d.Lhs.Tok, Err: fmt.Errorf("'%s' is not declared: %w", lhs, bf.ErrUnboundName)}
		}
		rhs = ast.FoldConstants(ast.NewBinaryOp(node.Tok, compoundOps[d.Op], d.Lhs, d.Rhs))
	} else if !ctx.m.Bound(lhs) {
		if !ctx.cfg.IsFeatureEnabled(config.FeatImplicitDecl) {
			return &Error{Tok: d.Lhs.Tok, Err: fmt.Errorf("assignment to undeclared variable '%s' (declare it with 'var' or use -Fimplicit-decl): %w", lhs, bf.ErrUnboundName)}
		}
		util.Warn(ctx.cfg, config.WarnImplicitDecl, d.Lhs.Tok, "'%s' is implicitly declared by this assignment", lhs)
	}
	return ctx.assignTo(d.Lhs.Tok, lhs, rhs)
}

var compoundOps = map[token.Type]token.Type{
	token.PlusEq:  token.Plus,
	token.MinusEq: token.Minus,
	token.StarEq:  token.Star,
}

// assignTo stores the value of expr in name, binding name on first use.
func (ctx *Context) assignTo(tok token.Token, name string, expr *ast.Node) error {
	if err := ctx.checkRefs(expr); err != nil {
		return err
	}
	switch expr.Type {
	case ast.Number:
		return ctx.fail(tok, ctx.m.Assign(name, ctx.reduce(expr)))
	case ast.Ident:
		if expr.Data.(ast.IdentNode).Name == name {
			return nil
		}
	}
	dest, err := ctx.m.Declare(name)
	if err != nil {
		return ctx.fail(tok, err)
	}
	return ctx.evalInto(expr, dest)
}

func (ctx *Context) codegenPrintItem(item *ast.Node) error {
	switch d := item.Data.(type) {
	case ast.StringNode:
		return ctx.fail(item.Tok, ctx.m.PutString(d.Value))
	case ast.IdentNode:
		return ctx.fail(item.Tok, ctx.m.PutVariable(d.Name))
	}
	if err := ctx.checkRefs(item); err != nil {
		return err
	}
	addr, release, err := ctx.operand(item)
	if err != nil {
		return err
	}
	if err := ctx.m.EmitOut(addr); err != nil {
		return ctx.fail(item.Tok, err)
	}
	return ctx.fail(item.Tok, release())
}

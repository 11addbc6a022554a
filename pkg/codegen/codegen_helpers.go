package codegen

import (
	"fmt"
	"strconv"

	"github.com/xplshn/bfc/pkg/ast"
	"github.com/xplshn/bfc/pkg/config"
	"github.com/xplshn/bfc/pkg/token"
	"github.com/xplshn/bfc/pkg/util"
)

// reduce maps a constant onto the cell range.
func (ctx *Context) reduce(node *ast.Node) int64 {
	v := node.Data.(ast.NumberNode).Value
	r := v % ctx.modulus
	if r < 0 {
		r += ctx.modulus
	}
	if r != v {
		// literals keep their source text; the parser stores values past
		// MaxInt64 as their two's complement
		text := strconv.FormatInt(v, 10)
		if node.Tok.Type == token.Number && node.Tok.Value != "" {
			text = node.Tok.Value
		}
		util.Warn(ctx.cfg, config.WarnOverflow, node.Tok, "constant %s does not fit in a %d-bit cell, wraps to %d", text, ctx.cfg.CellBits, r)
	}
	return r
}

// checkRefs rejects expressions that read unbound variables before anything
// is emitted for them.
func (ctx *Context) checkRefs(node *ast.Node) error {
	switch d := node.Data.(type) {
	case ast.IdentNode:
		if !ctx.m.Bound(d.Name) {
			_, err := ctx.m.AddressOf(d.Name)
			return ctx.fail(node.Tok, err)
		}
	case ast.BinaryOpNode:
		if err := ctx.checkRefs(d.Left); err != nil {
			return err
		}
		return ctx.checkRefs(d.Right)
	case ast.UnaryOpNode:
		return ctx.checkRefs(d.Expr)
	case ast.StringNode:
		return &Error{Tok: node.Tok, Err: fmt.Errorf("string literals can only be printed")}
	}
	return nil
}

func noRelease() error { return nil }

// operand returns a cell holding the value of node. Variables are used in
// place; anything else is evaluated into a scratch cell that release frees.
func (ctx *Context) operand(node *ast.Node) (addr int, release func() error, err error) {
	if d, ok := node.Data.(ast.IdentNode); ok {
		addr, err = ctx.m.AddressOf(d.Name)
		return addr, noRelease, ctx.fail(node.Tok, err)
	}
	tmp, err := ctx.m.Malloc(1)
	if err != nil {
		return 0, nil, ctx.fail(node.Tok, err)
	}
	if err := ctx.evalInto(node, tmp); err != nil {
		return 0, nil, err
	}
	return tmp, func() error { return ctx.m.Dealloc(tmp) }, nil
}

// evalInto writes the value of node to dest. dest may be a cell the
// expression reads from.
func (ctx *Context) evalInto(node *ast.Node, dest int) error {
	switch d := node.Data.(type) {
	case ast.NumberNode:
		return ctx.fail(node.Tok, ctx.m.SetCell(dest, ctx.reduce(node)))

	case ast.IdentNode:
		src, err := ctx.m.AddressOf(d.Name)
		if err != nil {
			return ctx.fail(node.Tok, err)
		}
		if src == dest {
			return nil
		}
		return ctx.fail(node.Tok, ctx.m.Copy(src, dest))

	case ast.UnaryOpNode:
		if d.Op != token.Minus {
			break
		}
		val, release, err := ctx.operand(d.Expr)
		if err != nil {
			return err
		}
		zero, err := ctx.m.Calloc(1)
		if err != nil {
			return ctx.fail(node.Tok, err)
		}
		if err := ctx.m.Sub(zero, val, dest); err != nil {
			return ctx.fail(node.Tok, err)
		}
		if err := ctx.m.Dealloc(zero); err != nil {
			return ctx.fail(node.Tok, err)
		}
		return ctx.fail(node.Tok, release())

	case ast.BinaryOpNode:
		lhs, releaseL, err := ctx.operand(d.Left)
		if err != nil {
			return err
		}
		rhs, releaseR, err := ctx.operand(d.Right)
		if err != nil {
			return err
		}
		switch d.Op {
		case token.Plus:
			err = ctx.m.Add(lhs, rhs, dest)
		case token.Minus:
			err = ctx.m.Sub(lhs, rhs, dest)
		case token.Star:
			err = ctx.m.Mul(lhs, rhs, dest)
		default:
			err = fmt.Errorf("unsupported operator %s", d.Op)
		}
		if err != nil {
			return ctx.fail(node.Tok, err)
		}
		if err := releaseR(); err != nil {
			return ctx.fail(node.Tok, err)
		}
		return ctx.fail(node.Tok, releaseL())
	}
	return &Error{Tok: node.Tok, Err: fmt.Errorf("cannot evaluate this expression")}
}

// Package checker walks a folded syntax tree before lowering and reports
// code that is legal but probably not what was meant. It only warns;
// errors about unbound names are left to codegen, which knows the tape.
package checker

import (
	"github.com/xplshn/bfc/pkg/ast"
	"github.com/xplshn/bfc/pkg/config"
	"github.com/xplshn/bfc/pkg/token"
	"github.com/xplshn/bfc/pkg/util"
)

type Symbol struct {
	Name string
	Node *ast.Node // statement that bound the name
	Read bool
	Next *Symbol
}

type Scope struct{ Symbols *Symbol }

type Checker struct {
	scope *Scope
	cfg   *config.Config
}

func NewChecker(cfg *config.Config) *Checker {
	return &Checker{scope: &Scope{}, cfg: cfg}
}

func (c *Checker) findSymbol(name string) *Symbol {
	for sym := c.scope.Symbols; sym != nil; sym = sym.Next {
		if sym.Name == name {
			return sym
		}
	}
	return nil
}

func (c *Checker) addSymbol(name string, node *ast.Node) {
	if c.findSymbol(name) != nil {
		return
	}
	c.scope.Symbols = &Symbol{Name: name, Node: node, Next: c.scope.Symbols}
}

func (c *Checker) removeSymbol(name string) *Symbol {
	for link := &c.scope.Symbols; *link != nil; link = &(*link).Next {
		if sym := *link; sym.Name == name {
			*link = sym.Next
			return sym
		}
	}
	return nil
}

// Check reports warnings for root. Variables still bound at the end that
// were never read are reported in declaration order.
func (c *Checker) Check(root *ast.Node) {
	c.checkNode(root)

	var unread []*Symbol
	for sym := c.scope.Symbols; sym != nil; sym = sym.Next {
		if !sym.Read {
			unread = append(unread, sym)
		}
	}
	for i := len(unread) - 1; i >= 0; i-- {
		util.Warn(c.cfg, config.WarnExtra, unread[i].Node.Tok, "variable '%s' is set but never read", unread[i].Name)
	}
}

func (c *Checker) checkNode(node *ast.Node) {
	if node == nil {
		return
	}
	switch d := node.Data.(type) {
	case ast.BlockNode:
		for _, stmt := range d.Stmts {
			c.checkNode(stmt)
		}
	case ast.VarDeclNode:
		c.checkExpr(d.Init)
		c.addSymbol(d.Name, node)
	case ast.AssignNode:
		c.checkAssign(node, d)
	case ast.FreeNode:
		for _, name := range d.Names {
			n := name.Data.(ast.IdentNode).Name
			if sym := c.removeSymbol(n); sym != nil && !sym.Read {
				util.Warn(c.cfg, config.WarnExtra, name.Tok, "'%s' is freed without ever being read", n)
			}
		}
	case ast.PrintNode:
		for _, item := range d.Items {
			c.checkExpr(item)
		}
	case ast.InputNode:
		c.addSymbol(d.Target.Data.(ast.IdentNode).Name, node)
	}
}

func (c *Checker) checkAssign(node *ast.Node, d ast.AssignNode) {
	name := d.Lhs.Data.(ast.IdentNode).Name
	c.checkExpr(d.Rhs)

	switch d.Op {
	case token.Eq:
		if id, ok := d.Rhs.Data.(ast.IdentNode); ok && id.Name == name {
			util.Warn(c.cfg, config.WarnPedantic, node.Tok, "assigning '%s' to itself has no effect", name)
		}
		c.addSymbol(name, node)
	default:
		if num, ok := d.Rhs.Data.(ast.NumberNode); ok {
			if (d.Op == token.StarEq && num.Value == 1) || (d.Op != token.StarEq && num.Value == 0) {
				util.Warn(c.cfg, config.WarnPedantic, node.Tok, "this compound assignment leaves '%s' unchanged", name)
			}
		}
		// x op= e reads x
		if sym := c.findSymbol(name); sym != nil {
			sym.Read = true
		}
	}
}

func (c *Checker) checkExpr(node *ast.Node) {
	if node == nil {
		return
	}
	switch d := node.Data.(type) {
	case ast.IdentNode:
		if sym := c.findSymbol(d.Name); sym != nil {
			sym.Read = true
		}
	case ast.BinaryOpNode:
		c.checkExpr(d.Left)
		c.checkExpr(d.Right)
	case ast.UnaryOpNode:
		c.checkExpr(d.Expr)
	}
}

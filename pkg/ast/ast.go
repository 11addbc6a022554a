// Package ast defines the syntax tree produced by the parser.
package ast

import (
	"github.com/xplshn/bfc/pkg/token"
)

// NodeType defines the kind of a node in the AST
type NodeType int

const (
	// Expressions
	Number NodeType = iota
	String
	Ident
	BinaryOp
	UnaryOp

	// Statements
	VarDecl
	Assign
	Free
	Print
	Input
	Block
	Directive
)

// Node represents a node in the Abstract Syntax Tree
type Node struct {
	Type   NodeType
	Tok    token.Token
	Parent *Node
	Data   interface{}
}

// --- Node Data Structs ---
type NumberNode struct{ Value int64 }
type StringNode struct{ Value string }
type IdentNode struct{ Name string }
type BinaryOpNode struct {
	Op          token.Type
	Left, Right *Node
}
type UnaryOpNode struct {
	Op   token.Type
	Expr *Node
}
type VarDeclNode struct {
	Name string
	Init *Node
}

// AssignNode covers `=` and the compound forms; Op is the assignment token.
type AssignNode struct {
	Op       token.Type
	Lhs, Rhs *Node
}
type FreeNode struct{ Names []*Node }
type PrintNode struct{ Items []*Node }
type InputNode struct{ Target *Node }
type BlockNode struct{ Stmts []*Node }
type DirectiveNode struct{ Flags string }

// --- Node Constructors ---

func newNode(tok token.Token, nodeType NodeType, data interface{}, children ...*Node) *Node {
	node := &Node{Type: nodeType, Tok: tok, Data: data}
	for _, child := range children {
		if child != nil {
			child.Parent = node
		}
	}
	return node
}

func NewNumber(tok token.Token, value int64) *Node {
	return newNode(tok, Number, NumberNode{Value: value})
}
func NewString(tok token.Token, value string) *Node {
	return newNode(tok, String, StringNode{Value: value})
}
func NewIdent(tok token.Token, name string) *Node {
	return newNode(tok, Ident, IdentNode{Name: name})
}
func NewBinaryOp(tok token.Token, op token.Type, left, right *Node) *Node {
	return newNode(tok, BinaryOp, BinaryOpNode{Op: op, Left: left, Right: right}, left, right)
}
func NewUnaryOp(tok token.Token, op token.Type, expr *Node) *Node {
	return newNode(tok, UnaryOp, UnaryOpNode{Op: op, Expr: expr}, expr)
}
func NewVarDecl(tok token.Token, name string, init *Node) *Node {
	return newNode(tok, VarDecl, VarDeclNode{Name: name, Init: init}, init)
}
func NewAssign(tok token.Token, op token.Type, lhs, rhs *Node) *Node {
	return newNode(tok, Assign, AssignNode{Op: op, Lhs: lhs, Rhs: rhs}, lhs, rhs)
}
func NewFree(tok token.Token, names []*Node) *Node {
	return newNode(tok, Free, FreeNode{Names: names}, names...)
}
func NewPrint(tok token.Token, items []*Node) *Node {
	return newNode(tok, Print, PrintNode{Items: items}, items...)
}
func NewInput(tok token.Token, target *Node) *Node {
	return newNode(tok, Input, InputNode{Target: target}, target)
}
func NewBlock(tok token.Token, stmts []*Node) *Node {
	return newNode(tok, Block, BlockNode{Stmts: stmts}, stmts...)
}
func NewDirective(tok token.Token, flags string) *Node {
	return newNode(tok, Directive, DirectiveNode{Flags: flags})
}

// FoldConstants evaluates constant arithmetic. Results use int64 wrapping,
// which agrees with any cell width modulo 2^bits.
func FoldConstants(node *Node) *Node {
	if node == nil {
		return nil
	}

	// Recursively fold children first
	switch d := node.Data.(type) {
	case BlockNode:
		for i, s := range d.Stmts {
			d.Stmts[i] = FoldConstants(s)
		}
	case VarDeclNode:
		d.Init = FoldConstants(d.Init)
		node.Data = d
	case AssignNode:
		d.Rhs = FoldConstants(d.Rhs)
		node.Data = d
	case PrintNode:
		for i, item := range d.Items {
			d.Items[i] = FoldConstants(item)
		}
	case BinaryOpNode:
		d.Left = FoldConstants(d.Left)
		d.Right = FoldConstants(d.Right)
		node.Data = d
	case UnaryOpNode:
		d.Expr = FoldConstants(d.Expr)
		node.Data = d
	}

	switch node.Type {
	case BinaryOp:
		d := node.Data.(BinaryOpNode)
		if d.Left.Type == Number && d.Right.Type == Number {
			l, r := d.Left.Data.(NumberNode).Value, d.Right.Data.(NumberNode).Value
			switch d.Op {
			case token.Plus:
				return NewNumber(node.Tok, l+r)
			case token.Minus:
				return NewNumber(node.Tok, l-r)
			case token.Star:
				return NewNumber(node.Tok, l*r)
			}
		}
	case UnaryOp:
		d := node.Data.(UnaryOpNode)
		if d.Expr.Type == Number && d.Op == token.Minus {
			return NewNumber(node.Tok, -d.Expr.Data.(NumberNode).Value)
		}
	}

	return node
}

package parser

import (
	"strconv"

	"github.com/xplshn/bfc/pkg/ast"
	"github.com/xplshn/bfc/pkg/config"
	"github.com/xplshn/bfc/pkg/token"
	"github.com/xplshn/bfc/pkg/util"
)

// Parser holds the state for the parsing process
type Parser struct {
	tokens   []token.Token
	pos      int
	current  token.Token
	previous token.Token
	cfg      *config.Config
}

// NewParser creates and initializes a new Parser from a token stream
func NewParser(tokens []token.Token, cfg *config.Config) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != token.EOF {
		tokens = append(tokens, token.Token{Type: token.EOF})
	}
	return &Parser{tokens: tokens, current: tokens[0], cfg: cfg}
}

// Parser helpers
func (p *Parser) advance() {
	if p.pos < len(p.tokens)-1 {
		p.previous = p.current
		p.pos++
		p.current = p.tokens[p.pos]
	}
}

func (p *Parser) check(tokType token.Type) bool {
	return p.current.Type == tokType
}

func (p *Parser) match(tokType token.Type) bool {
	if !p.check(tokType) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) expect(tokType token.Type, message string) bool {
	if p.check(tokType) {
		p.advance()
		return true
	}
	util.Error(p.current, "%s", message)
	return false
}

// Parse returns the whole program as a Block. Directives are applied to the
// configuration as they are met.
func (p *Parser) Parse() *ast.Node {
	var stmts []*ast.Node
	start := p.current
	for !p.check(token.EOF) {
		before := p.pos
		if stmt := p.parseStmt(); stmt != nil {
			stmts = append(stmts, stmt)
		}
		if p.pos == before {
			// only reachable when diagnostics do not exit
			p.advance()
			if p.pos == before {
				break
			}
		}
	}
	return ast.NewBlock(start, stmts)
}

func (p *Parser) parseStmt() *ast.Node {
	tok := p.current
	switch {
	case p.match(token.Directive):
		p.cfg.ProcessDirectiveFlags(tok.Value)
		return ast.NewDirective(tok, tok.Value)

	case p.match(token.Var):
		name := p.current
		if !p.expect(token.Ident, "Expected a variable name after 'var'.") {
			return nil
		}
		if !p.expect(token.Eq, "Expected '=' after the variable name; variables must be initialized.") {
			return nil
		}
		init := p.parseExpr()
		p.expect(token.Semi, "Expected ';' after variable declaration.")
		return ast.NewVarDecl(name, name.Value, init)

	case p.match(token.Free):
		var names []*ast.Node
		for {
			name := p.current
			if !p.expect(token.Ident, "Expected a variable name in 'free'.") {
				return nil
			}
			names = append(names, ast.NewIdent(name, name.Value))
			if !p.match(token.Comma) {
				break
			}
		}
		p.expect(token.Semi, "Expected ';' after 'free'.")
		return ast.NewFree(tok, names)

	case p.match(token.Print):
		var items []*ast.Node
		for {
			if p.check(token.String) {
				items = append(items, ast.NewString(p.current, p.current.Value))
				p.advance()
			} else {
				items = append(items, p.parseExpr())
			}
			if !p.match(token.Comma) {
				break
			}
		}
		p.expect(token.Semi, "Expected ';' after 'print'.")
		return ast.NewPrint(tok, items)

	case p.check(token.Input):
		if !p.cfg.IsFeatureEnabled(config.FeatInput) {
			util.Error(tok, "'input' is disabled (use -Finput)")
		}
		p.advance()
		name := p.current
		if !p.expect(token.Ident, "Expected a variable name after 'input'.") {
			return nil
		}
		p.expect(token.Semi, "Expected ';' after 'input'.")
		return ast.NewInput(tok, ast.NewIdent(name, name.Value))

	case p.check(token.Ident):
		lhs := ast.NewIdent(tok, tok.Value)
		p.advance()
		op := p.current
		switch op.Type {
		case token.Eq, token.PlusEq, token.MinusEq, token.StarEq:
			p.advance()
		default:
			util.Error(op, "Expected an assignment operator after '%s'.", tok.Value)
			return nil
		}
		rhs := p.parseExpr()
		p.expect(token.Semi, "Expected ';' after assignment.")
		return ast.NewAssign(op, op.Type, lhs, rhs)
	}

	util.Error(tok, "Expected a statement, found %s.", tok.Type)
	return nil
}

// Expression Parsing
func getBinaryOpPrecedence(op token.Type) int {
	switch op {
	case token.Star:
		return 2
	case token.Plus, token.Minus:
		return 1
	default:
		return -1
	}
}

func (p *Parser) parseExpr() *ast.Node {
	return p.parseBinaryExpr(1)
}

// parseBinaryExpr is a precedence climber; all operators are left associative.
func (p *Parser) parseBinaryExpr(minPrec int) *ast.Node {
	left := p.parseUnaryExpr()
	for {
		op := p.current
		prec := getBinaryOpPrecedence(op.Type)
		if prec < minPrec {
			return left
		}
		p.advance()
		right := p.parseBinaryExpr(prec + 1)
		if left == nil || right == nil {
			return nil
		}
		left = ast.NewBinaryOp(op, op.Type, left, right)
	}
}

func (p *Parser) parseUnaryExpr() *ast.Node {
	tok := p.current
	if p.match(token.Minus) {
		expr := p.parseUnaryExpr()
		if expr == nil {
			return nil
		}
		return ast.NewUnaryOp(tok, token.Minus, expr)
	}
	return p.parsePrimaryExpr()
}

func (p *Parser) parsePrimaryExpr() *ast.Node {
	tok := p.current
	if p.match(token.Number) {
		val, _ := strconv.ParseUint(tok.Value, 10, 64)
		return ast.NewNumber(tok, int64(val))
	}
	if p.match(token.Ident) {
		return ast.NewIdent(tok, tok.Value)
	}
	if p.match(token.LParen) {
		expr := p.parseExpr()
		p.expect(token.RParen, "Expected ')' after expression.")
		return expr
	}
	if p.check(token.String) {
		util.Error(tok, "String literals can only be printed.")
		p.advance()
		return nil
	}
	util.Error(tok, "Expected an expression.")
	return nil
}

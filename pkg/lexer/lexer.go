package lexer

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/xplshn/bfc/pkg/config"
	"github.com/xplshn/bfc/pkg/token"
	"github.com/xplshn/bfc/pkg/util"
)

const directivePrefix = "[bfc]:"

type Lexer struct {
	source    []rune
	fileIndex int
	pos       int
	line      int
	column    int
	cfg       *config.Config
}

func NewLexer(source []rune, fileIndex int, cfg *config.Config) *Lexer {
	return &Lexer{
		source: source, fileIndex: fileIndex, line: 1, column: 1, cfg: cfg,
	}
}

// Tokenize lexes the whole source, EOF token included.
func (l *Lexer) Tokenize() []token.Token {
	var toks []token.Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks
		}
	}
}

func (l *Lexer) Next() token.Token {
	for {
		l.skipWhitespace()
		startPos, startCol, startLine := l.pos, l.column, l.line

		if l.isAtEnd() {
			return l.makeToken(token.EOF, "", startPos, startCol, startLine)
		}

		ch := l.peek()
		switch {
		case ch == '/' && l.peekNext() == '/':
			if !l.cfg.IsFeatureEnabled(config.FeatNoDirectives) {
				if tok, ok := l.directive(startPos, startCol, startLine); ok {
					return tok
				}
			}
			if !l.cfg.IsFeatureEnabled(config.FeatCComments) {
				break
			}
			l.lineComment()
			continue
		case ch == '/' && l.peekNext() == '*' && l.cfg.IsFeatureEnabled(config.FeatCComments):
			l.blockComment()
			continue
		case ch == '#' && l.cfg.IsFeatureEnabled(config.FeatHashComments):
			l.lineComment()
			continue
		case unicode.IsLetter(ch) || ch == '_':
			return l.identifierOrKeyword(startPos, startCol, startLine)
		case unicode.IsDigit(ch):
			return l.numberLiteral(startPos, startCol, startLine)
		}

		l.advance()
		switch ch {
		case '(':
			return l.makeToken(token.LParen, "", startPos, startCol, startLine)
		case ')':
			return l.makeToken(token.RParen, "", startPos, startCol, startLine)
		case ';':
			return l.makeToken(token.Semi, "", startPos, startCol, startLine)
		case ',':
			return l.makeToken(token.Comma, "", startPos, startCol, startLine)
		case '=':
			return l.makeToken(token.Eq, "", startPos, startCol, startLine)
		case '+':
			return l.matchThen('=', token.PlusEq, token.Plus, startPos, startCol, startLine)
		case '-':
			return l.matchThen('=', token.MinusEq, token.Minus, startPos, startCol, startLine)
		case '*':
			return l.matchThen('=', token.StarEq, token.Star, startPos, startCol, startLine)
		case '"':
			return l.stringLiteral(startPos, startCol, startLine)
		case '\'':
			return l.charLiteral(startPos, startCol, startLine)
		}

		tok := l.makeToken(token.EOF, "", startPos, startCol, startLine)
		util.Error(tok, "Unexpected character: '%c'", ch)
		return tok
	}
}

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekNext() rune {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	return l.source[l.pos+1]
}

func (l *Lexer) advance() rune {
	if l.isAtEnd() {
		return 0
	}
	ch := l.source[l.pos]
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
	return ch
}

func (l *Lexer) match(expected rune) bool {
	if l.isAtEnd() || l.source[l.pos] != expected {
		return false
	}
	l.advance()
	return true
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) makeToken(tokType token.Type, value string, startPos, startCol, startLine int) token.Token {
	return token.Token{
		Type: tokType, Value: value, FileIndex: l.fileIndex,
		Line: startLine, Column: startCol, Len: l.pos - startPos,
	}
}

func (l *Lexer) matchThen(expected rune, thenType, elseType token.Type, sPos, sCol, sLine int) token.Token {
	if l.match(expected) {
		return l.makeToken(thenType, "", sPos, sCol, sLine)
	}
	return l.makeToken(elseType, "", sPos, sCol, sLine)
}

func (l *Lexer) skipWhitespace() {
	for {
		switch l.peek() {
		case ' ', '\t', '\n', '\r':
			l.advance()
		default:
			return
		}
	}
}

func (l *Lexer) blockComment() {
	startTok := l.makeToken(token.Comment, "", l.pos, l.column, l.line)
	l.advance()
	l.advance()
	for !l.isAtEnd() {
		if l.peek() == '*' && l.peekNext() == '/' {
			l.advance()
			l.advance()
			return
		}
		l.advance()
	}
	util.Error(startTok, "Unterminated block comment")
}

func (l *Lexer) lineComment() {
	for !l.isAtEnd() && l.peek() != '\n' {
		l.advance()
	}
}

// directive recognizes `// [bfc]: flags`. On anything else the lexer is
// rewound and ok is false.
func (l *Lexer) directive(startPos, startCol, startLine int) (token.Token, bool) {
	savedPos, savedCol, savedLine := l.pos, l.column, l.line
	l.advance()
	l.advance()
	bodyStart := l.pos
	l.lineComment()

	body := strings.TrimSpace(string(l.source[bodyStart:l.pos]))
	if strings.HasPrefix(body, directivePrefix) {
		flags := strings.TrimSpace(strings.TrimPrefix(body, directivePrefix))
		return l.makeToken(token.Directive, flags, startPos, startCol, startLine), true
	}

	l.pos, l.column, l.line = savedPos, savedCol, savedLine
	return token.Token{}, false
}

func (l *Lexer) identifierOrKeyword(startPos, startCol, startLine int) token.Token {
	for unicode.IsLetter(l.peek()) || unicode.IsDigit(l.peek()) || l.peek() == '_' {
		l.advance()
	}
	value := string(l.source[startPos:l.pos])
	if tokType, isKeyword := token.KeywordMap[value]; isKeyword {
		return l.makeToken(tokType, "", startPos, startCol, startLine)
	}
	return l.makeToken(token.Ident, value, startPos, startCol, startLine)
}

func isHexDigit(r rune) bool {
	return unicode.IsDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// numberLiteral reads decimal or 0x hex literals. Token values are always
// normalized to decimal.
func (l *Lexer) numberLiteral(startPos, startCol, startLine int) token.Token {
	if l.peek() == '0' && (l.peekNext() == 'x' || l.peekNext() == 'X') {
		l.advance()
		l.advance()
		for isHexDigit(l.peek()) {
			l.advance()
		}
	} else {
		for unicode.IsDigit(l.peek()) {
			l.advance()
		}
	}
	for unicode.IsLetter(l.peek()) || unicode.IsDigit(l.peek()) || l.peek() == '_' {
		l.advance()
	}

	valueStr := string(l.source[startPos:l.pos])
	tok := l.makeToken(token.Number, "", startPos, startCol, startLine)
	val, err := strconv.ParseUint(valueStr, 0, 64)
	if err != nil {
		if e, ok := err.(*strconv.NumError); ok && e.Err == strconv.ErrRange {
			util.Error(tok, "Integer constant is too large: %s", valueStr)
		} else {
			util.Error(tok, "Invalid number literal: %s", valueStr)
		}
		tok.Value = "0"
		return tok
	}
	tok.Value = strconv.FormatUint(val, 10)
	return tok
}

func (l *Lexer) stringLiteral(startPos, startCol, startLine int) token.Token {
	var buf []byte
	for !l.isAtEnd() {
		c := l.peek()
		switch {
		case c == '"':
			l.advance()
			return l.makeToken(token.String, string(buf), startPos, startCol, startLine)
		case c == '\n':
			util.Error(l.makeToken(token.String, "", startPos, startCol, startLine), "Newline in string literal")
			return l.makeToken(token.EOF, "", l.pos, l.column, l.line)
		case c == '\\' && l.cfg.IsFeatureEnabled(config.FeatCEsc):
			l.advance()
			buf = append(buf, l.escapeByte(startPos, startCol, startLine))
		default:
			l.advance()
			buf = append(buf, string(c)...)
		}
	}
	util.Error(l.makeToken(token.String, "", startPos, startCol, startLine), "Unterminated string literal")
	return l.makeToken(token.EOF, "", l.pos, l.column, l.line)
}

// charLiteral yields a Number token holding the code of a single byte.
func (l *Lexer) charLiteral(startPos, startCol, startLine int) token.Token {
	var val int64
	switch c := l.peek(); {
	case c == '\'' || c == '\n' || l.isAtEnd():
		util.Error(l.makeToken(token.Number, "", startPos, startCol, startLine), "Empty character constant")
	case c == '\\' && l.cfg.IsFeatureEnabled(config.FeatCEsc):
		l.advance()
		val = int64(l.escapeByte(startPos, startCol, startLine))
	default:
		l.advance()
		val = int64(c)
		if val > 0xFF {
			util.Warn(l.cfg, config.WarnTruncatedChar, l.makeToken(token.Number, "", startPos, startCol, startLine),
				"Character '%c' does not fit in a byte, using %d", c, val&0xFF)
			val &= 0xFF
		}
	}

	if !l.match('\'') {
		for !l.isAtEnd() && l.peek() != '\'' && l.peek() != '\n' {
			l.advance()
		}
		tok := l.makeToken(token.Number, "", startPos, startCol, startLine)
		if l.match('\'') {
			util.Error(l.makeToken(token.Number, "", startPos, startCol, startLine), "Multi-character constant")
		} else {
			util.Error(tok, "Unterminated character literal")
		}
	}
	return l.makeToken(token.Number, strconv.FormatInt(val, 10), startPos, startCol, startLine)
}

var simpleEscapes = map[rune]byte{
	'n': '\n', 't': '\t', 'r': '\r', 'a': '\a', 'b': '\b', 'f': '\f', 'v': '\v',
	'e': 27, '\\': '\\', '\'': '\'', '"': '"',
}

// escapeByte decodes the escape after a backslash.
func (l *Lexer) escapeByte(startPos, startCol, startLine int) byte {
	if l.isAtEnd() {
		util.Error(l.makeToken(token.EOF, "", l.pos, l.column, l.line), "Unterminated escape sequence")
		return 0
	}
	c := l.advance()

	if c == 'x' {
		var val int64
		digits := 0
		for isHexDigit(l.peek()) && digits < 2 {
			d, _ := strconv.ParseInt(string(l.advance()), 16, 64)
			val = val*16 + d
			digits++
		}
		if digits == 0 {
			util.Error(l.makeToken(token.String, "", startPos, startCol, startLine), "\\x used with no following hex digits")
		}
		return byte(val)
	}

	if c >= '0' && c <= '7' {
		val := int64(c - '0')
		for i := 0; i < 2 && l.peek() >= '0' && l.peek() <= '7'; i++ {
			val = val*8 + int64(l.advance()-'0')
		}
		if val > 0xFF {
			util.Warn(l.cfg, config.WarnTruncatedChar, l.makeToken(token.String, "", startPos, startCol, startLine),
				"Octal escape value %d truncated to %d", val, val&0xFF)
		}
		return byte(val)
	}

	if b, ok := simpleEscapes[c]; ok {
		return b
	}
	util.Warn(l.cfg, config.WarnUnrecognizedEscape, l.makeToken(token.String, "", startPos, startCol, startLine), "Unrecognized escape sequence '\\%c'", c)
	if c > 0xFF {
		util.Warn(l.cfg, config.WarnTruncatedChar, l.makeToken(token.String, "", startPos, startCol, startLine),
			"Character '%c' does not fit in a byte", c)
	}
	return byte(c)
}

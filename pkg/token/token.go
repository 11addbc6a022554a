package token

type Type int

const (
	EOF Type = iota
	Comment
	Directive
	Ident
	Number
	String
	Var
	Free
	Print
	Input
	LParen
	RParen
	Semi
	Comma
	Eq
	PlusEq
	MinusEq
	StarEq
	Plus
	Minus
	Star
)

var KeywordMap = map[string]Type{
	"var":   Var,
	"free":  Free,
	"print": Print,
	"input": Input,
}

var names = map[Type]string{
	EOF: "end of file", Comment: "comment", Directive: "directive",
	Ident: "identifier", Number: "number", String: "string",
	LParen: "'('", RParen: "')'", Semi: "';'", Comma: "','",
	Eq: "'='", PlusEq: "'+='", MinusEq: "'-='", StarEq: "'*='",
	Plus: "'+'", Minus: "'-'", Star: "'*'",
}

func init() {
	for str, typ := range KeywordMap {
		names[typ] = "'" + str + "'"
	}
}

func (t Type) String() string {
	if s, ok := names[t]; ok {
		return s
	}
	return "unknown token"
}

type Token struct {
	Type      Type
	Value     string
	FileIndex int
	Line      int
	Column    int
	Len       int
}

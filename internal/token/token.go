package token

type TokenType string

type Token struct {
	Type    TokenType
	Lexeme  string
	Literal interface{} // float64 for NUMBER, string for STRING and IDENT
	Line    int
	Column  int
}

const (
	ILLEGAL = "ILLEGAL"
	EOF     = "EOF"

	// Identifiers + literals
	IDENT  = "IDENT"
	NUMBER = "NUMBER"
	STRING = "STRING"

	// Assignment family
	ASSIGN          = "="
	PLUS_ASSIGN     = "+="
	MINUS_ASSIGN    = "-="
	ASTERISK_ASSIGN = "*="
	SLASH_ASSIGN    = "/="
	PERCENT_ASSIGN  = "%="

	// Operators
	PLUS     = "+"
	MINUS    = "-"
	ASTERISK = "*"
	SLASH    = "/"
	PERCENT  = "%"
	BANG     = "!"
	AND      = "&&"
	OR       = "||"
	QUESTION = "?"
	COLON    = ":"

	LT     = "<"
	LTE    = "<="
	GT     = ">"
	GTE    = ">="
	EQ     = "=="
	NOT_EQ = "!="

	// Delimiters
	COMMA     = ","
	SEMICOLON = ";"
	LPAREN    = "("
	RPAREN    = ")"
	LBRACE    = "{"
	RBRACE    = "}"
	LBRACKET  = "["
	RBRACKET  = "]"

	// Keywords
	ARGS   = "ARGS"
	ELSE   = "ELSE"
	FALSE  = "FALSE"
	FOR    = "FOR"
	FUN    = "FUN"
	GLOBAL = "GLOBAL"
	IF     = "IF"
	NULL   = "NULL"
	REPEAT = "REPEAT"
	RETURN = "RETURN"
	SLEEP  = "SLEEP"
	SPAWN  = "SPAWN"
	THREAD = "THREAD"
	TRUE   = "TRUE"
	VAR    = "VAR"
	WHILE  = "WHILE"
)

var keywords = map[string]TokenType{
	"args":   ARGS,
	"else":   ELSE,
	"false":  FALSE,
	"for":    FOR,
	"fun":    FUN,
	"global": GLOBAL,
	"if":     IF,
	"null":   NULL,
	"repeat": REPEAT,
	"return": RETURN,
	"sleep":  SLEEP,
	"spawn":  SPAWN,
	"thread": THREAD,
	"true":   TRUE,
	"var":    VAR,
	"while":  WHILE,
}

// LookupIdent returns the keyword type for ident, or IDENT.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// IsAssignment reports whether t is '=' or one of the compound assignments.
func IsAssignment(t TokenType) bool {
	switch t {
	case ASSIGN, PLUS_ASSIGN, MINUS_ASSIGN, ASTERISK_ASSIGN, SLASH_ASSIGN, PERCENT_ASSIGN:
		return true
	}
	return false
}

// StartsStatement reports whether t begins a statement; the parser
// resynchronizes on these after an error.
func StartsStatement(t TokenType) bool {
	switch t {
	case ARGS, FOR, FUN, GLOBAL, IF, REPEAT, RETURN, SLEEP, SPAWN, THREAD, VAR, WHILE:
		return true
	}
	return false
}

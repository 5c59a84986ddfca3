package mutator

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/jbpuryear/dakka/internal/token"
)

// TokenMutator applies random mutations to a scanned token stream.
type TokenMutator struct {
	rnd *rand.Rand
}

// NewTokenMutator creates a new TokenMutator with the given seed.
func NewTokenMutator(seed int64) *TokenMutator {
	return &TokenMutator{
		rnd: rand.New(rand.NewSource(seed)),
	}
}

var binaryOperators = []token.TokenType{
	token.PLUS, token.MINUS, token.ASTERISK, token.SLASH, token.PERCENT,
	token.LT, token.LTE, token.GT, token.GTE, token.EQ, token.NOT_EQ,
	token.AND, token.OR,
}

var punctuation = []token.TokenType{
	token.SEMICOLON, token.COMMA, token.LPAREN, token.RPAREN,
	token.LBRACE, token.RBRACE, token.LBRACKET, token.RBRACKET,
	token.ASSIGN, token.QUESTION, token.COLON,
}

var keywords = []token.TokenType{
	token.VAR, token.GLOBAL, token.FUN, token.RETURN, token.IF, token.ELSE,
	token.WHILE, token.FOR, token.REPEAT, token.SLEEP, token.SPAWN, token.THREAD,
}

// Mutate returns a copy of toks with one random mutation applied. The EOF
// token stays last.
func (m *TokenMutator) Mutate(toks []token.Token) []token.Token {
	out := make([]token.Token, 0, len(toks)+1)
	for _, tok := range toks {
		if tok.Type != token.EOF {
			out = append(out, tok)
		}
	}
	if len(out) == 0 {
		return append(out, token.Token{Type: token.EOF})
	}

	idx := m.rnd.Intn(len(out))
	switch m.rnd.Intn(5) {
	case 0:
		out[idx] = m.mutateToken(out[idx])
	case 1:
		// Drop
		out = append(out[:idx], out[idx+1:]...)
	case 2:
		// Duplicate
		out = append(out[:idx+1], out[idx:]...)
	case 3:
		out = insert(out, idx, m.pick(punctuation))
	default:
		out = insert(out, idx, m.pick(keywords))
	}

	line := 1
	if n := len(out); n > 0 {
		line = out[n-1].Line
	}
	return append(out, token.Token{Type: token.EOF, Line: line})
}

func (m *TokenMutator) mutateToken(tok token.Token) token.Token {
	switch tok.Type {
	case token.NUMBER:
		n, _ := tok.Literal.(float64)
		n += float64(m.rnd.Intn(21) - 10)
		tok.Literal = n
		tok.Lexeme = fmt.Sprintf("%g", n)
	case token.TRUE:
		tok.Type, tok.Lexeme = token.FALSE, "false"
	case token.FALSE:
		tok.Type, tok.Lexeme = token.TRUE, "true"
	case token.IDENT:
		tok.Lexeme += "x"
	default:
		op := m.pick(binaryOperators)
		op.Line = tok.Line
		return op
	}
	return tok
}

func (m *TokenMutator) pick(types []token.TokenType) token.Token {
	return m.with(token.Token{}, types[m.rnd.Intn(len(types))])
}

// with turns tok into an operator, punctuation or keyword of type t.
func (m *TokenMutator) with(tok token.Token, t token.TokenType) token.Token {
	tok.Type = t
	tok.Lexeme = strings.ToLower(string(t))
	tok.Literal = nil
	return tok
}

func insert(toks []token.Token, idx int, tok token.Token) []token.Token {
	if idx > 0 {
		tok.Line = toks[idx-1].Line
	}
	toks = append(toks, token.Token{})
	copy(toks[idx+1:], toks[idx:])
	toks[idx] = tok
	return toks
}

// Render joins the lexemes back into source text. String tokens get
// double quotes back.
func Render(toks []token.Token) string {
	var sb strings.Builder
	for _, tok := range toks {
		switch tok.Type {
		case token.EOF:
			continue
		case token.STRING:
			s, _ := tok.Literal.(string)
			sb.WriteString("\"" + strings.ReplaceAll(s, "\"", "'") + "\"")
		default:
			sb.WriteString(tok.Lexeme)
		}
		sb.WriteString(" ")
	}
	return sb.String()
}

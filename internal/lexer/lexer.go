package lexer

import (
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/hashicorp/go-multierror"
	"github.com/jbpuryear/dakka/internal/diagnostics"
	"github.com/jbpuryear/dakka/internal/token"
)

type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           rune // current char under examination
	line         int  // current line number
	column       int  // current column number
	errors       *multierror.Error
}

func New(input string) *Lexer {
	l := &Lexer{input: input, line: 1, column: 0}
	l.readChar()
	return l
}

// Scan tokenizes input in a single pass. Lexical errors do not stop the
// scan; they are collected and returned together once the input is
// exhausted. The token slice always ends with EOF.
func Scan(input string) ([]token.Token, error) {
	l := New(input)
	var toks []token.Token
	for {
		tok := l.NextToken()
		if tok.Type == token.ILLEGAL {
			continue
		}
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			break
		}
	}
	return toks, l.Errors()
}

// Errors returns the lexical errors seen so far, or nil.
func (l *Lexer) Errors() error {
	return l.errors.ErrorOrNil()
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}

	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = len(l.input)
		l.readPosition = len(l.input) + 1
		l.column++
		return
	}

	r, w := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = r
	l.position = l.readPosition
	l.readPosition += w
	l.column++
}

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

func (l *Lexer) atEnd() bool {
	return l.position >= len(l.input)
}

func (l *Lexer) NextToken() token.Token {
	var tok token.Token

	l.skipWhitespace()

	line, col := l.line, l.column

	if l.atEnd() {
		return token.Token{Type: token.EOF, Lexeme: "", Line: line, Column: col}
	}

	switch l.ch {
	case '=':
		tok = l.either('=', token.EQ, token.ASSIGN)
	case '+':
		tok = l.either('=', token.PLUS_ASSIGN, token.PLUS)
	case '-':
		tok = l.either('=', token.MINUS_ASSIGN, token.MINUS)
	case '*':
		tok = l.either('=', token.ASTERISK_ASSIGN, token.ASTERISK)
	case '/':
		tok = l.either('=', token.SLASH_ASSIGN, token.SLASH)
	case '%':
		tok = l.either('=', token.PERCENT_ASSIGN, token.PERCENT)
	case '!':
		tok = l.either('=', token.NOT_EQ, token.BANG)
	case '<':
		tok = l.either('=', token.LTE, token.LT)
	case '>':
		tok = l.either('=', token.GTE, token.GT)
	case '&':
		if l.peekChar() != '&' {
			return l.illegal(line, "expected '&&', found a single '&'")
		}
		l.readChar()
		tok = newToken(token.AND, "&&", line, col)
	case '|':
		if l.peekChar() != '|' {
			return l.illegal(line, "expected '||', found a single '|'")
		}
		l.readChar()
		tok = newToken(token.OR, "||", line, col)
	case '?':
		tok = newToken(token.QUESTION, "?", line, col)
	case ':':
		tok = newToken(token.COLON, ":", line, col)
	case ',':
		tok = newToken(token.COMMA, ",", line, col)
	case ';':
		tok = newToken(token.SEMICOLON, ";", line, col)
	case '(':
		tok = newToken(token.LPAREN, "(", line, col)
	case ')':
		tok = newToken(token.RPAREN, ")", line, col)
	case '{':
		tok = newToken(token.LBRACE, "{", line, col)
	case '}':
		tok = newToken(token.RBRACE, "}", line, col)
	case '[':
		tok = newToken(token.LBRACKET, "[", line, col)
	case ']':
		tok = newToken(token.RBRACKET, "]", line, col)
	case '"', '\'':
		return l.readString()
	case '.':
		if isDigit(l.peekChar()) {
			return l.illegal(line, "number cannot start with '.'")
		}
		return l.illegal(line, "unexpected character '.'")
	default:
		if isLetter(l.ch) {
			lexeme := l.readIdentifier()
			tok = token.Token{Type: token.LookupIdent(lexeme), Lexeme: lexeme, Literal: lexeme, Line: line, Column: col}
			return tok
		} else if isDigit(l.ch) {
			return l.readNumber()
		}
		return l.illegal(line, "unexpected character %q", l.ch)
	}

	l.readChar()
	return tok
}

// either consumes the current char and, if the next one is next, that too.
func (l *Lexer) either(next rune, two, one token.TokenType) token.Token {
	line, col := l.line, l.column
	if l.peekChar() == next {
		lexeme := string(l.ch) + string(next)
		l.readChar()
		return newToken(two, lexeme, line, col)
	}
	return newToken(one, string(l.ch), line, col)
}

// illegal records a lexical error and skips ahead to the next whitespace so
// that scanning can continue.
func (l *Lexer) illegal(line int, format string, args ...interface{}) token.Token {
	l.errors = multierror.Append(l.errors, diagnostics.NewLexical(line, format, args...))
	start := l.position
	for !l.atEnd() && !isWhitespace(l.ch) {
		l.readChar()
	}
	return token.Token{Type: token.ILLEGAL, Lexeme: l.input[start:l.position], Line: line}
}

// readString reads a single- or double-quoted string. There are no escape
// sequences and strings may span lines.
func (l *Lexer) readString() token.Token {
	quote := l.ch
	line, col := l.line, l.column
	l.readChar()
	start := l.position
	for !l.atEnd() && l.ch != quote {
		l.readChar()
	}
	if l.atEnd() {
		l.errors = multierror.Append(l.errors, diagnostics.NewLexical(line, "unterminated string"))
		return token.Token{Type: token.ILLEGAL, Lexeme: l.input[start-1:], Line: line}
	}
	content := l.input[start:l.position]
	l.readChar() // closing quote
	return token.Token{Type: token.STRING, Lexeme: l.input[start-1 : l.position], Literal: content, Line: line, Column: col}
}

func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

func (l *Lexer) readNumber() token.Token {
	line, col := l.line, l.column
	position := l.position

	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		l.readChar()
		l.readChar()
		digits := l.position
		for isHexDigit(l.ch) {
			l.readChar()
		}
		if l.position == digits {
			return l.illegal(line, "hexadecimal literal has no digits")
		}
		if l.ch == '.' {
			return l.illegal(line, "hexadecimal literal cannot have a fraction")
		}
		value, err := strconv.ParseUint(l.input[digits:l.position], 16, 64)
		if err != nil {
			return l.illegal(line, "invalid hexadecimal literal %q", l.input[position:l.position])
		}
		lexeme := l.input[position:l.position]
		return token.Token{Type: token.NUMBER, Lexeme: lexeme, Literal: float64(value), Line: line, Column: col}
	}

	for isDigit(l.ch) {
		l.readChar()
	}

	if l.ch == '.' {
		if !isDigit(l.peekChar()) {
			return l.illegal(line, "number cannot end with '.'")
		}
		l.readChar() // .
		for isDigit(l.ch) {
			l.readChar()
		}
		if l.ch == '.' {
			return l.illegal(line, "malformed number")
		}
	}

	lexeme := l.input[position:l.position]
	value, err := strconv.ParseFloat(lexeme, 64)
	if err != nil {
		return l.illegal(line, "invalid number %q", lexeme)
	}
	return token.Token{Type: token.NUMBER, Lexeme: lexeme, Literal: value, Line: line, Column: col}
}

func (l *Lexer) skipWhitespace() {
	for {
		for isWhitespace(l.ch) {
			l.readChar()
		}
		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && !l.atEnd() {
				l.readChar()
			}
			continue
		}
		return
	}
}

func newToken(tokenType token.TokenType, lexeme string, line, col int) token.Token {
	return token.Token{Type: tokenType, Lexeme: lexeme, Literal: lexeme, Line: line, Column: col}
}

func isHexDigit(ch rune) bool {
	return isDigit(ch) || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
}

func isLetter(ch rune) bool {
	return ch == '_' || ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z')
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}

func isWhitespace(ch rune) bool {
	return ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' || (ch > unicode.MaxASCII && unicode.IsSpace(ch))
}

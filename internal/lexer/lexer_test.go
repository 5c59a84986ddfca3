package lexer

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/hashicorp/go-multierror"
	"github.com/jbpuryear/dakka/internal/diagnostics"
	"github.com/jbpuryear/dakka/internal/token"
)

var ignoreColumn = cmpopts.IgnoreFields(token.Token{}, "Column")

func types(toks []token.Token) []token.TokenType {
	out := make([]token.TokenType, len(toks))
	for i, tok := range toks {
		out[i] = tok.Type
	}
	return out
}

func TestScanOperators(t *testing.T) {
	input := `= += -= *= /= %= == != < <= > >= && || ! + - * / % ? : , ; ( ) { } [ ]`
	want := []token.TokenType{
		token.ASSIGN, token.PLUS_ASSIGN, token.MINUS_ASSIGN, token.ASTERISK_ASSIGN, token.SLASH_ASSIGN, token.PERCENT_ASSIGN,
		token.EQ, token.NOT_EQ, token.LT, token.LTE, token.GT, token.GTE, token.AND, token.OR, token.BANG,
		token.PLUS, token.MINUS, token.ASTERISK, token.SLASH, token.PERCENT, token.QUESTION, token.COLON,
		token.COMMA, token.SEMICOLON, token.LPAREN, token.RPAREN, token.LBRACE, token.RBRACE,
		token.LBRACKET, token.RBRACKET, token.EOF,
	}

	toks, err := Scan(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(want, types(toks)); diff != "" {
		t.Errorf("token types (-want +got):\n%s", diff)
	}
}

func TestScanKeywordsAndIdentifiers(t *testing.T) {
	input := "args else false for fun global if null repeat return sleep spawn thread true var while _foo bar2"
	want := []token.TokenType{
		token.ARGS, token.ELSE, token.FALSE, token.FOR, token.FUN, token.GLOBAL, token.IF, token.NULL,
		token.REPEAT, token.RETURN, token.SLEEP, token.SPAWN, token.THREAD, token.TRUE, token.VAR,
		token.WHILE, token.IDENT, token.IDENT, token.EOF,
	}
	toks, err := Scan(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(want, types(toks)); diff != "" {
		t.Errorf("token types (-want +got):\n%s", diff)
	}
}

func TestScanLiterals(t *testing.T) {
	input := "var a = 12.5;\n'single' \"double\"\n0xff // trailing comment\n7"
	want := []token.Token{
		{Type: token.VAR, Lexeme: "var", Literal: "var", Line: 1},
		{Type: token.IDENT, Lexeme: "a", Literal: "a", Line: 1},
		{Type: token.ASSIGN, Lexeme: "=", Literal: "=", Line: 1},
		{Type: token.NUMBER, Lexeme: "12.5", Literal: 12.5, Line: 1},
		{Type: token.SEMICOLON, Lexeme: ";", Literal: ";", Line: 1},
		{Type: token.STRING, Lexeme: "'single'", Literal: "single", Line: 2},
		{Type: token.STRING, Lexeme: `"double"`, Literal: "double", Line: 2},
		{Type: token.NUMBER, Lexeme: "0xff", Literal: float64(255), Line: 3},
		{Type: token.NUMBER, Lexeme: "7", Literal: float64(7), Line: 4},
		{Type: token.EOF, Lexeme: "", Line: 4},
	}
	toks, err := Scan(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(want, toks, ignoreColumn); diff != "" {
		t.Errorf("tokens (-want +got):\n%s", diff)
	}
}

func TestScanMultilineString(t *testing.T) {
	toks, err := Scan("'a\nb' x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toks[0].Literal != "a\nb" || toks[0].Line != 1 {
		t.Errorf("got %+v", toks[0])
	}
	if toks[1].Line != 2 {
		t.Errorf("identifier after string: expected line 2, got %d", toks[1].Line)
	}
}

func TestScanErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
		msg   string
	}{
		{"invalid character", "var a = $;", 1, "unexpected character '$'"},
		{"single ampersand", "a & b", 1, "expected '&&'"},
		{"single pipe", "a | b", 1, "expected '||'"},
		{"leading dot", "a = .123;", 1, "cannot start with '.'"},
		{"trailing dot", "a = 123.;", 1, "cannot end with '.'"},
		{"two dots", "a = 1.2.3;", 1, "malformed number"},
		{"empty hex", "a = 0x;", 1, "no digits"},
		{"unterminated string", "a\n'abc\n\n", 2, "unterminated string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Scan(tt.input)
			if err == nil {
				t.Fatalf("expected error for %q", tt.input)
			}
			merr, ok := err.(*multierror.Error)
			if !ok || len(merr.Errors) != 1 {
				t.Fatalf("expected exactly one aggregated error, got %v", err)
			}
			d, ok := merr.Errors[0].(*diagnostics.Error)
			if !ok {
				t.Fatalf("expected *diagnostics.Error, got %T", merr.Errors[0])
			}
			if d.Kind != diagnostics.Lexical || d.Line != tt.line {
				t.Errorf("expected lexical error on line %d, got %s", tt.line, d)
			}
			if !strings.Contains(d.Message, tt.msg) {
				t.Errorf("expected message containing %q, got %q", tt.msg, d.Message)
			}
		})
	}
}

func TestScanCollectsEveryError(t *testing.T) {
	toks, err := Scan("var a = $$$ 1;\nvar b = @ 2;\nvar c = 3 & 4;")
	if err == nil {
		t.Fatal("expected errors")
	}
	merr := err.(*multierror.Error)
	if len(merr.Errors) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(merr.Errors), err)
	}
	for i, e := range merr.Errors {
		if line := e.(*diagnostics.Error).Line; line != i+1 {
			t.Errorf("error %d: expected line %d, got %d", i, i+1, line)
		}
	}
	// Scanning resumes after the bad run, so the numbers are still there.
	numbers := 0
	for _, tok := range toks {
		if tok.Type == token.NUMBER {
			numbers++
		}
	}
	if numbers != 4 {
		t.Errorf("expected 4 numbers after recovery, got %d", numbers)
	}
}

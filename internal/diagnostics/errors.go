package diagnostics

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Lexical Kind = iota
	Syntax
	Runtime
	Spawn
)

func (k Kind) String() string {
	switch k {
	case Lexical:
		return "lexical"
	case Syntax:
		return "syntax"
	case Runtime:
		return "runtime"
	case Spawn:
		return "spawn"
	}
	return "unknown"
}

// Error is a diagnostic tied to a source line. Where holds the offending
// lexeme for syntax errors ("end" at end of input) and is empty otherwise.
type Error struct {
	Kind    Kind
	Line    int
	Where   string
	Message string
}

func (e *Error) Error() string {
	if e.Where != "" {
		return fmt.Sprintf("[line %d] %s error at %s: %s", e.Line, e.Kind, e.Where, e.Message)
	}
	return fmt.Sprintf("[line %d] %s error: %s", e.Line, e.Kind, e.Message)
}

func NewLexical(line int, format string, args ...interface{}) *Error {
	return &Error{Kind: Lexical, Line: line, Message: fmt.Sprintf(format, args...)}
}

func NewSyntax(line int, where, msg string) *Error {
	return &Error{Kind: Syntax, Line: line, Where: where, Message: msg}
}

func NewRuntime(line int, format string, args ...interface{}) *Error {
	return &Error{Kind: Runtime, Line: line, Message: fmt.Sprintf(format, args...)}
}

func NewSpawn(line int, format string, args ...interface{}) *Error {
	return &Error{Kind: Spawn, Line: line, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err (or anything it wraps) is a diagnostic of kind k.
func IsKind(err error, k Kind) bool {
	var d *Error
	if errors.As(err, &d) {
		return d.Kind == k
	}
	return false
}

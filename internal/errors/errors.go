package errors

import (
	"fmt"
	"strings"
)

// Kind classifies a diagnostic. The set is closed.
type Kind string

const (
	Lexical          Kind = "LexicalError"
	Syntax           Kind = "SyntaxError"
	Undeclared       Kind = "UndeclaredError"
	Undefined        Kind = "UndefinedError"
	Uninitialized    Kind = "UninitializedError"
	Redeclared       Kind = "RedeclaredError"
	TypeDisagreement Kind = "TypeDisagreementError"
	Overflow         Kind = "OverflowError"
	Underflow        Kind = "UnderflowError"
	EmptyBody        Kind = "EmptyBodyError"
	Internal         Kind = "InternalError"
)

// SourceLocation is a position in user source code.
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

// CromError is a diagnostic with source location information.
type CromError struct {
	Kind     Kind
	Message  string
	Location SourceLocation
	Source   string // the source line where the error occurred
}

func (e *CromError) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s: %s", e.Kind, e.Message))

	if e.Location.Line > 0 {
		file := e.Location.File
		if file == "" {
			file = "<input>"
		}
		sb.WriteString(fmt.Sprintf("\n  at %s:%d:%d", file, e.Location.Line, e.Location.Column))

		if e.Source != "" {
			gutter := fmt.Sprintf("%d | ", e.Location.Line)
			sb.WriteString(fmt.Sprintf("\n\n  %s%s\n", gutter, e.Source))
			sb.WriteString("  " + strings.Repeat(" ", len(gutter)))
			if e.Location.Column > 0 {
				sb.WriteString(strings.Repeat(" ", e.Location.Column-1))
			}
			sb.WriteString("^")
		}
	}

	return sb.String()
}

func New(kind Kind, message string, file string, line, column int) *CromError {
	return &CromError{
		Kind:    kind,
		Message: message,
		Location: SourceLocation{
			File:   file,
			Line:   line,
			Column: column,
		},
	}
}

func Newf(kind Kind, file string, line, column int, format string, args ...interface{}) *CromError {
	return New(kind, fmt.Sprintf(format, args...), file, line, column)
}

// NewInternal marks a compiler bug. Internal errors are never recovered;
// they abort the compile.
func NewInternal(format string, args ...interface{}) *CromError {
	return &CromError{
		Kind:    Internal,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithSource attaches the offending source line for caret rendering.
func (e *CromError) WithSource(source string) *CromError {
	e.Source = source
	return e
}

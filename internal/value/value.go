package value

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rtmath/Crom/internal/errors"
	"github.com/rtmath/Crom/internal/lexer"
	"github.com/rtmath/Crom/internal/symbols"
)

type Kind string

const (
	VNone     Kind = "NONE"
	VInt      Kind = "INT"
	VUint     Kind = "UINT"
	VFloat    Kind = "FLOAT"
	VChar     Kind = "CHAR"
	VString   Kind = "STRING"
	VBool     Kind = "BOOL"
	VOverflow Kind = "OVERFLOW"
)

// Value is a literal tagged with its kind. String values own their
// bytes; ArraySize holds a string's byte length.
type Value struct {
	Kind      Kind
	Int       int64
	Uint      uint64
	Float     float64
	Char      byte
	Str       string
	Bool      bool
	ArraySize int
}

func None() Value          { return Value{Kind: VNone} }
func Overflow() Value      { return Value{Kind: VOverflow} }
func NewInt(i int64) Value { return Value{Kind: VInt, Int: i} }
func NewUint(u uint64) Value {
	return Value{Kind: VUint, Uint: u}
}
func NewFloat(f float64) Value { return Value{Kind: VFloat, Float: f} }
func NewChar(c byte) Value     { return Value{Kind: VChar, Char: c} }
func NewBool(b bool) Value     { return Value{Kind: VBool, Bool: b} }
func NewString(s string) Value {
	return Value{Kind: VString, Str: s, ArraySize: len(s)}
}

const (
	baseDecimal = 10
	baseHex     = 16
	baseBinary  = 2
)

// New interprets a literal token under the given annotation. Numeric
// overflow yields a V_OVERFLOW value and a diagnostic positioned at the
// token; a mismatched annotation is a compiler bug and panics.
func New(a symbols.Annotation, t lexer.Token) (Value, error) {
	switch a.Actual {
	case symbols.KindInt:
		if a.IsSigned {
			return newInt(a, t)
		}
		return newUint(a, t)
	case symbols.KindFloat:
		return newFloat(a, t)
	case symbols.KindBool:
		switch t.Lexeme {
		case "true":
			return NewBool(true), nil
		case "false":
			return NewBool(false), nil
		}
		panic(errors.NewInternal("New(): bool lexeme '%s' is neither true nor false", t.Lexeme))
	case symbols.KindChar:
		return NewChar(unquote(t.Lexeme)[0]), nil
	case symbols.KindString:
		return NewString(strings.Clone(unquote(t.Lexeme))), nil
	}

	panic(errors.NewInternal("New(): no value interpretation for annotation %s", a))
}

func newInt(a symbols.Annotation, t lexer.Token) (Value, error) {
	i, err := strconv.ParseInt(digits(t), base(t), bitWidth(a))
	if err != nil {
		return Overflow(), overflowError(a, t)
	}
	return NewInt(i), nil
}

func newUint(a symbols.Annotation, t lexer.Token) (Value, error) {
	u, err := strconv.ParseUint(digits(t), base(t), bitWidth(a))
	if err != nil {
		return Overflow(), overflowError(a, t)
	}
	return NewUint(u), nil
}

func newFloat(a symbols.Annotation, t lexer.Token) (Value, error) {
	f, err := strconv.ParseFloat(t.Lexeme, bitWidth(a))
	if err != nil {
		return Overflow(), overflowError(a, t)
	}
	return NewFloat(f), nil
}

func base(t lexer.Token) int {
	switch t.Type {
	case lexer.TokenHexLit:
		return baseHex
	case lexer.TokenBinaryLit:
		return baseBinary
	}
	return baseDecimal
}

// digits strips the base prefix from a numeric lexeme: "0x" from hex,
// the b'...' frame from binary.
func digits(t lexer.Token) string {
	switch t.Type {
	case lexer.TokenHexLit:
		return t.Lexeme[2:]
	case lexer.TokenBinaryLit:
		return t.Lexeme[2 : len(t.Lexeme)-1]
	}
	return t.Lexeme
}

func bitWidth(a symbols.Annotation) int {
	if a.BitWidth > 0 {
		return a.BitWidth
	}
	return 64
}

func overflowError(a symbols.Annotation, t lexer.Token) error {
	kind := "I"
	if a.Actual == symbols.KindFloat {
		kind = "F"
	} else if !a.IsSigned {
		kind = "U"
	}
	return errors.Newf(errors.Overflow, t.File, t.Line, t.Column,
		"%s%d overflow: '%s'", kind, bitWidth(a), t.Lexeme)
}

func unquote(lexeme string) string {
	return lexeme[1 : len(lexeme)-1]
}

// sameFamily guards the closed arithmetic surface. Operand kind
// mismatches are parser bugs, not user errors.
func sameFamily(op string, v1, v2 Value) {
	if v1.Kind != v2.Kind {
		panic(errors.NewInternal("%s: operand kind mismatch: %s vs %s", op, v1.Kind, v2.Kind))
	}
}

func Add(v1, v2 Value) Value {
	sameFamily("Add", v1, v2)
	switch v1.Kind {
	case VInt:
		return NewInt(v1.Int + v2.Int)
	case VUint:
		return NewUint(v1.Uint + v2.Uint)
	case VFloat:
		return NewFloat(v1.Float + v2.Float)
	}
	panic(errors.NewInternal("Add: no addition for kind %s", v1.Kind))
}

func Sub(v1, v2 Value) Value {
	sameFamily("Sub", v1, v2)
	switch v1.Kind {
	case VInt:
		return NewInt(v1.Int - v2.Int)
	case VUint:
		return NewUint(v1.Uint - v2.Uint)
	case VFloat:
		return NewFloat(v1.Float - v2.Float)
	}
	panic(errors.NewInternal("Sub: no subtraction for kind %s", v1.Kind))
}

func Mul(v1, v2 Value) Value {
	sameFamily("Mul", v1, v2)
	switch v1.Kind {
	case VInt:
		return NewInt(v1.Int * v2.Int)
	case VUint:
		return NewUint(v1.Uint * v2.Uint)
	case VFloat:
		return NewFloat(v1.Float * v2.Float)
	}
	panic(errors.NewInternal("Mul: no multiplication for kind %s", v1.Kind))
}

func Div(v1, v2 Value) Value {
	sameFamily("Div", v1, v2)
	switch v1.Kind {
	case VInt:
		return NewInt(v1.Int / v2.Int)
	case VUint:
		return NewUint(v1.Uint / v2.Uint)
	case VFloat:
		return NewFloat(v1.Float / v2.Float)
	}
	panic(errors.NewInternal("Div: no division for kind %s", v1.Kind))
}

// Mod is defined for the integer kinds only.
func Mod(v1, v2 Value) Value {
	sameFamily("Mod", v1, v2)
	switch v1.Kind {
	case VInt:
		return NewInt(v1.Int % v2.Int)
	case VUint:
		return NewUint(v1.Uint % v2.Uint)
	}
	panic(errors.NewInternal("Mod: no modulo for kind %s", v1.Kind))
}

func Not(v Value) Value {
	if v.Kind != VBool {
		panic(errors.NewInternal("Not: expected BOOL, got %s", v.Kind))
	}
	return NewBool(!v.Bool)
}

func Equal(v1, v2 Value) Value {
	sameFamily("Equal", v1, v2)
	switch v1.Kind {
	case VInt:
		return NewBool(v1.Int == v2.Int)
	case VUint:
		return NewBool(v1.Uint == v2.Uint)
	case VFloat:
		return NewBool(v1.Float == v2.Float)
	case VChar:
		return NewBool(v1.Char == v2.Char)
	case VString:
		return NewBool(v1.Str == v2.Str)
	case VBool:
		return NewBool(v1.Bool == v2.Bool)
	}
	panic(errors.NewInternal("Equal: no equality for kind %s", v1.Kind))
}

func Greater(v1, v2 Value) Value {
	sameFamily("Greater", v1, v2)
	switch v1.Kind {
	case VInt:
		return NewBool(v1.Int > v2.Int)
	case VUint:
		return NewBool(v1.Uint > v2.Uint)
	case VFloat:
		return NewBool(v1.Float > v2.Float)
	case VChar:
		return NewBool(v1.Char > v2.Char)
	}
	panic(errors.NewInternal("Greater: no ordering for kind %s", v1.Kind))
}

func Less(v1, v2 Value) Value {
	sameFamily("Less", v1, v2)
	switch v1.Kind {
	case VInt:
		return NewBool(v1.Int < v2.Int)
	case VUint:
		return NewBool(v1.Uint < v2.Uint)
	case VFloat:
		return NewBool(v1.Float < v2.Float)
	case VChar:
		return NewBool(v1.Char < v2.Char)
	}
	panic(errors.NewInternal("Less: no ordering for kind %s", v1.Kind))
}

func LogicalAnd(v1, v2 Value) Value {
	sameFamily("LogicalAnd", v1, v2)
	if v1.Kind != VBool {
		panic(errors.NewInternal("LogicalAnd: expected BOOL, got %s", v1.Kind))
	}
	return NewBool(v1.Bool && v2.Bool)
}

func LogicalOr(v1, v2 Value) Value {
	sameFamily("LogicalOr", v1, v2)
	if v1.Kind != VBool {
		panic(errors.NewInternal("LogicalOr: expected BOOL, got %s", v1.Kind))
	}
	return NewBool(v1.Bool || v2.Bool)
}

func (v Value) String() string {
	switch v.Kind {
	case VNone:
		return "None"
	case VInt:
		return fmt.Sprintf("Integer: %d", v.Int)
	case VUint:
		return fmt.Sprintf("Unsigned Integer: %d", v.Uint)
	case VFloat:
		return fmt.Sprintf("Float: %f", v.Float)
	case VChar:
		return fmt.Sprintf("Char: %c", v.Char)
	case VString:
		return fmt.Sprintf("String: %s", v.Str)
	case VBool:
		return fmt.Sprintf("Bool: %t", v.Bool)
	case VOverflow:
		return "Overflow"
	}
	return fmt.Sprintf("Value kind '%s' not printable", v.Kind)
}

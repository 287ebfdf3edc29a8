package symbols

import (
	"fmt"

	"github.com/rtmath/Crom/internal/lexer"
)

// Kind is the type family a value belongs to. The same set serves as both
// the ostensible kind (what the programmer wrote) and the actual kind
// (what it resolved to).
type Kind string

const (
	KindNone   Kind = "NONE"
	KindInt    Kind = "INT"
	KindFloat  Kind = "FLOAT"
	KindBool   Kind = "BOOL"
	KindChar   Kind = "CHAR"
	KindString Kind = "STRING"
	KindVoid   Kind = "VOID"
	KindEnum   Kind = "ENUM"
	KindStruct Kind = "STRUCT"
)

// Annotation describes a value's intended type.
type Annotation struct {
	Ostensible Kind
	Actual     Kind

	IsSigned bool
	BitWidth int // for i8, u16, etc

	IsArray   bool
	ArraySize int

	IsFunction bool

	// for helpful error messages
	DeclaredOnLine int
}

func NoAnnotation() Annotation {
	return Annotation{
		Ostensible:     KindNone,
		Actual:         KindNone,
		DeclaredOnLine: -1,
	}
}

func annotation(kind Kind, bitWidth int, isSigned bool) Annotation {
	a := NoAnnotation()
	a.Ostensible = kind
	a.Actual = kind
	a.BitWidth = bitWidth
	a.IsSigned = isSigned
	return a
}

// AnnotateType maps a type-keyword or literal token to its annotation.
// Hex and binary constants are unsigned; plain int constants are signed.
// Enum members resolve to their underlying integer.
func AnnotateType(t lexer.TokenType) Annotation {
	const signed = true
	const unsigned = false

	switch t {
	case lexer.TokenI8:
		return annotation(KindInt, 8, signed)
	case lexer.TokenI16:
		return annotation(KindInt, 16, signed)
	case lexer.TokenI32:
		return annotation(KindInt, 32, signed)
	case lexer.TokenI64:
		return annotation(KindInt, 64, signed)
	case lexer.TokenU8:
		return annotation(KindInt, 8, unsigned)
	case lexer.TokenU16:
		return annotation(KindInt, 16, unsigned)
	case lexer.TokenU32:
		return annotation(KindInt, 32, unsigned)
	case lexer.TokenU64:
		return annotation(KindInt, 64, unsigned)
	case lexer.TokenF32:
		return annotation(KindFloat, 32, signed)
	case lexer.TokenF64:
		return annotation(KindFloat, 64, signed)
	case lexer.TokenBoolType:
		return annotation(KindBool, 0, false)
	case lexer.TokenCharType:
		return annotation(KindChar, 0, false)
	case lexer.TokenStringType:
		return annotation(KindString, 0, false)
	case lexer.TokenVoid:
		return annotation(KindVoid, 0, false)
	case lexer.TokenEnum:
		return annotation(KindEnum, 0, false)
	case lexer.TokenStruct:
		return annotation(KindStruct, 0, false)

	case lexer.TokenIntLit:
		return annotation(KindInt, 64, signed)
	case lexer.TokenHexLit, lexer.TokenBinaryLit:
		return annotation(KindInt, 64, unsigned)
	case lexer.TokenFloatLit:
		return annotation(KindFloat, 64, signed)
	case lexer.TokenBoolLit:
		return annotation(KindBool, 0, false)
	case lexer.TokenCharLit:
		return annotation(KindChar, 0, false)
	case lexer.TokenStringLit:
		return annotation(KindString, 0, false)
	case lexer.TokenEnumLit:
		a := annotation(KindInt, 64, signed)
		a.Ostensible = KindEnum
		return a
	}

	return NoAnnotation()
}

// FunctionAnnotation annotates a function symbol; the kind fields carry
// the declared return type.
func FunctionAnnotation(returnType lexer.TokenType) Annotation {
	a := AnnotateType(returnType)
	a.IsFunction = true
	return a
}

// ArrayAnnotation annotates a fixed-size array of the given element type.
func ArrayAnnotation(elementType lexer.TokenType, size int) Annotation {
	a := AnnotateType(elementType)
	a.IsArray = true
	a.ArraySize = size
	return a
}

func (a Annotation) String() string {
	name := string(a.Ostensible)
	if a.Ostensible == KindInt {
		if a.IsSigned {
			name = "I"
		} else {
			name = "U"
		}
	} else if a.Ostensible == KindFloat {
		name = "F"
	}

	switch {
	case a.Ostensible == KindNone:
		return "[]"
	case a.IsFunction:
		return fmt.Sprintf("[Fn :: %s%s]", name, widthSuffix(a))
	case a.IsArray:
		return fmt.Sprintf("[%s%s[%d]]", name, widthSuffix(a), a.ArraySize)
	default:
		return fmt.Sprintf("[%s%s]", name, widthSuffix(a))
	}
}

func widthSuffix(a Annotation) string {
	if a.BitWidth > 0 {
		return fmt.Sprintf("%d", a.BitWidth)
	}
	return ""
}

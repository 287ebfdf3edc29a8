package symbols

import (
	"testing"

	"github.com/rtmath/Crom/internal/errors"
	"github.com/rtmath/Crom/internal/lexer"
)

func ident(name string, line int) lexer.Token {
	return lexer.Token{Type: lexer.TokenIdent, Lexeme: name, Line: line}
}

// ===== Annotation Tests =====

func TestAnnotateType(t *testing.T) {
	tests := []struct {
		name     string
		token    lexer.TokenType
		kind     Kind
		width    int
		isSigned bool
	}{
		{"i8", lexer.TokenI8, KindInt, 8, true},
		{"i16", lexer.TokenI16, KindInt, 16, true},
		{"i32", lexer.TokenI32, KindInt, 32, true},
		{"i64", lexer.TokenI64, KindInt, 64, true},
		{"u8", lexer.TokenU8, KindInt, 8, false},
		{"u16", lexer.TokenU16, KindInt, 16, false},
		{"u32", lexer.TokenU32, KindInt, 32, false},
		{"u64", lexer.TokenU64, KindInt, 64, false},
		{"f32", lexer.TokenF32, KindFloat, 32, true},
		{"f64", lexer.TokenF64, KindFloat, 64, true},
		{"bool", lexer.TokenBoolType, KindBool, 0, false},
		{"char", lexer.TokenCharType, KindChar, 0, false},
		{"string", lexer.TokenStringType, KindString, 0, false},
		{"void", lexer.TokenVoid, KindVoid, 0, false},
		{"int literal", lexer.TokenIntLit, KindInt, 64, true},
		{"hex literal", lexer.TokenHexLit, KindInt, 64, false},
		{"binary literal", lexer.TokenBinaryLit, KindInt, 64, false},
		{"float literal", lexer.TokenFloatLit, KindFloat, 64, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			a := AnnotateType(test.token)
			if a.Ostensible != test.kind {
				t.Errorf("ostensible kind %s, want %s", a.Ostensible, test.kind)
			}
			if a.Actual != test.kind && test.token != lexer.TokenEnumLit {
				t.Errorf("actual kind %s, want %s", a.Actual, test.kind)
			}
			if a.BitWidth != test.width {
				t.Errorf("bit width %d, want %d", a.BitWidth, test.width)
			}
			if a.IsSigned != test.isSigned {
				t.Errorf("is_signed %t, want %t", a.IsSigned, test.isSigned)
			}
		})
	}
}

func TestEnumLiteralResolvesToUnderlyingInt(t *testing.T) {
	a := AnnotateType(lexer.TokenEnumLit)
	if a.Ostensible != KindEnum {
		t.Errorf("ostensible %s, want %s", a.Ostensible, KindEnum)
	}
	if a.Actual != KindInt {
		t.Errorf("actual %s, want %s", a.Actual, KindInt)
	}
}

func TestFunctionAnnotation(t *testing.T) {
	a := FunctionAnnotation(lexer.TokenI32)
	if !a.IsFunction {
		t.Error("IsFunction not set")
	}
	if a.Ostensible != KindInt || a.BitWidth != 32 {
		t.Errorf("return kind %s/%d, want INT/32", a.Ostensible, a.BitWidth)
	}
}

func TestArrayAnnotation(t *testing.T) {
	a := ArrayAnnotation(lexer.TokenU8, 5)
	if !a.IsArray || a.ArraySize != 5 {
		t.Errorf("got array=%t size=%d, want true/5", a.IsArray, a.ArraySize)
	}
	if a.ArraySize < 1 {
		t.Error("array annotation must have size >= 1")
	}
}

// ===== Symbol Table Tests =====

func TestAddAndRetrieve(t *testing.T) {
	st := NewSymbolTable()
	tok := ident("x", 3)

	stored := st.Add(NewSymbol(tok, AnnotateType(lexer.TokenI32), DeclDeclared))
	if stored.Annotation.DeclaredOnLine != 3 {
		t.Errorf("declared_on_line %d, want 3", stored.Annotation.DeclaredOnLine)
	}

	got := st.Retrieve(tok)
	if got.Token.Lexeme != "x" || got.State != DeclDeclared {
		t.Errorf("retrieved %v", got)
	}
	if !st.Has(tok) {
		t.Error("Has reports false for a stored symbol")
	}
}

func TestRetrieveMissingReturnsSentinel(t *testing.T) {
	st := NewSymbolTable()
	got := st.Retrieve(ident("ghost", 1))
	if got.Token.Type != lexer.TokenError {
		t.Errorf("sentinel token type %s, want ERROR", got.Token.Type)
	}
	if got.State != DeclNone {
		t.Errorf("sentinel state %s, want NONE", got.State)
	}
}

func TestUpdatePreservesDeclarationLine(t *testing.T) {
	st := NewSymbolTable()
	st.Add(NewSymbol(ident("x", 1), AnnotateType(lexer.TokenBoolType), DeclDeclared))

	// The defining assignment happens later in the file
	stored := st.Add(NewSymbol(ident("x", 7), AnnotateType(lexer.TokenBoolType), DeclDefined))

	if stored.State != DeclDefined {
		t.Errorf("state %s, want DEFINED", stored.State)
	}
	if stored.Annotation.DeclaredOnLine != 1 {
		t.Errorf("declared_on_line %d, want the original line 1", stored.Annotation.DeclaredOnLine)
	}
}

func TestDefinedSymbolHasActualKind(t *testing.T) {
	st := NewSymbolTable()
	st.Add(NewSymbol(ident("x", 1), AnnotateType(lexer.TokenI8), DeclDefined))
	got := st.Retrieve(ident("x", 1))
	if got.Annotation.Actual == KindNone {
		t.Error("DEFINED symbol has actual kind NONE")
	}
}

func TestStructSymbolGetsFieldTable(t *testing.T) {
	s := NewSymbol(ident("Point", 1), AnnotateType(lexer.TokenStruct), DeclDeclared)
	if s.StructFields == nil {
		t.Fatal("struct symbol has no field table")
	}
	if s.FnParams != nil {
		t.Error("struct symbol should not have a param table")
	}

	s.StructFields.Add(NewSymbol(ident("x", 2), AnnotateType(lexer.TokenI32), DeclDeclared))
	if !s.StructFields.Has(ident("x", 2)) {
		t.Error("field not stored in field table")
	}
}

func TestFunctionSymbolGetsParamTable(t *testing.T) {
	s := NewSymbol(ident("f", 1), FunctionAnnotation(lexer.TokenVoid), DeclUninitialized)
	if s.FnParams == nil {
		t.Fatal("function symbol has no param table")
	}
}

func TestRegisterFnParam(t *testing.T) {
	st := NewSymbolTable()
	fn := st.Add(NewSymbol(ident("add", 1), FunctionAnnotation(lexer.TokenI32), DeclDeclared))

	a := NewSymbol(ident("a", 1), AnnotateType(lexer.TokenI32), DeclFnParam)
	b := NewSymbol(ident("b", 1), AnnotateType(lexer.TokenI32), DeclFnParam)
	st.RegisterFnParam(fn, a)
	st.RegisterFnParam(fn, b)

	got := st.Retrieve(fn.Token)
	if len(got.ParamList) != 2 {
		t.Fatalf("param list has %d entries, want 2", len(got.ParamList))
	}
	if got.ParamList[0].Token.Lexeme != "a" || got.ParamList[0].Ordinal != 0 {
		t.Errorf("first param %v", got.ParamList[0])
	}
	if got.ParamList[1].Token.Lexeme != "b" || got.ParamList[1].Ordinal != 1 {
		t.Errorf("second param %v", got.ParamList[1])
	}

	// Re-registering the same name updates in place
	st.RegisterFnParam(fn, a)
	got = st.Retrieve(fn.Token)
	if len(got.ParamList) != 2 {
		t.Errorf("re-registration duplicated the param list: %v", got.ParamList)
	}
}

func TestAddErrorTokenPanics(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected a panic")
		}
		err, ok := r.(*errors.CromError)
		if !ok || err.Kind != errors.Internal {
			t.Fatalf("expected an internal error, got %v", r)
		}
	}()

	st := NewSymbolTable()
	st.Add(Symbol{Token: lexer.Token{Type: lexer.TokenError}})
}

// ===== Scope Tests =====

func TestScopeBeginEnd(t *testing.T) {
	sc := NewScope(NewSymbolTable())
	if sc.Depth() != 0 {
		t.Fatalf("fresh scope depth %d, want 0", sc.Depth())
	}

	sc.Begin()
	if sc.Depth() != 1 {
		t.Errorf("depth %d after Begin, want 1", sc.Depth())
	}

	sc.Current().Add(NewSymbol(ident("inner", 1), AnnotateType(lexer.TokenI32), DeclDeclared))
	sc.End()

	if sc.Depth() != 0 {
		t.Errorf("depth %d after End, want 0", sc.Depth())
	}
	if sc.Current().Has(ident("inner", 1)) {
		t.Error("inner symbol survived End()")
	}
}

func TestEndAtGlobalScopePanics(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected a panic")
		}
		err, ok := r.(*errors.CromError)
		if !ok || err.Kind != errors.Internal {
			t.Fatalf("expected an internal error, got %v", r)
		}
	}()

	NewScope(NewSymbolTable()).End()
}

func TestExistsInOuter(t *testing.T) {
	sc := NewScope(NewSymbolTable())
	sc.Global().Add(NewSymbol(ident("g", 1), AnnotateType(lexer.TokenI32), DeclDefined))

	sc.Begin()
	sc.Current().Add(NewSymbol(ident("local", 2), AnnotateType(lexer.TokenI32), DeclDeclared))

	if got := sc.ExistsInOuter(ident("g", 5)); got.Token.Type == lexer.TokenError {
		t.Error("global symbol not visible from inner scope")
	}
	// The current scope is excluded from the outer walk
	if got := sc.ExistsInOuter(ident("local", 5)); got.Token.Type != lexer.TokenError {
		t.Error("ExistsInOuter found a symbol of the current scope")
	}
}

func TestShadowRedirectsCurrent(t *testing.T) {
	sc := NewScope(NewSymbolTable())
	fields := NewSymbolTable()

	sc.Shadow(fields)
	sc.Current().Add(NewSymbol(ident("x", 1), AnnotateType(lexer.TokenI32), DeclDeclared))

	if !fields.Has(ident("x", 1)) {
		t.Error("insertion did not go to the shadowed table")
	}
	if sc.Global().Has(ident("x", 1)) {
		t.Error("insertion leaked into the global table")
	}

	sc.Unshadow()
	if sc.Current() != sc.Global() {
		t.Error("Unshadow did not restore the stack table")
	}
}

func TestShadowedOuterLookupSeesWholeStack(t *testing.T) {
	sc := NewScope(NewSymbolTable())
	sc.Global().Add(NewSymbol(ident("fn", 1), FunctionAnnotation(lexer.TokenI32), DeclDefined))

	params := NewSymbolTable()
	sc.Shadow(params)

	// A body statement must be able to resolve a global through the shadow
	if got := sc.ExistsInOuter(ident("fn", 3)); got.Token.Type == lexer.TokenError {
		t.Error("global not visible during shadowed lookup")
	}
}

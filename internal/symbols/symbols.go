package symbols

import (
	"fmt"

	"github.com/rtmath/Crom/internal/errors"
	"github.com/rtmath/Crom/internal/lexer"
)

// DeclState is a symbol's position in the declaration lifecycle.
// A symbol may move DECLARED -> DEFINED but never the reverse.
type DeclState string

const (
	DeclNone          DeclState = "NONE"
	DeclUninitialized DeclState = "UNINITIALIZED"
	DeclDeclared      DeclState = "DECLARED"
	DeclDefined       DeclState = "DEFINED"
	DeclFnParam       DeclState = "FN_PARAM"
)

// FnParam records one registered parameter of a function symbol,
// in declaration order.
type FnParam struct {
	Ordinal    int // 0 is the first param, 1 is the second, etc
	Token      lexer.Token
	Annotation Annotation
}

type Symbol struct {
	Token      lexer.Token
	Annotation Annotation
	State      DeclState

	// StructFields is non-nil only for struct types; FnParams only for
	// functions. Both are shared by reference across copies of the Symbol.
	StructFields *SymbolTable
	FnParams     *SymbolTable
	ParamList    []FnParam
}

// NewSymbol builds a symbol for the given identifier token. Struct symbols
// get a fresh field table, function symbols a fresh parameter table.
func NewSymbol(t lexer.Token, a Annotation, state DeclState) Symbol {
	s := Symbol{
		Token:      t,
		Annotation: a,
		State:      state,
	}
	if a.Ostensible == KindStruct {
		s.StructFields = NewSymbolTable()
	}
	if a.IsFunction {
		s.FnParams = NewSymbolTable()
	}
	return s
}

func (s Symbol) String() string {
	return fmt.Sprintf("%s %s %s", s.Token.Lexeme, s.State, s.Annotation)
}

func notFound() Symbol {
	return Symbol{
		Token: lexer.Token{
			Type:   lexer.TokenError,
			Lexeme: "No symbol found in symbol table",
			Line:   -1,
		},
		Annotation: NoAnnotation(),
		State:      DeclNone,
	}
}

// SymbolTable maps identifier lexemes to symbols.
type SymbolTable struct {
	entries map[string]Symbol
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{entries: make(map[string]Symbol)}
}

// Add inserts or overwrites. When overwriting, the line the symbol was
// first declared on is preserved for diagnostics.
func (st *SymbolTable) Add(s Symbol) Symbol {
	if s.Token.Type == lexer.TokenError {
		panic(errors.NewInternal("tried adding an ERROR token to symbol table"))
	}

	key := s.Token.Lexeme
	if existing, ok := st.entries[key]; ok {
		s.Annotation.DeclaredOnLine = existing.Annotation.DeclaredOnLine
	} else {
		s.Annotation.DeclaredOnLine = s.Token.Line
	}

	st.entries[key] = s
	return s
}

// Retrieve looks a token's lexeme up; absent names yield a sentinel
// whose token kind is ERROR.
func (st *SymbolTable) Retrieve(t lexer.Token) Symbol {
	if t.Type == lexer.TokenError {
		panic(errors.NewInternal("cannot retrieve ERROR token from symbol table"))
	}

	s, ok := st.entries[t.Lexeme]
	if !ok {
		return notFound()
	}
	return s
}

func (st *SymbolTable) Has(t lexer.Token) bool {
	_, ok := st.entries[t.Lexeme]
	return ok
}

func (st *SymbolTable) Len() int {
	return len(st.entries)
}

// RegisterFnParam appends param to the parameter list of the function
// symbol identified by fn's token.
func (st *SymbolTable) RegisterFnParam(fn Symbol, param Symbol) {
	stored, ok := st.entries[fn.Token.Lexeme]
	if !ok {
		panic(errors.NewInternal("RegisterFnParam: function '%s' not in symbol table", fn.Token.Lexeme))
	}

	// A forward-declared function registers its params again when the
	// definition arrives; update in place rather than duplicating.
	replaced := false
	for i, existing := range stored.ParamList {
		if existing.Token.Lexeme == param.Token.Lexeme {
			stored.ParamList[i].Token = param.Token
			stored.ParamList[i].Annotation = param.Annotation
			replaced = true
			break
		}
	}
	if !replaced {
		stored.ParamList = append(stored.ParamList, FnParam{
			Ordinal:    len(stored.ParamList),
			Token:      param.Token,
			Annotation: param.Annotation,
		})
	}
	st.entries[fn.Token.Lexeme] = stored
}

// Scope is a stack of symbol tables; index 0 is the global table.
// A transient shadow slot can redirect Current() to an explicit table
// without pushing a stack frame.
type Scope struct {
	tables []*SymbolTable
	shadow *SymbolTable
}

func NewScope(global *SymbolTable) *Scope {
	return &Scope{tables: []*SymbolTable{global}}
}

func (sc *Scope) Begin() {
	sc.tables = append(sc.tables, NewSymbolTable())
}

func (sc *Scope) End() {
	if len(sc.tables) == 1 {
		panic(errors.NewInternal("how'd you end scope at depth 0?"))
	}
	sc.tables = sc.tables[:len(sc.tables)-1]
}

// Depth is 0 at global scope.
func (sc *Scope) Depth() int {
	return len(sc.tables) - 1
}

// Current returns the shadowed table if one is set, otherwise the
// innermost stack table.
func (sc *Scope) Current() *SymbolTable {
	if sc.shadow != nil {
		return sc.shadow
	}
	return sc.tables[len(sc.tables)-1]
}

func (sc *Scope) Shadow(st *SymbolTable) {
	sc.shadow = st
}

func (sc *Scope) Unshadow() {
	sc.shadow = nil
}

func (sc *Scope) Global() *SymbolTable {
	return sc.tables[0]
}

// ExistsInOuter walks the enclosing scopes, innermost first, excluding
// the current one. While a shadow table is in force the whole stack is
// "outer". Absent names yield the ERROR-token sentinel.
func (sc *Scope) ExistsInOuter(t lexer.Token) Symbol {
	start := len(sc.tables) - 2
	if sc.shadow != nil {
		start = len(sc.tables) - 1
	}
	for i := start; i >= 0; i-- {
		result := sc.tables[i].Retrieve(t)
		if result.Token.Type != lexer.TokenError {
			return result
		}
	}
	return notFound()
}

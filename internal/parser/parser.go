package parser

import (
	"strconv"
	"strings"

	"github.com/rtmath/Crom/internal/errors"
	"github.com/rtmath/Crom/internal/lexer"
	"github.com/rtmath/Crom/internal/symbols"
	"github.com/rtmath/Crom/internal/value"
)

type precedence int

const (
	precEOF        precedence = -1
	noPrecedence   precedence = 0
	precAssignment precedence = 1
	precTernary    precedence = 2
	precLogical    precedence = 3
	precBitwise    precedence = 4
	precTerm       precedence = 5
	precFactor     precedence = 6
	precUnary      precedence = 7
	precIncDec     precedence = 8
	precSubscript  precedence = 9
)

func precedenceOf(t lexer.TokenType) precedence {
	switch t {
	case lexer.TokenEOF:
		return precEOF
	case lexer.TokenEquality, lexer.TokenNotEqual, lexer.TokenAnd, lexer.TokenOr,
		lexer.TokenLess, lexer.TokenGreater:
		return precLogical
	case lexer.TokenCaret, lexer.TokenAmpersand, lexer.TokenPipe,
		lexer.TokenLeftShift, lexer.TokenRightShift:
		return precBitwise
	case lexer.TokenPlus, lexer.TokenMinus:
		return precTerm
	case lexer.TokenStar, lexer.TokenSlash, lexer.TokenPercent:
		return precFactor
	case lexer.TokenPlusPlus, lexer.TokenMinusMinus:
		return precIncDec
	case lexer.TokenLBracket:
		return precSubscript
	}
	return noPrecedence
}

type parseFn func(canAssign bool) *Node

// Parser drives the lexer token by token with a two-token lookahead,
// which is exactly enough to tell a function declaration from a call.
type Parser struct {
	scanner *lexer.Scanner

	current   lexer.Token
	next      lexer.Token
	afterNext lexer.Token

	scope *symbols.Scope

	Errors []error

	file        string
	sourceLines []string
	aborted     bool
}

func New(source string) *Parser {
	global := symbols.NewSymbolTable()
	return &Parser{
		scanner: lexer.NewScanner(source),
		scope:   symbols.NewScope(global),
	}
}

func NewWithFile(source, file string) *Parser {
	p := New(source)
	p.scanner = lexer.NewScannerWithFile(source, file)
	p.file = file
	p.sourceLines = strings.Split(source, "\n")
	return p
}

// Globals exposes the outermost symbol table, populated during BuildAST.
func (p *Parser) Globals() *symbols.SymbolTable {
	return p.scope.Global()
}

// BuildAST parses the whole source into a chain of statements hanging
// off a START node. Diagnostics accumulate in p.Errors; recovery resumes
// at statement boundaries. A lex error aborts the parse outright.
func (p *Parser) BuildAST() *Node {
	root := NewNodeWithArity(NodeStart, nil, nil, nil, BinaryArity, symbols.NoAnnotation())

	if !p.prime() {
		return root
	}

	current := root
	for !p.aborted && !p.match(lexer.TokenEOF) {
		stmt := p.parseStatement()
		if stmt == nil {
			continue
		}

		next := NewNodeWithArity(NodeChain, nil, nil, nil, BinaryArity, symbols.NoAnnotation())
		current.Nodes[Left] = stmt
		current.Nodes[Right] = next
		current = next
	}

	return root
}

// prime performs the two advances that load the lookahead window.
// Parser.current stays zeroed; the first advance inside parsing makes
// it hold the first real token.
func (p *Parser) prime() (ok bool) {
	defer p.recoverStatement(func(*Node) {})
	p.advance()
	p.advance()
	return !p.aborted
}

func (p *Parser) parseStatement() (n *Node) {
	defer p.recoverStatement(func(recovered *Node) { n = recovered })
	return p.statement(false)
}

// recoverStatement converts a raised diagnostic into statement-boundary
// recovery. Internal errors are compiler bugs and keep unwinding.
func (p *Parser) recoverStatement(set func(*Node)) {
	r := recover()
	if r == nil {
		return
	}

	err, isCrom := r.(*errors.CromError)
	if !isCrom || err.Kind == errors.Internal {
		panic(r)
	}
	if err.Kind == errors.Lexical {
		p.aborted = true
	} else {
		p.synchronize()
	}
	set(nil)
}

// synchronize skips ahead to a statement boundary.
func (p *Parser) synchronize() {
	for p.next.Type != lexer.TokenEOF {
		if p.next.Type == lexer.TokenError {
			p.Errors = append(p.Errors, p.lexError(p.next))
			p.aborted = true
			return
		}
		if p.current.Type == lexer.TokenSemicolon {
			return
		}
		switch p.next.Type {
		case lexer.TokenIf, lexer.TokenWhile, lexer.TokenFor,
			lexer.TokenBreak, lexer.TokenContinue, lexer.TokenReturn,
			lexer.TokenEnum, lexer.TokenStruct, lexer.TokenRCurly:
			return
		}
		if (lexer.Token{Type: p.next.Type}).IsTypeKeyword() {
			return
		}
		p.rawAdvance()
	}
}

/* --- Token plumbing --- */

func (p *Parser) rawAdvance() {
	p.current = p.next
	p.next = p.afterNext
	p.afterNext = p.scanner.ScanToken()
}

func (p *Parser) advance() {
	p.rawAdvance()

	if p.next.Type != lexer.TokenError {
		return
	}

	err := p.lexError(p.next)
	p.Errors = append(p.Errors, err)
	panic(err)
}

func (p *Parser) lexError(t lexer.Token) *errors.CromError {
	err := errors.New(errors.Lexical, t.Lexeme, t.File, t.Line, t.Column)
	return p.withSource(err, t)
}

func (p *Parser) check(t lexer.TokenType) bool {
	return p.next.Type == t
}

func (p *Parser) checkAfterNext(t lexer.TokenType) bool {
	return p.afterNext.Type == t
}

func (p *Parser) match(t lexer.TokenType) bool {
	if !p.check(t) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) consume(t lexer.TokenType, format string, args ...interface{}) {
	if p.check(t) {
		p.advance()
		return
	}
	p.errorAt(p.next, errors.Syntax, format, args...)
}

func (p *Parser) consumeAnyType(allowVoid bool, format string, args ...interface{}) {
	if p.next.IsTypeKeyword() || (allowVoid && p.check(lexer.TokenVoid)) {
		p.advance()
		return
	}
	p.errorAt(p.next, errors.Syntax, format, args...)
}

func (p *Parser) consumeAnyLiteral(format string, args ...interface{}) {
	if p.next.IsLiteral() {
		p.advance()
		return
	}
	p.errorAt(p.next, errors.Syntax, format, args...)
}

/* --- Diagnostics --- */

func (p *Parser) withSource(err *errors.CromError, t lexer.Token) *errors.CromError {
	if p.sourceLines != nil && t.Line > 0 && t.Line <= len(p.sourceLines) {
		return err.WithSource(p.sourceLines[t.Line-1])
	}
	return err
}

// errorAt records a diagnostic at the token and unwinds to the nearest
// statement boundary.
func (p *Parser) errorAt(t lexer.Token, kind errors.Kind, format string, args ...interface{}) {
	err := p.withSource(errors.Newf(kind, t.File, t.Line, t.Column, format, args...), t)
	p.Errors = append(p.Errors, err)
	panic(err)
}

// errorAtContinue records a diagnostic without abandoning the current
// statement; used where parsing can proceed, e.g. literal overflow.
func (p *Parser) errorAtContinue(t lexer.Token, kind errors.Kind, format string, args ...interface{}) {
	err := p.withSource(errors.Newf(kind, t.File, t.Line, t.Column, format, args...), t)
	p.Errors = append(p.Errors, err)
}

/* --- Pratt dispatch --- */

func (p *Parser) prefixRule(t lexer.TokenType) parseFn {
	switch t {
	case lexer.TokenI8, lexer.TokenI16, lexer.TokenI32, lexer.TokenI64,
		lexer.TokenU8, lexer.TokenU16, lexer.TokenU32, lexer.TokenU64,
		lexer.TokenF32, lexer.TokenF64,
		lexer.TokenCharType, lexer.TokenStringType,
		lexer.TokenBoolType, lexer.TokenVoid:
		return p.typeSpecifier
	case lexer.TokenEnum:
		return p.enumDecl
	case lexer.TokenStruct:
		return p.structDecl
	case lexer.TokenBreak:
		return p.breakStmt
	case lexer.TokenContinue:
		return p.continueStmt
	case lexer.TokenReturn:
		return p.returnStmt
	case lexer.TokenIdent:
		return p.identifier
	case lexer.TokenIntLit, lexer.TokenHexLit, lexer.TokenBinaryLit,
		lexer.TokenFloatLit, lexer.TokenCharLit, lexer.TokenBoolLit,
		lexer.TokenStringLit, lexer.TokenEnumLit:
		return p.literal
	case lexer.TokenLParen:
		return p.parens
	case lexer.TokenNot, lexer.TokenMinus, lexer.TokenTilde,
		lexer.TokenPlusPlus, lexer.TokenMinusMinus:
		return p.unary
	}
	return nil
}

func (p *Parser) infixRule(t lexer.TokenType) parseFn {
	switch t {
	case lexer.TokenLBracket:
		return p.arraySubscript
	case lexer.TokenEquality, lexer.TokenNotEqual, lexer.TokenAnd,
		lexer.TokenOr, lexer.TokenLess, lexer.TokenGreater,
		lexer.TokenPlus, lexer.TokenMinus, lexer.TokenStar,
		lexer.TokenSlash, lexer.TokenPercent,
		lexer.TokenCaret, lexer.TokenAmpersand, lexer.TokenPipe,
		lexer.TokenLeftShift, lexer.TokenRightShift:
		return p.binary
	}
	return nil
}

// parse is the Pratt loop: one prefix dispatch, then infix rules for as
// long as the lookahead binds at least as tightly as minPrec.
func (p *Parser) parse(minPrec precedence) *Node {
	if minPrec == precEOF {
		return nil
	}
	p.advance()

	prefix := p.prefixRule(p.current.Type)
	if prefix == nil {
		p.errorAt(p.current, errors.Syntax, "No expression may begin with '%s'", p.current.Lexeme)
	}

	canAssign := minPrec <= precAssignment
	node := prefix(canAssign)

	for minPrec <= precedenceOf(p.next.Type) {
		p.advance()

		infix := p.infixRule(p.current.Type)
		if infix == nil {
			p.errorAt(p.current, errors.Syntax, "'%s' cannot appear after an expression", p.current.Lexeme)
		}

		infixNode := infix(canAssign)
		if infixNode == nil {
			p.errorAt(p.current, errors.Syntax, "Malformed expression after '%s'", p.current.Lexeme)
		}
		infixNode.Nodes[Left] = node
		node = infixNode
	}

	return node
}

func (p *Parser) expression() *Node {
	n := p.parse(precAssignment)
	foldConstants(n)
	return n
}

/* --- Statements --- */

// statement parses one statement. A trailing ';' is required after
// expression statements but optional after the self-delimiting enum,
// struct and function definitions.
func (p *Parser) statement(unused bool) *Node {
	if p.match(lexer.TokenIf) {
		return p.ifStmt(unused)
	}
	if p.match(lexer.TokenWhile) {
		return p.whileStmt(unused)
	}
	if p.match(lexer.TokenFor) {
		return p.forStmt(unused)
	}

	expr := p.expression()

	if expr.Annotation.Ostensible == symbols.KindEnum ||
		expr.Annotation.Ostensible == symbols.KindStruct ||
		expr.Annotation.IsFunction {
		p.match(lexer.TokenSemicolon)
	} else {
		p.consume(lexer.TokenSemicolon,
			"A ';' is expected after an expression statement, got '%s' instead", p.next.Lexeme)
	}

	return expr
}

// block parses a chain of statements up to the closing '}'. Statements
// hang off each chain link's LEFT; the RIGHT always points at the next
// link, ending in one empty chain node.
func (p *Parser) block() *Node {
	n := NewNodeWithArity(NodeChain, nil, nil, nil, BinaryArity, symbols.NoAnnotation())
	current := n

	for !p.check(lexer.TokenRCurly) && !p.check(lexer.TokenEOF) {
		current.Nodes[Left] = p.statement(false)
		current.Nodes[Right] = NewNodeWithArity(NodeChain, nil, nil, nil, BinaryArity, symbols.NoAnnotation())
		current = current.Nodes[Right]
	}

	p.consume(lexer.TokenRCurly, "Expected '}' after block, got '%s' instead", p.next.Lexeme)

	return n
}

func (p *Parser) scopedBlock() *Node {
	p.scope.Begin()
	defer p.scope.End()
	return p.block()
}

func (p *Parser) ifStmt(bool) *Node {
	p.consume(lexer.TokenLParen, "Expected '(' after 'if', got '%s' instead", p.next.Lexeme)
	condition := p.expression()
	p.consume(lexer.TokenRParen, "Expected ')' after if condition, got '%s' instead", p.next.Lexeme)

	p.consume(lexer.TokenLCurly, "Expected '{', got '%s' instead", p.next.Lexeme)
	bodyIfTrue := p.scopedBlock()

	var bodyIfFalse *Node
	if p.match(lexer.TokenElse) {
		if p.match(lexer.TokenIf) {
			bodyIfFalse = p.ifStmt(false)
		} else {
			p.consume(lexer.TokenLCurly, "Expected block starting with '{' after 'else', got '%s' instead", p.next.Lexeme)
			bodyIfFalse = p.scopedBlock()
		}
	}

	return NewNode(NodeIf, condition, bodyIfTrue, bodyIfFalse, symbols.NoAnnotation())
}

func (p *Parser) ternaryIf(condition *Node) *Node {
	p.consume(lexer.TokenQuestion, "Expected '?' after ternary condition, got '%s' instead", p.next.Lexeme)
	ifTrue := p.expression()

	p.consume(lexer.TokenColonSeparator, "Expected '::' after ternary branch, got '%s' instead", p.next.Lexeme)
	ifFalse := p.expression()

	return NewNode(NodeIf, condition, ifTrue, ifFalse, symbols.NoAnnotation())
}

func (p *Parser) whileStmt(bool) *Node {
	condition := p.expression()
	p.consume(lexer.TokenLCurly, "Expected '{' after while condition, got '%s' instead", p.next.Lexeme)
	body := p.scopedBlock()
	p.match(lexer.TokenSemicolon)
	return NewNode(NodeWhile, condition, nil, body, symbols.NoAnnotation())
}

// forStmt desugars for(init; cond; post) { body } into
// statement(init); while(cond) { body; post } by splicing post onto the
// tail of the body chain. One scope covers the whole construct.
func (p *Parser) forStmt(bool) *Node {
	p.consume(lexer.TokenLParen, "Expected '(' after 'for', got '%s' instead", p.next.Lexeme)

	p.scope.Begin()
	defer p.scope.End()

	initialization := p.statement(false)
	condition := p.statement(false)
	afterLoop := p.expression()

	p.consume(lexer.TokenRParen, "Expected ')' after for clauses, got '%s' instead", p.next.Lexeme)
	p.consume(lexer.TokenLCurly, "Expected '{' after for clauses, got '%s' instead", p.next.Lexeme)
	body := p.block()

	tail := body
	for tail.Nodes[Right] != nil {
		tail = tail.Nodes[Right]
	}
	tail.Nodes[Left] = afterLoop
	tail.Nodes[Right] = NewNodeWithArity(NodeChain, nil, nil, nil, BinaryArity, symbols.NoAnnotation())

	whileNode := NewNode(NodeWhile, condition, nil, body, symbols.NoAnnotation())
	return NewNode(NodeStatement, initialization, nil, whileNode, symbols.NoAnnotation())
}

func (p *Parser) breakStmt(bool) *Node {
	if !p.check(lexer.TokenSemicolon) {
		p.errorAt(p.next, errors.Syntax, "Expected ';' after break, got '%s' instead", p.next.Lexeme)
	}
	return NewNode(NodeBreak, nil, nil, nil, symbols.NoAnnotation())
}

func (p *Parser) continueStmt(bool) *Node {
	if !p.check(lexer.TokenSemicolon) {
		p.errorAt(p.next, errors.Syntax, "Expected ';' after continue, got '%s' instead", p.next.Lexeme)
	}
	return NewNode(NodeContinue, nil, nil, nil, symbols.NoAnnotation())
}

func (p *Parser) returnStmt(bool) *Node {
	var expr *Node
	annotation := symbols.AnnotateType(lexer.TokenVoid)

	if !p.check(lexer.TokenSemicolon) {
		expr = p.expression()
		annotation = expr.Annotation
	}

	return NewNode(NodeReturn, expr, nil, nil, annotation)
}

/* --- Expressions --- */

// typeSpecifier handles a declaration introduced by a type keyword,
// optionally with a fixed array size, then re-enters identifier() so
// that an initializing '=' is picked up normally.
func (p *Parser) typeSpecifier(bool) *Node {
	typeToken := p.current
	isArray := false
	arraySize := 0

	if p.match(lexer.TokenLBracket) {
		if !p.match(lexer.TokenIntLit) {
			p.errorAt(p.next, errors.Syntax, "Expected array size after '[', got '%s' instead", p.next.Lexeme)
		}

		size, err := strconv.Atoi(p.current.Lexeme)
		if err != nil {
			p.errorAt(p.current, errors.Overflow, "Array size '%s' out of range", p.current.Lexeme)
		}
		if size < 1 {
			p.errorAt(p.current, errors.Syntax, "Array size must be at least 1, got %d", size)
		}
		arraySize = size

		p.consume(lexer.TokenRBracket, "Expected ']' after '%s', got '%s' instead",
			p.current.Lexeme, p.next.Lexeme)

		isArray = true
	}

	if p.check(lexer.TokenIdent) {
		if p.scope.Current().Has(p.next) {
			s := p.scope.Current().Retrieve(p.next)
			p.errorAt(p.next, errors.Redeclared,
				"Redeclaration of identifier '%s', previously declared on line %d",
				p.next.Lexeme, s.Annotation.DeclaredOnLine)
		}

		a := symbols.AnnotateType(typeToken.Type)
		if isArray {
			a = symbols.ArrayAnnotation(typeToken.Type, arraySize)
		}
		p.scope.Current().Add(symbols.NewSymbol(p.next, a, symbols.DeclDeclared))
	}

	p.consume(lexer.TokenIdent, "Expected identifier after type '%s', got '%s' instead",
		typeToken.Lexeme, p.next.Lexeme)

	return p.identifier(true)
}

// identifier resolves the name in the current (possibly shadowed) table
// first, then the enclosing scopes, and dispatches on what follows:
// '(' for declaration-or-call, '[' for subscripting, postfix ++/--,
// '=' or a terse assignment, or plain read access.
func (p *Parser) identifier(canAssign bool) *Node {
	identToken := p.current
	sym := p.scope.Current().Retrieve(identToken)
	inTable := p.scope.Current().Has(identToken)
	var arrayIndex *Node

	if p.match(lexer.TokenLParen) {
		isDeclaration := p.next.IsTypeKeyword() ||
			(p.check(lexer.TokenRParen) && p.checkAfterNext(lexer.TokenColonSeparator))

		if isDeclaration {
			if inTable && sym.State != symbols.DeclDeclared {
				p.errorAt(identToken, errors.Redeclared,
					"Function '%s' has been redeclared, original declaration on line %d",
					identToken.Lexeme, sym.Annotation.DeclaredOnLine)
			}

			if !inTable {
				p.scope.Current().Add(symbols.NewSymbol(identToken,
					symbols.FunctionAnnotation(lexer.TokenVoid), symbols.DeclUninitialized))
			} else if !sym.Annotation.IsFunction {
				// Declared a moment ago with a leading return-type
				// keyword; promote to a function symbol so it gets a
				// parameter table. It starts out UNINITIALIZED, like the
				// bare form, since no earlier declaration of it exists.
				a := sym.Annotation
				a.IsFunction = true
				p.scope.Current().Add(symbols.NewSymbol(identToken, a, symbols.DeclUninitialized))
			}
			sym = p.scope.Current().Retrieve(identToken)

			return p.functionDeclaration(sym)
		}

		if !inTable {
			outer := p.scope.ExistsInOuter(identToken)
			if outer.Token.Type == lexer.TokenError {
				p.errorAt(identToken, errors.Undeclared, "Undeclared function '%s'", identToken.Lexeme)
			}
			sym = outer
		}
		if sym.State != symbols.DeclDefined {
			p.errorAt(identToken, errors.Undefined, "Can't call undefined function '%s'", identToken.Lexeme)
		}

		return p.functionCall(identToken)
	}

	if !inTable {
		outer := p.scope.ExistsInOuter(identToken)
		if outer.Token.Type == lexer.TokenError {
			p.errorAt(identToken, errors.Undeclared, "Undeclared identifier '%s'", identToken.Lexeme)
		}
		sym = outer
	}

	if p.match(lexer.TokenLBracket) {
		arrayIndex = p.arraySubscript(false)
	}

	if p.match(lexer.TokenPlusPlus) {
		if sym.State != symbols.DeclDefined {
			p.errorAt(identToken, errors.Undefined,
				"Cannot increment undefined variable '%s'", identToken.Lexeme)
		}
		return NewNodeFromToken(NodePostfixIncrement, nil, nil, nil, identToken, sym.Annotation)
	}

	if p.match(lexer.TokenMinusMinus) {
		if sym.State != symbols.DeclDefined {
			p.errorAt(identToken, errors.Undefined,
				"Cannot decrement undefined variable '%s'", identToken.Lexeme)
		}
		return NewNodeFromToken(NodePostfixDecrement, nil, nil, nil, identToken, sym.Annotation)
	}

	if p.match(lexer.TokenEqual) {
		if !canAssign {
			p.errorAt(identToken, errors.Syntax, "Cannot assign to identifier '%s' here", identToken.Lexeme)
		}

		rhs := p.expression()
		p.checkAssignedKind(sym, rhs)

		stored := p.scope.Current().Add(symbols.NewSymbol(identToken, sym.Annotation, symbols.DeclDefined))
		n := NewNodeFromSymbol(NodeAssignment, nil, arrayIndex, rhs, stored)
		n.Value = rhs.Value
		return n
	}

	if p.next.IsTerseAssignment() {
		p.advance()
		if sym.State != symbols.DeclDefined {
			p.errorAt(identToken, errors.Undefined,
				"Cannot perform a terse assignment on undefined variable '%s'", identToken.Lexeme)
		}

		terse := p.terseAssignment()
		terse.Nodes[Left] = NewNodeFromSymbol(NodeIdentifier, nil, nil, nil, sym)
		return terse
	}

	nodeType := NodeIdentifier
	if sym.State == symbols.DeclDeclared {
		nodeType = NodeDeclaration
	}
	return NewNodeFromToken(nodeType, nil, arrayIndex, nil, identToken, sym.Annotation)
}

// checkAssignedKind flags an initializer whose constant-folded kind
// can't inhabit the declared type, e.g. bool check = 2;
func (p *Parser) checkAssignedKind(sym symbols.Symbol, rhs *Node) {
	v := rhs.Value
	if v.Kind == value.VNone || v.Kind == value.VOverflow {
		return
	}

	declared := sym.Annotation.Ostensible
	if declared == symbols.KindNone || declared == symbols.KindStruct {
		return
	}

	if !kindsAgree(declared, v.Kind) {
		p.errorAtContinue(rhs.Token, errors.TypeDisagreement,
			"Type disagreement: cannot assign %s value to '%s' declared as %s",
			v.Kind, sym.Token.Lexeme, declared)
	}
}

func kindsAgree(declared symbols.Kind, v value.Kind) bool {
	switch declared {
	case symbols.KindBool:
		return v == value.VBool
	case symbols.KindInt, symbols.KindEnum:
		return v == value.VInt || v == value.VUint
	case symbols.KindFloat:
		return v == value.VFloat
	case symbols.KindChar:
		return v == value.VChar
	case symbols.KindString:
		return v == value.VString
	}
	return true
}

func (p *Parser) unary(bool) *Node {
	operator := p.current
	operand := p.parse(precUnary)

	switch operator.Type {
	case lexer.TokenPlusPlus:
		return NewNodeFromToken(NodePrefixIncrement, operand, nil, nil, operator, symbols.NoAnnotation())
	case lexer.TokenMinusMinus:
		return NewNodeFromToken(NodePrefixDecrement, operand, nil, nil, operator, symbols.NoAnnotation())
	case lexer.TokenNot, lexer.TokenMinus, lexer.TokenTilde:
		return NewNodeFromToken(NodeUnaryOp, operand, nil, nil, operator, symbols.NoAnnotation())
	}

	p.errorAt(operator, errors.Syntax, "Unknown unary operator '%s'", operator.Lexeme)
	return nil
}

func (p *Parser) binary(bool) *Node {
	operator := p.current
	right := p.parse(precedenceOf(operator.Type) + 1)
	return NewNodeFromToken(NodeBinaryOp, nil, nil, right, operator, symbols.NoAnnotation())
}

func (p *Parser) terseAssignment() *Node {
	operator := p.current
	right := p.parse(precedenceOf(operator.Type) + 1)
	return NewNodeFromToken(NodeTerseAssignment, nil, nil, right, operator, symbols.NoAnnotation())
}

// literal wraps the current token into a LITERAL node; numeric literals
// are decoded eagerly so overflow is diagnosed at the token.
func (p *Parser) literal(bool) *Node {
	a := symbols.AnnotateType(p.current.Type)
	n := NewNodeFromToken(NodeLiteral, nil, nil, nil, p.current, a)

	switch p.current.Type {
	case lexer.TokenIntLit, lexer.TokenHexLit, lexer.TokenBinaryLit,
		lexer.TokenFloatLit, lexer.TokenCharLit, lexer.TokenBoolLit,
		lexer.TokenStringLit:
		v, err := value.New(a, p.current)
		if err != nil {
			p.Errors = append(p.Errors, err)
		}
		n.Value = v
	}

	return n
}

func (p *Parser) parens(bool) *Node {
	n := p.expression()
	p.consume(lexer.TokenRParen, "Missing ')' after expression")

	if p.check(lexer.TokenQuestion) {
		return p.ternaryIf(n)
	}

	return n
}

// arraySubscript parses the bracketed index: an identifier (which must
// be defined) or an int literal.
func (p *Parser) arraySubscript(bool) *Node {
	var n *Node

	if p.match(lexer.TokenIdent) {
		sym := p.scope.Current().Retrieve(p.current)
		if !p.scope.Current().Has(p.current) {
			outer := p.scope.ExistsInOuter(p.current)
			if outer.Token.Type == lexer.TokenError {
				p.errorAt(p.current, errors.Undeclared,
					"Can't subscript with undeclared identifier '%s'", p.current.Lexeme)
			}
			sym = outer
		}

		if sym.State != symbols.DeclDefined {
			p.errorAt(p.current, errors.Uninitialized,
				"Can't subscript with uninitialized identifier '%s'", p.current.Lexeme)
		}

		n = NewNodeFromSymbol(NodeArraySubscript, nil, nil, nil, sym)
	} else if p.match(lexer.TokenIntLit) {
		n = NewNodeFromToken(NodeArraySubscript, nil, nil, nil, p.current,
			symbols.AnnotateType(p.current.Type))
	}

	p.consume(lexer.TokenRBracket, "Expected ']' after subscript, got '%s' instead", p.next.Lexeme)

	return n
}

/* --- Enums and structs --- */

func (p *Parser) enumDecl(bool) *Node {
	p.consume(lexer.TokenIdent, "Expected identifier after 'enum', got '%s' instead", p.next.Lexeme)
	p.scope.Current().Add(symbols.NewSymbol(p.current,
		symbols.AnnotateType(lexer.TokenEnum), symbols.DeclDeclared))

	enumName := p.identifier(false)
	enumName.Nodes[Left] = p.enumBlock()

	return enumName
}

func (p *Parser) enumBlock() *Node {
	n := NewNodeWithArity(NodeChain, nil, nil, nil, BinaryArity, symbols.NoAnnotation())
	current := n

	p.consume(lexer.TokenLCurly, "Expected '{' after enum declaration, got '%s' instead", p.next.Lexeme)

	for !p.check(lexer.TokenRCurly) && !p.check(lexer.TokenEOF) {
		if p.scope.Current().Has(p.next) {
			existing := p.scope.Current().Retrieve(p.next)
			p.errorAt(p.next, errors.Redeclared,
				"Enum identifier '%s' already exists, declared on line %d",
				p.next.Lexeme, existing.Annotation.DeclaredOnLine)
		}

		p.consume(lexer.TokenIdent, "Expected identifier in enum body, got '%s' instead", p.next.Lexeme)
		p.scope.Current().Add(symbols.NewSymbol(p.current,
			symbols.AnnotateType(lexer.TokenEnumLit), symbols.DeclDefined))

		current.Nodes[Left] = p.enumIdentifier(true)
		current.Nodes[Right] = NewNodeWithArity(NodeChain, nil, nil, nil, BinaryArity, symbols.NoAnnotation())
		current = current.Nodes[Right]

		p.match(lexer.TokenComma)
	}

	p.consume(lexer.TokenRCurly, "Expected '}' after enum block, got '%s' instead", p.next.Lexeme)

	return n
}

func (p *Parser) enumIdentifier(canAssign bool) *Node {
	identToken := p.current
	sym := p.scope.Current().Retrieve(identToken)

	if !p.scope.Current().Has(identToken) {
		p.errorAt(identToken, errors.Undeclared, "Undeclared identifier '%s'", identToken.Lexeme)
	}

	if p.match(lexer.TokenEqual) {
		if !canAssign {
			p.errorAt(identToken, errors.Syntax, "Cannot assign to identifier '%s' here", identToken.Lexeme)
		}

		rhs := p.expression()
		stored := p.scope.Current().Add(symbols.NewSymbol(identToken, sym.Annotation, symbols.DeclDefined))
		n := NewNodeFromSymbol(NodeAssignment, nil, nil, rhs, stored)
		n.Value = rhs.Value
		return n
	}

	return NewNodeFromToken(NodeEnumIdentifier, nil, nil, nil, identToken,
		symbols.AnnotateType(lexer.TokenEnumLit))
}

// structDecl parses a struct definition. Field declarations land in the
// struct's own field table via the shadow slot, not in the scope stack.
func (p *Parser) structDecl(bool) *Node {
	p.consume(lexer.TokenIdent, "Expected identifier after 'struct', got '%s' instead", p.next.Lexeme)
	identToken := p.current

	if p.scope.Current().Has(identToken) {
		existing := p.scope.Current().Retrieve(identToken)
		p.errorAt(identToken, errors.Redeclared,
			"Struct '%s' is already in symbol table, declared on line %d",
			identToken.Lexeme, existing.Annotation.DeclaredOnLine)
	}
	identSym := p.scope.Current().Add(symbols.NewSymbol(identToken,
		symbols.AnnotateType(lexer.TokenStruct), symbols.DeclDeclared))

	p.scope.Shadow(identSym.StructFields)
	defer p.scope.Unshadow()

	p.consume(lexer.TokenLCurly, "Expected '{' after struct declaration, got '%s' instead", p.next.Lexeme)

	n := NewNodeWithArity(NodeChain, nil, nil, nil, BinaryArity, symbols.NoAnnotation())
	current := n
	hasEmptyBody := true

	for !p.check(lexer.TokenRCurly) && !p.check(lexer.TokenEOF) {
		hasEmptyBody = false
		current.Nodes[Left] = p.statement(false)
		current.Nodes[Right] = NewNodeWithArity(NodeChain, nil, nil, nil, BinaryArity, symbols.NoAnnotation())
		current = current.Nodes[Right]
	}

	p.consume(lexer.TokenRCurly, "Expected '}' after struct block, got '%s' instead", p.next.Lexeme)

	p.scope.Unshadow()

	if hasEmptyBody {
		p.errorAt(identSym.Token, errors.EmptyBody,
			"Struct '%s' has empty body", identSym.Token.Lexeme)
	}

	identSym.State = symbols.DeclDefined
	stored := p.scope.Current().Add(identSym)
	return NewNodeFromSymbol(NodeIdentifier, n, nil, nil, stored)
}

/* --- Functions --- */

// functionParams fills the function's own parameter table; parameters
// never land in the enclosing scope stack.
func (p *Parser) functionParams(fn symbols.Symbol) *Node {
	params := NewNode(NodeFunctionParam, nil, nil, nil, symbols.NoAnnotation())
	current := params

	for !p.check(lexer.TokenRParen) && !p.check(lexer.TokenEOF) {
		p.consumeAnyType(false, "Expected a type, got '%s' instead", p.next.Lexeme)
		typeToken := p.current

		p.consume(lexer.TokenIdent, "Expected identifier after '%s', got '%s' instead",
			typeToken.Lexeme, p.next.Lexeme)
		identToken := p.current

		// A forward-declared function re-parses its parameter list when
		// the definition arrives; only then is a duplicate tolerated.
		declaredFn := p.scope.Current().Retrieve(fn.Token)
		if fn.FnParams.Has(identToken) && declaredFn.State != symbols.DeclDeclared {
			p.errorAt(identToken, errors.Redeclared,
				"Duplicate parameter name '%s'", identToken.Lexeme)
		}

		stored := fn.FnParams.Add(symbols.NewSymbol(identToken,
			symbols.AnnotateType(typeToken.Type), symbols.DeclFnParam))
		p.scope.Current().RegisterFnParam(fn, stored)

		current.Annotation = stored.Annotation
		current.Token = identToken

		if p.match(lexer.TokenComma) || !p.check(lexer.TokenRParen) {
			current.Nodes[Left] = NewNode(NodeFunctionParam, nil, nil, nil, symbols.NoAnnotation())
			current = current.Nodes[Left]
		}
	}

	return params
}

func (p *Parser) functionReturnType() *Node {
	p.consume(lexer.TokenRParen, "')' required after function declaration")
	p.consume(lexer.TokenColonSeparator, "'::' required after function declaration")
	p.consumeAnyType(true, "Expected a return type after '::', got '%s' instead", p.next.Lexeme)

	returnType := p.current

	return NewNodeFromToken(NodeFunctionReturnType, nil, nil, nil, returnType,
		symbols.AnnotateType(returnType.Type))
}

// functionBody parses the braced body with symbol lookup redirected to
// the parameter table. A bodiless declaration returns nil.
func (p *Parser) functionBody(fnParams *symbols.SymbolTable) *Node {
	if p.check(lexer.TokenSemicolon) {
		return nil
	}

	p.consume(lexer.TokenLCurly, "Expected '{' to begin function body, got '%s' instead", p.next.Lexeme)

	body := NewNodeWithArity(NodeFunctionBody, nil, nil, nil, BinaryArity, symbols.NoAnnotation())
	current := body

	p.scope.Shadow(fnParams)
	defer p.scope.Unshadow()

	for !p.check(lexer.TokenRCurly) && !p.check(lexer.TokenEOF) {
		current.Nodes[Left] = p.statement(false)
		current.Nodes[Right] = NewNodeWithArity(NodeChain, nil, nil, nil, BinaryArity, symbols.NoAnnotation())
		current = current.Nodes[Right]
	}

	p.scope.Unshadow()

	p.consume(lexer.TokenRCurly, "Expected '}' after function body")

	return body
}

func (p *Parser) functionDeclaration(sym symbols.Symbol) *Node {
	params := p.functionParams(sym)
	returnType := p.functionReturnType()
	body := p.functionBody(sym.FnParams)

	if sym.State == symbols.DeclDeclared && body == nil {
		p.errorAt(sym.Token, errors.Redeclared,
			"Double declaration of function '%s' (declared on line %d)",
			sym.Token.Lexeme, sym.Annotation.DeclaredOnLine)
	}

	// Re-fetch: param registration updated the stored symbol.
	sym = p.scope.Current().Retrieve(sym.Token)

	if sym.State != symbols.DeclDeclared {
		annotation := symbols.FunctionAnnotation(returnType.Token.Type)
		annotation.DeclaredOnLine = sym.Annotation.DeclaredOnLine
		sym.Annotation = annotation
	}
	if body == nil {
		sym.State = symbols.DeclDeclared
	} else {
		sym.State = symbols.DeclDefined
	}
	updated := p.scope.Current().Add(sym)

	nodeType := NodeFunction
	if body == nil {
		nodeType = NodeDeclaration
	}
	return NewNodeFromSymbol(nodeType, returnType, params, body, updated)
}

// functionCall parses a comma-separated argument list of identifiers
// (possibly nested calls) and literals. A ',' immediately before ')'
// terminates the list.
func (p *Parser) functionCall(functionName lexer.Token) *Node {
	var args *Node
	current := &args

	for !p.check(lexer.TokenRParen) && !p.check(lexer.TokenEOF) {
		if args == nil {
			args = NewNode(NodeFunctionArgument, nil, nil, nil, symbols.NoAnnotation())
		}

		if p.check(lexer.TokenIdent) {
			p.consume(lexer.TokenIdent, "Expected identifier")
			identToken := p.current

			sym := p.scope.Current().Retrieve(identToken)
			if !p.scope.Current().Has(identToken) {
				outer := p.scope.ExistsInOuter(identToken)
				if outer.Token.Type == lexer.TokenError {
					p.errorAt(identToken, errors.Undeclared,
						"Undeclared identifier '%s' in argument list", identToken.Lexeme)
				}
				sym = outer
			}

			if p.match(lexer.TokenLParen) {
				(*current).Nodes[Left] = p.functionCall(identToken)
			} else {
				(*current).Nodes[Left] = NewNodeFromSymbol(NodeFunctionArgument, nil, nil, nil, sym)
			}
		} else if p.next.IsLiteral() {
			p.consumeAnyLiteral("Expected literal")
			literal := p.current

			(*current).Nodes[Left] = NewNodeFromToken(NodeFunctionArgument, nil, nil, nil,
				literal, symbols.AnnotateType(literal.Type))
		} else {
			p.errorAt(p.next, errors.Syntax,
				"Expected identifier or literal in argument list, got '%s' instead", p.next.Lexeme)
		}

		if p.check(lexer.TokenComma) {
			p.consume(lexer.TokenComma, "")
			if p.check(lexer.TokenRParen) {
				break
			}

			(*current).Nodes[Right] = NewNode(NodeFunctionArgument, nil, nil, nil, symbols.NoAnnotation())
			current = &(*current).Nodes[Right]
		}
	}

	p.consume(lexer.TokenRParen, "Expected ')' after argument list, got '%s' instead", p.next.Lexeme)

	return NewNodeFromToken(NodeFunctionCall, nil, args, nil, functionName, symbols.NoAnnotation())
}

/* --- Constant folding --- */

// foldConstants computes values bottom-up for literal-only subtrees.
// Subtrees it can't evaluate keep V_NONE; operand family mismatches are
// left for the type checker rather than folded.
func foldConstants(n *Node) value.Value {
	if n == nil {
		return value.None()
	}
	if n.Value.Kind != value.VNone {
		return n.Value
	}

	switch n.Type {
	case NodeUnaryOp:
		operand := foldConstants(n.Nodes[Left])
		switch {
		case n.Token.Type == lexer.TokenNot && operand.Kind == value.VBool:
			n.Value = value.Not(operand)
		case n.Token.Type == lexer.TokenMinus && operand.Kind == value.VInt:
			n.Value = value.NewInt(-operand.Int)
		case n.Token.Type == lexer.TokenMinus && operand.Kind == value.VFloat:
			n.Value = value.NewFloat(-operand.Float)
		}

	case NodeBinaryOp:
		left := foldConstants(n.Nodes[Left])
		right := foldConstants(n.Nodes[Right])
		n.Value = foldBinary(n.Token.Type, left, right)
	}

	return n.Value
}

func foldBinary(op lexer.TokenType, left, right value.Value) value.Value {
	if left.Kind != right.Kind {
		return value.None()
	}

	numeric := left.Kind == value.VInt || left.Kind == value.VUint || left.Kind == value.VFloat
	integer := left.Kind == value.VInt || left.Kind == value.VUint
	ordered := numeric || left.Kind == value.VChar
	boolean := left.Kind == value.VBool
	comparable := boolean || ordered || left.Kind == value.VString

	switch op {
	case lexer.TokenPlus:
		if numeric {
			return value.Add(left, right)
		}
	case lexer.TokenMinus:
		if numeric {
			return value.Sub(left, right)
		}
	case lexer.TokenStar:
		if numeric {
			return value.Mul(left, right)
		}
	case lexer.TokenSlash:
		if numeric && !isZero(right) {
			return value.Div(left, right)
		}
	case lexer.TokenPercent:
		if integer && !isZero(right) {
			return value.Mod(left, right)
		}
	case lexer.TokenEquality:
		if comparable {
			return value.Equal(left, right)
		}
	case lexer.TokenNotEqual:
		if comparable {
			return value.Not(value.Equal(left, right))
		}
	case lexer.TokenLess:
		if ordered {
			return value.Less(left, right)
		}
	case lexer.TokenGreater:
		if ordered {
			return value.Greater(left, right)
		}
	case lexer.TokenAnd:
		if boolean {
			return value.LogicalAnd(left, right)
		}
	case lexer.TokenOr:
		if boolean {
			return value.LogicalOr(left, right)
		}
	}

	return value.None()
}

func isZero(v value.Value) bool {
	switch v.Kind {
	case value.VInt:
		return v.Int == 0
	case value.VUint:
		return v.Uint == 0
	case value.VFloat:
		return v.Float == 0
	}
	return false
}

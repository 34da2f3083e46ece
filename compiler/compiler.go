// Package compiler implements the single-pass Pratt parser: it consumes
// tokens from a lexer.Lexer and emits bytecode directly into a
// chunk.Chunk, with no intermediate AST. The parsing-rule table and
// parsePrecedence driver keep informatter-nilan's shape (a
// map[token.Kind]parseRule indexed dispatch); locals, jump patching,
// and short-circuit and_/or_ are grounded on rami3l/golox's vm/compiler.go,
// which nilan's own legacy compiler never grew.
package compiler

import (
	"math"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/josharian/intern"
	"github.com/sirupsen/logrus"

	"nilan/chunk"
	"nilan/lexer"
	"nilan/token"
	"nilan/value"
)

// Precedence levels, lowest to highest.
type Precedence int

const (
	PrecNone Precedence = iota
	PrecAssignment
	PrecOr
	PrecAnd
	PrecEquality
	PrecComparison
	PrecTerm
	PrecFactor
	PrecUnary
	PrecPrimary
)

// ParseFunc is a method expression: the Compiler receiver is passed
// explicitly, and prefix and infix handlers take canAssign so assignment
// targets can be validated in parsePrecedence.
type ParseFunc func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix     ParseFunc
	infix      ParseFunc
	precedence Precedence
}

// maxLocalCount mirrors the 256-slot fixed local array spec.md's data
// model calls for; the GetLocal/SetLocal operand is a single byte.
const maxLocalCount = 256

// local is compile-time-only bookkeeping: a name token plus the scope
// depth it was declared at. depth == uninitialized marks a local whose
// initializer is still being compiled.
type local struct {
	name  token.Token
	depth int
}

const uninitialized = -1

// Compiler holds the whole of the single-pass parser's state: the
// token cursor, the chunk being emitted into, panic-mode error
// recovery, and the local-variable scope stack.
type Compiler struct {
	lex *lexer.Lexer

	previous token.Token
	current  token.Token

	chunk *chunk.Chunk

	hadError  bool
	panicMode bool
	errors    *multierror.Error

	locals     []local
	scopeDepth int

	debug bool
}

// Debug enables post-compile chunk disassembly logging via logrus.
// Never affects the emitted bytecode or the spec-mandated stdout/stderr
// error formats — purely a side-channel trace, as golox's endCompiler
// gates its own disassembly dump on a debug flag.
func (c *Compiler) Debug(on bool) { c.debug = on }

// New returns a Compiler ready to compile source text.
func New() *Compiler {
	return &Compiler{}
}

// Compile consumes source in full and returns the resulting Chunk. A
// non-nil error unwraps (via multierror) to one *CompileError per
// diagnostic collected across the whole run; compilation continues
// under panic-mode suppression rather than aborting at the first error,
// per spec.md §7.
func (c *Compiler) Compile(source string) (*chunk.Chunk, error) {
	c.lex = lexer.New(source)
	c.chunk = chunk.New()
	c.hadError = false
	c.panicMode = false
	c.errors = nil
	c.locals = nil
	c.scopeDepth = 0

	c.advance()
	for !c.check(token.Eof) {
		c.declaration()
	}
	c.emitReturn()

	if c.debug {
		logrus.Debugln(c.chunk.Disassemble("script"))
	}

	if c.hadError {
		return c.chunk, c.errors
	}
	return c.chunk, nil
}

// --- token stream plumbing ---

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.lex.NextToken()
		if c.current.Kind != token.Error {
			break
		}
		c.errorAtCurrent(c.current.Lexeme)
	}
}

func (c *Compiler) check(kind token.Kind) bool {
	return c.current.Kind == kind
}

func (c *Compiler) match(kind token.Kind) bool {
	if !c.check(kind) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(kind token.Kind, message string) {
	if c.current.Kind == kind {
		c.advance()
		return
	}
	c.errorAtCurrent(message)
}

// --- emission helpers ---

func (c *Compiler) emitByte(b byte) {
	c.chunk.WriteByte(b, c.previous.Line)
}

func (c *Compiler) emitOp(op chunk.OpCode) {
	c.chunk.WriteOp(op, c.previous.Line)
}

func (c *Compiler) emitOps(ops ...chunk.OpCode) {
	for _, op := range ops {
		c.emitOp(op)
	}
}

func (c *Compiler) emitReturn() {
	c.emitOp(chunk.Return)
}

func (c *Compiler) emitConstant(v value.Value) {
	index := c.makeConstant(v)
	c.emitOp(chunk.Constant)
	c.emitByte(index)
}

func (c *Compiler) makeConstant(v value.Value) byte {
	if len(c.chunk.Constants) >= chunk.MaxConstants {
		c.error("too many constants in one chunk")
		return 0
	}
	return byte(c.chunk.AddConstant(v))
}

// emitJump writes the opcode plus a two-byte placeholder and returns
// the offset of the placeholder's first byte, to be patched once the
// jump target is known.
func (c *Compiler) emitJump(op chunk.OpCode) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return len(c.chunk.Code) - 2
}

func (c *Compiler) patchJump(offset int) {
	jump := len(c.chunk.Code) - (offset + 2)
	if jump > math.MaxUint16 {
		c.error("too much code to jump over")
		return
	}
	c.chunk.Code[offset] = byte(jump >> 8 & 0xff)
	c.chunk.Code[offset+1] = byte(jump & 0xff)
}

// emitLoop emits Loop plus the backward offset to start.
func (c *Compiler) emitLoop(start int) {
	c.emitOp(chunk.Loop)
	offset := len(c.chunk.Code) + 2 - start
	if offset > math.MaxUint16 {
		c.error("loop body too large")
		return
	}
	c.emitByte(byte(offset >> 8 & 0xff))
	c.emitByte(byte(offset & 0xff))
}

// --- declarations & statements ---

func (c *Compiler) declaration() {
	if c.match(token.Var) {
		c.varDeclaration()
	} else {
		c.statement()
	}

	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) varDeclaration() {
	global := c.parseVariable("Expect variable name.")

	if c.match(token.Equal) {
		c.expression()
	} else {
		c.emitOp(chunk.Nil)
	}
	c.consume(token.Semicolon, "Expect ';' after variable declaration.")

	c.defineVariable(global)
}

func (c *Compiler) statement() {
	switch {
	case c.match(token.Print):
		c.printStatement()
	case c.match(token.If):
		c.ifStatement()
	case c.match(token.While):
		c.whileStatement()
	case c.match(token.LeftBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(token.Semicolon, "Expect ';' after value.")
	c.emitOp(chunk.Print)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(token.Semicolon, "Expect ';' after expression.")
	c.emitOp(chunk.Pop)
}

func (c *Compiler) block() {
	for !c.check(token.RightBrace) && !c.check(token.Eof) {
		c.declaration()
	}
	c.consume(token.RightBrace, "Expect '}' after block.")
}

func (c *Compiler) ifStatement() {
	c.consume(token.LeftParen, "Expect '(' after 'if'.")
	c.expression()
	c.consume(token.RightParen, "Expect ')' after condition.")

	thenJump := c.emitJump(chunk.JumpIfFalse)
	c.emitOp(chunk.Pop)
	c.statement()

	elseJump := c.emitJump(chunk.Jump)
	c.patchJump(thenJump)
	c.emitOp(chunk.Pop)

	if c.match(token.Else) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loopStart := len(c.chunk.Code)
	c.consume(token.LeftParen, "Expect '(' after 'while'.")
	c.expression()
	c.consume(token.RightParen, "Expect ')' after condition.")

	exitJump := c.emitJump(chunk.JumpIfFalse)
	c.emitOp(chunk.Pop)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(chunk.Pop)
}

// --- scopes & locals ---

func (c *Compiler) beginScope() {
	c.scopeDepth++
}

func (c *Compiler) endScope() {
	c.scopeDepth--
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		c.emitOp(chunk.Pop)
		c.locals = c.locals[:len(c.locals)-1]
	}
}

// parseVariable consumes an identifier and, for a global, returns its
// constant-pool index; for a local it declares the variable and
// returns 0 (defineVariable ignores the return value in that case).
func (c *Compiler) parseVariable(message string) byte {
	c.consume(token.Identifier, message)

	c.declareVariable()
	if c.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.previous)
}

func (c *Compiler) identifierConstant(name token.Token) byte {
	return c.makeConstant(value.NewString(intern.String(name.Lexeme)))
}

func (c *Compiler) declareVariable() {
	if c.scopeDepth == 0 {
		return
	}
	name := c.previous
	for i := len(c.locals) - 1; i >= 0; i-- {
		l := c.locals[i]
		if l.depth != uninitialized && l.depth < c.scopeDepth {
			break // shadowing across scopes is fine
		}
		if l.name.Lexeme == name.Lexeme {
			c.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

func (c *Compiler) addLocal(name token.Token) {
	if len(c.locals) >= maxLocalCount {
		c.error("too many local variables in function")
		return
	}
	c.locals = append(c.locals, local{name: name, depth: uninitialized})
}

func (c *Compiler) defineVariable(global byte) {
	if c.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitOp(chunk.DefineGlobal)
	c.emitByte(global)
}

func (c *Compiler) markInitialized() {
	if c.scopeDepth == 0 {
		return
	}
	c.locals[len(c.locals)-1].depth = c.scopeDepth
}

// resolveLocal returns the slot of the nearest local named name, or -1
// if it must be a global.
func (c *Compiler) resolveLocal(name token.Token) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		l := c.locals[i]
		if l.name.Lexeme == name.Lexeme {
			if l.depth == uninitialized {
				c.error("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return uninitialized
}

// --- Pratt parser core ---

func (c *Compiler) expression() {
	c.parsePrecedence(PrecAssignment)
}

func (c *Compiler) parsePrecedence(prec Precedence) {
	c.advance()
	rule := getRule(c.previous.Kind)
	if rule.prefix == nil {
		c.error("Expect expression.")
		return
	}

	canAssign := prec <= PrecAssignment
	rule.prefix(c, canAssign)

	for prec <= getRule(c.current.Kind).precedence {
		c.advance()
		infix := getRule(c.previous.Kind).infix
		infix(c, canAssign)
	}

	if canAssign && c.match(token.Equal) {
		c.error("Invalid assignment target.")
	}
}

func getRule(kind token.Kind) parseRule {
	if rule, ok := rules[kind]; ok {
		return rule
	}
	return parseRule{precedence: PrecNone}
}

var rules map[token.Kind]parseRule

func init() {
	rules = map[token.Kind]parseRule{
		token.LeftParen:    {prefix: (*Compiler).grouping, precedence: PrecNone},
		token.Minus:        {prefix: (*Compiler).unary, infix: (*Compiler).binary, precedence: PrecTerm},
		token.Plus:         {infix: (*Compiler).binary, precedence: PrecTerm},
		token.Slash:        {infix: (*Compiler).binary, precedence: PrecFactor},
		token.Star:         {infix: (*Compiler).binary, precedence: PrecFactor},
		token.Bang:         {prefix: (*Compiler).unary, precedence: PrecNone},
		token.BangEqual:    {infix: (*Compiler).binary, precedence: PrecEquality},
		token.EqualEqual:   {infix: (*Compiler).binary, precedence: PrecEquality},
		token.Greater:      {infix: (*Compiler).binary, precedence: PrecComparison},
		token.GreaterEqual: {infix: (*Compiler).binary, precedence: PrecComparison},
		token.Less:         {infix: (*Compiler).binary, precedence: PrecComparison},
		token.LessEqual:    {infix: (*Compiler).binary, precedence: PrecComparison},
		token.Number:       {prefix: (*Compiler).number, precedence: PrecNone},
		token.String:       {prefix: (*Compiler).string, precedence: PrecNone},
		token.Identifier:   {prefix: (*Compiler).variable, precedence: PrecNone},
		token.True:         {prefix: (*Compiler).literal, precedence: PrecNone},
		token.False:        {prefix: (*Compiler).literal, precedence: PrecNone},
		token.Nil:          {prefix: (*Compiler).literal, precedence: PrecNone},
		token.And:          {infix: (*Compiler).and_, precedence: PrecAnd},
		token.Or:           {infix: (*Compiler).or_, precedence: PrecOr},
	}
}

// --- rule handlers ---

func (c *Compiler) number(_ bool) {
	n, err := strconv.ParseFloat(c.previous.Lexeme, 64)
	if err != nil {
		c.error("Invalid number literal.")
		return
	}
	c.emitConstant(value.NewNumber(n))
}

func (c *Compiler) string(_ bool) {
	lexeme := c.previous.Lexeme
	s := lexeme[1 : len(lexeme)-1] // strip surrounding quotes
	c.emitConstant(value.NewString(intern.String(s)))
}

func (c *Compiler) literal(_ bool) {
	switch c.previous.Kind {
	case token.True:
		c.emitOp(chunk.True)
	case token.False:
		c.emitOp(chunk.False)
	case token.Nil:
		c.emitOp(chunk.Nil)
	}
}

func (c *Compiler) grouping(_ bool) {
	c.expression()
	c.consume(token.RightParen, "Expect ')' after expression.")
}

func (c *Compiler) unary(_ bool) {
	kind := c.previous.Kind
	c.parsePrecedence(PrecUnary)
	switch kind {
	case token.Minus:
		c.emitOp(chunk.Negate)
	case token.Bang:
		c.emitOp(chunk.Not)
	}
}

func (c *Compiler) binary(_ bool) {
	kind := c.previous.Kind
	rule := getRule(kind)
	c.parsePrecedence(rule.precedence + 1)

	switch kind {
	case token.BangEqual:
		c.emitOps(chunk.Equal, chunk.Not)
	case token.EqualEqual:
		c.emitOp(chunk.Equal)
	case token.Greater:
		c.emitOp(chunk.Greater)
	case token.GreaterEqual:
		c.emitOps(chunk.Less, chunk.Not)
	case token.Less:
		c.emitOp(chunk.Less)
	case token.LessEqual:
		c.emitOps(chunk.Greater, chunk.Not)
	case token.Plus:
		c.emitOp(chunk.Add)
	case token.Minus:
		c.emitOp(chunk.Subtract)
	case token.Star:
		c.emitOp(chunk.Multiply)
	case token.Slash:
		c.emitOp(chunk.Divide)
	}
}

func (c *Compiler) and_(_ bool) {
	endJump := c.emitJump(chunk.JumpIfFalse)
	c.emitOp(chunk.Pop)
	c.parsePrecedence(PrecAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or_(_ bool) {
	elseJump := c.emitJump(chunk.JumpIfFalse)
	endJump := c.emitJump(chunk.Jump)

	c.patchJump(elseJump)
	c.emitOp(chunk.Pop)

	c.parsePrecedence(PrecOr)
	c.patchJump(endJump)
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.previous, canAssign)
}

func (c *Compiler) namedVariable(name token.Token, canAssign bool) {
	var getOp, setOp chunk.OpCode
	slot := c.resolveLocal(name)
	if slot != uninitialized {
		getOp, setOp = chunk.GetLocal, chunk.SetLocal
	} else {
		slot = int(c.identifierConstant(name))
		getOp, setOp = chunk.GetGlobal, chunk.SetGlobal
	}

	if canAssign && c.match(token.Equal) {
		c.expression()
		c.emitOp(setOp)
		c.emitByte(byte(slot))
	} else {
		c.emitOp(getOp)
		c.emitByte(byte(slot))
	}
}

// --- error recovery ---

func (c *Compiler) synchronize() {
	c.panicMode = false

	for !c.check(token.Eof) {
		if c.previous.Kind == token.Semicolon {
			return
		}
		switch c.current.Kind {
		case token.Class, token.Fun, token.Var, token.For,
			token.If, token.While, token.Print, token.Return:
			return
		}
		c.advance()
	}
}

func (c *Compiler) errorAtCurrent(message string) {
	c.errorAt(c.current, message)
}

func (c *Compiler) error(message string) {
	c.errorAt(c.previous, message)
}

func (c *Compiler) errorAt(tok token.Token, message string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true

	var where string
	switch tok.Kind {
	case token.Eof:
		where = "at end"
	case token.Error:
		where = ""
	default:
		where = "at '" + tok.Lexeme + "'"
	}

	c.errors = multierror.Append(c.errors, &CompileError{
		Line:    tok.Line,
		Where:   where,
		Message: message,
	})
}

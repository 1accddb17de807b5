// Package compiler turns source text directly into bytecode in a
// single pass: a Pratt parser drives expression compilation, and a
// stack of compile-time function scopes tracks locals, upvalues and
// scope depth so the parser can emit the right opcode the moment it
// recognizes a reference.
package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/emberlang/ember/internal/bytecode"
	"github.com/emberlang/ember/internal/lexer"
	"github.com/emberlang/ember/internal/token"
)

// Parser holds all mutable state for one compilation: the lexer, the
// two-token lookahead window, the stack of function and class scopes,
// and accumulated diagnostics.
type Parser struct {
	lex  *lexer.Lexer
	prev token.Token
	curr token.Token

	current *funcScope
	class   *classScope

	errors    *multierror.Error
	panicMode bool
	hadError  bool
}

// Compile parses source and produces the top-level script function.
// On any syntax error it still returns a (possibly incomplete)
// *bytecode.Function alongside a non-nil error; callers that only want
// a runnable program should check the error.
func Compile(source string) (*bytecode.Function, error) {
	p := &Parser{lex: lexer.New(source)}
	p.current = newFuncScope(nil, TypeScript, "")

	p.advance()
	for !p.check(token.EOF) {
		p.declaration()
	}
	p.consume(token.EOF, "Expect end of expression.")

	fn, _ := p.endFunction()
	if p.hadError {
		return fn, p.errors
	}
	return fn, nil
}

func (p *Parser) chunk() *bytecode.Chunk {
	return &p.current.fn.Chunk
}

// --- token stream -------------------------------------------------

func (p *Parser) advance() {
	p.prev = p.curr
	for {
		p.curr = p.lex.Next()
		if p.curr.Type != token.Error {
			break
		}
		p.errorAtCurrent(p.curr.Lexeme)
	}
}

func (p *Parser) check(t token.Type) bool {
	return p.curr.Type == t
}

func (p *Parser) match(t token.Type) bool {
	if !p.check(t) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) consume(t token.Type, msg string) {
	if p.check(t) {
		p.advance()
		return
	}
	p.errorAtCurrent(msg)
}

// --- diagnostics ----------------------------------------------------

func (p *Parser) errorAt(tok token.Token, msg string) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	p.hadError = true

	var full string
	switch tok.Type {
	case token.EOF:
		full = fmt.Sprintf("[line %d] Error at end: %s", tok.Line, msg)
	case token.Error:
		full = fmt.Sprintf("[line %d] Error: %s", tok.Line, msg)
	default:
		full = fmt.Sprintf("[line %d] Error at '%s': %s", tok.Line, tok.Lexeme, msg)
	}

	p.errors = multierror.Append(p.errors, errors.New(full))
	logrus.Debugln(full)
}

func (p *Parser) error(msg string) {
	p.errorAt(p.prev, msg)
}

func (p *Parser) errorAtCurrent(msg string) {
	p.errorAt(p.curr, msg)
}

// synchronize discards tokens until it reaches something that looks
// like a statement boundary, so one mistake reports one error instead
// of a cascade.
func (p *Parser) synchronize() {
	p.panicMode = false
	for !p.check(token.EOF) {
		if p.prev.Type == token.Semicolon {
			return
		}
		switch p.curr.Type {
		case token.Class, token.Fun, token.Var, token.For, token.If, token.While, token.Print, token.Return:
			return
		}
		p.advance()
	}
}

// --- bytecode emission ----------------------------------------------

func (p *Parser) emitByte(b byte) {
	p.chunk().Write(b, p.prev.Line)
}

func (p *Parser) emitOp(op bytecode.OpCode) {
	p.chunk().WriteOp(op, p.prev.Line)
}

func (p *Parser) emitOpByte(op bytecode.OpCode, b byte) {
	p.emitOp(op)
	p.emitByte(b)
}

func (p *Parser) makeConstant(v interface{}) byte {
	idx := p.chunk().AddConstant(v)
	if idx > 255 {
		p.error("Too many constants in one chunk.")
		return 0
	}
	return byte(idx)
}

func (p *Parser) emitConstant(v interface{}) {
	p.emitOpByte(bytecode.OpConstant, p.makeConstant(v))
}

func (p *Parser) emitJump(op bytecode.OpCode) int {
	p.emitOp(op)
	p.emitByte(0xff)
	p.emitByte(0xff)
	return len(p.chunk().Code) - 2
}

func (p *Parser) patchJump(offset int) {
	jump := len(p.chunk().Code) - offset - 2
	if jump > 0xffff {
		p.error("Too much code to jump over.")
		return
	}
	p.chunk().Code[offset] = byte(jump >> 8)
	p.chunk().Code[offset+1] = byte(jump)
}

func (p *Parser) emitLoop(loopStart int) {
	p.emitOp(bytecode.OpLoop)
	offset := len(p.chunk().Code) - loopStart + 2
	if offset > 0xffff {
		p.error("Loop body too large.")
		return
	}
	p.emitByte(byte(offset >> 8))
	p.emitByte(byte(offset))
}

func (p *Parser) emitReturn() {
	if p.current.fnType == TypeInitializer {
		p.emitOpByte(bytecode.OpGetLocal, 0)
	} else {
		p.emitOp(bytecode.OpNil)
	}
	p.emitOp(bytecode.OpReturn)
}

// endFunction closes out the current compile scope, returning its
// finished function along with the upvalue captures its enclosing
// scope needs to know about to emit OP_CLOSURE correctly.
func (p *Parser) endFunction() (*bytecode.Function, []upvalueRef) {
	p.emitReturn()
	fn := p.current.fn
	upvalues := p.current.upvalues

	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		name := fn.Name
		if name == "" {
			name = "<script>"
		}
		var buf bytes.Buffer
		bytecode.Disassemble(&buf, &fn.Chunk, name)
		logrus.Debug(buf.String())
	}

	p.current = p.current.enclosing
	return fn, upvalues
}

// --- scope helpers ----------------------------------------------------

func (p *Parser) beginScope() {
	p.current.depth++
}

func (p *Parser) endScope() {
	p.current.depth--
	locals := p.current.locals
	for len(locals) > 0 && locals[len(locals)-1].depth > p.current.depth {
		if locals[len(locals)-1].isCaptured {
			p.emitOp(bytecode.OpCloseUpvalue)
		} else {
			p.emitOp(bytecode.OpPop)
		}
		locals = locals[:len(locals)-1]
	}
	p.current.locals = locals
}

// --- variable resolution ----------------------------------------------

func (p *Parser) identifierConstant(name string) byte {
	return p.makeConstant(name)
}

func (p *Parser) declareVariable(name string) {
	if p.current.depth == 0 {
		return
	}
	for i := len(p.current.locals) - 1; i >= 0; i-- {
		local := p.current.locals[i]
		if local.depth != -1 && local.depth < p.current.depth {
			break
		}
		if local.name == name {
			p.error("Already a variable with this name in this scope.")
		}
	}
	p.addLocal(name)
}

func (p *Parser) addLocal(name string) {
	if len(p.current.locals) >= 256 {
		p.error("Too many local variables in function.")
		return
	}
	p.current.locals = append(p.current.locals, Local{name: name, depth: -1})
}

func (p *Parser) markInitialized() {
	if p.current.depth == 0 {
		return
	}
	p.current.locals[len(p.current.locals)-1].depth = p.current.depth
}

// parseVariable consumes an identifier, declares it as a local if
// inside a scope, and returns the constant-table index to use for
// OP_DEFINE_GLOBAL when it is not.
func (p *Parser) parseVariable(msg string) byte {
	p.consume(token.Identifier, msg)
	p.declareVariable(p.prev.Lexeme)
	if p.current.depth > 0 {
		return 0
	}
	return p.identifierConstant(p.prev.Lexeme)
}

func (p *Parser) defineVariable(global byte) {
	if p.current.depth > 0 {
		p.markInitialized()
		return
	}
	p.emitOpByte(bytecode.OpDefineGlobal, global)
}

func (p *Parser) resolveLocal(fs *funcScope, name string) int {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			if fs.locals[i].depth == -1 {
				p.error("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

func (p *Parser) resolveUpvalue(fs *funcScope, name string) int {
	if fs.enclosing == nil {
		return -1
	}
	if local := p.resolveLocal(fs.enclosing, name); local != -1 {
		fs.enclosing.locals[local].isCaptured = true
		return p.addUpvalue(fs, byte(local), true)
	}
	if up := p.resolveUpvalue(fs.enclosing, name); up != -1 {
		return p.addUpvalue(fs, byte(up), false)
	}
	return -1
}

func (p *Parser) addUpvalue(fs *funcScope, index byte, isLocal bool) int {
	if i := slices.IndexFunc(fs.upvalues, func(u upvalueRef) bool {
		return u.index == index && u.isLocal == isLocal
	}); i != -1 {
		return i
	}
	if len(fs.upvalues) >= 256 {
		p.error("Too many closure variables in function.")
		return 0
	}
	fs.upvalues = append(fs.upvalues, upvalueRef{index: index, isLocal: isLocal})
	fs.fn.UpvalueCount = len(fs.upvalues)
	return len(fs.upvalues) - 1
}

func (p *Parser) namedVariable(name token.Token, canAssign bool) {
	var arg byte
	var getOp, setOp bytecode.OpCode

	if slot := p.resolveLocal(p.current, name.Lexeme); slot != -1 {
		arg, getOp, setOp = byte(slot), bytecode.OpGetLocal, bytecode.OpSetLocal
	} else if slot := p.resolveUpvalue(p.current, name.Lexeme); slot != -1 {
		arg, getOp, setOp = byte(slot), bytecode.OpGetUpvalue, bytecode.OpSetUpvalue
	} else {
		arg, getOp, setOp = p.identifierConstant(name.Lexeme), bytecode.OpGetGlobal, bytecode.OpSetGlobal
	}

	if canAssign && p.match(token.Equal) {
		p.expression()
		p.emitOpByte(setOp, arg)
	} else {
		p.emitOpByte(getOp, arg)
	}
}

// --- expressions ----------------------------------------------------

func (p *Parser) expression() {
	p.parsePrecedence(PrecAssignment)
}

func (p *Parser) parsePrecedence(prec Precedence) {
	p.advance()
	prefix := p.getRule(p.prev.Type).prefix
	if prefix == nil {
		p.error("Expect expression.")
		return
	}

	canAssign := prec <= PrecAssignment
	prefix(p, canAssign)

	for prec <= p.getRule(p.curr.Type).prec {
		p.advance()
		infix := p.getRule(p.prev.Type).infix
		infix(p, canAssign)
	}

	if canAssign && p.check(token.Equal) {
		p.error("Invalid assignment target.")
	}
}

func (p *Parser) number(canAssign bool) {
	v, _ := strconv.ParseFloat(p.prev.Lexeme, 64)
	p.emitConstant(v)
}

func (p *Parser) string_(canAssign bool) {
	lexeme := p.prev.Lexeme
	p.emitConstant(lexeme[1 : len(lexeme)-1])
}

func (p *Parser) literal(canAssign bool) {
	switch p.prev.Type {
	case token.False:
		p.emitOp(bytecode.OpFalse)
	case token.Nil:
		p.emitOp(bytecode.OpNil)
	case token.True:
		p.emitOp(bytecode.OpTrue)
	}
}

func (p *Parser) grouping(canAssign bool) {
	p.expression()
	p.consume(token.RightParen, "Expect ')' after expression.")
}

func (p *Parser) unary(canAssign bool) {
	opType := p.prev.Type
	p.parsePrecedence(PrecUnary)
	switch opType {
	case token.Bang:
		p.emitOp(bytecode.OpNot)
	case token.Minus:
		p.emitOp(bytecode.OpNegate)
	}
}

func (p *Parser) binary(canAssign bool) {
	opType := p.prev.Type
	rule := p.getRule(opType)
	p.parsePrecedence(rule.prec + 1)

	switch opType {
	case token.BangEqual:
		p.emitOp(bytecode.OpEqual)
		p.emitOp(bytecode.OpNot)
	case token.EqualEqual:
		p.emitOp(bytecode.OpEqual)
	case token.Greater:
		p.emitOp(bytecode.OpGreater)
	case token.GreaterEqual:
		p.emitOp(bytecode.OpLess)
		p.emitOp(bytecode.OpNot)
	case token.Less:
		p.emitOp(bytecode.OpLess)
	case token.LessEqual:
		p.emitOp(bytecode.OpGreater)
		p.emitOp(bytecode.OpNot)
	case token.Plus:
		p.emitOp(bytecode.OpAdd)
	case token.Minus:
		p.emitOp(bytecode.OpSubtract)
	case token.Star:
		p.emitOp(bytecode.OpMultiply)
	case token.Slash:
		p.emitOp(bytecode.OpDivide)
	}
}

func (p *Parser) and_(canAssign bool) {
	endJump := p.emitJump(bytecode.OpJumpIfFalse)
	p.emitOp(bytecode.OpPop)
	p.parsePrecedence(PrecAnd)
	p.patchJump(endJump)
}

func (p *Parser) or_(canAssign bool) {
	elseJump := p.emitJump(bytecode.OpJumpIfFalse)
	endJump := p.emitJump(bytecode.OpJump)
	p.patchJump(elseJump)
	p.emitOp(bytecode.OpPop)
	p.parsePrecedence(PrecOr)
	p.patchJump(endJump)
}

func (p *Parser) variable(canAssign bool) {
	p.namedVariable(p.prev, canAssign)
}

func (p *Parser) this_(canAssign bool) {
	if p.class == nil {
		p.error("Can't use 'this' outside of a class.")
		return
	}
	p.variable(false)
}

func (p *Parser) super_(canAssign bool) {
	if p.class == nil {
		p.error("Can't use 'super' outside of a class.")
	} else if !p.class.hasSuperclass {
		p.error("Can't use 'super' in a class with no superclass.")
	}

	p.consume(token.Dot, "Expect '.' after 'super'.")
	p.consume(token.Identifier, "Expect superclass method name.")
	name := p.identifierConstant(p.prev.Lexeme)

	thisTok := token.Token{Type: token.Identifier, Lexeme: "this"}
	superTok := token.Token{Type: token.Identifier, Lexeme: "super"}

	if p.match(token.LeftParen) {
		p.namedVariable(thisTok, false)
		argCount := p.argumentList()
		p.namedVariable(superTok, false)
		p.emitOp(bytecode.OpSuperInvoke)
		p.emitByte(name)
		p.emitByte(argCount)
		return
	}

	p.namedVariable(thisTok, false)
	p.namedVariable(superTok, false)
	p.emitOpByte(bytecode.OpGetSuper, name)
}

func (p *Parser) call(canAssign bool) {
	argCount := p.argumentList()
	p.emitOpByte(bytecode.OpCall, argCount)
}

func (p *Parser) argumentList() byte {
	var count int
	if !p.check(token.RightParen) {
		for {
			p.expression()
			if count == 255 {
				p.error("Can't have more than 255 arguments.")
			}
			count++
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.consume(token.RightParen, "Expect ')' after arguments.")
	return byte(count)
}

func (p *Parser) dot(canAssign bool) {
	p.consume(token.Identifier, "Expect property name after '.'.")
	name := p.identifierConstant(p.prev.Lexeme)

	switch {
	case canAssign && p.match(token.Equal):
		p.expression()
		p.emitOpByte(bytecode.OpSetProperty, name)
	case p.match(token.LeftParen):
		argCount := p.argumentList()
		p.emitOp(bytecode.OpInvoke)
		p.emitByte(name)
		p.emitByte(argCount)
	default:
		p.emitOpByte(bytecode.OpGetProperty, name)
	}
}

// --- statements ----------------------------------------------------

func (p *Parser) declaration() {
	switch {
	case p.match(token.Class):
		p.classDeclaration()
	case p.match(token.Fun):
		p.funDeclaration()
	case p.match(token.Var):
		p.varDeclaration()
	default:
		p.statement()
	}
	if p.panicMode {
		p.synchronize()
	}
}

func (p *Parser) statement() {
	switch {
	case p.match(token.Print):
		p.printStatement()
	case p.match(token.For):
		p.forStatement()
	case p.match(token.If):
		p.ifStatement()
	case p.match(token.Return):
		p.returnStatement()
	case p.match(token.While):
		p.whileStatement()
	case p.match(token.LeftBrace):
		p.beginScope()
		p.block()
		p.endScope()
	default:
		p.expressionStatement()
	}
}

func (p *Parser) block() {
	for !p.check(token.RightBrace) && !p.check(token.EOF) {
		p.declaration()
	}
	p.consume(token.RightBrace, "Expect '}' after block.")
}

func (p *Parser) expressionStatement() {
	p.expression()
	p.consume(token.Semicolon, "Expect ';' after expression.")
	p.emitOp(bytecode.OpPop)
}

func (p *Parser) printStatement() {
	p.expression()
	p.consume(token.Semicolon, "Expect ';' after value.")
	p.emitOp(bytecode.OpPrint)
}

func (p *Parser) ifStatement() {
	p.consume(token.LeftParen, "Expect '(' after 'if'.")
	p.expression()
	p.consume(token.RightParen, "Expect ')' after condition.")

	thenJump := p.emitJump(bytecode.OpJumpIfFalse)
	p.emitOp(bytecode.OpPop)
	p.statement()

	elseJump := p.emitJump(bytecode.OpJump)
	p.patchJump(thenJump)
	p.emitOp(bytecode.OpPop)

	if p.match(token.Else) {
		p.statement()
	}
	p.patchJump(elseJump)
}

func (p *Parser) whileStatement() {
	loopStart := len(p.chunk().Code)
	p.consume(token.LeftParen, "Expect '(' after 'while'.")
	p.expression()
	p.consume(token.RightParen, "Expect ')' after condition.")

	exitJump := p.emitJump(bytecode.OpJumpIfFalse)
	p.emitOp(bytecode.OpPop)
	p.statement()
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.emitOp(bytecode.OpPop)
}

func (p *Parser) forStatement() {
	p.beginScope()
	p.consume(token.LeftParen, "Expect '(' after 'for'.")

	switch {
	case p.match(token.Semicolon):
	case p.match(token.Var):
		p.varDeclaration()
	default:
		p.expressionStatement()
	}

	loopStart := len(p.chunk().Code)
	exitJump := -1
	if !p.match(token.Semicolon) {
		p.expression()
		p.consume(token.Semicolon, "Expect ';' after loop condition.")
		exitJump = p.emitJump(bytecode.OpJumpIfFalse)
		p.emitOp(bytecode.OpPop)
	}

	if !p.match(token.RightParen) {
		bodyJump := p.emitJump(bytecode.OpJump)
		incrementStart := len(p.chunk().Code)
		p.expression()
		p.emitOp(bytecode.OpPop)
		p.consume(token.RightParen, "Expect ')' after for clauses.")

		p.emitLoop(loopStart)
		loopStart = incrementStart
		p.patchJump(bodyJump)
	}

	p.statement()
	p.emitLoop(loopStart)

	if exitJump != -1 {
		p.patchJump(exitJump)
		p.emitOp(bytecode.OpPop)
	}
	p.endScope()
}

func (p *Parser) returnStatement() {
	if p.current.fnType == TypeScript {
		p.error("Can't return from top-level code.")
	}
	if p.match(token.Semicolon) {
		p.emitReturn()
		return
	}
	if p.current.fnType == TypeInitializer {
		p.error("Can't return a value from an initializer.")
	}
	p.expression()
	p.consume(token.Semicolon, "Expect ';' after return value.")
	p.emitOp(bytecode.OpReturn)
}

// --- declarations ----------------------------------------------------

func (p *Parser) varDeclaration() {
	global := p.parseVariable("Expect variable name.")
	if p.match(token.Equal) {
		p.expression()
	} else {
		p.emitOp(bytecode.OpNil)
	}
	p.consume(token.Semicolon, "Expect ';' after variable declaration.")
	p.defineVariable(global)
}

func (p *Parser) funDeclaration() {
	global := p.parseVariable("Expect function name.")
	p.markInitialized()
	p.function(TypeFunction)
	p.defineVariable(global)
}

// function compiles one function body (already positioned just past
// the name) into a fresh compile scope, then emits the enclosing
// OP_CLOSURE plus the upvalue descriptor pairs the new closure needs
// captured at the call site.
func (p *Parser) function(fnType FunctionType) {
	name := p.prev.Lexeme
	p.current = newFuncScope(p.current, fnType, name)
	p.beginScope()

	p.consume(token.LeftParen, "Expect '(' after function name.")
	if !p.check(token.RightParen) {
		for {
			p.current.fn.Arity++
			if p.current.fn.Arity > 255 {
				p.errorAtCurrent("Can't have more than 255 parameters.")
			}
			paramConst := p.parseVariable("Expect parameter name.")
			p.defineVariable(paramConst)
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.consume(token.RightParen, "Expect ')' after parameters.")
	p.consume(token.LeftBrace, "Expect '{' before function body.")
	p.block()

	fn, upvalues := p.endFunction()

	idx := p.makeConstant(fn)
	p.emitOpByte(bytecode.OpClosure, idx)
	for _, up := range upvalues {
		if up.isLocal {
			p.emitByte(1)
		} else {
			p.emitByte(0)
		}
		p.emitByte(up.index)
	}
}

func (p *Parser) method() {
	p.consume(token.Identifier, "Expect method name.")
	name := p.prev.Lexeme
	constant := p.identifierConstant(name)

	fnType := TypeMethod
	if name == initName {
		fnType = TypeInitializer
	}
	p.function(fnType)
	p.emitOpByte(bytecode.OpMethod, constant)
}

func (p *Parser) classDeclaration() {
	p.consume(token.Identifier, "Expect class name.")
	className := p.prev
	nameConst := p.identifierConstant(className.Lexeme)
	p.declareVariable(className.Lexeme)

	p.emitOpByte(bytecode.OpClass, nameConst)
	p.defineVariable(nameConst)

	cs := &classScope{enclosing: p.class}
	p.class = cs

	if p.match(token.Less) {
		p.consume(token.Identifier, "Expect superclass name.")
		if p.prev.Lexeme == className.Lexeme {
			p.error("A class can't inherit from itself.")
		}
		p.variable(false)

		p.beginScope()
		p.addLocal("super")
		p.markInitialized()

		p.namedVariable(className, false)
		p.emitOp(bytecode.OpInherit)
		cs.hasSuperclass = true
	}

	p.namedVariable(className, false)
	p.consume(token.LeftBrace, "Expect '{' before class body.")
	for !p.check(token.RightBrace) && !p.check(token.EOF) {
		p.method()
	}
	p.consume(token.RightBrace, "Expect '}' after class body.")
	p.emitOp(bytecode.OpPop)

	if cs.hasSuperclass {
		p.endScope()
	}

	p.class = cs.enclosing
}

const initName = "init"

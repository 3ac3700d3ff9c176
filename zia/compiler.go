package zia

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"
)

var compilerLog = commonlog.GetLogger("zia.compiler")

const (
	MaxLocals   = 256
	MaxUpvalues = 256
	MaxParams   = 255
	MaxArgs     = 255
	// MaxNesting bounds how many loops and selon blocks may be open at once
	// within one function.
	MaxNesting = 64
)

type Precedence int

const (
	PrecNone Precedence = iota
	PrecAssignment
	PrecConditional
	PrecOr
	PrecAnd
	PrecEquality
	PrecComparison
	PrecTerm
	PrecFactor
	PrecUnary
	PrecCall
	PrecPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

var rules [tokenTypeCount]parseRule

func init() {
	rules[TokenLParen] = parseRule{(*Compiler).grouping, (*Compiler).call, PrecCall}
	rules[TokenMinus] = parseRule{(*Compiler).unary, (*Compiler).binary, PrecTerm}
	rules[TokenPlus] = parseRule{nil, (*Compiler).binary, PrecTerm}
	rules[TokenDiv] = parseRule{nil, (*Compiler).binary, PrecFactor}
	rules[TokenMul] = parseRule{nil, (*Compiler).binary, PrecFactor}
	rules[TokenMod] = parseRule{nil, (*Compiler).binary, PrecFactor}
	rules[TokenBang] = parseRule{(*Compiler).unary, nil, PrecNone}
	rules[TokenNEQ] = parseRule{nil, (*Compiler).binary, PrecEquality}
	rules[TokenEQ] = parseRule{nil, (*Compiler).binary, PrecEquality}
	rules[TokenGT] = parseRule{nil, (*Compiler).binary, PrecComparison}
	rules[TokenGTE] = parseRule{nil, (*Compiler).binary, PrecComparison}
	rules[TokenLT] = parseRule{nil, (*Compiler).binary, PrecComparison}
	rules[TokenLTE] = parseRule{nil, (*Compiler).binary, PrecComparison}
	rules[TokenQuestion] = parseRule{nil, (*Compiler).ternary, PrecConditional}
	rules[TokenPlusPlus] = parseRule{(*Compiler).prefixIncrement, nil, PrecNone}
	rules[TokenMinusMinus] = parseRule{(*Compiler).prefixIncrement, nil, PrecNone}
	rules[TokenIdent] = parseRule{(*Compiler).variable, nil, PrecNone}
	rules[TokenString] = parseRule{(*Compiler).stringLiteral, nil, PrecNone}
	rules[TokenNumber] = parseRule{(*Compiler).number, nil, PrecNone}
	rules[TokenEt] = parseRule{nil, (*Compiler).and, PrecAnd}
	rules[TokenOu] = parseRule{nil, (*Compiler).or, PrecOr}
	rules[TokenVrai] = parseRule{(*Compiler).literal, nil, PrecNone}
	rules[TokenFaux] = parseRule{(*Compiler).literal, nil, PrecNone}
	rules[TokenNul] = parseRule{(*Compiler).literal, nil, PrecNone}
	rules[TokenCeci] = parseRule{(*Compiler).reserved, nil, PrecNone}
	rules[TokenSuper] = parseRule{(*Compiler).reserved, nil, PrecNone}
}

type FunctionKind int

const (
	KindScript FunctionKind = iota
	KindFunction
)

type local struct {
	name string
	// depth is -1 between declaration and the end of the initializer
	depth      int
	isCaptured bool
}

type upvalueRef struct {
	index   uint8
	isLocal bool
}

// breakable is an open loop or selon block.
type breakable struct {
	isLoop         bool
	localCount     int
	continueTarget int
	breakJumps     []int
}

// funcCompiler holds the state for one function being compiled. The
// enclosing link is walked to resolve upvalues.
type funcCompiler struct {
	enclosing  *funcCompiler
	function   *FunctionObj
	kind       FunctionKind
	locals     []local
	upvalues   []upvalueRef
	scopeDepth int
	breakables []*breakable
}

// Compiler turns a token stream into a top-level FunctionObj in one pass.
// It allocates constants on heap and keeps the functions under
// construction reachable for the collector while it runs.
type Compiler struct {
	heap   *Heap
	tokens TokenSource

	current   Token
	previous  Token
	started   bool
	hadError  bool
	panicMode bool

	diagnostics []*ZiaError
	fc          *funcCompiler

	// PrintCode logs the disassembly of every function compiled without
	// errors.
	PrintCode bool
}

func NewCompiler(heap *Heap) *Compiler {
	return &Compiler{heap: heap}
}

// CompileSource scans and compiles source in one go.
func CompileSource(srcName, source string, heap *Heap) Result[*FunctionObj] {
	return NewCompiler(heap).Compile(NewLexer(srcName, source))
}

// Compile consumes tokens up to EOF. On any error the result carries a
// *CompileError with every diagnostic and no function.
func (c *Compiler) Compile(tokens TokenSource) Result[*FunctionObj] {
	c.tokens = tokens
	c.current = Token{}
	c.previous = Token{}
	c.started = false
	c.hadError = false
	c.panicMode = false
	c.diagnostics = nil
	c.fc = nil

	c.heap.addRoots(c)
	defer c.heap.removeRoots(c)

	c.beginFunction(KindScript, "")
	c.advance()
	for !c.match(TokenEOF) {
		c.declaration()
	}
	fc := c.endFunction()

	if c.hadError {
		return ResErr[*FunctionObj](&CompileError{Diagnostics: c.diagnostics})
	}
	return ResOk(fc.function)
}

func (c *Compiler) markRoots(h *Heap) {
	for fc := c.fc; fc != nil; fc = fc.enclosing {
		if fc.function != nil {
			h.markObject(fc.function)
		}
	}
}

// token handling

func (c *Compiler) advance() {
	c.previous = c.current
	if c.started && c.current.Kind == TokenEOF {
		return
	}
	c.started = true
	for {
		c.current = c.tokens.NextToken()
		if c.current.Kind != TokenError {
			return
		}
		c.errorAtCurrent(c.current.Value)
	}
}

func (c *Compiler) check(kind TokenType) bool {
	return c.current.Kind == kind
}

func (c *Compiler) match(kind TokenType) bool {
	if !c.check(kind) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(kind TokenType, msg string) {
	if c.check(kind) {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

// errors

func (c *Compiler) errorAt(tok Token, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true

	switch tok.Kind {
	case TokenEOF:
		c.diagnostics = append(c.diagnostics, NewCompileError(msg, " à la fin", tok.Loc))
	case TokenError:
		c.diagnostics = append(c.diagnostics, NewLexerError(msg, tok.Loc))
	default:
		c.diagnostics = append(c.diagnostics, NewCompileError(msg, fmt.Sprintf(" à '%s'", tok.Value), tok.Loc))
	}
}

func (c *Compiler) error(msg string) {
	c.errorAt(c.previous, msg)
}

func (c *Compiler) errorAtCurrent(msg string) {
	c.errorAt(c.current, msg)
}

func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.current.Kind != TokenEOF {
		if c.previous.Kind == TokenSemiColon {
			return
		}
		switch c.current.Kind {
		case TokenClasse, TokenFonction, TokenVar, TokenPour, TokenSi,
			TokenTantque, TokenAfficher, TokenRetourner, TokenSelon,
			TokenQuitter, TokenContinuer:
			return
		}
		c.advance()
	}
}

// emission

func (c *Compiler) currentChunk() *Chunk {
	return &c.fc.function.Chunk
}

func (c *Compiler) emitByte(b byte) {
	c.currentChunk().Write(b, c.previous.Loc.Line)
}

func (c *Compiler) emitOp(op OpCode) {
	c.emitByte(byte(op))
}

func (c *Compiler) emitOpByte(op OpCode, b byte) {
	c.emitByte(byte(op))
	c.emitByte(b)
}

func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(OpLoop)
	offset := c.currentChunk().Len() - loopStart + 2
	if offset > math.MaxUint16 {
		c.error("Corps de boucle trop grand.")
	}
	c.emitByte(byte(offset >> 8 & 0xff))
	c.emitByte(byte(offset & 0xff))
}

// emitJump writes a forward jump with a placeholder offset and returns
// where the offset lives.
func (c *Compiler) emitJump(op OpCode) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return c.currentChunk().Len() - 2
}

func (c *Compiler) patchJump(offset int) {
	jump := c.currentChunk().Len() - offset - 2
	if jump > math.MaxUint16 {
		c.error("Saut trop long.")
		return
	}
	c.currentChunk().PatchShort(offset, uint16(jump))
}

func (c *Compiler) emitReturn() {
	c.emitOp(OpNil)
	c.emitOp(OpReturn)
}

func (c *Compiler) makeConstant(v Value) byte {
	idx := c.currentChunk().AddConstant(v)
	if idx >= MaxConstants {
		c.error("Trop de constantes dans un seul bloc.")
		return 0
	}
	return byte(idx)
}

func (c *Compiler) emitConstant(v Value) {
	c.emitOpByte(OpConstant, c.makeConstant(v))
}

// function contexts

func (c *Compiler) beginFunction(kind FunctionKind, name string) {
	fc := &funcCompiler{enclosing: c.fc, kind: kind}
	c.fc = fc
	fc.function = c.heap.NewFunction()
	if kind != KindScript {
		fc.function.Name = c.heap.CopyString(name)
	}
	// slot zero holds the callee
	fc.locals = append(fc.locals, local{name: "", depth: 0})
}

func (c *Compiler) endFunction() *funcCompiler {
	c.emitReturn()
	fc := c.fc
	c.heap.recharge(fc.function)

	if c.PrintCode && !c.hadError && compilerLog.AllowLevel(commonlog.Debug) {
		var b strings.Builder
		DisassembleChunk(&b, &fc.function.Chunk, fc.function.DisplayName())
		compilerLog.Debug(b.String())
	}

	c.fc = fc.enclosing
	return fc
}

// scopes

func (c *Compiler) beginScope() {
	c.fc.scopeDepth++
}

func (c *Compiler) endScope() {
	fc := c.fc
	fc.scopeDepth--
	for len(fc.locals) > 0 && fc.locals[len(fc.locals)-1].depth > fc.scopeDepth {
		if fc.locals[len(fc.locals)-1].isCaptured {
			c.emitOp(OpCloseUpvalue)
		} else {
			c.emitOp(OpPop)
		}
		fc.locals = fc.locals[:len(fc.locals)-1]
	}
}

// discardLocals pops the stack down to count locals at runtime while the
// compiler keeps tracking them; used before jumping out of a block.
func (c *Compiler) discardLocals(count int) {
	fc := c.fc
	for i := len(fc.locals) - 1; i >= count; i-- {
		if fc.locals[i].isCaptured {
			c.emitOp(OpCloseUpvalue)
		} else {
			c.emitOp(OpPop)
		}
	}
}

func (c *Compiler) pushBreakable(isLoop bool, continueTarget int) *breakable {
	fc := c.fc
	if len(fc.breakables) >= MaxNesting {
		c.error("Trop de boucles imbriquées.")
	}
	b := &breakable{
		isLoop:         isLoop,
		localCount:     len(fc.locals),
		continueTarget: continueTarget,
	}
	fc.breakables = append(fc.breakables, b)
	return b
}

// popBreakable closes b and points its pending breaks at the current
// offset.
func (c *Compiler) popBreakable(b *breakable) {
	fc := c.fc
	fc.breakables = fc.breakables[:len(fc.breakables)-1]
	for _, jump := range b.breakJumps {
		c.patchJump(jump)
	}
}

// variables

func (c *Compiler) identifierConstant(name string) byte {
	s := c.heap.CopyString(name)
	for i, k := range c.currentChunk().Constants {
		if k.IsObj() && k.AsObj() == Obj(s) && i < MaxConstants {
			return byte(i)
		}
	}
	return c.makeConstant(ObjValue(s))
}

func (c *Compiler) addLocal(name string) {
	fc := c.fc
	if len(fc.locals) == MaxLocals {
		c.error("Trop de variables locales dans la fonction.")
		return
	}
	fc.locals = append(fc.locals, local{name: name, depth: -1})
}

func (c *Compiler) declareVariable() {
	fc := c.fc
	if fc.scopeDepth == 0 {
		return
	}
	name := c.previous.Value
	for i := len(fc.locals) - 1; i >= 0; i-- {
		l := fc.locals[i]
		if l.depth != -1 && l.depth < fc.scopeDepth {
			break
		}
		if l.name == name {
			c.error("Une variable avec ce nom existe déjà dans cette portée.")
		}
	}
	c.addLocal(name)
}

func (c *Compiler) parseVariable(msg string) byte {
	c.consume(TokenIdent, msg)
	c.declareVariable()
	if c.fc.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.previous.Value)
}

func (c *Compiler) markInitialized() {
	fc := c.fc
	if fc.scopeDepth == 0 {
		return
	}
	fc.locals[len(fc.locals)-1].depth = fc.scopeDepth
}

func (c *Compiler) defineVariable(global byte) {
	if c.fc.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitOpByte(OpDefineGlobal, global)
}

func (c *Compiler) resolveLocal(fc *funcCompiler, name string) int {
	for i := len(fc.locals) - 1; i >= 0; i-- {
		if fc.locals[i].name == name {
			if fc.locals[i].depth == -1 {
				c.error("Impossible de lire une variable locale dans son propre initialiseur.")
			}
			return i
		}
	}
	return -1
}

func (c *Compiler) addUpvalue(fc *funcCompiler, index uint8, isLocal bool) int {
	for i, uv := range fc.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if len(fc.upvalues) == MaxUpvalues {
		c.error("Trop de variables capturées dans la fonction.")
		return 0
	}
	fc.upvalues = append(fc.upvalues, upvalueRef{index: index, isLocal: isLocal})
	fc.function.UpvalueCount = len(fc.upvalues)
	return len(fc.upvalues) - 1
}

func (c *Compiler) resolveUpvalue(fc *funcCompiler, name string) int {
	if fc.enclosing == nil {
		return -1
	}
	if l := c.resolveLocal(fc.enclosing, name); l != -1 {
		fc.enclosing.locals[l].isCaptured = true
		return c.addUpvalue(fc, uint8(l), true)
	}
	if up := c.resolveUpvalue(fc.enclosing, name); up != -1 {
		return c.addUpvalue(fc, uint8(up), false)
	}
	return -1
}

func (c *Compiler) resolveVariable(name string) (getOp, setOp OpCode, arg byte) {
	if l := c.resolveLocal(c.fc, name); l != -1 {
		return OpGetLocal, OpSetLocal, byte(l)
	}
	if up := c.resolveUpvalue(c.fc, name); up != -1 {
		return OpGetUpvalue, OpSetUpvalue, byte(up)
	}
	return OpGetGlobal, OpSetGlobal, c.identifierConstant(name)
}

// declarations and statements

func (c *Compiler) declaration() {
	switch {
	case c.match(TokenFonction):
		c.funDeclaration()
	case c.match(TokenVar):
		c.varDeclaration()
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) funDeclaration() {
	global := c.parseVariable("Nom de fonction attendu.")
	c.markInitialized()
	c.function(KindFunction)
	c.defineVariable(global)
}

func (c *Compiler) function(kind FunctionKind) {
	c.beginFunction(kind, c.previous.Value)
	c.beginScope()

	c.consume(TokenLParen, "'(' attendu après le nom de la fonction.")
	if !c.check(TokenRParen) {
		for {
			c.fc.function.Arity++
			if c.fc.function.Arity > MaxParams {
				c.errorAtCurrent("Impossible d'avoir plus de 255 paramètres.")
			}
			constant := c.parseVariable("Nom de paramètre attendu.")
			c.defineVariable(constant)
			if !c.match(TokenComma) {
				break
			}
		}
	}
	c.consume(TokenRParen, "')' attendu après les paramètres.")
	c.consume(TokenLCurlyBrace, "'{' attendu avant le corps de la fonction.")
	c.block()

	fc := c.endFunction()
	c.emitOpByte(OpClosure, c.makeConstant(ObjValue(fc.function)))
	for _, uv := range fc.upvalues {
		if uv.isLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(uv.index)
	}
}

func (c *Compiler) varDeclaration() {
	global := c.parseVariable("Nom de variable attendu.")
	if c.match(TokenAssign) {
		c.expression()
	} else {
		c.emitOp(OpNil)
	}
	c.consume(TokenSemiColon, "';' attendu après la déclaration de variable.")
	c.defineVariable(global)
}

func (c *Compiler) statement() {
	switch {
	case c.match(TokenAfficher):
		c.printStatement()
	case c.match(TokenSi):
		c.ifStatement()
	case c.match(TokenTantque):
		c.whileStatement()
	case c.match(TokenPour):
		c.forStatement()
	case c.match(TokenSelon):
		c.switchStatement()
	case c.match(TokenRetourner):
		c.returnStatement()
	case c.match(TokenQuitter):
		c.breakStatement()
	case c.match(TokenContinuer):
		c.continueStatement()
	case c.match(TokenClasse):
		c.error("Les classes ne sont pas prises en charge.")
	case c.match(TokenLCurlyBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) block() {
	for !c.check(TokenRCurlyBrace) && !c.check(TokenEOF) {
		c.declaration()
	}
	c.consume(TokenRCurlyBrace, "'}' attendu après le bloc.")
}

func (c *Compiler) printStatement() {
	count := 0
	if !c.check(TokenSemiColon) {
		for {
			c.expression()
			if count == math.MaxUint8 {
				c.error("Trop de valeurs à afficher.")
			}
			count++
			if !c.match(TokenComma) {
				break
			}
		}
	}
	c.consume(TokenSemiColon, "';' attendu après la valeur.")
	c.emitOpByte(OpPrint, byte(count))
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(TokenSemiColon, "';' attendu après l'expression.")
	c.emitOp(OpPop)
}

func (c *Compiler) ifStatement() {
	c.consume(TokenLParen, "'(' attendu après 'si'.")
	c.expression()
	c.consume(TokenRParen, "')' attendu après la condition.")

	thenJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)
	c.statement()

	elseJump := c.emitJump(OpJump)
	c.patchJump(thenJump)
	c.emitOp(OpPop)

	if c.match(TokenSinon) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loopStart := c.currentChunk().Len()
	c.consume(TokenLParen, "'(' attendu après 'tantque'.")
	c.expression()
	c.consume(TokenRParen, "')' attendu après la condition.")

	exitJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)

	b := c.pushBreakable(true, loopStart)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(OpPop)
	c.popBreakable(b)
}

func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(TokenLParen, "'(' attendu après 'pour'.")
	switch {
	case c.match(TokenSemiColon):
	case c.match(TokenVar):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	loopStart := c.currentChunk().Len()
	exitJump := -1
	if !c.match(TokenSemiColon) {
		c.expression()
		c.consume(TokenSemiColon, "';' attendu après la condition de la boucle.")
		exitJump = c.emitJump(OpJumpIfFalse)
		c.emitOp(OpPop)
	}

	if !c.match(TokenRParen) {
		bodyJump := c.emitJump(OpJump)
		incrementStart := c.currentChunk().Len()
		c.expression()
		c.emitOp(OpPop)
		c.consume(TokenRParen, "')' attendu après les clauses de 'pour'.")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	}

	b := c.pushBreakable(true, loopStart)
	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(OpPop)
	}
	c.popBreakable(b)
	c.endScope()
}

// switchStatement lowers selon to a chain of equality tests against a
// hidden local holding the discriminant. A matching case runs into the
// following cases' bodies until quitter, like C.
func (c *Compiler) switchStatement() {
	c.consume(TokenLParen, "'(' attendu après 'selon'.")
	c.expression()
	c.consume(TokenRParen, "')' attendu après la valeur de 'selon'.")
	c.consume(TokenLCurlyBrace, "'{' attendu avant les cas de 'selon'.")

	c.beginScope()
	c.addLocal(" selon")
	c.markInitialized()
	slot := byte(len(c.fc.locals) - 1)
	b := c.pushBreakable(false, 0)

	skipJump := -1
	fallJump := -1
	sawDefault := false

	for !c.check(TokenRCurlyBrace) && !c.check(TokenEOF) {
		switch {
		case c.match(TokenCas):
			if sawDefault {
				c.error("'cas' interdit après 'defaut'.")
			}
			if skipJump != -1 {
				c.patchJump(skipJump)
				c.emitOp(OpPop)
			}
			c.emitOpByte(OpGetLocal, slot)
			c.expression()
			c.consume(TokenColon, "':' attendu après la valeur du cas.")
			c.emitOp(OpEqual)
			skipJump = c.emitJump(OpJumpIfFalse)
			c.emitOp(OpPop)

			if fallJump != -1 {
				c.patchJump(fallJump)
			}
			c.caseBody()
			fallJump = c.emitJump(OpJump)

		case c.match(TokenDefaut):
			if sawDefault {
				c.error("Un seul 'defaut' est permis.")
			}
			sawDefault = true
			c.consume(TokenColon, "':' attendu après 'defaut'.")
			if skipJump != -1 {
				c.patchJump(skipJump)
				c.emitOp(OpPop)
				skipJump = -1
			}
			if fallJump != -1 {
				c.patchJump(fallJump)
			}
			c.caseBody()
			fallJump = c.emitJump(OpJump)

		default:
			c.errorAtCurrent("'cas' ou 'defaut' attendu.")
			c.advance()
		}
	}

	if skipJump != -1 {
		c.patchJump(skipJump)
		c.emitOp(OpPop)
	}
	if fallJump != -1 {
		c.patchJump(fallJump)
	}
	c.popBreakable(b)

	c.consume(TokenRCurlyBrace, "'}' attendu après les cas de 'selon'.")
	c.endScope()
}

func (c *Compiler) caseBody() {
	c.beginScope()
	for !c.check(TokenCas) && !c.check(TokenDefaut) &&
		!c.check(TokenRCurlyBrace) && !c.check(TokenEOF) {
		c.declaration()
	}
	c.endScope()
}

func (c *Compiler) returnStatement() {
	if c.fc.kind == KindScript {
		c.error("Impossible de retourner depuis le code de niveau supérieur.")
	}
	if c.match(TokenSemiColon) {
		c.emitReturn()
		return
	}
	c.expression()
	c.consume(TokenSemiColon, "';' attendu après la valeur de retour.")
	c.emitOp(OpReturn)
}

func (c *Compiler) breakStatement() {
	fc := c.fc
	if len(fc.breakables) == 0 {
		c.error("'quitter' en dehors d'une boucle ou d'un 'selon'.")
		c.consume(TokenSemiColon, "';' attendu après 'quitter'.")
		return
	}
	c.consume(TokenSemiColon, "';' attendu après 'quitter'.")

	b := fc.breakables[len(fc.breakables)-1]
	c.discardLocals(b.localCount)
	b.breakJumps = append(b.breakJumps, c.emitJump(OpJump))
}

func (c *Compiler) continueStatement() {
	fc := c.fc
	var loop *breakable
	for i := len(fc.breakables) - 1; i >= 0; i-- {
		if fc.breakables[i].isLoop {
			loop = fc.breakables[i]
			break
		}
	}
	if loop == nil {
		c.error("'continuer' en dehors d'une boucle.")
		c.consume(TokenSemiColon, "';' attendu après 'continuer'.")
		return
	}
	c.consume(TokenSemiColon, "';' attendu après 'continuer'.")

	c.discardLocals(loop.localCount)
	c.emitLoop(loop.continueTarget)
}

// expressions

func (c *Compiler) expression() {
	c.parsePrecedence(PrecAssignment)
}

func (c *Compiler) parsePrecedence(prec Precedence) {
	c.advance()
	prefix := rules[c.previous.Kind].prefix
	if prefix == nil {
		c.error("Expression attendue.")
		return
	}

	canAssign := prec <= PrecAssignment
	prefix(c, canAssign)

	for prec <= rules[c.current.Kind].precedence {
		c.advance()
		rules[c.previous.Kind].infix(c, canAssign)
	}

	if canAssign && (c.match(TokenAssign) || c.matchCompound()) {
		c.error("Cible d'affectation invalide.")
	}
}

var compoundOps = map[TokenType]OpCode{
	TokenPlusEquals:  OpAdd,
	TokenMinusEquals: OpSubtract,
	TokenMulEquals:   OpMultiply,
	TokenDivEquals:   OpDivide,
	TokenModEquals:   OpModulo,
}

func (c *Compiler) matchCompound() bool {
	if _, ok := compoundOps[c.current.Kind]; ok {
		c.advance()
		return true
	}
	return false
}

func (c *Compiler) grouping(canAssign bool) {
	c.expression()
	c.consume(TokenRParen, "')' attendu après l'expression.")
}

func (c *Compiler) number(canAssign bool) {
	n, err := strconv.ParseFloat(c.previous.Value, 64)
	if err != nil {
		c.error("Nombre invalide.")
		return
	}
	c.emitConstant(NumberValue(n))
}

func (c *Compiler) stringLiteral(canAssign bool) {
	c.emitConstant(ObjValue(c.heap.CopyString(c.previous.Value)))
}

func (c *Compiler) literal(canAssign bool) {
	switch c.previous.Kind {
	case TokenFaux:
		c.emitOp(OpFalse)
	case TokenNul:
		c.emitOp(OpNil)
	case TokenVrai:
		c.emitOp(OpTrue)
	}
}

func (c *Compiler) reserved(canAssign bool) {
	c.error(fmt.Sprintf("'%s' est un mot réservé.", c.previous.Value))
}

func (c *Compiler) unary(canAssign bool) {
	op := c.previous.Kind
	c.parsePrecedence(PrecUnary)
	switch op {
	case TokenMinus:
		c.emitOp(OpNegate)
	case TokenBang:
		c.emitOp(OpNot)
	}
}

var binaryOps = map[TokenType]OpCode{
	TokenPlus:  OpAdd,
	TokenMinus: OpSubtract,
	TokenMul:   OpMultiply,
	TokenDiv:   OpDivide,
	TokenMod:   OpModulo,
	TokenEQ:    OpEqual,
	TokenNEQ:   OpNotEqual,
	TokenGT:    OpGreater,
	TokenGTE:   OpGreaterEqual,
	TokenLT:    OpLess,
	TokenLTE:   OpLessEqual,
}

func (c *Compiler) binary(canAssign bool) {
	op := c.previous.Kind
	c.parsePrecedence(rules[op].precedence + 1)
	c.emitOp(binaryOps[op])
}

func (c *Compiler) and(canAssign bool) {
	endJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)
	c.parsePrecedence(PrecAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or(canAssign bool) {
	elseJump := c.emitJump(OpJumpIfFalse)
	endJump := c.emitJump(OpJump)
	c.patchJump(elseJump)
	c.emitOp(OpPop)
	c.parsePrecedence(PrecOr)
	c.patchJump(endJump)
}

func (c *Compiler) ternary(canAssign bool) {
	thenJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)
	c.parsePrecedence(PrecConditional)
	c.consume(TokenColon, "':' attendu dans l'expression conditionnelle.")

	elseJump := c.emitJump(OpJump)
	c.patchJump(thenJump)
	c.emitOp(OpPop)
	c.parsePrecedence(PrecConditional)
	c.patchJump(elseJump)
}

func (c *Compiler) call(canAssign bool) {
	argCount := c.argumentList()
	c.emitOpByte(OpCall, argCount)
}

func (c *Compiler) argumentList() byte {
	count := 0
	if !c.check(TokenRParen) {
		for {
			c.expression()
			if count == MaxArgs {
				c.error("Impossible d'avoir plus de 255 arguments.")
			}
			count++
			if !c.match(TokenComma) {
				break
			}
		}
	}
	c.consume(TokenRParen, "')' attendu après les arguments.")
	return byte(count)
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.previous.Value, canAssign)
}

func (c *Compiler) namedVariable(name string, canAssign bool) {
	getOp, setOp, arg := c.resolveVariable(name)

	switch {
	case canAssign && c.match(TokenAssign):
		c.expression()
		c.emitOpByte(setOp, arg)
	case canAssign && c.matchCompound():
		op := compoundOps[c.previous.Kind]
		c.emitOpByte(getOp, arg)
		c.expression()
		c.emitOp(op)
		c.emitOpByte(setOp, arg)
	case c.match(TokenPlusPlus), c.match(TokenMinusMinus):
		// postfix: the old value stays on the stack
		op := OpAdd
		if c.previous.Kind == TokenMinusMinus {
			op = OpSubtract
		}
		c.emitOpByte(getOp, arg)
		c.emitOpByte(getOp, arg)
		c.emitConstant(NumberValue(1))
		c.emitOp(op)
		c.emitOpByte(setOp, arg)
		c.emitOp(OpPop)
	default:
		c.emitOpByte(getOp, arg)
	}
}

func (c *Compiler) prefixIncrement(canAssign bool) {
	op := OpAdd
	if c.previous.Kind == TokenMinusMinus {
		op = OpSubtract
	}
	c.consume(TokenIdent, "Nom de variable attendu après l'opérateur.")
	if c.previous.Kind != TokenIdent {
		return
	}
	getOp, setOp, arg := c.resolveVariable(c.previous.Value)
	c.emitOpByte(getOp, arg)
	c.emitConstant(NumberValue(1))
	c.emitOp(op)
	c.emitOpByte(setOp, arg)
}

package zia

import (
	"strings"
	"unicode"
)

// Lexer scans source lazily: each NextToken call produces one token.
// Lexical errors come back as TokenError tokens whose Value is the
// message, leaving the compiler to report them.
type Lexer struct {
	source   []rune
	srcName  string
	currIdx  int
	currChar rune
	line     int
	col      int
	done     bool
}

func NewLexer(srcName, source string) *Lexer {
	l := &Lexer{
		source:  []rune(source),
		srcName: srcName,
		currIdx: 0,
		line:    1,
		col:     1,
	}

	if len(l.source) > 0 {
		l.currChar = l.source[0]
	}
	return l
}

func (l *Lexer) advance() {
	if l.currChar == '\n' {
		l.line++
		l.col = 0
	}
	l.currIdx++
	if l.currIdx < len(l.source) {
		l.currChar = l.source[l.currIdx]
	} else {
		l.currChar = 0
	}
	l.col++
}

func (l *Lexer) hasChar() bool {
	return l.currIdx < len(l.source)
}

func (l *Lexer) peek(offset int) rune {
	peekIdx := l.currIdx + offset
	if peekIdx < len(l.source) {
		return l.source[peekIdx]
	}
	return 0
}

func (l *Lexer) locFrom(line, colStart int) Loc {
	colEnd := l.col - 1
	if l.line != line || colEnd < colStart {
		colEnd = colStart
	}
	return NewLoc(l.srcName, line, colStart, &colEnd)
}

func (l *Lexer) errorToken(msg string, line, col int) Token {
	return Token{Kind: TokenError, Value: msg, Loc: NewLoc(l.srcName, line, col, nil)}
}

// skipTrivia consumes whitespace and comments. It returns an error token
// for an unterminated block comment.
func (l *Lexer) skipTrivia() (Token, bool) {
	for l.hasChar() {
		switch {
		case unicode.IsSpace(l.currChar):
			l.advance()
		case l.currChar == '/' && l.peek(1) == '/':
			for l.hasChar() && l.currChar != '\n' {
				l.advance()
			}
		case l.currChar == '/' && l.peek(1) == '*':
			startLine, startCol := l.line, l.col
			l.advance()
			l.advance()
			closed := false
			for l.hasChar() {
				if l.currChar == '*' && l.peek(1) == '/' {
					l.advance()
					l.advance()
					closed = true
					break
				}
				l.advance()
			}
			if !closed {
				return l.errorToken("Commentaire non terminé.", startLine, startCol), true
			}
		default:
			return Token{}, false
		}
	}
	return Token{}, false
}

var singleSymbols = map[rune]TokenType{
	'(': TokenLParen,
	')': TokenRParen,
	'{': TokenLCurlyBrace,
	'}': TokenRCurlyBrace,
	';': TokenSemiColon,
	',': TokenComma,
	'.': TokenDot,
	':': TokenColon,
	'?': TokenQuestion,
}

// operator spellings, longest first for each leading rune
var operatorTable = map[rune][]struct {
	text string
	kind TokenType
}{
	'+': {{"++", TokenPlusPlus}, {"+=", TokenPlusEquals}, {"+", TokenPlus}},
	'-': {{"--", TokenMinusMinus}, {"-=", TokenMinusEquals}, {"-", TokenMinus}},
	'*': {{"*=", TokenMulEquals}, {"*", TokenMul}},
	'/': {{"/=", TokenDivEquals}, {"/", TokenDiv}},
	'%': {{"%=", TokenModEquals}, {"%", TokenMod}},
	'!': {{"!=", TokenNEQ}, {"!", TokenBang}},
	'=': {{"==", TokenEQ}, {"=", TokenAssign}},
	'<': {{"<=", TokenLTE}, {"<", TokenLT}},
	'>': {{">=", TokenGTE}, {">", TokenGT}},
}

func (l *Lexer) NextToken() Token {
	if l.done {
		return Token{Kind: TokenEOF, Loc: NewLoc(l.srcName, l.line, l.col, nil)}
	}
	if errTok, failed := l.skipTrivia(); failed {
		return errTok
	}
	if !l.hasChar() {
		l.done = true
		return Token{Kind: TokenEOF, Loc: NewLoc(l.srcName, l.line, l.col, nil)}
	}

	startLine, startCol := l.line, l.col
	c := l.currChar

	if kind, ok := singleSymbols[c]; ok {
		l.advance()
		return Token{Kind: kind, Value: string(c), Loc: l.locFrom(startLine, startCol)}
	}

	if candidates, ok := operatorTable[c]; ok {
		for _, cand := range candidates {
			if l.matchText(cand.text) {
				for range []rune(cand.text) {
					l.advance()
				}
				return Token{Kind: cand.kind, Value: cand.text, Loc: l.locFrom(startLine, startCol)}
			}
		}
	}

	switch {
	case unicode.IsDigit(c):
		return l.parseNumber()
	case c == '"' || c == '\'':
		return l.parseString()
	case unicode.IsLetter(c) || c == '_':
		return l.parseIdent()
	}

	l.advance()
	return l.errorToken("Caractère inattendu.", startLine, startCol)
}

func (l *Lexer) matchText(text string) bool {
	for i, r := range []rune(text) {
		if l.peek(i) != r {
			return false
		}
	}
	return true
}

// Tokenize drains the lexer, EOF token included.
func (l *Lexer) Tokenize() []Token {
	tokens := make([]Token, 0)
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Kind == TokenEOF {
			return tokens
		}
	}
}

func (l *Lexer) parseNumber() Token {
	startLine, startCol := l.line, l.col
	var sb strings.Builder

	for l.hasChar() && unicode.IsDigit(l.currChar) {
		sb.WriteRune(l.currChar)
		l.advance()
	}
	if l.currChar == '.' && unicode.IsDigit(l.peek(1)) {
		sb.WriteRune('.')
		l.advance()
		for l.hasChar() && unicode.IsDigit(l.currChar) {
			sb.WriteRune(l.currChar)
			l.advance()
		}
	}

	return Token{Kind: TokenNumber, Value: sb.String(), Loc: l.locFrom(startLine, startCol)}
}

func (l *Lexer) parseString() Token {
	startLine, startCol := l.line, l.col
	startQuote := l.currChar
	var sb strings.Builder

	l.advance()
	for l.hasChar() && l.currChar != startQuote {
		if l.currChar == '\\' {
			l.advance()
			if !l.hasChar() {
				break
			}
			switch l.currChar {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			case '0':
				sb.WriteRune(0)
			default:
				sb.WriteRune(l.currChar)
			}
			l.advance()
			continue
		}
		sb.WriteRune(l.currChar)
		l.advance()
	}

	if !l.hasChar() {
		return l.errorToken("Chaîne non terminée.", startLine, startCol)
	}

	l.advance()
	loc := NewLoc(l.srcName, startLine, startCol, nil)
	if l.line == startLine {
		colEnd := l.col - 1
		loc.ColEnd = &colEnd
	}
	return Token{Kind: TokenString, Value: sb.String(), Loc: loc}
}

func (l *Lexer) parseIdent() Token {
	startLine, startCol := l.line, l.col
	var sb strings.Builder

	for l.hasChar() && (isAlnumChar(l.currChar) || l.currChar == '_') {
		sb.WriteRune(l.currChar)
		l.advance()
	}

	ident := sb.String()
	kind := TokenIdent
	if kw, ok := Keywords[ident]; ok {
		kind = kw
	}
	return Token{Kind: kind, Value: ident, Loc: l.locFrom(startLine, startCol)}
}

func isAlnumChar(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c)
}

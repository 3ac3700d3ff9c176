package zia

import (
	"fmt"
	"slices"
)

type TokenType int

const (
	TokenLParen TokenType = iota
	TokenRParen
	TokenLCurlyBrace
	TokenRCurlyBrace
	TokenComma
	TokenDot
	TokenMinus
	TokenPlus
	TokenSemiColon
	TokenColon
	TokenQuestion
	TokenDiv
	TokenMul
	TokenMod
	TokenBang
	TokenNEQ
	TokenAssign
	TokenEQ
	TokenGT
	TokenGTE
	TokenLT
	TokenLTE
	TokenPlusPlus
	TokenMinusMinus
	TokenPlusEquals
	TokenMinusEquals
	TokenMulEquals
	TokenDivEquals
	TokenModEquals

	TokenIdent
	TokenString
	TokenNumber

	TokenEt
	TokenOu
	TokenSi
	TokenSinon
	TokenTantque
	TokenPour
	TokenSelon
	TokenCas
	TokenDefaut
	TokenQuitter
	TokenContinuer
	TokenFonction
	TokenRetourner
	TokenVar
	TokenVrai
	TokenFaux
	TokenNul
	TokenAfficher
	TokenClasse
	TokenCeci
	TokenSuper

	TokenError
	TokenEOF

	tokenTypeCount
)

func (t TokenType) String() string {
	if t < 0 || t >= tokenTypeCount {
		return fmt.Sprintf("TokenType(%d)", int(t))
	}
	return []string{
		"TokenLParen",
		"TokenRParen",
		"TokenLCurlyBrace",
		"TokenRCurlyBrace",
		"TokenComma",
		"TokenDot",
		"TokenMinus",
		"TokenPlus",
		"TokenSemiColon",
		"TokenColon",
		"TokenQuestion",
		"TokenDiv",
		"TokenMul",
		"TokenMod",
		"TokenBang",
		"TokenNEQ",
		"TokenAssign",
		"TokenEQ",
		"TokenGT",
		"TokenGTE",
		"TokenLT",
		"TokenLTE",
		"TokenPlusPlus",
		"TokenMinusMinus",
		"TokenPlusEquals",
		"TokenMinusEquals",
		"TokenMulEquals",
		"TokenDivEquals",
		"TokenModEquals",
		"TokenIdent",
		"TokenString",
		"TokenNumber",
		"TokenEt",
		"TokenOu",
		"TokenSi",
		"TokenSinon",
		"TokenTantque",
		"TokenPour",
		"TokenSelon",
		"TokenCas",
		"TokenDefaut",
		"TokenQuitter",
		"TokenContinuer",
		"TokenFonction",
		"TokenRetourner",
		"TokenVar",
		"TokenVrai",
		"TokenFaux",
		"TokenNul",
		"TokenAfficher",
		"TokenClasse",
		"TokenCeci",
		"TokenSuper",
		"TokenError",
		"TokenEOF",
	}[t]
}

// Keywords maps every reserved word to its token type. "retourne" is
// accepted as a synonym of "retourner".
var Keywords = map[string]TokenType{
	"et":        TokenEt,
	"ou":        TokenOu,
	"si":        TokenSi,
	"sinon":     TokenSinon,
	"tantque":   TokenTantque,
	"pour":      TokenPour,
	"selon":     TokenSelon,
	"cas":       TokenCas,
	"defaut":    TokenDefaut,
	"quitter":   TokenQuitter,
	"continuer": TokenContinuer,
	"fonction":  TokenFonction,
	"retourner": TokenRetourner,
	"retourne":  TokenRetourner,
	"var":       TokenVar,
	"vrai":      TokenVrai,
	"faux":      TokenFaux,
	"nul":       TokenNul,
	"afficher":  TokenAfficher,
	"classe":    TokenClasse,
	"ceci":      TokenCeci,
	"super":     TokenSuper,
}

var KeywordConsts = []string{
	"si", "sinon", "tantque", "pour", "selon", "cas", "defaut", "quitter",
	"continuer", "fonction", "retourner", "var", "vrai", "faux", "nul",
	"afficher", "et", "ou",
}

func IsKeyword(s string) bool {
	_, ok := Keywords[s]
	return ok
}

// GetAllKeywords lists the keywords usable in programs; reserved words
// without a meaning are left out.
func GetAllKeywords() []string {
	return slices.Clone(KeywordConsts)
}

type Loc struct {
	FileName string `json:"fileName"`
	Line     int    `json:"line"`
	ColStart int    `json:"colStart"`
	ColEnd   *int   `json:"colEnd,omitempty"`
}

func NewLoc(fileName string, line, colStart int, colEnd *int) Loc {
	return Loc{
		FileName: fileName,
		Line:     line,
		ColStart: colStart,
		ColEnd:   colEnd,
	}
}

func (l Loc) String() string {
	if l.ColEnd != nil {
		return fmt.Sprintf("%d:%d-%d", l.Line, l.ColStart, *l.ColEnd)
	}
	return fmt.Sprintf("%d:%d", l.Line, l.ColStart)
}

type Token struct {
	Kind  TokenType `json:"kind"`
	Value string    `json:"value"`
	Loc   Loc       `json:"loc"`
}

func (t Token) GetFileLoc() string {
	return fmt.Sprintf("%s:%s", t.Loc.FileName, t.Loc.String())
}

func (t Token) String() string {
	return fmt.Sprintf("%s %s", t.Kind, t.Value)
}

// TokenSource yields tokens one at a time. After TokenEOF it keeps
// returning TokenEOF.
type TokenSource interface {
	NextToken() Token
}

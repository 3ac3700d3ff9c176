package zia

import (
	"fmt"
	"strings"
)

type Error interface {
	error
	GetLocation() Loc
}

type ErrorType int

const (
	ErrorRuntime ErrorType = iota
	ErrorLexer
	ErrorCompile
)

func (t ErrorType) String() string {
	return []string{
		"RuntimeError",
		"LexerError",
		"CompileError",
	}[t]
}

// ZiaError is a single located diagnostic. Where holds the text shown
// after "Erreur": " à la fin", " à 'x'" or nothing for lexer errors.
type ZiaError struct {
	Type  ErrorType
	Msg   string
	Where string
	Loc   Loc
}

func (e *ZiaError) Error() string {
	return fmt.Sprintf("[ligne %d] Erreur%s : %s", e.Loc.Line, e.Where, e.Msg)
}

func (e *ZiaError) GetLocation() Loc {
	return e.Loc
}

// ShowSource renders the error followed by the offending source line and
// a caret underline.
func (e *ZiaError) ShowSource(source string) string {
	lines := strings.Split(source, "\n")
	if e.Loc.Line > 0 && e.Loc.Line <= len(lines) {
		line := lines[e.Loc.Line-1]
		start := max(e.Loc.ColStart-1, 0)
		width := 1
		if e.Loc.ColEnd != nil && *e.Loc.ColEnd >= e.Loc.ColStart {
			width = *e.Loc.ColEnd - e.Loc.ColStart + 1
		}
		underline := strings.Repeat(" ", start) + strings.Repeat("^", width)
		return fmt.Sprintf("%s\n%s\n%s", e.Error(), line, underline)
	}
	return e.Error()
}

func NewLexerError(msg string, loc Loc) *ZiaError {
	return &ZiaError{Type: ErrorLexer, Msg: msg, Loc: loc}
}

func NewCompileError(msg, where string, loc Loc) *ZiaError {
	return &ZiaError{Type: ErrorCompile, Msg: msg, Where: where, Loc: loc}
}

// CompileError gathers every diagnostic reported while compiling one
// source.
type CompileError struct {
	Diagnostics []*ZiaError
}

func (e *CompileError) Error() string {
	parts := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		parts[i] = d.Error()
	}
	return strings.Join(parts, "\n")
}

func (e *CompileError) GetLocation() Loc {
	if len(e.Diagnostics) == 0 {
		return Loc{}
	}
	return e.Diagnostics[0].Loc
}

// Incomplete reports whether the source only failed because it ended too
// early, as an interactive reader sees after an unclosed block, string or
// comment.
func (e *CompileError) Incomplete() bool {
	for _, d := range e.Diagnostics {
		if d.Where == " à la fin" || unterminated[d.Msg] {
			return true
		}
	}
	return false
}

var unterminated = map[string]bool{
	"Chaîne non terminée.":     true,
	"Commentaire non terminé.": true,
}

func (e *CompileError) ShowSource(source string) string {
	parts := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		parts[i] = d.ShowSource(source)
	}
	return strings.Join(parts, "\n")
}

type TraceEntry struct {
	Line     int
	Function string
}

func (t TraceEntry) String() string {
	if t.Function == "" {
		return fmt.Sprintf("[ligne %d] dans le script", t.Line)
	}
	return fmt.Sprintf("[ligne %d] dans %s()", t.Line, t.Function)
}

// RuntimeError aborts a run. Trace lists the active frames innermost
// first.
type RuntimeError struct {
	Msg   string
	Trace []TraceEntry
	Loc   Loc
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Msg)
	for _, t := range e.Trace {
		b.WriteByte('\n')
		b.WriteString(t.String())
	}
	return b.String()
}

func (e *RuntimeError) GetLocation() Loc {
	return e.Loc
}

type Result[T any] struct {
	Value T
	Err   Error
}

func ResOk[T any](value T) Result[T] {
	return Result[T]{Value: value, Err: nil}
}

func ResErr[T any](err Error) Result[T] {
	return Result[T]{Err: err}
}

func (r Result[T]) IsOk() bool {
	return r.Err == nil
}

func (r Result[T]) IsErr() bool {
	return r.Err != nil
}

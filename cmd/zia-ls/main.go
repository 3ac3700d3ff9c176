package main

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"unicode"

	"ziavm/zia"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	_ "github.com/tliron/commonlog/simple"
)

const (
	lsName = "zia-ls"

	CIKFunction = protocol.CompletionItemKindFunction
	CIKKeyword  = protocol.CompletionItemKindKeyword
)

var (
	version = "0.1.0"
	handler protocol.Handler
	log     = commonlog.GetLogger(lsName)

	documentsMutex sync.RWMutex
	documents      = make(map[protocol.DocumentUri]string)
)

func main() {
	commonlog.Configure(1, nil)

	handler = protocol.Handler{
		Initialize:             initialize,
		Initialized:            initialized,
		Shutdown:               shutdown,
		SetTrace:               setTrace,
		TextDocumentDidOpen:    textDocumentDidOpen,
		TextDocumentDidChange:  textDocumentDidChange,
		TextDocumentDidClose:   textDocumentDidClose,
		TextDocumentDidSave:    textDocumentDidSave,
		TextDocumentCompletion: textDocumentCompletion,
		TextDocumentHover:      textDocumentHover,
	}

	s := server.NewServer(&handler, lsName, false)
	s.RunStdio()
}

func initialize(context *glsp.Context, params *protocol.InitializeParams) (any, error) {
	capabilities := handler.CreateServerCapabilities()
	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
		Save:      &protocol.SaveOptions{IncludeText: boolPtr(false)},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &version,
		},
	}, nil
}

func initialized(context *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func shutdown(context *glsp.Context) error {
	return nil
}

func setTrace(context *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func textDocumentDidOpen(context *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	documentsMutex.Lock()
	defer documentsMutex.Unlock()
	documents[params.TextDocument.URI] = params.TextDocument.Text
	go publishDiagnostics(context, params.TextDocument.URI, params.TextDocument.Text)
	return nil
}

func textDocumentDidChange(context *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}

	change, ok := params.ContentChanges[len(params.ContentChanges)-1].(protocol.TextDocumentContentChangeEventWhole)
	if !ok {
		return fmt.Errorf("%s only accepts full document changes", lsName)
	}

	documentsMutex.Lock()
	documents[params.TextDocument.URI] = change.Text
	documentsMutex.Unlock()

	go publishDiagnostics(context, params.TextDocument.URI, change.Text)
	return nil
}

func textDocumentDidClose(context *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	documentsMutex.Lock()
	defer documentsMutex.Unlock()
	delete(documents, params.TextDocument.URI)
	return nil
}

func textDocumentDidSave(context *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	return nil
}

func textDocumentCompletion(context *glsp.Context, params *protocol.CompletionParams) (any, error) {
	log.Debugf("completion for %s at %d:%d", params.TextDocument.URI, params.Position.Line+1, params.Position.Character)
	return protocol.CompletionList{
		IsIncomplete: false,
		Items:        completionItems(),
	}, nil
}

// completionItems lists natives, documented when possible, then keywords.
func completionItems() []protocol.CompletionItem {
	items := []protocol.CompletionItem{}
	seen := make(map[string]bool)

	kindFunc := CIKFunction
	for _, name := range slices.Sorted(maps.Keys(zia.Builtins)) {
		item := protocol.CompletionItem{Label: name, Kind: &kindFunc}
		detail := "fonction native"
		if doc, ok := zia.BuiltinDocs[name]; ok {
			detail = doc.Signature(name)
			item.Documentation = protocol.MarkupContent{
				Kind:  protocol.MarkupKindMarkdown,
				Value: doc.String(),
			}
		}
		item.Detail = &detail
		items = append(items, item)
		seen[name] = true
	}

	kindKeyword := CIKKeyword
	detailKeyword := "mot-clé"
	for _, keyword := range zia.GetAllKeywords() {
		if seen[keyword] {
			continue
		}
		items = append(items, protocol.CompletionItem{
			Label:  keyword,
			Kind:   &kindKeyword,
			Detail: &detailKeyword,
		})
		seen[keyword] = true
	}
	return items
}

func textDocumentHover(context *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	documentsMutex.RLock()
	content, ok := documents[params.TextDocument.URI]
	documentsMutex.RUnlock()
	if !ok {
		return nil, nil
	}
	return hover(extractWord(content, params.Position)), nil
}

func hover(word string) *protocol.Hover {
	if word == "" {
		return nil
	}
	var value string
	if doc, ok := zia.BuiltinDocs[word]; ok {
		value = fmt.Sprintf("```zia\n%s\n```\n\n%s", doc.Signature(word), doc.String())
	} else if zia.IsKeyword(word) {
		value = fmt.Sprintf("`%s` : mot-clé", word)
	} else {
		return nil
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: value,
		},
	}
}

func publishDiagnostics(context *glsp.Context, uri protocol.DocumentUri, content string) {
	context.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnose(uri, content),
	})
}

// diagnose compiles content on a scratch heap and converts every
// reported error.
func diagnose(uri protocol.DocumentUri, content string) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	severity := protocol.DiagnosticSeverityError

	heap := zia.NewHeap(nil)
	defer heap.FreeAll()
	res := zia.CompileSource(uri, content, heap)
	if res.IsOk() {
		return diagnostics
	}

	var compileErr *zia.CompileError
	if !errors.As(res.Err, &compileErr) {
		log.Errorf("unexpected compile failure for %s: %v", uri, res.Err)
		return diagnostics
	}
	for _, d := range compileErr.Diagnostics {
		source := lsName + " (compilateur)"
		if d.Type == zia.ErrorLexer {
			source = lsName + " (lexer)"
		}
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    lspRangeFromLoc(d.Loc),
			Severity: &severity,
			Source:   &source,
			Message:  strings.TrimSpace(fmt.Sprintf("Erreur%s : %s", d.Where, d.Msg)),
		})
	}
	return diagnostics
}

func lspRangeFromLoc(loc zia.Loc) protocol.Range {
	line := max(loc.Line-1, 0)
	startChar := max(loc.ColStart-1, 0)
	endChar := startChar + 1
	if loc.ColEnd != nil && *loc.ColEnd > startChar {
		endChar = *loc.ColEnd
	}

	return protocol.Range{
		Start: protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(startChar)},
		End:   protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(endChar)},
	}
}

// extractWord returns the identifier under pos. Characters count runes.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := []rune(lines[pos.Line])
	col := min(int(pos.Character), len(line))

	isWord := func(ch rune) bool {
		return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
	}
	start := col
	for start > 0 && isWord(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && isWord(line[end]) {
		end++
	}
	return string(line[start:end])
}

func boolPtr(b bool) *bool {
	return &b
}

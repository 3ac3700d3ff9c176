package main

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"ziavm/zia"

	"github.com/peterh/liner"
	"github.com/urfave/cli"
)

const (
	historyFile = ".zia_history"
	promptMain  = "> "
	promptCont  = "... "
	banner      = "Zia (tapez :quitter pour sortir)"
)

func repl() error {
	cfg, err := loadConfig(".")
	if err != nil {
		return err
	}
	vm, err := newVM(cfg)
	if err != nil {
		return cli.NewExitError(err.Error(), exitRuntime)
	}
	defer vm.Free()

	fmt.Println(banner)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(completeWord)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	stop := interruptOnSignal(vm)
	defer stop()

	for {
		code, ok := readByCompileProbe(ln, promptMain, promptCont)
		if !ok {
			fmt.Println()
			return nil
		}
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))

		if strings.HasPrefix(trimmed, ":") {
			if replCommand(vm, trimmed) {
				return nil
			}
			continue
		}

		if err := vm.Run("repl", code); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

// replCommand runs a colon command and reports whether the session ends.
func replCommand(vm *zia.VM, cmd string) bool {
	switch strings.ToLower(cmd) {
	case ":quitter", ":q":
		return true
	case ":globales":
		for _, name := range vm.GlobalNames() {
			v, _ := vm.GetGlobal(name)
			fmt.Printf("%s = %s\n", name, v)
		}
	case ":memoire":
		heap := vm.Heap()
		fmt.Printf("%d objets, %d octets, prochaine collecte à %d, %d collectes\n",
			heap.LiveObjects(), heap.BytesAllocated(), heap.NextGC(), heap.Collections())
	default:
		fmt.Println("commande inconnue, essayez :quitter, :globales ou :memoire")
	}
	return false
}

// readByCompileProbe keeps reading lines while the buffered source only
// fails for lack of input.
func readByCompileProbe(ln *liner.State, prompt, cont string) (string, bool) {
	var b strings.Builder

	for {
		var line string
		var err error
		if b.Len() == 0 {
			line, err = ln.Prompt(prompt)
		} else {
			line, err = ln.Prompt(cont)
		}
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true
		}
		if err != nil {
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if strings.HasPrefix(strings.TrimSpace(src), ":") || !needsMore(src) {
			return src, true
		}
	}
}

func needsMore(src string) bool {
	heap := zia.NewHeap(nil)
	defer heap.FreeAll()
	res := zia.CompileSource("repl", src, heap)
	if res.IsOk() {
		return false
	}
	var compileErr *zia.CompileError
	return errors.As(res.Err, &compileErr) && compileErr.Incomplete()
}

// completeWord offers keywords and natives for the last word on the line.
func completeWord(line string) []string {
	start := strings.LastIndexFunc(line, func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r > 127)
	}) + 1
	prefix := line[start:]
	if prefix == "" {
		return nil
	}
	var out []string
	for _, word := range zia.GetAllKeywords() {
		if strings.HasPrefix(word, prefix) {
			out = append(out, line[:start]+word)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(zia.Builtins)) {
		if strings.HasPrefix(name, prefix) {
			out = append(out, line[:start]+name)
		}
	}
	return out
}

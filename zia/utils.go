package zia

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// RunScript compiles and runs code on vm.
func RunScript(vm *VM, fileName string, code string) error {
	return vm.Run(fileName, code)
}

// RunFile runs a source file or, when the name ends in .ziac, a bytecode
// image. I/O failures are returned wrapped in *os.PathError.
func RunFile(vm *VM, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	name := filepath.Base(path)
	if !IsImagePath(path) {
		return RunScript(vm, name, string(data))
	}
	fn, err := DecodeFunction(vm.Heap(), data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return vm.RunFunction(name, fn)
}

func IsImagePath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ImageExt)
}

// DisassembleAndShow compiles code on a scratch heap and writes the
// listing of every function to w.
func DisassembleAndShow(w io.Writer, fileName string, code string) error {
	heap := NewHeap(nil)
	defer heap.FreeAll()

	res := CompileSource(fileName, code, heap)
	if res.IsErr() {
		return res.Err
	}
	DisassembleFunction(w, res.Value)
	return nil
}

// DisassembleString is DisassembleAndShow into a string.
func DisassembleString(fileName string, code string) (string, error) {
	var buf bytes.Buffer
	if err := DisassembleAndShow(&buf, fileName, code); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildImage compiles code and returns its bytecode image.
func BuildImage(fileName string, code string) ([]byte, error) {
	heap := NewHeap(nil)
	defer heap.FreeAll()

	res := CompileSource(fileName, code, heap)
	if res.IsErr() {
		return nil, res.Err
	}
	return EncodeFunction(res.Value)
}

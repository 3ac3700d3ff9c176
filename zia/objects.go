package zia

import (
	"fmt"
	"hash/fnv"
)

type ObjType uint8

const (
	ObjString ObjType = iota
	ObjFunction
	ObjClosure
	ObjUpvalue
	ObjNative
)

func (t ObjType) String() string {
	return []string{"string", "function", "closure", "upvalue", "native"}[t]
}

// Obj is the closed set of heap-allocated kinds. Only this package can add
// implementations.
type Obj interface {
	Type() ObjType
	String() string
	header() *objHeader
	// size is the byte estimate charged to the heap
	size() int
	// release clears references so a use after sweep is observable
	release()
}

type objHeader struct {
	marked  bool
	slot    int
	charged int
}

func (h *objHeader) header() *objHeader { return h }

type StringObj struct {
	objHeader
	Chars string
	Hash  uint32
}

func (s *StringObj) Type() ObjType  { return ObjString }
func (s *StringObj) String() string { return s.Chars }
func (s *StringObj) size() int      { return 32 + len(s.Chars) }
func (s *StringObj) release()       { s.Chars = "" }

// HashString is 32-bit FNV-1a, the hash cached on every StringObj.
func HashString(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

type FunctionObj struct {
	objHeader
	Arity        int
	UpvalueCount int
	Chunk        Chunk
	// Name is nil for the top-level script.
	Name *StringObj
}

func (f *FunctionObj) Type() ObjType { return ObjFunction }

func (f *FunctionObj) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Chars)
}

// DisplayName is the function name used in traces and listings.
func (f *FunctionObj) DisplayName() string {
	if f.Name == nil {
		return "script"
	}
	return f.Name.Chars
}

func (f *FunctionObj) size() int {
	return 64 + cap(f.Chunk.Code) + 8*cap(f.Chunk.Lines) + 32*cap(f.Chunk.Constants)
}

func (f *FunctionObj) release() {
	f.Chunk = Chunk{}
	f.Name = nil
}

type ClosureObj struct {
	objHeader
	Function *FunctionObj
	Upvalues []*UpvalueObj
}

func (c *ClosureObj) Type() ObjType  { return ObjClosure }
func (c *ClosureObj) String() string { return c.Function.String() }
func (c *ClosureObj) size() int      { return 32 + 8*len(c.Upvalues) }

func (c *ClosureObj) release() {
	c.Function = nil
	c.Upvalues = nil
}

// UpvalueObj is a captured variable. While Open it designates the VM
// stack slot Slot; once closed it owns Closed.
type UpvalueObj struct {
	objHeader
	Open   bool
	Slot   int
	Closed Value
	// Next links the VM's open upvalues, sorted by decreasing Slot.
	Next *UpvalueObj
}

func (u *UpvalueObj) Type() ObjType  { return ObjUpvalue }
func (u *UpvalueObj) String() string { return "upvalue" }
func (u *UpvalueObj) size() int      { return 48 }

func (u *UpvalueObj) release() {
	u.Closed = NilValue()
	u.Next = nil
}

// NativeFn receives its arguments as a slice that must not be retained.
// A non-nil error turns into a runtime error.
type NativeFn func(vm *VM, args []Value) (Value, error)

type NativeObj struct {
	objHeader
	Name string
	// Arity is -1 for natives taking any number of arguments.
	Arity int
	Fn    NativeFn
	Doc   *NativeDoc
}

func (n *NativeObj) Type() ObjType  { return ObjNative }
func (n *NativeObj) String() string { return "<fn natif>" }
func (n *NativeObj) size() int      { return 48 }
func (n *NativeObj) release()       { n.Fn = nil }

type ParamDoc struct {
	Name        string
	Description string
}

type NativeDoc struct {
	Description string
	Params      []ParamDoc
	Returns     string
}

func NewNativeDoc(description string, params []ParamDoc, returns string) *NativeDoc {
	return &NativeDoc{
		Description: description,
		Params:      params,
		Returns:     returns,
	}
}

// Signature renders "nom(a, b) -> retour".
func (d *NativeDoc) Signature(name string) string {
	s := name + "("
	for i, p := range d.Params {
		if i > 0 {
			s += ", "
		}
		s += p.Name
	}
	return s + ") -> " + d.Returns
}

func (d *NativeDoc) String() string {
	s := d.Description
	if len(d.Params) > 0 {
		s += "\n\nParamètres :\n"
		for _, p := range d.Params {
			s += fmt.Sprintf("  %s : %s\n", p.Name, p.Description)
		}
	}
	if d.Returns != "" {
		s += "\nRetour : " + d.Returns
	}
	return s
}

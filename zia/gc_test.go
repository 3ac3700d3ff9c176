package zia

import (
	"bytes"
	"testing"
)

func stressConfig() *Config {
	cfg := DefaultConfig()
	cfg.GC.Stress = true
	return cfg
}

const gcProgram = `
fonction compteur(prefixe) {
  var n = 0;
  fonction incr() {
    n = n + 1;
    retourner prefixe + texte(n);
  }
  retourner incr;
}
var a = compteur("a");
var b = compteur("b");
var s = "";
pour (var i = 0; i < 20; i++) {
  s = s + a();
  si (i % 3 == 0) s = s + b();
  var tmp = "x" + texte(i);
}
afficher s;
afficher longueur(s);
`

func TestGCStressMatchesNormalRun(t *testing.T) {
	var outputs [2]string
	for i, cfg := range []*Config{DefaultConfig(), stressConfig()} {
		vm := NewVMWithConfig(cfg)
		var out bytes.Buffer
		vm.Stdout = &out
		if err := vm.LoadBuiltins(); err != nil {
			t.Fatalf("loading builtins: %v", err)
		}
		if err := vm.Run("test", gcProgram); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if i == 1 && vm.Heap().Collections() == 0 {
			t.Fatalf("stress mode never collected")
		}
		outputs[i] = out.String()
		vm.Free()
	}
	if outputs[0] != outputs[1] {
		t.Fatalf("stress run diverged:\nnormal: %q\nstress: %q", outputs[0], outputs[1])
	}
}

func TestGCStressCompile(t *testing.T) {
	heap := NewHeap(stressConfig())
	res := CompileSource("test", gcProgram, heap)
	if res.IsErr() {
		t.Fatalf("compile error: %v", res.Err)
	}
	if err := VerifyFunction(res.Value); err != nil {
		t.Fatalf("function damaged by collections during compile: %v", err)
	}
}

func TestGCFreesUnreachable(t *testing.T) {
	heap := NewHeap(nil)
	s := heap.CopyString("temporaire")
	handle := heap.HandleOf(s)
	if _, ok := heap.Resolve(handle); !ok {
		t.Fatalf("fresh object must resolve")
	}
	before := heap.BytesAllocated()

	heap.Collect()

	if _, ok := heap.Resolve(handle); ok {
		t.Fatalf("unreachable string survived")
	}
	if heap.BytesAllocated() >= before {
		t.Fatalf("bytes not released: %d before, %d after", before, heap.BytesAllocated())
	}
	if heap.InternedCount() != 0 {
		t.Fatalf("dead string still interned")
	}
	if again := heap.CopyString("temporaire"); again == s {
		t.Fatalf("intern set returned a swept object")
	}
}

func TestGCHandleGoesStaleWhenSlotIsReused(t *testing.T) {
	heap := NewHeap(nil)
	old := heap.HandleOf(heap.CopyString("a"))
	heap.Collect()

	reused := heap.HandleOf(heap.CopyString("b"))
	if reused.Index != old.Index {
		t.Fatalf("expected slot %d to be reused, got %d", old.Index, reused.Index)
	}
	if _, ok := heap.Resolve(old); ok {
		t.Fatalf("stale handle resolved to the new occupant")
	}
	if _, ok := heap.Resolve(reused); !ok {
		t.Fatalf("current handle must resolve")
	}
}

func TestGCKeepsRootsAndTheirReferences(t *testing.T) {
	vm := NewVM()
	defer vm.Free()

	vm.SetGlobal("garde", ObjValue(vm.Heap().CopyString("gardée")))
	fn := vm.Heap().NewFunction()
	vm.Push(ObjValue(fn))
	fn.Name = vm.Heap().CopyString("nom")
	fn.Chunk.AddConstant(ObjValue(vm.Heap().CopyString("constante")))
	closure := vm.Heap().NewClosure(fn)
	vm.Pop()
	vm.Push(ObjValue(closure))

	vm.Heap().Collect()

	for _, o := range []Obj{fn, fn.Name, fn.Chunk.Constants[0].AsObj(), closure} {
		if _, ok := vm.Heap().Resolve(vm.Heap().HandleOf(o)); !ok {
			t.Fatalf("%s reachable from the stack was swept", o.Type())
		}
	}
	v, ok := vm.GetGlobal("garde")
	if !ok || v.AsString().Chars != "gardée" {
		t.Fatalf("global value lost: %v", v)
	}
}

func TestGCClosedUpvalueKeepsValue(t *testing.T) {
	vm := NewVMWithConfig(stressConfig())
	defer vm.Free()
	var out bytes.Buffer
	vm.Stdout = &out

	src := `
var f;
{
  var x = "a" + "b";
  fonction g() { retourner x + "c"; }
  f = g;
}
afficher f();
`
	if err := vm.Run("test", src); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "abc\n" {
		t.Fatalf("expected abc, got %q", out.String())
	}
}

func TestGCThresholdGrows(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GC.InitialThreshold = 256
	vm := NewVMWithConfig(cfg)
	defer vm.Free()
	var out bytes.Buffer
	vm.Stdout = &out

	src := `
var garde = "";
pour (var i = 0; i < 200; i++) {
  var jetable = "tmp" + texte(i);
  si (i % 50 == 0) garde = garde + jetable;
}
afficher garde;
`
	if err := vm.LoadBuiltins(); err != nil {
		t.Fatalf("loading builtins: %v", err)
	}
	if err := vm.Run("test", src); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "tmp0tmp50tmp100tmp150\n" {
		t.Fatalf("unexpected output %q", out.String())
	}
	heap := vm.Heap()
	if heap.Collections() == 0 {
		t.Fatalf("expected collections with a tiny threshold")
	}
	if heap.NextGC() < cfg.GC.InitialThreshold {
		t.Fatalf("next threshold %d fell below the minimum", heap.NextGC())
	}
}

func TestGCFreeAll(t *testing.T) {
	vm := NewVM()
	if err := vm.LoadBuiltins(); err != nil {
		t.Fatalf("loading builtins: %v", err)
	}
	vm.Free()
	if n := vm.Heap().LiveObjects(); n != 0 {
		t.Fatalf("expected an empty heap, got %d objects", n)
	}
	if vm.Heap().BytesAllocated() != 0 {
		t.Fatalf("expected no bytes allocated, got %d", vm.Heap().BytesAllocated())
	}
}

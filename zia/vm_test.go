package zia

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestVM(t *testing.T, cfg *Config) (*VM, *bytes.Buffer) {
	t.Helper()
	vm := NewVMWithConfig(cfg)
	var out bytes.Buffer
	vm.Stdout = &out
	vm.Stderr = &out
	if err := vm.LoadBuiltins(); err != nil {
		t.Fatalf("loading builtins: %v", err)
	}
	t.Cleanup(vm.Free)
	return vm, &out
}

func runSource(t *testing.T, src string) string {
	t.Helper()
	vm, out := newTestVM(t, nil)
	if err := vm.Run("test", src); err != nil {
		t.Fatalf("unexpected error: %v\noutput so far: %s", err, out)
	}
	return out.String()
}

func runRuntimeError(t *testing.T, src string) (*RuntimeError, string) {
	t.Helper()
	vm, out := newTestVM(t, nil)
	err := vm.Run("test", src)
	var rerr *RuntimeError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected a runtime error, got %v", err)
	}
	if vm.StackDepth() != 0 || vm.FrameDepth() != 0 {
		t.Fatalf("stack not reset after error: %d values, %d frames", vm.StackDepth(), vm.FrameDepth())
	}
	return rerr, out.String()
}

func TestVMPrograms(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"arithmetic", "afficher 1 + 2 * 3;", "7\n"},
		{"grouping", "afficher (1 + 2) * 3 - -1;", "10\n"},
		{"modulo", "afficher 7 % 3; afficher -7 % 3;", "1\n-1\n"},
		{"number format", "afficher 1 / 3; afficher 1000000 * 10; afficher 2.50;", "0.333333\n1e+07\n2.5\n"},
		{"scoping", "var a = 1; { var a = 2; afficher a; } afficher a;", "2\n1\n"},
		{"function call", "fonction f(a, b) { retourner a + b; } afficher f(2, 3);", "5\n"},
		{"implicit nul return", "fonction f() {} afficher f();", "nul\n"},
		{"for loop", "pour (var i = 0; i < 3; i = i + 1) afficher i;", "0\n1\n2\n"},
		{"if else", "si (faux) afficher 1; sinon afficher 2;", "2\n"},
		{"truthiness", `si (0) afficher "zero"; si ("") afficher "vide"; si (nul) afficher "non";`, "zero\nvide\n"},
		{"equality", `afficher 1 == 1, nul == nul, "a" == "a", 1 == "1", nul == faux;`, "vraivraivraifauxfaux\n"},
		{"interning", `afficher "ab" + "c" == "abc";`, "vrai\n"},
		{"ternary", "afficher vrai ? 1 : 2; afficher faux ? 1 : nul ? 3 : 4;", "1\n4\n"},
		{"logical", `afficher nul ou "x"; afficher 0 et "y"; afficher faux et 1;`, "x\ny\nfaux\n"},
		{"print many", `afficher "a", 1, vrai; afficher;`, "a1vrai\n\n"},
		{"print functions", "fonction f() {} afficher f; afficher horloge;", "<fn f>\n<fn natif>\n"},
		{"compound assignment", "var a = 5; a += 2; a *= 3; a -= 1; a /= 4; afficher a; var m = 10; m %= 4; afficher m;", "5\n2\n"},
		{"increments", `var a = 21; var b = a++; afficher b, " ", a; afficher ++a; afficher a--; afficher a; afficher --a;`, "21 22\n23\n23\n22\n21\n"},
		{"local increments", "{ var i = 1; i++; ++i; i += 10; afficher i; }", "13\n"},
		{"string escapes", `afficher "a\tb";`, "a\tb\n"},
		{"retourne alias", "fonction f() { retourne 3; } afficher f();", "3\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := runSource(t, tc.src); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestVMLoops(t *testing.T) {
	src := `
var i = 0;
tantque (vrai) {
  i = i + 1;
  si (i == 2) continuer;
  si (i > 4) quitter;
  afficher i;
}
pour (var j = 0; j < 10; j++) {
  var x = j * 2;
  si (x == 2) continuer;
  si (x > 4) quitter;
  afficher x;
}
afficher "fin";
`
	want := "1\n3\n4\n0\n4\nfin\n"
	if got := runSource(t, src); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestVMNestedLoopsBreakInnerOnly(t *testing.T) {
	src := `
pour (var i = 0; i < 3; i++) {
  pour (var j = 0; j < 3; j++) {
    si (j == 1) quitter;
    afficher i, ":", j;
  }
}
`
	want := "0:0\n1:0\n2:0\n"
	if got := runSource(t, src); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestVMSwitch(t *testing.T) {
	src := `
fonction nom(n) {
  var r = "";
  selon (n) {
    cas 1: r = r + "un";
    cas 2: r = r + "deux";
    cas 3: r = r + "trois"; quitter;
    cas 4: r = r + "quatre"; quitter;
    defaut: r = r + "autre";
  }
  retourner r;
}
afficher nom(1);
afficher nom(2);
afficher nom(4);
afficher nom(9);
selon ("b") { cas "a": afficher "A"; }
afficher "apres";
`
	want := "undeuxtrois\ndeuxtrois\nquatre\nautre\napres\n"
	if got := runSource(t, src); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestVMSwitchInsideLoopContinue(t *testing.T) {
	src := `
pour (var i = 0; i < 4; i++) {
  selon (i) {
    cas 1: continuer;
    cas 2: quitter;
  }
  afficher i;
}
`
	want := "0\n2\n3\n"
	if got := runSource(t, src); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestVMClosures(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"counter", `
fonction compteur() {
  var n = 0;
  fonction incr() { n = n + 1; retourner n; }
  retourner incr;
}
var c = compteur();
afficher c();
afficher c();
var d = compteur();
afficher d();
afficher c();
`, "1\n2\n1\n3\n"},
		{"shared variable", `
var get; var set;
fonction f() {
  var x = 1;
  fonction g() { retourner x; }
  fonction s(v) { x = v; }
  get = g; set = s;
}
f();
set(5);
afficher get();
`, "5\n"},
		{"closed in block", `
var f;
{
  var x = "ferme";
  fonction g() { retourner x; }
  f = g;
}
afficher f();
`, "ferme\n"},
		{"open while live", `
fonction f() {
  var x = 1;
  fonction g() { x = x + 1; }
  g();
  g();
  retourner x;
}
afficher f();
`, "3\n"},
		{"transitive", `
fonction a() {
  var v = "v";
  fonction b() {
    fonction c() { retourner v; }
    retourner c;
  }
  retourner b;
}
afficher a()()();
`, "v\n"},
		{"recursion", `
fonction fib(n) { si (n < 2) retourner n; retourner fib(n - 2) + fib(n - 1); }
afficher fib(15);
`, "610\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := runSource(t, tc.src); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestVMRuntimeErrors(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{"afficher 1 / 0;", "Division par zéro.\n[ligne 1] dans le script"},
		{"afficher 1 % 0;", "Modulo par zéro.\n[ligne 1] dans le script"},
		{"afficher nonexistant;", "Variable non définie 'nonexistant'.\n[ligne 1] dans le script"},
		{"y = 1;", "Variable non définie 'y'.\n[ligne 1] dans le script"},
		{`afficher "a" + 1;`, "Les opérandes doivent être deux nombres ou deux chaînes.\n[ligne 1] dans le script"},
		{`afficher "a" < 1;`, "Les opérandes doivent être des nombres.\n[ligne 1] dans le script"},
		{`afficher -"a";`, "L'opérande doit être un nombre.\n[ligne 1] dans le script"},
		{"var x = 1; x();", "Impossible d'appeler une valeur de type 'nombre'.\n[ligne 1] dans le script"},
		{"fonction f(a) {}\nf(1, 2);", "La fonction 'f' attend 1 arguments mais en a reçu 2.\n[ligne 2] dans le script"},
		{"abs();", "La fonction 'abs' attend 1 arguments mais en a reçu 0.\n[ligne 1] dans le script"},
		{`abs("x");`, "abs : argument 1 : type incorrect : nombre attendu, reçu chaine\n[ligne 1] dans le script"},
	}
	for _, tc := range cases {
		rerr, _ := runRuntimeError(t, tc.src)
		if rerr.Error() != tc.want {
			t.Errorf("%q:\nexpected %q\n     got %q", tc.src, tc.want, rerr.Error())
		}
	}
}

func TestVMRuntimeErrorTrace(t *testing.T) {
	src := `fonction a() { b(); }
fonction b() { c(); }
fonction c() { afficher 1 / 0; }
a();`
	rerr, _ := runRuntimeError(t, src)
	want := []TraceEntry{
		{Line: 3, Function: "c"},
		{Line: 2, Function: "b"},
		{Line: 1, Function: "a"},
		{Line: 4},
	}
	if len(rerr.Trace) != len(want) {
		t.Fatalf("expected %d frames, got %v", len(want), rerr.Trace)
	}
	for i := range want {
		if rerr.Trace[i] != want[i] {
			t.Fatalf("frame %d: expected %v, got %v", i, want[i], rerr.Trace[i])
		}
	}
	if rerr.Loc.Line != 3 || rerr.Loc.FileName != "test" {
		t.Fatalf("unexpected location %+v", rerr.Loc)
	}
	if !strings.HasSuffix(rerr.Error(), "[ligne 4] dans le script") {
		t.Fatalf("unexpected message %q", rerr.Error())
	}
}

func TestVMOutputBeforeErrorIsKept(t *testing.T) {
	_, out := runRuntimeError(t, "afficher 1; afficher 2 / 0; afficher 3;")
	if out != "1\n" {
		t.Fatalf("expected only the first line, got %q", out)
	}
}

func TestVMStackOverflow(t *testing.T) {
	rerr, _ := runRuntimeError(t, "fonction r() { r(); } r();")
	if rerr.Msg != "Débordement de pile." {
		t.Fatalf("unexpected message %q", rerr.Msg)
	}
	if len(rerr.Trace) != FramesMax {
		t.Fatalf("expected %d frames in the trace, got %d", FramesMax, len(rerr.Trace))
	}

	cfg := DefaultConfig()
	cfg.Limits.FramesMax = 8
	vm, _ := newTestVM(t, cfg)
	err := vm.Run("test", "fonction r() { r(); } r();")
	var small *RuntimeError
	if !errors.As(err, &small) || len(small.Trace) != 8 {
		t.Fatalf("expected an overflow after 8 frames, got %v", err)
	}
}

func TestVMStateSurvivesBetweenRuns(t *testing.T) {
	vm, out := newTestVM(t, nil)
	if err := vm.Run("repl", "var a = 1; fonction f() { retourner a * 10; }"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := vm.Run("repl", "afficher nope;"); err == nil {
		t.Fatalf("expected an error")
	}
	if err := vm.Run("repl", "a = a + 1; afficher f();"); err != nil {
		t.Fatalf("third run: %v", err)
	}
	if out.String() != "20\n" {
		t.Fatalf("expected 20, got %q", out.String())
	}

	v, ok := vm.GetGlobal("a")
	if !ok || v.AsNumber() != 2 {
		t.Fatalf("expected global a = 2, got %v", v)
	}
	if _, ok := vm.GetGlobal("inconnue"); ok {
		t.Fatalf("unexpected global")
	}
}

func TestVMFailedSetDoesNotDefine(t *testing.T) {
	vm, _ := newTestVM(t, nil)
	if err := vm.Run("test", "y = 1;"); err == nil {
		t.Fatalf("expected an error")
	}
	if _, ok := vm.GetGlobal("y"); ok {
		t.Fatalf("failed assignment must not define y")
	}
}

func TestVMInterpretResults(t *testing.T) {
	vm, out := newTestVM(t, nil)
	if res := vm.Interpret("test", "afficher 1;"); res != InterpretOK {
		t.Fatalf("expected ok, got %s", res)
	}
	if res := vm.Interpret("test", "afficher ;;"); res != InterpretCompileError {
		t.Fatalf("expected compile error, got %s", res)
	}
	if !strings.Contains(out.String(), "[ligne 1] Erreur à ';' : Expression attendue.") {
		t.Fatalf("diagnostic not reported: %q", out.String())
	}
	if res := vm.Interpret("test", "afficher -nul;"); res != InterpretRuntimeError {
		t.Fatalf("expected runtime error, got %s", res)
	}
}

func TestVMInterrupt(t *testing.T) {
	vm, _ := newTestVM(t, nil)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				vm.Interrupt()
				time.Sleep(time.Millisecond)
			}
		}
	}()
	err := vm.Run("test", "tantque (vrai) {}")
	close(done)

	var rerr *RuntimeError
	if !errors.As(err, &rerr) || rerr.Msg != "Exécution interrompue." {
		t.Fatalf("expected an interruption, got %v", err)
	}
}

func TestVMNaNComparisons(t *testing.T) {
	src := `var n = puissance(-1, 0.5); afficher n; afficher n == n, n >= n, n <= n, n != n;`
	want := "nan\nfauxfauxfauxvrai\n"
	if got := runSource(t, src); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestVMDefineNativeAndGlobals(t *testing.T) {
	vm, out := newTestVM(t, nil)
	vm.DefineNative("somme", -1, func(vm *VM, args []Value) (Value, error) {
		total := 0.0
		for _, a := range args {
			total += a.AsNumber()
		}
		return NumberValue(total), nil
	})
	vm.SetGlobal("base", NumberValue(100))

	if err := vm.Run("test", "afficher somme(base, 1, 2, 3); afficher somme();"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "106\n0\n" {
		t.Fatalf("unexpected output %q", out.String())
	}

	names := vm.GlobalNames()
	for _, want := range []string{"somme", "base", "horloge"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
			}
		}
		if !found {
			t.Errorf("global %s missing from %v", want, names)
		}
	}
}

func TestVMRecoversFromUnverifiedCode(t *testing.T) {
	vm, out := newTestVM(t, nil)
	for _, code := range [][]byte{
		{byte(OpGetLocal), 200, byte(OpReturn)},
		{byte(OpPop), byte(OpPop), byte(OpReturn)},
	} {
		fn := vm.Heap().NewFunction()
		fn.Chunk.Code = code
		fn.Chunk.Lines = make([]int, len(code))

		err := vm.RunFunction("test", fn)
		var rerr *RuntimeError
		if !errors.As(err, &rerr) || !strings.HasPrefix(rerr.Msg, "Erreur interne de la machine") {
			t.Fatalf("%v: expected an internal runtime error, got %v", code, err)
		}
		if vm.StackDepth() != 0 || vm.FrameDepth() != 0 {
			t.Fatalf("stack not reset after a fault: %d values, %d frames", vm.StackDepth(), vm.FrameDepth())
		}
	}
	if err := vm.Run("test", "afficher 1;"); err != nil || out.String() != "1\n" {
		t.Fatalf("VM unusable after a fault: %v, output %q", err, out.String())
	}
}

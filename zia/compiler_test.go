package zia

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func compileOK(t *testing.T, src string) *FunctionObj {
	t.Helper()
	res := CompileSource("test", src, NewHeap(nil))
	if res.IsErr() {
		t.Fatalf("compile error: %v", res.Err)
	}
	if err := VerifyFunction(res.Value); err != nil {
		t.Fatalf("compiled code does not verify: %v", err)
	}
	return res.Value
}

func compileErr(t *testing.T, src string) *CompileError {
	t.Helper()
	res := CompileSource("test", src, NewHeap(nil))
	if res.IsOk() {
		t.Fatalf("expected a compile error for %q", src)
	}
	var ce *CompileError
	if !errors.As(res.Err, &ce) {
		t.Fatalf("expected *CompileError, got %T", res.Err)
	}
	return ce
}

func nestedFunction(t *testing.T, fn *FunctionObj, name string) *FunctionObj {
	t.Helper()
	for _, k := range fn.Chunk.Constants {
		if k.IsFunction() && k.AsFunction().DisplayName() == name {
			return k.AsFunction()
		}
	}
	t.Fatalf("function %s not found in %s", name, fn.DisplayName())
	return nil
}

func TestCompileExpressionStatement(t *testing.T) {
	fn := compileOK(t, "afficher 1 + 2;")
	want := []byte{
		byte(OpConstant), 0,
		byte(OpConstant), 1,
		byte(OpAdd),
		byte(OpPrint), 1,
		byte(OpNil),
		byte(OpReturn),
	}
	if !bytes.Equal(fn.Chunk.Code, want) {
		t.Fatalf("expected %v, got %v", want, fn.Chunk.Code)
	}
	if fn.Name != nil || fn.Arity != 0 {
		t.Fatalf("top-level function must be anonymous with no parameters")
	}
}

func TestCompileGlobalNamesAreShared(t *testing.T) {
	fn := compileOK(t, "var a = 1; a = a + 1; afficher a;")
	names := 0
	for _, k := range fn.Chunk.Constants {
		if k.IsString() && k.AsString().Chars == "a" {
			names++
		}
	}
	if names != 1 {
		t.Fatalf("expected the name 'a' once in the pool, got %d", names)
	}
}

func TestCompileFunctionMetadata(t *testing.T) {
	fn := compileOK(t, "fonction somme(a, b, c) { retourner a + b + c; }")
	somme := nestedFunction(t, fn, "somme")
	if somme.Arity != 3 {
		t.Fatalf("expected arity 3, got %d", somme.Arity)
	}
	if somme.UpvalueCount != 0 {
		t.Fatalf("expected no upvalues, got %d", somme.UpvalueCount)
	}
}

func TestCompileUpvalueOperands(t *testing.T) {
	src := `
fonction externe() {
  var x = 1;
  fonction interne() { retourner x; }
  retourner interne;
}`
	fn := compileOK(t, src)
	externe := nestedFunction(t, fn, "externe")
	interne := nestedFunction(t, externe, "interne")
	if interne.UpvalueCount != 1 {
		t.Fatalf("expected 1 upvalue, got %d", interne.UpvalueCount)
	}

	code := externe.Chunk.Code
	idx := bytes.IndexByte(code, byte(OpClosure))
	if idx < 0 || idx+3 >= len(code) {
		t.Fatalf("no closure instruction in %v", code)
	}
	// local slot 1: slot 0 is the callee
	if code[idx+2] != 1 || code[idx+3] != 1 {
		t.Fatalf("expected (local, 1), got (%d, %d)", code[idx+2], code[idx+3])
	}
}

func TestCompileTransitiveUpvalue(t *testing.T) {
	src := `
fonction a() {
  var v = 1;
  fonction b() {
    fonction c() { retourner v; }
    retourner c;
  }
  retourner b;
}`
	fn := compileOK(t, src)
	b := nestedFunction(t, nestedFunction(t, fn, "a"), "b")
	c := nestedFunction(t, b, "c")
	if b.UpvalueCount != 1 || c.UpvalueCount != 1 {
		t.Fatalf("expected one upvalue in b and c, got %d and %d", b.UpvalueCount, c.UpvalueCount)
	}
	idx := bytes.IndexByte(b.Chunk.Code, byte(OpClosure))
	if b.Chunk.Code[idx+2] != 0 || b.Chunk.Code[idx+3] != 0 {
		t.Fatalf("c must capture b's upvalue 0, got (%d, %d)", b.Chunk.Code[idx+2], b.Chunk.Code[idx+3])
	}
}

func TestCompileErrors(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{"1 +;", "[ligne 1] Erreur à ';' : Expression attendue."},
		{"var a = 1", "[ligne 1] Erreur à la fin : ';' attendu après la déclaration de variable."},
		{"retourner 1;", "[ligne 1] Erreur à 'retourner' : Impossible de retourner depuis le code de niveau supérieur."},
		{"{ var a = a; }", "[ligne 1] Erreur à 'a' : Impossible de lire une variable locale dans son propre initialiseur."},
		{"{ var a; var a; }", "[ligne 1] Erreur à 'a' : Une variable avec ce nom existe déjà dans cette portée."},
		{"quitter;", "[ligne 1] Erreur à 'quitter' : 'quitter' en dehors d'une boucle ou d'un 'selon'."},
		{"continuer;", "[ligne 1] Erreur à 'continuer' : 'continuer' en dehors d'une boucle."},
		{"var a; var b; a + b = 3;", "[ligne 1] Erreur à '=' : Cible d'affectation invalide."},
		{"\n\"abc", "[ligne 2] Erreur : Chaîne non terminée."},
		{"classe A {}", "[ligne 1] Erreur à 'classe' : Les classes ne sont pas prises en charge."},
		{"ceci;", "[ligne 1] Erreur à 'ceci' : 'ceci' est un mot réservé."},
	}
	for _, tc := range cases {
		ce := compileErr(t, tc.src)
		if got := ce.Diagnostics[0].Error(); got != tc.want {
			t.Errorf("%q:\nexpected %s\n     got %s", tc.src, tc.want, got)
		}
	}
}

func TestCompileRecoversAndReportsEveryStatement(t *testing.T) {
	ce := compileErr(t, "var = 1;\nafficher 2;\nvar b = ;\n")
	if len(ce.Diagnostics) != 2 {
		t.Fatalf("expected 2 diagnostics, got %d: %v", len(ce.Diagnostics), ce)
	}
	if ce.Diagnostics[0].Loc.Line != 1 || ce.Diagnostics[1].Loc.Line != 3 {
		t.Fatalf("unexpected lines %d and %d", ce.Diagnostics[0].Loc.Line, ce.Diagnostics[1].Loc.Line)
	}
}

func TestCompileErrorIncomplete(t *testing.T) {
	cases := map[string]bool{
		"fonction f() {":              true,
		"si (vrai) {\n  var a = 1;":   true,
		"afficher \"abc":              true,
		"afficher 1; /* suite\n  ici": true,
		"afficher 1 +;":               false,
		"var 1 = 2;":                  false,
	}
	for src, want := range cases {
		if got := compileErr(t, src).Incomplete(); got != want {
			t.Errorf("%q: expected Incomplete() = %v", src, want)
		}
	}
}

func TestCompileTooManyConstants(t *testing.T) {
	var b strings.Builder
	for i := range MaxConstants + 1 {
		fmt.Fprintf(&b, "%d;\n", i)
	}
	ce := compileErr(t, b.String())
	if !strings.Contains(ce.Error(), "Trop de constantes dans un seul bloc.") {
		t.Fatalf("unexpected error %v", ce)
	}
}

func TestCompileTooManyLocals(t *testing.T) {
	var b strings.Builder
	b.WriteString("{\n")
	for i := range MaxLocals {
		fmt.Fprintf(&b, "var v%d;\n", i)
	}
	b.WriteString("}\n")
	ce := compileErr(t, b.String())
	if !strings.Contains(ce.Error(), "Trop de variables locales dans la fonction.") {
		t.Fatalf("unexpected error %v", ce)
	}
}

func repeatStatement(format string, n int) string {
	var b strings.Builder
	for i := range n {
		fmt.Fprintf(&b, format, i)
	}
	return b.String()
}

func TestCompileLimits(t *testing.T) {
	// each global "a = a + a;" takes eight bytes of code
	longBody := strings.Repeat("a = a + a;\n", 9000)
	captures := "fonction externe() {\n" + repeatStatement("var o%d;\n", 200) +
		"fonction milieu() {\n" + repeatStatement("var m%d;\n", 200) +
		"fonction interne() {\n" + repeatStatement("o%d;\n", 200) + repeatStatement("m%d;\n", 200) +
		"}\n}\n}\n"

	cases := []struct {
		name string
		src  string
		want string
	}{
		{"forward jump", "var a = 1;\nsi (faux) {\n" + longBody + "}\n", "Saut trop long."},
		{"loop body", "var a = 1;\ntantque (faux) {\n" + longBody + "}\n", "Corps de boucle trop grand."},
		{"captured variables", captures, "Trop de variables capturées dans la fonction."},
		{"nested loops", strings.Repeat("tantque (faux) ", MaxNesting+1) + "afficher 1;", "Trop de boucles imbriquées."},
		{"nested selon", strings.Repeat("selon (1) { defaut: ", MaxNesting+1) + strings.Repeat("}", MaxNesting+1), "Trop de boucles imbriquées."},
	}
	for _, tc := range cases {
		ce := compileErr(t, tc.src)
		if !strings.Contains(ce.Diagnostics[0].Msg, tc.want) {
			t.Errorf("%s: expected %q first, got %v", tc.name, tc.want, ce)
		}
	}
}

func TestCompileTooManyParameters(t *testing.T) {
	params := make([]string, MaxParams+1)
	for i := range params {
		params[i] = fmt.Sprintf("p%d", i)
	}
	ce := compileErr(t, "fonction f("+strings.Join(params, ", ")+") {}")
	if !strings.Contains(ce.Error(), "Impossible d'avoir plus de 255 paramètres.") {
		t.Fatalf("unexpected error %v", ce)
	}
}

func TestCompileSwitchRejectsCaseAfterDefault(t *testing.T) {
	ce := compileErr(t, "selon (1) { defaut: afficher 1; cas 2: afficher 2; }")
	if !strings.Contains(ce.Error(), "'cas' interdit après 'defaut'.") {
		t.Fatalf("unexpected error %v", ce)
	}
}

func TestCompileLinesFollowSource(t *testing.T) {
	fn := compileOK(t, "var a = 1;\n\nafficher a;")
	last := fn.Chunk.Lines[len(fn.Chunk.Lines)-1]
	if fn.Chunk.Lines[0] != 1 || last != 3 {
		t.Fatalf("expected lines 1..3, got %v", fn.Chunk.Lines)
	}
}

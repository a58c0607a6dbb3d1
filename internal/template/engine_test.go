package template

import (
	"errors"
	"strings"
	"testing"
)

func TestInheritanceChainOrder(t *testing.T) {
	store := newTestStore(t)
	save := func(name, content string) {
		t.Helper()
		if err := store.Save(name, content); err != nil {
			t.Fatal(err)
		}
	}
	save("common/base", "@description \"base\"\nBase body.\n")
	save("middle", "@inherit \"common/base\"\nMiddle body.\n")
	save("leaf", "@inherit \"middle\"\nLeaf body.\n")

	chain, err := store.InheritanceChain("leaf")
	if err != nil {
		t.Fatalf("InheritanceChain failed: %v", err)
	}
	want := []string{"common/base", "middle", "leaf"}
	if len(chain) != len(want) {
		t.Fatalf("chain %v, want %v", chain, want)
	}
	for i := range want {
		if chain[i] != want[i] {
			t.Errorf("chain[%d]: got %s, want %s", i, chain[i], want[i])
		}
	}
}

func TestInheritanceCycleDetected(t *testing.T) {
	store := newTestStore(t)
	if err := store.Save("a", "@inherit \"b\"\nA.\n"); err != nil {
		t.Fatal(err)
	}
	if err := store.Save("b", "@inherit \"a\"\nB.\n"); err != nil {
		t.Fatal(err)
	}
	_, err := store.InheritanceChain("a")
	if !errors.Is(err, ErrCircularInheritance) {
		t.Fatalf("expected ErrCircularInheritance, got %v", err)
	}
	if !strings.Contains(err.Error(), "a -> b -> a") {
		t.Errorf("cycle path should be named: %v", err)
	}
}

func TestSelfInheritanceDetected(t *testing.T) {
	store := newTestStore(t)
	if err := store.Save("selfish", "@inherit \"selfish\"\n"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.InheritanceChain("selfish"); !errors.Is(err, ErrCircularInheritance) {
		t.Fatalf("expected ErrCircularInheritance, got %v", err)
	}
}

func TestLoadResolvedMerge(t *testing.T) {
	store := newTestStore(t)
	if err := store.Save("common/base", `@variable "lang" "C++"
@variable "level" "strict"
Base uses ${lang}.
`); err != nil {
		t.Fatal(err)
	}
	if err := store.Save("child", `@inherit "common/base"
@variable "lang" "Go"
Child also uses ${lang} at ${level}.
`); err != nil {
		t.Fatal(err)
	}

	merged, err := store.LoadResolved("child")
	if err != nil {
		t.Fatalf("LoadResolved failed: %v", err)
	}
	// Child value overrides the parent's.
	if !strings.Contains(merged, "@variable \"lang\" \"Go\"") {
		t.Errorf("child override missing:\n%s", merged)
	}
	if strings.Contains(merged, "\"lang\" \"C++\"") {
		t.Errorf("parent value should be overridden:\n%s", merged)
	}
	if strings.Contains(merged, "@inherit") {
		t.Errorf("@inherit should be stripped:\n%s", merged)
	}
	// Parent body before child body.
	base := strings.Index(merged, "Base uses")
	child := strings.Index(merged, "Child also uses")
	if base < 0 || child < 0 || base > child {
		t.Errorf("body order wrong:\n%s", merged)
	}
}

func TestInstantiateOverridesDefaults(t *testing.T) {
	store := newTestStore(t)
	if err := store.Save("greeter", `@variable "who" "world"
Hello ${who}, missing ${unset}.
`); err != nil {
		t.Fatal(err)
	}

	out, err := store.Instantiate("greeter", map[string]string{"who": "gophers"})
	if err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}
	if !strings.Contains(out, "Hello gophers") {
		t.Errorf("caller value should win:\n%s", out)
	}
	if !strings.Contains(out, "${unset}") {
		t.Errorf("unknown reference should stay verbatim:\n%s", out)
	}

	out, err = store.Instantiate("greeter", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Hello world") {
		t.Errorf("declared default should apply:\n%s", out)
	}
}

func TestDeclaredAndReferencedVariables(t *testing.T) {
	content := `@variable "a" "1"
@variable "b" "2"
@variable "a" "3"
${a} ${c} ${a}
`
	decl := DeclaredVariables(content)
	if len(decl) != 2 || decl[0] != "a" || decl[1] != "b" {
		t.Errorf("declared: %v", decl)
	}
	refs := ReferencedVariables(content)
	if len(refs) != 2 || refs[0] != "a" || refs[1] != "c" {
		t.Errorf("referenced: %v", refs)
	}
}

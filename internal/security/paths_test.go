package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPathCheckerUnrestricted(t *testing.T) {
	pc := NewPathChecker(nil)
	if pc.HasRestrictions() {
		t.Error("empty list should not restrict")
	}
	if !pc.IsAllowed("/etc/passwd") {
		t.Error("unrestricted checker should allow anything")
	}
	if err := pc.CheckPath("anywhere/at/all.txt"); err != nil {
		t.Errorf("CheckPath: %v", err)
	}
}

func TestPathCheckerAllowedTree(t *testing.T) {
	dir := t.TempDir()
	pc := NewPathChecker([]string{dir})
	if !pc.HasRestrictions() {
		t.Fatal("restrictions expected")
	}

	inside := filepath.Join(dir, "out", "result.txt")
	if !pc.IsAllowed(inside) {
		t.Errorf("%s should be allowed under %s", inside, dir)
	}
	if !pc.IsAllowed(dir) {
		t.Error("the allowed root itself should be allowed")
	}

	if pc.IsAllowed("/etc/passwd") {
		t.Error("path outside the tree should be rejected")
	}
	if err := pc.CheckPath("/etc/passwd"); err == nil {
		t.Error("CheckPath should error for a path outside the tree")
	}

	// A sibling whose name shares the allowed prefix is still outside.
	if pc.IsAllowed(dir + "2/escape.txt") {
		t.Error("prefix sibling should be rejected")
	}
}

func TestPathCheckerExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("home directory unavailable")
	}
	pc := NewPathChecker([]string{"~/cql-out"})
	want := filepath.Join(home, "cql-out")
	paths := pc.AllowedPaths()
	if len(paths) != 1 || paths[0] != want {
		t.Errorf("got %v, want [%s]", paths, want)
	}
	if !pc.IsAllowed(filepath.Join(want, "a.txt")) {
		t.Error("expanded home tree should be allowed")
	}
}

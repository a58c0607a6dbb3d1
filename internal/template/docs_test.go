package template

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGenerateAllDocs(t *testing.T) {
	store := newTestStore(t)
	if err := store.Save("common/base", "@description \"Shared base\"\nBase.\n"); err != nil {
		t.Fatal(err)
	}
	if err := store.Save("queue", "@description \"Queue template\"\n@variable \"size\" \"8\"\nUse ${size}.\n"); err != nil {
		t.Fatal(err)
	}

	docs, err := store.GenerateAllDocs()
	if err != nil {
		t.Fatalf("GenerateAllDocs failed: %v", err)
	}
	for _, want := range []string{
		"# CQL Template Documentation",
		"[common/base](#common-base)",
		"## user/queue",
		"- `${size}`",
		"Generated on ",
	} {
		if !strings.Contains(docs, want) {
			t.Errorf("docs missing %q:\n%s", want, docs)
		}
	}
}

func TestExportDocsFormats(t *testing.T) {
	store := newTestStore(t)
	if err := store.Save("one", "@description \"d\"\nBody.\n"); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	htmlPath := filepath.Join(dir, "docs.html")
	if err := store.ExportDocs(htmlPath); err != nil {
		t.Fatalf("ExportDocs html failed: %v", err)
	}
	data, err := os.ReadFile(htmlPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "<!DOCTYPE html>") {
		t.Errorf("html export missing wrapper")
	}

	txtPath := filepath.Join(dir, "docs.txt")
	if err := store.ExportDocs(txtPath); err != nil {
		t.Fatalf("ExportDocs txt failed: %v", err)
	}
	data, err = os.ReadFile(txtPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "```") {
		t.Errorf("txt export should strip code fences")
	}
}

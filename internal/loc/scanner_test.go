package loc

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestScanCountsTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.go"), "package main\n\n// entry\nfunc main() {}\n")
	writeFile(t, filepath.Join(root, "sub", "util.py"), "# helper\nx = 1\n")
	writeFile(t, filepath.Join(root, "README.md"), "# not scanned\n")

	scanner := NewScanner(ScannerConfig{})
	snapshot, err := scanner.Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if snapshot.Totals.Files != 2 {
		t.Fatalf("Files = %d, want 2 (markdown must be excluded)", snapshot.Totals.Files)
	}
	// main.go: 4 lines + trailing newline = 5 segments (code 2, comment 1, blank 2).
	// util.py: 3 segments (comment 1, code 1, blank 1).
	if snapshot.Totals.Total != 8 {
		t.Fatalf("Total = %d, want 8", snapshot.Totals.Total)
	}
	if snapshot.Totals.Total != snapshot.Totals.Code+snapshot.Totals.Comments+snapshot.Totals.Blank {
		t.Fatalf("unbalanced totals: %+v", snapshot.Totals)
	}

	if got := snapshot.ByLanguage["go"].Files; got != 1 {
		t.Fatalf("ByLanguage[go].Files = %d, want 1", got)
	}
	if got := snapshot.ByLanguage["python"].Files; got != 1 {
		t.Fatalf("ByLanguage[python].Files = %d, want 1", got)
	}

	// Files are sorted by path for stable output.
	if len(snapshot.Files) != 2 || snapshot.Files[0].Path > snapshot.Files[1].Path {
		t.Fatalf("files not sorted: %+v", snapshot.Files)
	}
}

func TestScanSkipsDeniedDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "node_modules", "dep.js"), "code()\n")
	writeFile(t, filepath.Join(root, ".git", "hook.sh"), "echo hi\n")
	writeFile(t, filepath.Join(root, "vendor", "lib.go"), "package lib\n")

	scanner := NewScanner(ScannerConfig{})
	snapshot, err := scanner.Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if snapshot.Totals.Files != 0 || snapshot.Totals.Total != 0 {
		t.Fatalf("denied directories were scanned: %+v", snapshot.Totals)
	}
}

func TestScanMissingRootFails(t *testing.T) {
	scanner := NewScanner(ScannerConfig{})
	if _, err := scanner.Scan(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("Scan of missing root should fail")
	}
}

package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/codegraphhq/codegraph/internal/lang"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func relPaths(files []FileInfo) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.RelPath
	}
	return out
}

func TestScanSkipsIgnoredDirsAndSuffixes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.py"), "def main(): pass\n")
	writeFile(t, filepath.Join(root, "node_modules", "dep.js"), "module.exports = 1\n")
	writeFile(t, filepath.Join(root, "__pycache__", "main.pyc"), "\x00")
	writeFile(t, filepath.Join(root, "cached.pyc"), "\x00")
	writeFile(t, filepath.Join(root, "notes.txt"), "not source\n")
	writeFile(t, filepath.Join(root, "pkg", "util.go"), "package pkg\n")

	files, err := Scan(context.Background(), root, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	got := relPaths(files)
	want := map[string]bool{"main.py": true, "pkg/util.go": true}
	if len(got) != len(want) {
		t.Fatalf("scanned %v, want %v", got, want)
	}
	for _, rel := range got {
		if !want[rel] {
			t.Errorf("unexpected file %s", rel)
		}
	}
}

func TestScanDetectsLanguageByExtension(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.py"), "")
	writeFile(t, filepath.Join(root, "b.ts"), "")
	writeFile(t, filepath.Join(root, "c.tsx"), "")

	files, err := Scan(context.Background(), root, nil)
	if err != nil {
		t.Fatal(err)
	}

	byPath := make(map[string]lang.Language)
	for _, f := range files {
		byPath[f.RelPath] = f.Language
	}
	if byPath["a.py"] != lang.Python {
		t.Errorf("a.py language = %s", byPath["a.py"])
	}
	if byPath["b.ts"] != lang.TypeScript {
		t.Errorf("b.ts language = %s", byPath["b.ts"])
	}
	if byPath["c.tsx"] != lang.TSX {
		t.Errorf("c.tsx language = %s", byPath["c.tsx"])
	}
}

func TestScanIncludeGlobsNarrowTheSet(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "top.py"), "")
	writeFile(t, filepath.Join(root, "src", "app.py"), "")
	writeFile(t, filepath.Join(root, "src", "deep", "core.py"), "")

	files, err := Scan(context.Background(), root, &ScanOptions{Include: []string{"src/**"}})
	if err != nil {
		t.Fatal(err)
	}
	got := relPaths(files)
	if len(got) != 2 {
		t.Fatalf("scanned %v, want src/ files only", got)
	}
	for _, rel := range got {
		if rel != "src/app.py" && rel != "src/deep/core.py" {
			t.Errorf("unexpected file %s", rel)
		}
	}
}

func TestScanIgnoreGlobs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app.py"), "")
	writeFile(t, filepath.Join(root, "app_test.py"), "")
	writeFile(t, filepath.Join(root, "gen", "schema.py"), "")

	files, err := Scan(context.Background(), root, &ScanOptions{
		Ignore: []string{"*_test.py", "gen"},
	})
	if err != nil {
		t.Fatal(err)
	}
	got := relPaths(files)
	if len(got) != 1 || got[0] != "app.py" {
		t.Errorf("scanned %v, want [app.py]", got)
	}
}

func TestScanHonorsIgnoreFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".codegraphignore"), "# generated code\nproto\n*.gen.py\n")
	writeFile(t, filepath.Join(root, "app.py"), "")
	writeFile(t, filepath.Join(root, "models.gen.py"), "")
	writeFile(t, filepath.Join(root, "proto", "svc.py"), "")

	files, err := Scan(context.Background(), root, nil)
	if err != nil {
		t.Fatal(err)
	}
	got := relPaths(files)
	if len(got) != 1 || got[0] != "app.py" {
		t.Errorf("scanned %v, want [app.py]", got)
	}
}

func TestScanCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Scan(ctx, t.TempDir(), nil); err == nil {
		t.Error("cancelled scan returned no error")
	}
}

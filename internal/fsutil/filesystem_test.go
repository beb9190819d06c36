package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "present.csv")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if !Exists(path) {
		t.Errorf("Exists(%q) = false for an existing file", path)
	}
	if !Exists(dir) {
		t.Errorf("Exists(%q) = false for an existing directory", dir)
	}
	if Exists(filepath.Join(dir, "absent.csv")) {
		t.Error("Exists() = true for a missing file")
	}
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.csv")
	dst := filepath.Join(dir, "dst.csv")
	if err := os.WriteFile(src, []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	if Exists(src) {
		t.Error("source still present after move")
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "a,b\n1,2\n" {
		t.Errorf("moved content = %q", got)
	}
}

func TestMoveFile_MissingSource(t *testing.T) {
	dir := t.TempDir()
	err := MoveFile(filepath.Join(dir, "absent.csv"), filepath.Join(dir, "dst.csv"))
	if err == nil {
		t.Fatal("expected error for a missing source")
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.csv")
	dst := filepath.Join(dir, "dst.csv")
	if err := os.WriteFile(src, []byte("rows"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := copyFile(src, dst); err != nil {
		t.Fatalf("copyFile: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "rows" {
		t.Errorf("copied content = %q", got)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("copied mode = %v, want 0600", info.Mode().Perm())
	}
}

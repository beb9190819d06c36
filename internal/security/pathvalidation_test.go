package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "YA_Data"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"direct child", filepath.Join(dir, "ya_merged_results.csv"), false},
		{"nested child", filepath.Join(dir, "YA_Data", "merged_results.csv"), false},
		{"the directory itself", dir, false},
		{"dot dot escape", filepath.Join(dir, "..", "evil.csv"), true},
		{"outside entirely", filepath.Join(t.TempDir(), "other.csv"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, dir)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePathWithinDirectory(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePathWithinDirectory_MissingDir(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	if err := ValidatePathWithinDirectory(filepath.Join(missing, "a.csv"), missing); err == nil {
		t.Error("expected error when the containing directory does not exist")
	}
}

func TestValidatePathWithinDirectory_SymlinkEscape(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(dir, "OA_Data")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	// The link target exists but lives outside dir.
	if err := ValidatePathWithinDirectory(link, dir); err == nil {
		t.Error("expected error for a symlink pointing outside the directory")
	}
	// A file under the link does not exist yet; the planted link still fails.
	if err := ValidatePathWithinDirectory(filepath.Join(link, "merged_results.csv"), dir); err == nil {
		t.Error("expected error for a path under an escaping symlink")
	}
}

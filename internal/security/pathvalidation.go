// Package security validates filesystem paths assembled from untrusted
// configuration values.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidatePathWithinDirectory checks that path stays inside dir. Both are
// made absolute and symlinks are resolved first, so neither ".." components
// nor a link planted under dir can redirect access outside it. dir must
// exist; path may not exist yet.
func ValidatePathWithinDirectory(path, dir string) error {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	canonicalDir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	rel, err := filepath.Rel(canonicalDir, resolveExisting(absPath))
	if err != nil || rel == ".." ||
		strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path %q escapes %s", path, dir)
	}
	return nil
}

// resolveExisting resolves symlinks in the longest existing prefix of path
// and rejoins the remainder, so a planted link is caught even when the
// final file does not exist yet.
func resolveExisting(path string) string {
	p, remainder := path, ""
	for {
		if resolved, err := filepath.EvalSymlinks(p); err == nil {
			return filepath.Join(resolved, remainder)
		}
		parent := filepath.Dir(p)
		if parent == p {
			return path
		}
		p, remainder = parent, filepath.Join(filepath.Base(p), remainder)
	}
}

// Package fsutil provides filesystem helpers for shuffling result tables
// between study folders.
package fsutil

import (
	"errors"
	"io"
	"os"
	"syscall"
)

// Exists reports whether name refers to an existing file or directory.
func Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// MoveFile renames src to dst, falling back to a copy and delete when the
// two paths live on different filesystems. Study data often sits on a
// network share while outputs land on local disk, where a plain rename
// fails with EXDEV.
func MoveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Package filesystem provides crash-safe writes on top of a billy filesystem.
package filesystem

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// WriteFileAtomic writes data to target on fsys using the tmp/bak/rename
// pattern, so an interrupted write never leaves a truncated target.
//
// Steps:
//  1. Write data to <target>.tmp
//  2. If <target> exists, rename it to <target>.bak
//  3. Rename <target>.tmp to <target>
//  4. Remove <target>.bak
//
// If a rename fails, falls back to copy+delete.
func WriteFileAtomic(fsys billy.Filesystem, target string, data []byte, perm os.FileMode) error {
	tmpPath := target + ".tmp"
	bakPath := target + ".bak"

	if err := fsys.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}

	if err := util.WriteFile(fsys, tmpPath, data, perm); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}

	if _, err := fsys.Stat(target); err == nil {
		_ = fsys.Remove(bakPath) // stale backup from an interrupted write
		if err := renameSafe(fsys, target, bakPath); err != nil {
			_ = fsys.Remove(tmpPath)
			return fmt.Errorf("backing up existing file: %w", err)
		}
	}

	if err := renameSafe(fsys, tmpPath, target); err != nil {
		if _, bakErr := fsys.Stat(bakPath); bakErr == nil {
			_ = renameSafe(fsys, bakPath, target)
		}
		_ = fsys.Remove(tmpPath)
		return fmt.Errorf("renaming temp to target: %w", err)
	}

	_ = fsys.Remove(bakPath)
	return nil
}

func renameSafe(fsys billy.Filesystem, oldPath, newPath string) error {
	err := fsys.Rename(oldPath, newPath)
	if err == nil {
		return nil
	}
	if copyErr := copyFile(fsys, oldPath, newPath); copyErr != nil {
		return fmt.Errorf("copy fallback: %w (rename error: %w)", copyErr, err)
	}
	_ = fsys.Remove(oldPath)
	return nil
}

func copyFile(fsys billy.Filesystem, src, dst string) error {
	in, err := fsys.Open(src)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	out, err := fsys.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck,gosec
		return err
	}
	return out.Close()
}

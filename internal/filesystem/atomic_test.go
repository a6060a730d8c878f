package filesystem

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

func TestWriteFileAtomic_NewFile(t *testing.T) {
	fsys := memfs.New()
	target := filepath.Join("out", "test.txt")

	if err := WriteFileAtomic(fsys, target, []byte("hello world"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}

	got, err := util.ReadFile(fsys, target)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "hello world" {
		t.Errorf("content = %q, want %q", got, "hello world")
	}
	for _, leftover := range []string{target + ".tmp", target + ".bak"} {
		if _, err := fsys.Stat(leftover); !os.IsNotExist(err) {
			t.Errorf("unexpected %s remains", leftover)
		}
	}
}

func TestWriteFileAtomic_OverwriteExisting(t *testing.T) {
	dir := t.TempDir()
	fsys := osfs.New(dir)

	if err := util.WriteFile(fsys, "test.txt", []byte("original"), 0o644); err != nil {
		t.Fatalf("writing original: %v", err)
	}
	if err := WriteFileAtomic(fsys, "test.txt", []byte("updated content"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "test.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "updated content" {
		t.Errorf("content = %q, want %q", got, "updated content")
	}
	if _, err := os.Stat(filepath.Join(dir, "test.txt.bak")); !os.IsNotExist(err) {
		t.Error("unexpected .bak file remains")
	}
}

func TestWriteFileAtomic_StaleBackup(t *testing.T) {
	dir := t.TempDir()
	fsys := osfs.New(dir)

	for name, data := range map[string]string{"r.json": "old", "r.json.bak": "stale"} {
		if err := util.WriteFile(fsys, name, []byte(data), 0o644); err != nil {
			t.Fatalf("seeding %s: %v", name, err)
		}
	}
	if err := WriteFileAtomic(fsys, "r.json", []byte("new"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	got, _ := os.ReadFile(filepath.Join(dir, "r.json"))
	if string(got) != "new" {
		t.Errorf("content = %q, want new", got)
	}
}

func TestWriteFileAtomic_ParentIsFile(t *testing.T) {
	dir := t.TempDir()
	fsys := osfs.New(dir)
	if err := util.WriteFile(fsys, "blocker", []byte("x"), 0o644); err != nil {
		t.Fatalf("seeding blocker: %v", err)
	}

	if err := WriteFileAtomic(fsys, filepath.Join("blocker", "r.json"), []byte("{}"), 0o644); err == nil {
		t.Fatal("expected error when parent path is a regular file")
	}
}

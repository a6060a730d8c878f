// Package report persists lookup payloads as JSON and flat CSV files.
package report

import (
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5"

	"github.com/sydlexius/hashscan/internal/filesystem"
)

const filePerm os.FileMode = 0o644

// Paths are the files written for one report.
type Paths struct {
	JSON string
	CSV  string
}

// Error reports a failure to write one of a file's report artifacts.
type Error struct {
	Name  string
	Path  string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("saving report for %s to %s: %v", e.Name, e.Path, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Writer saves reports into a JSON directory and a CSV directory. Reports
// are keyed by file name only, so two files with the same base name share
// report paths and the later one wins.
type Writer struct {
	fs      billy.Filesystem
	jsonDir string
	csvDir  string
}

// NewWriter creates both output directories on fsys.
func NewWriter(fsys billy.Filesystem, jsonDir, csvDir string) (*Writer, error) {
	for _, dir := range []string{jsonDir, csvDir} {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating report directory %s: %w", dir, err)
		}
	}
	return &Writer{fs: fsys, jsonDir: jsonDir, csvDir: csvDir}, nil
}

// Save writes <name>_report.json with the raw payload and <name>_report.csv
// with its top-level properties. The JSON file stays in place when the CSV
// step fails.
func (w *Writer) Save(name string, payload []byte) (Paths, error) {
	p := Paths{
		JSON: w.fs.Join(w.jsonDir, name+"_report.json"),
		CSV:  w.fs.Join(w.csvDir, name+"_report.csv"),
	}

	if err := filesystem.WriteFileAtomic(w.fs, p.JSON, payload, filePerm); err != nil {
		return p, &Error{Name: name, Path: p.JSON, Cause: err}
	}

	table, err := ToCSV(payload)
	if err != nil {
		return p, &Error{Name: name, Path: p.CSV, Cause: err}
	}
	if err := filesystem.WriteFileAtomic(w.fs, p.CSV, table, filePerm); err != nil {
		return p, &Error{Name: name, Path: p.CSV, Cause: err}
	}
	return p, nil
}

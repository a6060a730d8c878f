// Package hasher computes SHA-256 content digests of files on disk.
package hasher

import (
	"bufio"
	_ "crypto/sha256" // registers SHA-256 for go-digest
	"fmt"
	"os"

	"github.com/opencontainers/go-digest"
)

// BufferSize is the read buffer used while streaming a file. It only tunes
// throughput; files of any size are hashed without being loaded whole.
const BufferSize = 1_200_000

// EmptyDigest is the SHA-256 digest of zero bytes.
const EmptyDigest = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// Error reports a file that could not be opened or read.
type Error struct {
	Path  string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("hashing %s: %v", e.Path, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Compute streams the file at path and returns its SHA-256 digest as
// lowercase hex.
func Compute(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is chosen by the operator
	if err != nil {
		return "", &Error{Path: path, Cause: err}
	}
	defer f.Close() //nolint:errcheck

	d, err := digest.Canonical.FromReader(bufio.NewReaderSize(f, BufferSize))
	if err != nil {
		return "", &Error{Path: path, Cause: err}
	}
	return d.Encoded(), nil
}

// Mask shortens a digest for display, keeping the first head and last tail
// characters. Digests too short to mask render as "*****".
func Mask(d string, head, tail int) string {
	if len(d) < 8 || len(d) < head+tail {
		return "*****"
	}
	return d[:head] + "***" + d[len(d)-tail:]
}

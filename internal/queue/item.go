package queue

import (
	"path/filepath"

	"github.com/google/uuid"

	"github.com/sydlexius/hashscan/internal/hasher"
)

// Item is one file awaiting lookup. Path and Digest never change after
// creation; a file modified after enqueue keeps its original digest.
type Item struct {
	ID     uuid.UUID
	Path   string
	Digest string
}

// NewItem builds an item from a path and an already computed digest. An
// empty digest is allowed; such an item is skipped by the batch runner.
func NewItem(path, digest string) *Item {
	return &Item{
		ID:     uuid.New(),
		Path:   path,
		Digest: digest,
	}
}

// Name returns the base name of the item's path.
func (it *Item) Name() string { return filepath.Base(it.Path) }

// MaskedDigest returns the digest with its middle replaced by "***".
func (it *Item) MaskedDigest() string { return hasher.Mask(it.Digest, 4, 4) }

// DisplayText is the one-line label used by list views.
func (it *Item) DisplayText() string { return it.Name() + " - " + it.MaskedDigest() }

// Package queue holds the ordered set of files waiting for a reputation
// lookup.
package queue

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sync"

	"github.com/sydlexius/hashscan/internal/hasher"
)

// HashFunc computes the digest of the file at path.
type HashFunc func(path string) (string, error)

// errEmptyDigest is returned when a HashFunc reports success without a digest.
var errEmptyDigest = errors.New("empty digest")

// Queue is an insertion-ordered list of items. Items are tracked by pointer
// identity, so enqueueing the same path twice yields two distinct items.
type Queue struct {
	mu    sync.Mutex
	items []*Item
	hash  HashFunc
}

// Option configures a Queue.
type Option func(*Queue)

// WithHasher replaces the digest function (for testing).
func WithHasher(fn HashFunc) Option {
	return func(q *Queue) { q.hash = fn }
}

// New creates an empty queue that hashes with hasher.Compute.
func New(opts ...Option) *Queue {
	q := &Queue{hash: hasher.Compute}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Enqueue hashes the file at path and appends it. If hashing fails the queue
// is left unchanged and the error names the file.
func (q *Queue) Enqueue(path string) (*Item, error) {
	digest, err := q.hash(path)
	if err == nil && digest == "" {
		err = errEmptyDigest
	}
	if err != nil {
		return nil, fmt.Errorf("hash could not be generated for file %s: %w", filepath.Base(path), err)
	}

	item := NewItem(path, digest)
	q.Add(item)
	return item, nil
}

// Add appends an item built by the caller.
func (q *Queue) Add(item *Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
}

// Items returns a snapshot of the current items in insertion order.
func (q *Queue) Items() []*Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.items)
}

// Remove deletes item from the queue. It reports false when the item is not
// present, which makes repeated removal a no-op.
func (q *Queue) Remove(item *Item) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := slices.Index(q.items, item)
	if i < 0 {
		return false
	}
	q.items = slices.Delete(q.items, i, i+1)
	return true
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// IsEmpty reports whether the queue holds no items.
func (q *Queue) IsEmpty() bool { return q.Len() == 0 }

// Package storage defines the blob store abstraction that holds the
// announcer's seen-state. Backends live in the gcs, local and memory
// subpackages so the application is independent of a specific store.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by GetObject when the object does not exist.
var ErrNotFound = errors.New("object not found")

// BlobStore reads and writes whole objects by path.
type BlobStore interface {
	// GetObject returns the full object contents, or ErrNotFound.
	GetObject(ctx context.Context, path string) ([]byte, error)
	// PutObject overwrites the object and returns a URI describing it.
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

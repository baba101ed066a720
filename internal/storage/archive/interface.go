// internal/storage/archive/interface.go

// Package archive abstracts the cold-storage backend that backtest
// artifacts (trade and order CSV exports) are written to. Paths use
// forward slashes on every backend.
package archive

import "context"

// Storage is one archive backend. Implementations treat path as an
// opaque slash-separated key; there is no directory semantics beyond
// prefix matching in List.
type Storage interface {
	// Write stores data at path, replacing any existing artifact.
	Write(ctx context.Context, path string, data []byte) error

	// Read returns the artifact stored at path.
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns every stored path under the prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the artifact at path.
	Delete(ctx context.Context, path string) error

	// Exists reports whether an artifact is stored at path.
	Exists(ctx context.Context, path string) (bool, error)
}

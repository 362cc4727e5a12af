package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotExist is returned by Open for a key that has no object.
var ErrNotExist = errors.New("object does not exist")

// Backend is a destination for backup archives. Implemented by the local
// filesystem and S3-compatible object stores.
type Backend interface {
	// Put streams r to key, replacing any existing object, and reports the
	// number of bytes stored.
	Put(ctx context.Context, key string, r io.Reader) (int64, error)

	// Open returns a reader for the object at key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns all keys under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}

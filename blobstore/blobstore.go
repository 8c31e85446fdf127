package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store is an abstraction for named immutable blobs.
// Implementations must be safe for concurrent use.
type Store interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Create opens a blob for streaming writes. The blob becomes visible
	// under its name when Close returns nil.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Put writes a complete blob atomically.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the blob names under prefix, sorted ascending.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	io.ReaderAt
	io.Closer
	// Size returns the size of the blob in bytes.
	Size() int64
}

// WritableBlob is a streaming write handle. Writes are not visible to
// readers until Close succeeds.
type WritableBlob interface {
	io.WriteCloser
	// Sync flushes written data to stable storage where the backend
	// supports it.
	Sync() error
}

// Mappable is an optional interface for Blobs that support memory mapping.
type Mappable interface {
	// Bytes returns the underlying byte slice.
	// The slice is valid until the Blob is closed.
	// This is a zero-copy operation if supported.
	Bytes() ([]byte, error)
}

// ReadAll returns the full contents of a blob, using the zero-copy path
// when the backend offers one. The returned slice is always a copy the
// caller owns.
func ReadAll(b Blob) ([]byte, error) {
	if m, ok := b.(Mappable); ok {
		raw, err := m.Bytes()
		if err == nil {
			out := make([]byte, len(raw))
			copy(out, raw)
			return out, nil
		}
	}

	out := make([]byte, b.Size())
	if len(out) == 0 {
		return out, nil
	}
	if _, err := b.ReadAt(out, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return out, nil
}

package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Get when no file exists at the path.
var ErrNotFound = errors.New("file not found")

// Storage defines the interface for file storage operations.
type Storage interface {
	// Save saves a file to the storage.
	// path is the relative path where the file should be stored.
	Save(ctx context.Context, path string, content io.Reader) error

	// Get retrieves a file from the storage.
	// Returns ErrNotFound when the path does not exist.
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes a file from the storage. Missing files are not an error.
	Delete(ctx context.Context, path string) error
}

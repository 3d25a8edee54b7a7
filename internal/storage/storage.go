// Package storage provides temporary and persistent file storage for render
// jobs. It defines the Storage interface (port) for hexagonal architecture
// and implementations for local disk and S3-backed delivery.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for temporary and persistent file storage.
// Implementations handle working files during a render and move finished
// videos into the output directory, optionally publishing them to S3.
type Storage interface {
	// SaveTemp saves data to a temporary file and returns the file path.
	// The name parameter is used as a hint for the filename.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadTemp reads a temporary file and returns a reader.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// SaveOutput moves a finished render from its temp location into the
	// output directory under the given name and returns the final path.
	SaveOutput(ctx context.Context, tempPath, name string) (path string, err error)

	// UploadToS3 uploads data to S3 and returns the public URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}

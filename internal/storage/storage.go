// Package storage provides object storage abstractions for the remote
// drive that data files are synchronized from.
package storage

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
	ErrDeleteFailed   = errors.New("delete failed")
)

// ObjectStorage abstracts the remote drive holding data files.
// Implementations include S3 and local filesystem for testing.
type ObjectStorage interface {
	// Download fetches an object to a local path.
	Download(ctx context.Context, objectPath, localPath string) error

	// Upload stores a local file at objectPath.
	Upload(ctx context.Context, localPath, objectPath string) error

	// Delete removes an object. Deleting a missing object is a no-op.
	Delete(ctx context.Context, objectPath string) error

	// Exists reports whether an object exists.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ListObjects returns all object paths under the given prefix.
	// Used by sync to detect data files missing locally.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}

// Package storage defines where product images live. The HTTP and service
// layers depend on this interface only, so the disk backend can be swapped
// without touching orchestration code.
package storage

import (
	"context"
	"io"
)

// WriteInput describes one validated file to persist.
type WriteInput struct {
	OriginalName string
	Extension    string
	ContentType  string
	Size         int64
	Data         io.Reader
}

// StoredFile describes a persisted file.
type StoredFile struct {
	// FileName is the storage-generated name, unique across uploads.
	FileName string
	// Path is the backend-specific location, useful for logs.
	Path string
	// URL is the public address the file is served from.
	URL string
}

// Storage persists uploaded product images.
type Storage interface {
	// Write persists the file under a freshly generated name. The original
	// client filename never influences the stored name.
	Write(ctx context.Context, in *WriteInput) (*StoredFile, error)

	// Delete removes a stored file. Deleting a file that does not exist is
	// not an error, so compensation paths can retry safely.
	Delete(ctx context.Context, fileName string) error

	// URL returns the public address for a stored file name.
	URL(fileName string) string
}

// Package disk stores product images on the local filesystem.
package disk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/wovenmarket/catalog/internal/storage"
)

const publicPrefix = "/uploads/products"

// Store writes files under a single root directory and serves them from
// baseURL + "/uploads/products/".
type Store struct {
	root    string
	baseURL string
}

// New creates a Store rooted at dir. The directory is created if missing.
func New(dir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory %s: %w", dir, err)
	}
	return &Store{
		root:    dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Root returns the directory files are written to.
func (s *Store) Root() string {
	return s.root
}

// Write copies the file to disk under a generated UUID name. A partially
// written file is removed before the error is returned, so a failed Write
// leaves nothing behind.
func (s *Store) Write(ctx context.Context, in *storage.WriteInput) (*storage.StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fileName := uuid.New().String() + in.Extension
	path := filepath.Join(s.root, fileName)

	// The directory may have been removed out of band since New ran.
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory %s: %w", s.root, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating file %s: %w", fileName, err)
	}

	if _, err := io.Copy(f, in.Data); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("writing file %s: %w", fileName, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("closing file %s: %w", fileName, err)
	}

	return &storage.StoredFile{
		FileName: fileName,
		Path:     path,
		URL:      s.URL(fileName),
	}, nil
}

// Delete removes the named file. A missing file is treated as already deleted.
func (s *Store) Delete(_ context.Context, fileName string) error {
	// Reject anything that could escape the root.
	if fileName != filepath.Base(fileName) || fileName == "." || fileName == "" {
		return fmt.Errorf("invalid file name %q", fileName)
	}

	err := os.Remove(filepath.Join(s.root, fileName))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting file %s: %w", fileName, err)
	}
	return nil
}

// URL returns the public address for a stored file.
func (s *Store) URL(fileName string) string {
	return s.baseURL + publicPrefix + "/" + fileName
}

package disk

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wovenmarket/catalog/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)
	return s
}

func writeInput(content, ext string) *storage.WriteInput {
	return &storage.WriteInput{
		OriginalName: "original" + ext,
		Extension:    ext,
		ContentType:  "image/jpeg",
		Size:         int64(len(content)),
		Data:         strings.NewReader(content),
	}
}

func TestStore_Write(t *testing.T) {
	s := newTestStore(t)

	stored, err := s.Write(context.Background(), writeInput("jpeg bytes", ".jpg"))

	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(stored.FileName, ".jpg"))
	// The generated name never carries the client filename.
	assert.NotContains(t, stored.FileName, "original")
	assert.Equal(t, "http://localhost:8080/uploads/products/"+stored.FileName, stored.URL)

	data, err := os.ReadFile(stored.Path)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))
}

func TestStore_WriteUniqueNames(t *testing.T) {
	s := newTestStore(t)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		stored, err := s.Write(context.Background(), writeInput("data", ".png"))
		require.NoError(t, err)
		assert.False(t, seen[stored.FileName])
		seen[stored.FileName] = true
	}
}

func TestStore_WriteRecreatesDirectory(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.RemoveAll(s.Root()))

	stored, err := s.Write(context.Background(), writeInput("data", ".webp"))

	require.NoError(t, err)
	assert.FileExists(t, stored.Path)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestStore_WriteCleansUpPartialFile(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Write(context.Background(), &storage.WriteInput{
		Extension: ".jpg",
		Data:      failingReader{},
	})

	require.Error(t, err)
	entries, readErr := os.ReadDir(s.Root())
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)
	stored, err := s.Write(context.Background(), writeInput("data", ".jpg"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(context.Background(), stored.FileName))
	assert.NoFileExists(t, stored.Path)

	// Deleting again is a no-op.
	assert.NoError(t, s.Delete(context.Background(), stored.FileName))
}

func TestStore_DeleteRejectsPathTraversal(t *testing.T) {
	s := newTestStore(t)

	outside := filepath.Join(filepath.Dir(s.Root()), "victim.txt")
	require.NoError(t, os.WriteFile(outside, []byte("keep me"), 0o644))

	assert.Error(t, s.Delete(context.Background(), "../victim.txt"))
	assert.FileExists(t, outside)
}

func TestStore_URL(t *testing.T) {
	s, err := New(t.TempDir(), "https://cdn.example.com/")
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/uploads/products/abc.jpg", s.URL("abc.jpg"))
}

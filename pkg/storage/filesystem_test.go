package storage

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveStreamAndOpen(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	stored, err := store.SaveStream("documents/1000_budget.pdf", bytes.NewReader([]byte("%PDF-1.4 data")))
	require.NoError(t, err)
	require.Equal(t, "documents/1000_budget.pdf", stored)

	file, err := store.Open(stored)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4 data", string(content))
}

func TestLocalStorageDeleteIsIdempotent(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	stored, err := store.SaveStream("documents/1000_budget.pdf", bytes.NewReader([]byte("x")))
	require.NoError(t, err)

	require.NoError(t, store.Delete(stored))
	// Deleting the same key again, or a key that never existed, is not an error.
	require.NoError(t, store.Delete(stored))
	require.NoError(t, store.Delete("documents/never_stored.pdf"))

	_, err = store.Open(stored)
	require.Error(t, err)
}

func TestLocalStoragePathResolvesUnderBase(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocalStorage(base)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(base, "a.pdf"), store.Path("a.pdf"))
}

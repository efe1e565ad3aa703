package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFallbackStorageWritesPrimaryWhenHealthy(t *testing.T) {
	root := t.TempDir()
	s, err := NewFallbackStorage(filepath.Join(root, "mnt"), filepath.Join(root, "local"), zap.NewNop())
	require.NoError(t, err)
	require.True(t, s.PrimaryAvailable())

	loc, path, err := s.Save("doc.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, LocationPrimary, loc)
	assert.Equal(t, filepath.Join(root, "mnt", "doc.pdf"), path)

	data, err := s.Read("doc.pdf", LocationPrimary)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), data)
}

func TestFallbackStorageUsesFallbackWhenMountMissing(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	s, err := NewFallbackStorage(filepath.Join(blocker, "mnt"), filepath.Join(root, "local"), zap.NewNop())
	require.NoError(t, err)
	assert.False(t, s.PrimaryAvailable())

	loc, _, err := s.Save("doc.pdf", []byte("bytes"))
	require.NoError(t, err)
	assert.Equal(t, LocationFallback, loc)

	data, err := s.Read("doc.pdf", LocationPrimary)
	require.NoError(t, err)
	assert.Equal(t, []byte("bytes"), data)
}

func TestFallbackStorageUsesFallbackWhenPrimaryWriteFails(t *testing.T) {
	root := t.TempDir()
	primaryDir := filepath.Join(root, "mnt")
	s, err := NewFallbackStorage(primaryDir, filepath.Join(root, "local"), zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(primaryDir))
	require.NoError(t, os.WriteFile(primaryDir, []byte("unmounted"), 0o644))

	loc, _, err := s.Save("doc.pdf", []byte("bytes"))
	require.NoError(t, err)
	assert.Equal(t, LocationFallback, loc)

	file, found, err := s.Open("doc.pdf", LocationFallback)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, LocationFallback, found)
}

func TestFallbackStorageMissingAndInvalidNames(t *testing.T) {
	root := t.TempDir()
	s, err := NewFallbackStorage(filepath.Join(root, "mnt"), filepath.Join(root, "local"), nil)
	require.NoError(t, err)

	_, err = s.Read("absent.pdf", LocationPrimary)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	_, _, err = s.Save("../escape.pdf", []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidName)

	require.NoError(t, s.Delete("absent.pdf"))
}

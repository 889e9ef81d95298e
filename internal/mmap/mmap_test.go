package mmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data")
	require.NoError(t, os.WriteFile(path, []byte("hello mmap"), 0o600))

	r, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 10, r.Len())
	assert.Equal(t, "hello mmap", string(r.Bytes()))

	require.NoError(t, r.Close())
	assert.Nil(t, r.Bytes())
	require.NoError(t, r.Close())
}

func TestOpenEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	r, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Len())
	assert.NoError(t, r.Close())
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

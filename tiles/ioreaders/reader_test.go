package ioreaders

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileReaderReadRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	content := []byte("0123456789abcdef")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	r, err := OpenFileReader(path)
	require.NoError(t, err)
	defer r.Close()

	size, ok := r.Size()
	assert.True(t, ok)
	assert.Equal(t, uint64(len(content)), size)

	got, err := r.ReadRange(context.Background(), 4, 6)
	require.NoError(t, err)
	assert.Equal(t, []byte("456789"), got)

	all, err := r.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, content, all)
}

func TestFileReaderRejectsRelativePath(t *testing.T) {
	_, err := OpenFileReader("relative/path.bin")
	assert.Error(t, err)
}

func TestFileReaderRangeOutOfBounds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("short"), 0o644))

	r, err := OpenFileReader(path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.ReadRange(context.Background(), 0, 100)
	assert.Error(t, err)
}

func TestMemReaderRoundtrip(t *testing.T) {
	r := NewMemReader("mem", []byte("hello world"))
	got, err := r.ReadRange(context.Background(), 6, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), got)
	assert.Equal(t, "mem", r.Name())
}

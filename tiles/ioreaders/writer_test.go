package ioreaders

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileWriterAppendTracksOffset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")
	w, err := CreateFileWriter(path)
	require.NoError(t, err)

	off1, err := w.Append([]byte("aaaa"))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), off1)

	off2, err := w.Append([]byte("bb"))
	require.NoError(t, err)
	assert.Equal(t, uint64(4), off2)
	assert.Equal(t, uint64(6), w.Position())
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("aaaabb"), data)
}

func TestDedupWriterSkipsDuplicateContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")
	fw, err := CreateFileWriter(path)
	require.NoError(t, err)
	dw := NewDedupWriter(fw)

	off1, len1, isNew1, err := dw.WriteTile([]byte("tile-payload"))
	require.NoError(t, err)
	assert.True(t, isNew1)

	off2, len2, isNew2, err := dw.WriteTile([]byte("tile-payload"))
	require.NoError(t, err)
	assert.False(t, isNew2)
	assert.Equal(t, off1, off2)
	assert.Equal(t, len1, len2)

	off3, _, isNew3, err := dw.WriteTile([]byte("different-payload"))
	require.NoError(t, err)
	assert.True(t, isNew3)
	assert.NotEqual(t, off1, off3)

	require.NoError(t, dw.Close())
}

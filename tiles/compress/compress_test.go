package compress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versatiles-org/versatiles-go/tiles"
)

func TestGzipRoundtrip(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog, repeated: the quick brown fox")
	compressed, err := CompressGzip(data)
	require.NoError(t, err)
	assert.NotEqual(t, data, compressed)

	back, err := DecompressGzip(compressed)
	require.NoError(t, err)
	assert.Equal(t, data, back)
}

func TestBrotliRoundtrip(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog, repeated: the quick brown fox")
	compressed, err := CompressBrotli(data, BrotliQuality)
	require.NoError(t, err)
	assert.NotEqual(t, data, compressed)

	back, err := DecompressBrotli(compressed)
	require.NoError(t, err)
	assert.Equal(t, data, back)
}

func TestCompressDecompressDispatch(t *testing.T) {
	data := []byte("tile payload")
	for _, c := range []tiles.TileCompression{tiles.Uncompressed, tiles.Gzip, tiles.Brotli} {
		encoded, err := Compress(data, c)
		require.NoError(t, err)
		decoded, err := Decompress(encoded, c)
		require.NoError(t, err)
		assert.Equal(t, data, decoded)
	}
}

func TestRecompressNoOpWhenSame(t *testing.T) {
	data := []byte("tile payload")
	out, err := Recompress(data, tiles.Gzip, tiles.Gzip)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestRecompressGzipToBrotli(t *testing.T) {
	data := []byte("tile payload, long enough to compress meaningfully well maybe")
	gz, err := CompressGzip(data)
	require.NoError(t, err)

	br, err := Recompress(gz, tiles.Gzip, tiles.Brotli)
	require.NoError(t, err)

	back, err := DecompressBrotli(br)
	require.NoError(t, err)
	assert.Equal(t, data, back)
}

func TestSniffGzip(t *testing.T) {
	data := []byte("payload")
	gz, err := CompressGzip(data)
	require.NoError(t, err)
	assert.Equal(t, tiles.Gzip, Sniff(gz))
	assert.Equal(t, tiles.Uncompressed, Sniff(data))
}

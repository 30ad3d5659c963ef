package pmtiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versatiles-org/versatiles-go/tiles"
)

func TestHeaderRoundtrip(t *testing.T) {
	h := Header{
		SpecVersion:         3,
		RootOffset:          127,
		RootLength:          40,
		MetadataOffset:      167,
		MetadataLength:      20,
		LeafDirectoryOffset: 0,
		LeafDirectoryLength: 0,
		TileDataOffset:      0,
		TileDataLength:      5000,
		AddressedTilesCount: 12,
		TileEntriesCount:    10,
		TileContentsCount:   9,
		Clustered:           true,
		InternalCompression: CompressionGzip,
		TileCompression:     CompressionGzip,
		TileType:            TileTypeMVT,
		MinZoom:             0,
		MaxZoom:             14,
		MinLonE7:            -1800000000,
		MinLatE7:            -850000000,
		MaxLonE7:            1800000000,
		MaxLatE7:            850000000,
	}
	b := SerializeHeader(h)
	require.Len(t, b, HeaderLenBytes)
	assert.Equal(t, "PMTiles", string(b[0:7]))
	assert.Equal(t, uint8(3), b[7])

	back, err := DeserializeHeader(b)
	require.NoError(t, err)
	assert.Equal(t, h, back)
}

func TestDeserializeHeaderRejectsBadMagic(t *testing.T) {
	b := make([]byte, HeaderLenBytes)
	copy(b, []byte("not-pmtiles"))
	_, err := DeserializeHeader(b)
	assert.Error(t, err)
}

func TestEntriesRoundtripUncompressed(t *testing.T) {
	entries := []Entry{
		{TileID: 0, Offset: 0, Length: 100, RunLength: 1},
		{TileID: 1, Offset: 100, Length: 50, RunLength: 2},
		{TileID: 5, Offset: 300, Length: 10, RunLength: 1},
	}
	blob, err := SerializeEntries(entries, CompressionNone)
	require.NoError(t, err)

	back, err := DeserializeEntries(blob, CompressionNone)
	require.NoError(t, err)
	assert.Equal(t, entries, back)
}

func TestEntriesRoundtripGzip(t *testing.T) {
	entries := []Entry{
		{TileID: 10, Offset: 0, Length: 20, RunLength: 1},
		{TileID: 11, Offset: 20, Length: 30, RunLength: 1},
	}
	blob, err := SerializeEntries(entries, CompressionGzip)
	require.NoError(t, err)

	back, err := DeserializeEntries(blob, CompressionGzip)
	require.NoError(t, err)
	assert.Equal(t, entries, back)
}

func TestFindTile(t *testing.T) {
	entries := []Entry{
		{TileID: 0, Offset: 0, Length: 10, RunLength: 1},
		{TileID: 5, Offset: 10, Length: 10, RunLength: 3}, // covers ids 5,6,7
		{TileID: 20, Offset: 20, Length: 10, RunLength: 1},
	}

	e, ok := FindTile(entries, 6)
	require.True(t, ok)
	assert.Equal(t, uint64(5), e.TileID)

	_, ok = FindTile(entries, 8)
	assert.False(t, ok)

	_, ok = FindTile(entries, 20)
	assert.True(t, ok)
}

func TestOptimizeDirectoriesSingleRootWhenSmall(t *testing.T) {
	entries := make([]Entry, 100)
	for i := range entries {
		entries[i] = Entry{TileID: uint64(i), Offset: uint64(i * 10), Length: 10, RunLength: 1}
	}
	root, leaves, numLeaves, err := OptimizeDirectories(entries, 16384, CompressionNone)
	require.NoError(t, err)
	assert.Empty(t, leaves)
	assert.Equal(t, 0, numLeaves)

	back, err := DeserializeEntries(root, CompressionNone)
	require.NoError(t, err)
	assert.Len(t, back, 100)
}

func TestOptimizeDirectoriesSplitsWhenLarge(t *testing.T) {
	entries := make([]Entry, 20000)
	for i := range entries {
		entries[i] = Entry{TileID: uint64(i), Offset: uint64(i * 100), Length: 100, RunLength: 1}
	}
	root, leaves, numLeaves, err := OptimizeDirectories(entries, 4096, CompressionGzip)
	require.NoError(t, err)
	assert.NotEmpty(t, leaves)
	assert.Greater(t, numLeaves, 0)

	rootEntries, err := DeserializeEntries(root, CompressionGzip)
	require.NoError(t, err)
	assert.Equal(t, numLeaves, len(rootEntries))
}

func TestTileTypeFormatRoundtrip(t *testing.T) {
	for _, f := range []tiles.TileFormat{tiles.FormatPBF, tiles.FormatPNG, tiles.FormatJPG, tiles.FormatWEBP, tiles.FormatAVIF} {
		tt := tileTypeFromFormat(f)
		assert.Equal(t, f, formatFromTileType(tt))
	}
}

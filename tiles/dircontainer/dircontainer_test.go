package dircontainer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versatiles-org/versatiles-go/tiles"
)

func TestWriteAndReadRoundtrip(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	w, err := Create(tiles.FormatPBF, tiles.Gzip, root)
	require.NoError(t, err)

	require.NoError(t, w.WriteTileWithFormat(tiles.TileCoord{Z: 4, X: 3, Y: 2}, tiles.FormatPBF, tiles.Gzip, []byte("abc")))
	require.NoError(t, w.WriteTileWithFormat(tiles.TileCoord{Z: 4, X: 1, Y: 1}, tiles.FormatPBF, tiles.Gzip, []byte("defgh")))

	pyramid := tiles.NewTileBBoxPyramidEmpty()
	pyramid.SetLevel(4, tiles.TileBBox{Z: 4, XMin: 1, YMin: 1, XMax: 3, YMax: 2})
	params := tiles.TilesReaderParameters{Format: tiles.FormatPBF, Compression: tiles.Gzip, Pyramid: pyramid}
	require.NoError(t, w.Finalize(ctx, params, tiles.Metadata{"name": "dir-test"}))

	r, err := Open(ctx, root)
	require.NoError(t, err)

	data, ok, err := r.GetTileData(ctx, tiles.TileCoord{Z: 4, X: 3, Y: 2})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", string(data))

	data, ok, err = r.GetTileData(ctx, tiles.TileCoord{Z: 4, X: 1, Y: 1})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "defgh", string(data))

	_, ok, err = r.GetTileData(ctx, tiles.TileCoord{Z: 4, X: 0, Y: 0})
	require.NoError(t, err)
	assert.False(t, ok)

	gotParams := r.Parameters()
	assert.Equal(t, tiles.FormatPBF, gotParams.Format)
	assert.Equal(t, tiles.Gzip, gotParams.Compression)
}

func TestParseRelPath(t *testing.T) {
	coord, format, comp, ok := parseRelPath("4/2/3.pbf.gz")
	require.True(t, ok)
	assert.Equal(t, tiles.TileCoord{Z: 4, X: 3, Y: 2}, coord)
	assert.Equal(t, tiles.FormatPBF, format)
	assert.Equal(t, tiles.Gzip, comp)

	_, _, _, ok = parseRelPath("tiles.json")
	assert.False(t, ok)

	_, _, _, ok = parseRelPath("4/2/3.unknownext")
	assert.False(t, ok)
}

func TestOpenMissingMetadataIsNotAnError(t *testing.T) {
	root := t.TempDir()
	w, err := Create(tiles.FormatPNG, tiles.Uncompressed, root)
	require.NoError(t, err)
	require.NoError(t, w.WriteTileWithFormat(tiles.TileCoord{Z: 0, X: 0, Y: 0}, tiles.FormatPNG, tiles.Uncompressed, []byte("x")))

	r, err := Open(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, tiles.FormatPNG, r.Parameters().Format)
}

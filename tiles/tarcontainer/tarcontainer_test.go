package tarcontainer

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versatiles-org/versatiles-go/tiles"
	"github.com/versatiles-org/versatiles-go/tiles/ioreaders"
)

func TestWriteAndReadRoundtrip(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	w := Create(tiles.FormatPBF, tiles.Gzip, &buf)

	require.NoError(t, w.WriteTileWithFormat(tiles.TileCoord{Z: 4, X: 3, Y: 2}, tiles.FormatPBF, tiles.Gzip, []byte("abc")))
	require.NoError(t, w.WriteTileWithFormat(tiles.TileCoord{Z: 4, X: 1, Y: 1}, tiles.FormatPBF, tiles.Gzip, []byte("defgh")))

	pyramid := tiles.NewTileBBoxPyramidEmpty()
	pyramid.SetLevel(4, tiles.TileBBox{Z: 4, XMin: 1, YMin: 1, XMax: 3, YMax: 2})
	params := tiles.TilesReaderParameters{Format: tiles.FormatPBF, Compression: tiles.Gzip, Pyramid: pyramid}
	require.NoError(t, w.Finalize(ctx, params, tiles.Metadata{"name": "tar-test"}))

	src := ioreaders.NewMemReader("archive.tar", buf.Bytes())
	r, err := Open(ctx, src)
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

func TestParseEntryName(t *testing.T) {
	coord, format, comp, ok := parseEntryName("5/10/20.pbf.gz")
	require.True(t, ok)
	assert.Equal(t, tiles.TileCoord{Z: 5, X: 20, Y: 10}, coord)
	assert.Equal(t, tiles.FormatPBF, format)
	assert.Equal(t, tiles.Gzip, comp)

	_, _, _, ok = parseEntryName("tiles.json")
	assert.False(t, ok)

	coord, format, comp, ok = parseEntryName("2/3/4.png")
	require.True(t, ok)
	assert.Equal(t, tiles.TileCoord{Z: 2, X: 4, Y: 3}, coord)
	assert.Equal(t, tiles.FormatPNG, format)
	assert.Equal(t, tiles.Uncompressed, comp)
}

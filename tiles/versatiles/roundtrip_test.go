package versatiles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versatiles-org/versatiles-go/tiles"
	"github.com/versatiles-org/versatiles-go/tiles/compress"
	"github.com/versatiles-org/versatiles-go/tiles/ioreaders"
)

func TestWriteAndReadSingleBlock(t *testing.T) {
	ctx := context.Background()
	mw := ioreaders.NewMemWriter()
	w, err := Create(tiles.FormatPBF, tiles.Gzip, mw)
	require.NoError(t, err)

	payload, err := compress.CompressGzip([]byte("vector tile bytes"))
	require.NoError(t, err)

	key := BlockKey{Level: 3, BX: 0, BY: 0}
	bbox := tiles.TileBBox{Z: 3, XMin: 0, YMin: 0, XMax: 7, YMax: 7}
	require.NoError(t, w.WriteBlock(key, bbox, map[tiles.TileCoord][]byte{
		{Z: 3, X: 5, Y: 3}: payload,
	}))

	pyramid := tiles.NewTileBBoxPyramidEmpty()
	pyramid.SetLevel(3, bbox)
	meta := tiles.Metadata{"name": "test"}
	require.NoError(t, w.Finalize(ctx, tiles.TilesReaderParameters{Pyramid: pyramid}, meta))

	mr := ioreaders.NewMemReader("mem", mw.Bytes())
	r, err := Open(ctx, mr)
	require.NoError(t, err)

	data, ok, err := r.GetTileData(ctx, tiles.TileCoord{Z: 3, X: 5, Y: 3})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payload, data)

	decoded, err := compress.DecompressGzip(data)
	require.NoError(t, err)
	assert.Equal(t, "vector tile bytes", string(decoded))

	_, ok, err = r.GetTileData(ctx, tiles.TileCoord{Z: 3, X: 1, Y: 1})
	require.NoError(t, err)
	assert.False(t, ok)

	gotMeta, err := r.Metadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, "test", gotMeta["name"])
}

func TestGetBBoxTileRanges(t *testing.T) {
	ctx := context.Background()
	mw := ioreaders.NewMemWriter()
	w, err := Create(tiles.FormatPNG, tiles.Uncompressed, mw)
	require.NoError(t, err)

	key := BlockKey{Level: 2, BX: 0, BY: 0}
	bbox := tiles.TileBBox{Z: 2, XMin: 0, YMin: 0, XMax: 3, YMax: 3}
	tilesByCoord := map[tiles.TileCoord][]byte{
		{Z: 2, X: 0, Y: 0}: []byte("a"),
		{Z: 2, X: 1, Y: 0}: []byte("bb"),
		{Z: 2, X: 2, Y: 2}: []byte("ccc"),
	}
	require.NoError(t, w.WriteBlock(key, bbox, tilesByCoord))

	pyramid := tiles.NewTileBBoxPyramidEmpty()
	pyramid.SetLevel(2, bbox)
	require.NoError(t, w.Finalize(ctx, tiles.TilesReaderParameters{Pyramid: pyramid}, nil))

	mr := ioreaders.NewMemReader("mem", mw.Bytes())
	r, err := Open(ctx, mr)
	require.NoError(t, err)

	coords, ranges, err := r.GetBBoxTileRanges(ctx, bbox)
	require.NoError(t, err)
	assert.Len(t, coords, 3)
	assert.Len(t, ranges, 3)
}

func TestGetBBoxTileChunksCoalescesAdjacentTiles(t *testing.T) {
	ctx := context.Background()
	mw := ioreaders.NewMemWriter()
	w, err := Create(tiles.FormatPNG, tiles.Uncompressed, mw)
	require.NoError(t, err)

	key := BlockKey{Level: 2, BX: 0, BY: 0}
	bbox := tiles.TileBBox{Z: 2, XMin: 0, YMin: 0, XMax: 3, YMax: 3}
	tilesByCoord := map[tiles.TileCoord][]byte{
		{Z: 2, X: 0, Y: 0}: []byte("a"),
		{Z: 2, X: 1, Y: 0}: []byte("bb"),
		{Z: 2, X: 2, Y: 2}: []byte("ccc"),
	}
	require.NoError(t, w.WriteBlock(key, bbox, tilesByCoord))

	pyramid := tiles.NewTileBBoxPyramidEmpty()
	pyramid.SetLevel(2, bbox)
	require.NoError(t, w.Finalize(ctx, tiles.TilesReaderParameters{Pyramid: pyramid}, nil))

	mr := ioreaders.NewMemReader("mem", mw.Bytes())
	r, err := Open(ctx, mr)
	require.NoError(t, err)

	chunks, supported, err := r.GetBBoxTileChunks(ctx, bbox)
	require.NoError(t, err)
	require.True(t, supported)
	require.NotEmpty(t, chunks)

	got := map[tiles.TileCoord][]byte{}
	for _, chunk := range chunks {
		raw, err := chunk.Fetch(ctx)
		require.NoError(t, err)
		for _, tr := range chunk.Tiles {
			got[tr.Coord] = raw[tr.Range.Offset : tr.Range.Offset+tr.Range.Length]
		}
	}
	for coord, want := range tilesByCoord {
		assert.Equal(t, want, got[coord])
	}
}

package tiles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockPlainReader serves tiles out of an in-memory map via GetTileData
// only; it does not implement BBoxChunkedReader, exercising convert.go's
// per-tile fallback path.
type mockPlainReader struct {
	params TilesReaderParameters
	tiles  map[TileCoord][]byte
}

func (m *mockPlainReader) Parameters() TilesReaderParameters        { return m.params }
func (m *mockPlainReader) Metadata(context.Context) (Metadata, error) { return Metadata{}, nil }
func (m *mockPlainReader) Name() string                              { return "mock-plain" }
func (m *mockPlainReader) Close() error                              { return nil }
func (m *mockPlainReader) GetTileData(_ context.Context, c TileCoord) ([]byte, bool, error) {
	data, ok := m.tiles[c]
	return data, ok, nil
}

// mockChunkedReader additionally implements BBoxChunkedReader, serving
// every tile in a bbox as a single coalesced chunk so tests can assert the
// bulk path is actually exercised rather than silently falling back.
type mockChunkedReader struct {
	mockPlainReader
	chunkCalls int
}

func (m *mockChunkedReader) GetBBoxTileChunks(_ context.Context, bbox TileBBox) ([]BBoxChunk, bool, error) {
	m.chunkCalls++
	var tileRanges []ChunkTileRange
	var buf []byte
	bbox.IterCoords(func(c TileCoord) bool {
		data, ok := m.tiles[c]
		if !ok {
			return true
		}
		tileRanges = append(tileRanges, ChunkTileRange{Coord: c, Range: ByteRange{Offset: uint64(len(buf)), Length: uint64(len(data))}})
		buf = append(buf, data...)
		return true
	})
	if len(tileRanges) == 0 {
		return nil, true, nil
	}
	return []BBoxChunk{{
		ChunkRange: ByteRange{Offset: 0, Length: uint64(len(buf))},
		Tiles:      tileRanges,
		Fetch:      func(context.Context) ([]byte, error) { return buf, nil },
	}}, true, nil
}

// mockWriter records every tile it's asked to write, in call order.
type mockWriter struct {
	writes []convertTileResult
}

func (w *mockWriter) WriteTile(_ context.Context, c TileCoord, data []byte) error {
	w.writes = append(w.writes, convertTileResult{coord: c, data: data})
	return nil
}

func (w *mockWriter) Finalize(context.Context, TilesReaderParameters, Metadata) error { return nil }

func testBBox() TileBBox {
	return TileBBox{Z: 2, XMin: 0, YMin: 0, XMax: 3, YMax: 3}
}

func testPyramid(bbox TileBBox) TileBBoxPyramid {
	p := NewTileBBoxPyramidEmpty()
	p.SetLevel(bbox.Z, bbox)
	return p
}

func TestConvertTilesContainerChunkedPath(t *testing.T) {
	ctx := context.Background()
	bbox := testBBox()
	src := &mockChunkedReader{mockPlainReader: mockPlainReader{
		params: TilesReaderParameters{Format: FormatPNG, Compression: Uncompressed, Pyramid: testPyramid(bbox)},
		tiles: map[TileCoord][]byte{
			{Z: 2, X: 0, Y: 0}: []byte("a"),
			{Z: 2, X: 1, Y: 0}: []byte("bb"),
			{Z: 2, X: 2, Y: 2}: []byte("ccc"),
		},
	}}
	dst := &mockWriter{}

	err := ConvertTilesContainer(ctx, src, dst, 256, nil)
	require.NoError(t, err)

	assert.Greater(t, src.chunkCalls, 0, "expected the chunked bulk-read path to be used")
	got := map[TileCoord][]byte{}
	for _, w := range dst.writes {
		got[w.coord] = w.data
	}
	assert.Equal(t, []byte("a"), got[TileCoord{Z: 2, X: 0, Y: 0}])
	assert.Equal(t, []byte("bb"), got[TileCoord{Z: 2, X: 1, Y: 0}])
	assert.Equal(t, []byte("ccc"), got[TileCoord{Z: 2, X: 2, Y: 2}])
	assert.Len(t, dst.writes, 3)
}

func TestConvertTilesContainerFallsBackToPerTile(t *testing.T) {
	ctx := context.Background()
	bbox := testBBox()
	src := &mockPlainReader{
		params: TilesReaderParameters{Format: FormatPNG, Compression: Uncompressed, Pyramid: testPyramid(bbox)},
		tiles: map[TileCoord][]byte{
			{Z: 2, X: 0, Y: 0}: []byte("a"),
			{Z: 2, X: 3, Y: 3}: []byte("z"),
		},
	}
	dst := &mockWriter{}

	err := ConvertTilesContainer(ctx, src, dst, 256, nil)
	require.NoError(t, err)

	got := map[TileCoord][]byte{}
	for _, w := range dst.writes {
		got[w.coord] = w.data
	}
	assert.Equal(t, []byte("a"), got[TileCoord{Z: 2, X: 0, Y: 0}])
	assert.Equal(t, []byte("z"), got[TileCoord{Z: 2, X: 3, Y: 3}])
	assert.Len(t, dst.writes, 2)
}

func TestConvertTilesContainerRecompressesThroughChunkedPath(t *testing.T) {
	ctx := context.Background()
	bbox := testBBox()
	raw := []byte("vector tile bytes")
	src := &mockChunkedReader{mockPlainReader: mockPlainReader{
		params: TilesReaderParameters{Format: FormatPBF, Compression: Uncompressed, Pyramid: testPyramid(bbox)},
		tiles:  map[TileCoord][]byte{{Z: 2, X: 0, Y: 0}: raw},
	}}
	dst := &mockWriter{}

	comp := Gzip
	convReader, err := NewTilesConvertReader(src, TilesConverterParameters{Compression: &comp}, FormatPBF)
	require.NoError(t, err)
	require.NoError(t, ConvertTilesContainer(ctx, convReader, dst, 256, nil))

	require.Len(t, dst.writes, 1)
	assert.NotEqual(t, raw, dst.writes[0].data)
}

func TestTilesConvertReaderBBoxChunkedPassthrough(t *testing.T) {
	ctx := context.Background()
	bbox := testBBox()
	src := &mockChunkedReader{mockPlainReader: mockPlainReader{
		params: TilesReaderParameters{Format: FormatPNG, Compression: Uncompressed, Pyramid: testPyramid(bbox)},
		tiles:  map[TileCoord][]byte{{Z: 2, X: 1, Y: 2}: []byte("tile")},
	}}
	convReader, err := NewTilesConvertReader(src, TilesConverterParameters{SwapXY: true}, FormatPNG)
	require.NoError(t, err)

	chunks, supported, err := convReader.GetBBoxTileChunks(ctx, TileBBox{Z: 2, XMin: 0, YMin: 0, XMax: 3, YMax: 3})
	require.NoError(t, err)
	require.True(t, supported)
	require.Len(t, chunks, 1)
	require.Len(t, chunks[0].Tiles, 1)
	// Source tile is (x:1, y:2); SwapXY in the forward (source->dest)
	// direction exchanges the axes, so the destination coordinate is
	// (x:2, y:1).
	assert.Equal(t, TileCoord{Z: 2, X: 2, Y: 1}, chunks[0].Tiles[0].Coord)
}

func TestTilesConvertReaderBBoxChunkedUnsupportedFallsThrough(t *testing.T) {
	ctx := context.Background()
	bbox := testBBox()
	src := &mockPlainReader{
		params: TilesReaderParameters{Format: FormatPNG, Compression: Uncompressed, Pyramid: testPyramid(bbox)},
		tiles:  map[TileCoord][]byte{},
	}
	convReader, err := NewTilesConvertReader(src, TilesConverterParameters{}, FormatPNG)
	require.NoError(t, err)

	_, supported, err := convReader.GetBBoxTileChunks(ctx, bbox)
	require.NoError(t, err)
	assert.False(t, supported)
}

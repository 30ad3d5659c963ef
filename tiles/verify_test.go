package tiles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTilesReader struct {
	params TilesReaderParameters
	tiles  map[TileCoord][]byte
}

func (r *fakeTilesReader) Parameters() TilesReaderParameters         { return r.params }
func (r *fakeTilesReader) Metadata(context.Context) (Metadata, error) { return Metadata{}, nil }
func (r *fakeTilesReader) Name() string                              { return "fake" }
func (r *fakeTilesReader) Close() error                              { return nil }
func (r *fakeTilesReader) GetTileData(_ context.Context, c TileCoord) ([]byte, bool, error) {
	data, ok := r.tiles[c]
	return data, ok, nil
}

func pyramidWithLevel(z uint8, bbox TileBBox) TileBBoxPyramid {
	p := NewTileBBoxPyramidEmpty()
	p.SetLevel(z, bbox)
	return p
}

func TestVerifyContainerPasses(t *testing.T) {
	bbox := TileBBox{Z: 2, XMin: 0, YMin: 0, XMax: 1, YMax: 1}
	r := &fakeTilesReader{
		params: TilesReaderParameters{Pyramid: pyramidWithLevel(2, bbox)},
		tiles:  map[TileCoord][]byte{},
	}
	bbox.IterCoords(func(c TileCoord) bool {
		r.tiles[c] = []byte("data")
		return true
	})
	require.NoError(t, VerifyContainer(context.Background(), r))
}

func TestVerifyContainerMissingTile(t *testing.T) {
	bbox := TileBBox{Z: 1, XMin: 0, YMin: 0, XMax: 1, YMax: 1}
	r := &fakeTilesReader{
		params: TilesReaderParameters{Pyramid: pyramidWithLevel(1, bbox)},
		tiles:  map[TileCoord][]byte{{Z: 1, X: 0, Y: 0}: []byte("data")},
	}
	err := VerifyContainer(context.Background(), r)
	assert.Error(t, err)
}

func TestVerifyContainerEmptyPyramid(t *testing.T) {
	r := &fakeTilesReader{params: TilesReaderParameters{Pyramid: NewTileBBoxPyramidEmpty()}}
	assert.NoError(t, VerifyContainer(context.Background(), r))
}

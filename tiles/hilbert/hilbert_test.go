package hilbert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versatiles-org/versatiles-go/tiles"
)

func TestEncodeDecodeRoundtrip(t *testing.T) {
	coords := []tiles.TileCoord{
		{Z: 0, X: 0, Y: 0},
		{Z: 1, X: 0, Y: 0},
		{Z: 1, X: 1, Y: 1},
		{Z: 5, X: 3, Y: 17},
		{Z: 12, X: 2047, Y: 1500},
	}
	for _, c := range coords {
		id, err := Encode(c)
		require.NoError(t, err)
		back, err := Decode(id)
		require.NoError(t, err)
		assert.Equal(t, c, back)
	}
}

func TestEncodeRootID(t *testing.T) {
	id, err := Encode(tiles.TileCoord{Z: 0, X: 0, Y: 0})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id)
}

func TestEncodeRejectsOutOfRangeCoordinate(t *testing.T) {
	_, err := Encode(tiles.TileCoord{Z: 1, X: 2, Y: 0})
	assert.Error(t, err)
}

func TestEncodeKnownValues(t *testing.T) {
	cases := []struct {
		c    tiles.TileCoord
		want uint64
	}{
		{tiles.TileCoord{Z: 0, X: 0, Y: 0}, 0},
		{tiles.TileCoord{Z: 1, X: 1, Y: 1}, 3},
		{tiles.TileCoord{Z: 2, X: 2, Y: 2}, 13},
		{tiles.TileCoord{Z: 3, X: 5, Y: 3}, 73},
		{tiles.TileCoord{Z: 3, X: 7, Y: 7}, 63},
		{tiles.TileCoord{Z: 31, X: 0, Y: 0}, 1537228672809129301},
		{tiles.TileCoord{Z: 31, X: (1 << 31) - 1, Y: (1 << 31) - 1}, 4611686018427387903},
	}
	for _, tc := range cases {
		got, err := Encode(tc.c)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "encode(%d,%d,%d)", tc.c.Z, tc.c.X, tc.c.Y)

		back, err := Decode(tc.want)
		require.NoError(t, err)
		assert.Equal(t, tc.c, back, "decode(%d)", tc.want)
	}
}

func TestParentID(t *testing.T) {
	childID, err := Encode(tiles.TileCoord{Z: 2, X: 1, Y: 1})
	require.NoError(t, err)
	parentID := ParentID(childID)
	parent, err := Decode(parentID)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), parent.Z)
}

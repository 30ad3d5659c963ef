package tiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoordFromLonLatOrigin(t *testing.T) {
	c := CoordFromLonLat(0, 0, 1)
	assert.Equal(t, TileCoord{Z: 1, X: 1, Y: 1}, c)
}

func TestCoordFromLonLatNorthWestCorner(t *testing.T) {
	c := CoordFromLonLat(-179.9, 85, 2)
	assert.Equal(t, uint8(2), c.Z)
	assert.Equal(t, uint32(0), c.X)
	assert.Equal(t, uint32(0), c.Y)
}

func TestTileBBoxGeoBoundsRoundTrip(t *testing.T) {
	full := NewTileBBoxFull(0)
	west, south, east, north := full.GeoBounds()
	assert.InDelta(t, -180, west, 0.001)
	assert.InDelta(t, 180, east, 0.001)
	assert.Greater(t, north, south)
}

func TestTileBBoxGeoBoundsEmpty(t *testing.T) {
	empty := NewTileBBoxEmpty(4)
	west, south, east, north := empty.GeoBounds()
	assert.Zero(t, west)
	assert.Zero(t, south)
	assert.Zero(t, east)
	assert.Zero(t, north)
}

func TestBBoxFromLonLatBoxWorldCoversEveryColumnAndRow(t *testing.T) {
	b := BBoxFromLonLatBox(3, -180, -85.0511, 180, 85.0511)
	assert.Equal(t, NewTileBBoxFull(3), b)
}

func TestBBoxFromLonLatBoxEastEdgeExcludesNextTile(t *testing.T) {
	// east=0 sits exactly on the grid line between x=1 and x=2 at z=2
	// (fx = 4*(0/360+0.5) = 2.0); the bbox's max corner must resolve to
	// the tile ending at that line (x=1), not the tile starting there.
	b := BBoxFromLonLatBox(2, -180, -85.0511, 0, 85.0511)
	assert.Equal(t, uint32(1), b.XMax)
}

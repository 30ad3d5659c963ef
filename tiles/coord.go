package tiles

import (
	"fmt"
)

// MaxLevel is the highest zoom level a TileBBoxPyramid tracks, per spec
// section 3 (MAX_LEVEL >= 31).
const MaxLevel = 31

// TileCoord identifies a single tile in slippy-map XYZ space. The origin is
// top-left; y grows southward. Invariant: X < 2^Z and Y < 2^Z, Z <= 31.
type TileCoord struct {
	Z uint8
	X uint32
	Y uint32
}

func (c TileCoord) String() string {
	return fmt.Sprintf("TileCoord{z:%d, x:%d, y:%d}", c.Z, c.X, c.Y)
}

// Valid reports whether the coordinate lies within its zoom level.
func (c TileCoord) Valid() bool {
	if c.Z > MaxLevel {
		return false
	}
	n := uint32(1) << c.Z
	return c.X < n && c.Y < n
}

// FlipY mirrors the tile vertically within its zoom level (XYZ <-> TMS).
func (c TileCoord) FlipY() TileCoord {
	n := uint32(1)<<c.Z - 1
	return TileCoord{Z: c.Z, X: c.X, Y: n - c.Y}
}

// SwapXY exchanges the X and Y axes.
func (c TileCoord) SwapXY() TileCoord {
	return TileCoord{Z: c.Z, X: c.Y, Y: c.X}
}

// CoordFromLonLat converts a (lon, lat) pair at the given zoom into the
// containing tile coordinate, per spec section 3's spherical Mercator
// projection, computed by geo.go's mercatorXY/snapToGridLine (not orb's
// maptile.At) so a point on a tile grid line is classified the same way
// BBoxFromLonLatBox classifies a bbox corner.
func CoordFromLonLat(lon, lat float64, z uint8) TileCoord {
	x, y := geoToTile(lon, lat, z)
	return TileCoord{Z: z, X: x, Y: y}
}

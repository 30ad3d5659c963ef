package tiles

import (
	"math"

	"github.com/paulmach/orb/maptile"
)

// mercatorXY returns the continuous (unrounded) tile-space coordinate of
// (lon, lat) at zoom z, per spec.md section 3:
//
//	x = 2^z * (lon/360 + 0.5)
//	y = 2^z * (0.5 - ln(tan(pi/4 + lat*pi/360)) / (2*pi))
func mercatorXY(lon, lat float64, z uint8) (x, y float64) {
	n := math.Exp2(float64(z))
	x = n * (lon/360 + 0.5)
	y = n * (0.5 - math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))/(2*math.Pi))
	return
}

// roundHalfAwayFromZero rounds v to the nearest integer, with exact halves
// rounding away from zero (2.5 -> 3, -2.5 -> -3): the tie-break spec.md
// section 9 names for Mercator-to-tile-index conversion.
func roundHalfAwayFromZero(v float64) float64 {
	if v >= 0 {
		return math.Floor(v + 0.5)
	}
	return math.Ceil(v - 0.5)
}

// mercatorEpsilon absorbs the floating-point noise the log/tan chain in
// mercatorXY accumulates for latitudes that are exact tile-grid lines, so a
// point that should land exactly on a boundary isn't misclassified by which
// side rounding noise happens to nudge it to.
const mercatorEpsilon = 1e-9

// snapToGridLine rounds v to the nearest integer, via roundHalfAwayFromZero,
// when v is within mercatorEpsilon of one; otherwise v is returned
// unchanged so ordinary interior points still floor/ceil normally.
func snapToGridLine(v float64) float64 {
	r := roundHalfAwayFromZero(v)
	if math.Abs(v-r) < mercatorEpsilon {
		return r
	}
	return v
}

func clampTileIndex(v float64, n uint32) uint32 {
	if v < 0 {
		return 0
	}
	if v >= float64(n) {
		return n - 1
	}
	return uint32(v)
}

// geoToTile converts a (lon, lat) point into the tile (x, y) containing it
// at zoom z. Containment is the floor of the continuous Mercator
// coordinate, after snapping values that sit on (or within float64 noise
// of) a tile grid line via round-half-away-from-zero, per spec.md section
// 9 — unlike github.com/paulmach/orb/maptile.At, which floors the raw
// float with no such snap and can misclassify a boundary point depending
// on which side floating-point noise lands it on.
func geoToTile(lon, lat float64, z uint8) (x, y uint32) {
	fx, fy := mercatorXY(lon, lat, z)
	n := uint32(1) << z
	x = clampTileIndex(math.Floor(snapToGridLine(fx)), n)
	y = clampTileIndex(math.Floor(snapToGridLine(fy)), n)
	return
}

// tileToGeoBound returns the geographic bound (west, south, east, north)
// covered by the tile at (x, y, z).
func tileToGeoBound(x, y uint32, z uint8) (west, south, east, north float64) {
	b := maptile.Tile{X: x, Y: y, Z: maptile.Zoom(z)}.Bound()
	return b.Min[0], b.Min[1], b.Max[0], b.Max[1]
}

// GeoBounds returns the geographic bound (west, south, east, north) covered
// by bbox, the inverse of BBoxFromLonLatBox. Container writers that stamp a
// geographic bounding box into their header (PMTiles' MinLon/MaxLat fields)
// use this instead of inverting the Mercator projection themselves.
func (b TileBBox) GeoBounds() (west, south, east, north float64) {
	if b.IsEmpty() {
		return 0, 0, 0, 0
	}
	west, _, _, north = tileToGeoBound(b.XMin, b.YMin, b.Z)
	_, south, east, _ = tileToGeoBound(b.XMax, b.YMax, b.Z)
	return
}

// Package hilbert implements the Hilbert space-filling curve bijection
// between (Z,X,Y) tile coordinates and a single global tile ID, adapted
// from the teacher's pmtiles/tile_id.go.
package hilbert

import (
	"fmt"

	"github.com/versatiles-org/versatiles-go/tiles"
)

func rotate(n uint64, x, y *uint64, rx, ry uint64) {
	if ry == 0 {
		if rx == 1 {
			*x = n - 1 - *x
			*y = n - 1 - *y
		}
		*x, *y = *y, *x
	}
}

func tOnLevel(z uint8, pos uint64) (uint8, uint32, uint32) {
	n := uint64(1) << z
	t := pos
	var tx, ty uint64
	for s := uint64(1); s < n; s *= 2 {
		rx := 1 & (t / 2)
		ry := 1 & (t ^ rx)
		rotate(s, &tx, &ty, rx, ry)
		tx += s * rx
		ty += s * ry
		t /= 4
	}
	return z, uint32(tx), uint32(ty)
}

// Encode converts a tile coordinate into a global Hilbert tile ID: the
// count of all tiles at lower zoom levels plus the coordinate's position on
// the Hilbert curve at its own level.
func Encode(c tiles.TileCoord) (uint64, error) {
	if c.Z > tiles.MaxLevel {
		return 0, fmt.Errorf("hilbert: zoom %d exceeds max level %d", c.Z, tiles.MaxLevel)
	}
	if !c.Valid() {
		return 0, fmt.Errorf("hilbert: coordinate %s out of range for its zoom level", c)
	}

	var acc uint64
	for z := uint8(0); z < c.Z; z++ {
		acc += (uint64(1) << z) * (uint64(1) << z)
	}

	n := uint64(1) << c.Z
	tx, ty := uint64(c.X), uint64(c.Y)
	var d uint64
	for s := n / 2; s > 0; s /= 2 {
		var rx, ry uint64
		if tx&s > 0 {
			rx = 1
		}
		if ty&s > 0 {
			ry = 1
		}
		d += s * s * ((3 * rx) ^ ry)
		rotate(s, &tx, &ty, rx, ry)
	}
	return acc + d, nil
}

// Decode is the inverse of Encode.
func Decode(id uint64) (tiles.TileCoord, error) {
	var acc uint64
	var z uint8
	for {
		numTiles := (uint64(1) << z) * (uint64(1) << z)
		if acc+numTiles > id {
			zz, x, y := tOnLevel(z, id-acc)
			return tiles.TileCoord{Z: zz, X: x, Y: y}, nil
		}
		acc += numTiles
		z++
		if z > tiles.MaxLevel+1 {
			return tiles.TileCoord{}, fmt.Errorf("hilbert: id %d exceeds representable range", id)
		}
	}
}

// ParentID returns the Hilbert ID of the tile's parent at z-1, without
// round-tripping through (Z,X,Y).
func ParentID(id uint64) uint64 {
	var acc, lastAcc uint64
	var z uint8
	for {
		numTiles := (uint64(1) << z) * (uint64(1) << z)
		if acc+numTiles > id {
			return lastAcc + (id-acc)/4
		}
		lastAcc = acc
		acc += numTiles
		z++
	}
}

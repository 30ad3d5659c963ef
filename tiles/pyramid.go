package tiles

import (
	"fmt"
	"strings"
)

// TileBBoxPyramid is a fixed-size array of bboxes, one per zoom 0..=MaxLevel.
// A level marked empty contributes no tiles.
type TileBBoxPyramid struct {
	levels [MaxLevel + 1]TileBBox
}

// NewTileBBoxPyramidFull returns a pyramid covering every tile from zoom 0
// through zmax, inclusive; levels above zmax are empty.
func NewTileBBoxPyramidFull(zmax uint8) TileBBoxPyramid {
	var p TileBBoxPyramid
	for z := uint8(0); z <= MaxLevel; z++ {
		if z <= zmax {
			p.levels[z] = NewTileBBoxFull(z)
		} else {
			p.levels[z] = NewTileBBoxEmpty(z)
		}
	}
	return p
}

// NewTileBBoxPyramidEmpty returns a pyramid with every level empty.
func NewTileBBoxPyramidEmpty() TileBBoxPyramid {
	var p TileBBoxPyramid
	for z := uint8(0); z <= MaxLevel; z++ {
		p.levels[z] = NewTileBBoxEmpty(z)
	}
	return p
}

// Level returns the bbox at zoom z.
func (p TileBBoxPyramid) Level(z uint8) TileBBox {
	return p.levels[z]
}

// SetLevel overwrites the bbox at zoom z.
func (p *TileBBoxPyramid) SetLevel(z uint8, bbox TileBBox) {
	p.levels[z] = bbox
}

// SetLevelMin empties every level below zMin.
func (p *TileBBoxPyramid) SetLevelMin(zMin uint8) {
	for z := uint8(0); z < zMin; z++ {
		p.levels[z] = NewTileBBoxEmpty(z)
	}
}

// SetLevelMax empties every level above zMax.
func (p *TileBBoxPyramid) SetLevelMax(zMax uint8) {
	for z := uint16(zMax) + 1; z <= MaxLevel; z++ {
		p.levels[z] = NewTileBBoxEmpty(uint8(z))
	}
}

// IntersectGeoBBox converts the geographic bbox (W,S,E,N) to a per-level
// tile bbox and intersects every level with it.
func (p *TileBBoxPyramid) IntersectGeoBBox(west, south, east, north float64) {
	for z := uint8(0); z <= MaxLevel; z++ {
		geoBox := BBoxFromLonLatBox(z, west, south, east, north)
		p.levels[z] = p.levels[z].Intersect(geoBox)
		if z == MaxLevel {
			break
		}
	}
}

// IntersectPyramid intersects every level with the corresponding level of other.
func (p *TileBBoxPyramid) IntersectPyramid(other TileBBoxPyramid) {
	for z := uint8(0); z <= MaxLevel; z++ {
		p.levels[z] = p.levels[z].Intersect(other.levels[z])
		if z == MaxLevel {
			break
		}
	}
}

// IncludeBBoxPyramid grows every level to additionally cover other.
func (p *TileBBoxPyramid) IncludeBBoxPyramid(other TileBBoxPyramid) {
	for z := uint8(0); z <= MaxLevel; z++ {
		p.levels[z] = p.levels[z].Include(other.levels[z])
		if z == MaxLevel {
			break
		}
	}
}

// CountTiles sums CountTiles() across every level.
func (p TileBBoxPyramid) CountTiles() uint64 {
	var total uint64
	for _, bbox := range p.levels {
		total += bbox.CountTiles()
	}
	return total
}

// MaxZoom returns the highest zoom level with a non-empty bbox, and false if
// the whole pyramid is empty.
func (p TileBBoxPyramid) MaxZoom() (uint8, bool) {
	found := false
	var max uint8
	for z, bbox := range p.levels {
		if !bbox.IsEmpty() {
			max = uint8(z)
			found = true
		}
	}
	return max, found
}

// MinZoom returns the lowest zoom level with a non-empty bbox, and false if
// the whole pyramid is empty.
func (p TileBBoxPyramid) MinZoom() (uint8, bool) {
	for z, bbox := range p.levels {
		if !bbox.IsEmpty() {
			return uint8(z), true
		}
	}
	return 0, false
}

// IterLevels calls fn for every (possibly empty) level 0..=MaxLevel.
func (p TileBBoxPyramid) IterLevels(fn func(z uint8, bbox TileBBox) bool) {
	for z, bbox := range p.levels {
		if !fn(uint8(z), bbox) {
			return
		}
	}
}

// Summary renders a one-line-per-zoom human-readable coverage report,
// mirroring the teacher's stats.go / the original implementation's
// status_image helper.
func (p TileBBoxPyramid) Summary() string {
	var b strings.Builder
	for z, bbox := range p.levels {
		if bbox.IsEmpty() {
			continue
		}
		fmt.Fprintf(&b, "z%-2d: %s (%d tiles)\n", z, bbox.String(), bbox.CountTiles())
	}
	return b.String()
}

package tiles

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring/roaring64"

	"github.com/versatiles-org/versatiles-go/tiles/hilbert"
)

// VerifyContainer performs a deep_verify pass (the original implementation's
// traits.rs operation of the same name): walk every tile address the
// reader's bbox pyramid claims to cover and confirm the reader returns a
// non-empty payload for each one. Payloads are not decompressed or parsed,
// so a corrupt but non-empty tile passes. Grounded on the teacher's
// pmtiles/verify.go, generalized
// from that format's own directory/header cross-checks to the common
// TilesReader interface, since this module must verify VersaTiles,
// PMTiles, MBTiles, TAR, and Directory sources alike.
//
// A roaring64.Bitmap of each tile's Hilbert id catches the two failure
// modes the teacher's verify.go checks for PMTiles specifically (a
// directory entry visited twice, and an entry count mismatch), expressed
// here in a format-independent way.
func VerifyContainer(ctx context.Context, reader TilesReader) error {
	params := reader.Parameters()
	visited := roaring64.New()
	var checked, present uint64
	var firstErr error

	params.Pyramid.IterLevels(func(z uint8, bbox TileBBox) bool {
		if bbox.IsEmpty() {
			return true
		}
		bbox.IterCoords(func(c TileCoord) bool {
			checked++
			id, err := hilbert.Encode(c)
			if err != nil {
				firstErr = fmt.Errorf("verify: encoding %s: %w", c, err)
				return false
			}
			if visited.Contains(id) {
				firstErr = fmt.Errorf("verify: tile %s visited twice while walking the bbox pyramid", c)
				return false
			}
			visited.Add(id)

			data, ok, err := reader.GetTileData(ctx, c)
			if err != nil {
				firstErr = fmt.Errorf("verify: reading tile %s: %w", c, err)
				return false
			}
			if !ok {
				firstErr = fmt.Errorf("verify: tile %s is within the bbox pyramid but the reader has no data for it", c)
				return false
			}
			if len(data) == 0 {
				firstErr = fmt.Errorf("verify: tile %s decoded to an empty blob", c)
				return false
			}
			present++
			return true
		})
		return firstErr == nil
	})
	if firstErr != nil {
		return firstErr
	}

	if visited.GetCardinality() != checked {
		return fmt.Errorf("verify: bitmap cardinality %d does not match %d tiles walked", visited.GetCardinality(), checked)
	}
	if present != checked {
		return fmt.Errorf("verify: %d of %d tiles claimed by the bbox pyramid were missing", checked-present, checked)
	}
	return nil
}

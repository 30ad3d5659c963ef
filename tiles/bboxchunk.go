package tiles

import (
	"context"
	"fmt"
)

func errChunkRangeOutOfBounds(c TileCoord) error {
	return fmt.Errorf("convert: chunk range for tile %s exceeds its fetched chunk bounds", c)
}

// ChunkTileRange pairs a tile coordinate with the byte range of its payload
// relative to the start of the BBoxChunk's fetched bytes.
type ChunkTileRange struct {
	Coord TileCoord
	Range ByteRange
}

// BBoxChunk is one coalesced bulk read covering several tiles, satisfying
// spec section 4.4's chunking contract: Fetch issues a single underlying
// read for ChunkRange, and every tile in Tiles slices out of that one
// result instead of issuing its own read.
type BBoxChunk struct {
	ChunkRange ByteRange
	Tiles      []ChunkTileRange
	Fetch      func(ctx context.Context) ([]byte, error)
}

// BBoxChunkedReader is implemented by readers whose tile payloads live at
// byte ranges inside an underlying random-access source (VersaTiles,
// PMTiles), letting the conversion driver satisfy a whole bbox with a
// handful of coalesced reads instead of one read per tile. Readers with no
// natural byte-range layout (MBTiles/TAR/Directory) do not implement this;
// callers fall back to per-tile GetTileData for those.
//
// supported is false when the call cannot be served this way at all (e.g.
// a TilesConvertReader wrapping a non-chunked reader) so callers can fall
// back to the per-tile path instead of mistaking "no chunks" for "no
// tiles".
type BBoxChunkedReader interface {
	GetBBoxTileChunks(ctx context.Context, bbox TileBBox) (chunks []BBoxChunk, supported bool, err error)
}

// TileDataTransformer is implemented by readers that post-process raw tile
// bytes read out of a chunk (recompression/reformatting), so the chunked
// bulk-read path can apply the same per-tile transform a plain GetTileData
// call would have applied. TilesConvertReader is the only implementation.
type TileDataTransformer interface {
	TransformTileData(data []byte) ([]byte, error)
}

// chunkedTiles reads every BBoxChunk from a BBoxChunkedReader and returns
// the flattened, transformed (coord, data) pairs it covers, plus whether
// the reader actually served the request this way. Fetches run
// sequentially per chunk but the chunks themselves are few relative to the
// tile count they cover, since CoalesceRanges already merged adjacent
// small reads.
func chunkedTiles(ctx context.Context, ranger BBoxChunkedReader, transform func([]byte) ([]byte, error), bbox TileBBox) ([]convertTileResult, bool, error) {
	chunks, supported, err := ranger.GetBBoxTileChunks(ctx, bbox)
	if err != nil || !supported {
		return nil, supported, err
	}
	var out []convertTileResult
	for _, chunk := range chunks {
		raw, err := chunk.Fetch(ctx)
		if err != nil {
			return nil, true, err
		}
		for _, t := range chunk.Tiles {
			if t.Range.Offset+t.Range.Length > uint64(len(raw)) {
				return nil, true, errChunkRangeOutOfBounds(t.Coord)
			}
			data := raw[t.Range.Offset : t.Range.Offset+t.Range.Length]
			if transform != nil {
				data, err = transform(data)
				if err != nil {
					return nil, true, err
				}
			}
			out = append(out, convertTileResult{coord: t.Coord, data: data})
		}
	}
	return out, true, nil
}

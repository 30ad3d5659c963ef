package versatiles

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/versatiles-org/versatiles-go/tiles"
	"github.com/versatiles-org/versatiles-go/tiles/compress"
	"github.com/versatiles-org/versatiles-go/tiles/ioreaders"
)

// Writer builds a VersaTiles container by writing a placeholder header,
// then streaming blocks, then metadata and the block index, then rewinding
// to patch the header, mirroring the teacher's Writer/Finalize split in
// pmtiles/writer.go.
type Writer struct {
	dst    ioreaders.DataWriter
	format tiles.TileFormat
	comp   tiles.TileCompression

	blockIndex *BlockIndex
}

var _ tiles.TilesWriter = (*Writer)(nil)

// Create opens dst and reserves space for the placeholder header.
func Create(format tiles.TileFormat, comp tiles.TileCompression, dst ioreaders.DataWriter) (*Writer, error) {
	placeholder := make([]byte, HeaderLenBytes)
	if _, err := dst.Append(placeholder); err != nil {
		return nil, fmt.Errorf("versatiles: writing placeholder header: %w", err)
	}
	return &Writer{dst: dst, format: format, comp: comp, blockIndex: NewBlockIndex()}, nil
}

// blockBuilder accumulates one block's tiles before it is flushed.
type blockBuilder struct {
	key    BlockKey
	bbox   tiles.TileBBox // global
	ranges map[tiles.TileCoord]tiles.ByteRange
}

// WriteBlock writes every tile in tilesByCoord (keyed by global coordinate)
// belonging to a single 256x256 block: tile payloads first, then the
// block's own brotli tile index, then records the block entry. Tiles are
// expected already compressed with the writer's compression.
func (w *Writer) WriteBlock(key BlockKey, blockBBox tiles.TileBBox, tilesByCoord map[tiles.TileCoord][]byte) error {
	tilesStart := w.dst.Position()
	width := blockBBox.XMax - blockBBox.XMin + 1
	height := blockBBox.YMax - blockBBox.YMin + 1
	tileIndex := make([]tiles.ByteRange, width*height)

	var cursor uint64
	for y := blockBBox.YMin; y <= blockBBox.YMax; y++ {
		for x := blockBBox.XMin; x <= blockBBox.XMax; x++ {
			slot := (y-blockBBox.YMin)*width + (x - blockBBox.XMin)
			data, ok := tilesByCoord[tiles.TileCoord{Z: blockBBox.Z, X: x, Y: y}]
			if !ok {
				continue
			}
			if _, err := w.dst.Append(data); err != nil {
				return fmt.Errorf("versatiles: appending tile (%d,%d,%d): %w", blockBBox.Z, x, y, err)
			}
			tileIndex[slot] = tiles.ByteRange{Offset: cursor, Length: uint64(len(data))}
			cursor += uint64(len(data))
		}
	}
	tilesLength := cursor

	indexBlob, err := SerializeTileIndex(tileIndex)
	if err != nil {
		return fmt.Errorf("versatiles: compressing tile index for block %v: %w", key, err)
	}
	indexOffset, err := w.dst.Append(indexBlob)
	if err != nil {
		return fmt.Errorf("versatiles: appending tile index for block %v: %w", key, err)
	}

	w.blockIndex.Add(BlockEntry{
		Key: key,
		InnerBBox: struct{ XMin, YMin, XMax, YMax uint8 }{
			XMin: uint8(blockBBox.XMin - key.BX*BlockSize),
			YMin: uint8(blockBBox.YMin - key.BY*BlockSize),
			XMax: uint8(blockBBox.XMax - key.BX*BlockSize),
			YMax: uint8(blockBBox.YMax - key.BY*BlockSize),
		},
		TilesRange: tiles.ByteRange{Offset: tilesStart, Length: tilesLength},
		IndexRange: tiles.ByteRange{Offset: indexOffset, Length: uint64(len(indexBlob))},
	})
	return nil
}

// WriteTile satisfies tiles.TilesWriter for callers that stream one tile at
// a time; it buffers into the enclosing block via WriteBlock instead, so
// direct callers should prefer WriteBlock/Finalize for real containers.
// This method exists to satisfy the interface for tests and tools that
// only need a handful of tiles and don't care about block batching.
func (w *Writer) WriteTile(_ context.Context, coord tiles.TileCoord, data []byte) error {
	key := BlockKey{Level: coord.Z, BX: coord.X / BlockSize, BY: coord.Y / BlockSize}
	bbox := tiles.TileBBox{Z: coord.Z, XMin: coord.X, YMin: coord.Y, XMax: coord.X, YMax: coord.Y}
	return w.WriteBlock(key, bbox, map[tiles.TileCoord][]byte{coord: data})
}

// Finalize appends the block index and metadata, then rewrites the header
// with final section ranges.
func (w *Writer) Finalize(ctx context.Context, params tiles.TilesReaderParameters, meta tiles.Metadata) error {
	var metaRange tiles.ByteRange
	if len(meta) > 0 {
		raw, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("versatiles: marshalling metadata: %w", err)
		}
		compressed, err := compress.Compress(raw, w.comp)
		if err != nil {
			return fmt.Errorf("versatiles: compressing metadata: %w", err)
		}
		offset, err := w.dst.Append(compressed)
		if err != nil {
			return fmt.Errorf("versatiles: appending metadata: %w", err)
		}
		metaRange = tiles.ByteRange{Offset: offset, Length: uint64(len(compressed))}
	}

	blocksBlob, err := SerializeBlockIndex(w.blockIndex)
	if err != nil {
		return fmt.Errorf("versatiles: compressing block index: %w", err)
	}
	blocksOffset, err := w.dst.Append(blocksBlob)
	if err != nil {
		return fmt.Errorf("versatiles: appending block index: %w", err)
	}

	zoomMin, _ := params.Pyramid.MinZoom()
	zoomMax, _ := params.Pyramid.MaxZoom()

	header := Header{
		Format:      w.format,
		Compression: w.comp,
		ZoomMin:     zoomMin,
		ZoomMax:     zoomMax,
		MetaRange:   metaRange,
		BlocksRange: tiles.ByteRange{Offset: blocksOffset, Length: uint64(len(blocksBlob))},
	}
	headerBytes, err := SerializeHeader(header)
	if err != nil {
		return fmt.Errorf("versatiles: serializing header: %w", err)
	}
	if err := w.dst.WriteAt(headerBytes, 0); err != nil {
		return fmt.Errorf("versatiles: patching header: %w", err)
	}
	return w.dst.Close()
}

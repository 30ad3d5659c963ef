package pmtiles

import (
	"context"
	"fmt"
	"sort"

	"github.com/versatiles-org/versatiles-go/tiles"
	"github.com/versatiles-org/versatiles-go/tiles/hilbert"
	"github.com/versatiles-org/versatiles-go/tiles/ioreaders"
)

// lonLatBoundsOf recovers the geographic bounds of a tile bbox, for
// stamping the header's bounding box fields, via tiles.TileBBox.GeoBounds
// (backed by github.com/paulmach/orb's maptile package).
func lonLatBoundsOf(b tiles.TileBBox) (west, south, east, north float64) {
	return b.GeoBounds()
}

// Writer builds a PMTiles v3 archive. Tile payloads are appended to the
// tile data section as they arrive (deduplicated by content hash); only the
// directory entries are buffered in memory, keyed by Hilbert id, and
// written out in sorted order during Finalize. This follows the teacher's
// Convert loop for the Hilbert-sorted directory, simplified to a single
// pass; the payloads themselves keep their arrival order.
type Writer struct {
	dst    ioreaders.DataWriter
	format tiles.TileFormat
	comp   tiles.TileCompression

	dedup   *ioreaders.DedupWriter
	entries map[uint64]Entry
}

var _ tiles.TilesWriter = (*Writer)(nil)

// Create opens dst and reserves space for the placeholder header.
func Create(format tiles.TileFormat, comp tiles.TileCompression, dst ioreaders.DataWriter) (*Writer, error) {
	placeholder := make([]byte, HeaderLenBytes)
	if _, err := dst.Append(placeholder); err != nil {
		return nil, fmt.Errorf("pmtiles: writing placeholder header: %w", err)
	}
	return &Writer{
		dst:     dst,
		format:  format,
		comp:    comp,
		dedup:   ioreaders.NewDedupWriter(dst),
		entries: make(map[uint64]Entry),
	}, nil
}

// WriteTile stages a tile's payload. Payloads are appended to the tile data
// section in the order received (deduplicated by content hash); the
// Hilbert-sorted directory is only materialized at Finalize.
func (w *Writer) WriteTile(_ context.Context, coord tiles.TileCoord, data []byte) error {
	id, err := hilbert.Encode(coord)
	if err != nil {
		return fmt.Errorf("pmtiles: encoding coordinate %s: %w", coord, err)
	}
	offset, length, _, err := w.dedup.WriteTile(data)
	if err != nil {
		return fmt.Errorf("pmtiles: writing tile %s: %w", coord, err)
	}
	w.entries[id] = Entry{TileID: id, Offset: offset, Length: uint32(length), RunLength: 1}
	return nil
}

// coalesceRuns merges adjacent Hilbert ids that share identical (offset,
// length) pairs into a single run-length entry, the same trick the teacher
// relies on for tiles deduplicated to the same payload.
func coalesceRuns(sorted []Entry) []Entry {
	if len(sorted) == 0 {
		return nil
	}
	out := []Entry{sorted[0]}
	for _, e := range sorted[1:] {
		last := &out[len(out)-1]
		if e.TileID == last.TileID+uint64(last.RunLength) && e.Offset == last.Offset && e.Length == last.Length {
			last.RunLength++
			continue
		}
		out = append(out, e)
	}
	return out
}

// Finalize materializes the Hilbert-sorted directory, splits it into
// root/leaves if needed, appends metadata, and patches the header.
func (w *Writer) Finalize(ctx context.Context, params tiles.TilesReaderParameters, meta tiles.Metadata) error {
	ids := make([]uint64, 0, len(w.entries))
	for id := range w.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	sorted := make([]Entry, len(ids))
	for i, id := range ids {
		sorted[i] = w.entries[id]
	}
	runs := coalesceRuns(sorted)

	tileDataOffset := uint64(0)
	tileDataLength := w.dst.Position()

	const targetRootLen = 16384
	rootBytes, leafBytes, _, err := OptimizeDirectories(runs, targetRootLen, CompressionGzip)
	if err != nil {
		return fmt.Errorf("pmtiles: building directory: %w", err)
	}

	leafOffset, err := w.dst.Append(leafBytes)
	if err != nil {
		return fmt.Errorf("pmtiles: appending leaf directories: %w", err)
	}

	var metaOffset, metaLength uint64
	if len(meta) > 0 {
		metaBytes, err := SerializeMetadata(meta, CompressionGzip)
		if err != nil {
			return fmt.Errorf("pmtiles: serializing metadata: %w", err)
		}
		metaOffset, err = w.dst.Append(metaBytes)
		if err != nil {
			return fmt.Errorf("pmtiles: appending metadata: %w", err)
		}
		metaLength = uint64(len(metaBytes))
	}

	rootOffset, err := w.dst.Append(rootBytes)
	if err != nil {
		return fmt.Errorf("pmtiles: appending root directory: %w", err)
	}

	minZoom, _ := params.Pyramid.MinZoom()
	maxZoom, _ := params.Pyramid.MaxZoom()
	var minLon, minLat, maxLon, maxLat float64
	globalBBox := params.Pyramid.Level(maxZoom)
	if !globalBBox.IsEmpty() {
		minLon, minLat, maxLon, maxLat = lonLatBoundsOf(globalBBox)
	}

	var contentCount uint64
	for _, e := range runs {
		if e.RunLength == 1 {
			contentCount++
		}
	}

	header := Header{
		RootOffset:          rootOffset,
		RootLength:          uint64(len(rootBytes)),
		MetadataOffset:      metaOffset,
		MetadataLength:      metaLength,
		LeafDirectoryOffset: leafOffset,
		LeafDirectoryLength: uint64(len(leafBytes)),
		TileDataOffset:      tileDataOffset,
		TileDataLength:      tileDataLength,
		AddressedTilesCount: uint64(len(sorted)),
		TileEntriesCount:    uint64(len(runs)),
		TileContentsCount:   contentCount,
		Clustered:           true,
		InternalCompression: CompressionGzip,
		TileCompression:     compressionFromTile(w.comp),
		TileType:            tileTypeFromFormat(w.format),
		MinZoom:             minZoom,
		MaxZoom:             maxZoom,
		MinLonE7:            int32(minLon * 1e7),
		MinLatE7:            int32(minLat * 1e7),
		MaxLonE7:            int32(maxLon * 1e7),
		MaxLatE7:            int32(maxLat * 1e7),
	}
	headerBytes := SerializeHeader(header)
	if err := w.dst.WriteAt(headerBytes, 0); err != nil {
		return fmt.Errorf("pmtiles: patching header: %w", err)
	}
	return w.dst.Close()
}

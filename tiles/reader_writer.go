package tiles

import "context"

// TilesReaderParameters describes the static shape of a tile container,
// independent of any particular format's on-disk encoding: its coverage
// pyramid, tile format, and outer compression.
type TilesReaderParameters struct {
	Format      TileFormat
	Compression TileCompression
	Pyramid     TileBBoxPyramid
	SwapXY      bool // X/Y axes exchanged; every reader in this module reports false
}

// Metadata is the free-form document (name, description, attribution,
// vector_layers, bounds, center) every container stores alongside its
// tiles, mirroring the teacher's tilejson.go metadata map.
type Metadata map[string]interface{}

// TilesReader is the common read-side interface every container format
// (VersaTiles, PMTiles, MBTiles, TAR, Directory) implements.
type TilesReader interface {
	// Parameters returns the reader's static shape.
	Parameters() TilesReaderParameters
	// Metadata returns the container's metadata document.
	Metadata(ctx context.Context) (Metadata, error)
	// GetTileData returns the raw (still outer-compressed) payload for a
	// tile, or ok=false if the tile is absent.
	GetTileData(ctx context.Context, coord TileCoord) (data []byte, ok bool, err error)
	// Name identifies the underlying source, for logging.
	Name() string
	// Close releases any held resources.
	Close() error
}

// TilesWriter is the common write-side interface every container format
// implements. Callers write tiles via WriteTile and finish with Finalize,
// which the writer must always call, even on error paths, to release
// resources.
type TilesWriter interface {
	// WriteTile stores a single tile's raw payload. Implementations may
	// buffer and write lazily.
	WriteTile(ctx context.Context, coord TileCoord, data []byte) error
	// Finalize flushes buffered state, writes headers/directories/
	// metadata, and closes the destination.
	Finalize(ctx context.Context, params TilesReaderParameters, meta Metadata) error
}

// TileJSON builds a TileJSON 3.0.0 document from a reader's parameters and
// metadata, following the fields the teacher's GetTilejson assembles.
func TileJSON(params TilesReaderParameters, meta Metadata, tileURLTemplate string) map[string]interface{} {
	doc := map[string]interface{}{
		"tilejson": "3.0.0",
		"scheme":   "xyz",
		"tiles":    []string{tileURLTemplate},
	}
	for _, key := range []string{"vector_layers", "attribution", "description", "name", "version", "bounds", "center"} {
		if v, ok := meta[key]; ok {
			doc[key] = v
		}
	}
	if minZoom, ok := params.Pyramid.MinZoom(); ok {
		doc["minzoom"] = minZoom
	}
	if maxZoom, ok := params.Pyramid.MaxZoom(); ok {
		doc["maxzoom"] = maxZoom
	}
	return doc
}

// Package dircontainer implements the Directory container format: the same
// "z/y/x.ext[.gz|.br]" layout as tarcontainer, but mirrored onto a real
// filesystem tree instead of a single tar stream. Grounded on the teacher's
// FileBucket (pmtiles/bucket.go) for the local-file-serving shape and on
// the same entry-name rules tarcontainer parses (restated locally here).
package dircontainer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/versatiles-org/versatiles-go/tiles"
)

const metadataFileName = "tiles.json"

// Reader serves tiles directly from files on disk, turning each requested
// coordinate into a path, since the filesystem itself is the index. The
// tree is walked once at Open, only to build the coverage pyramid and
// detect the stored format/compression.
type Reader struct {
	root   string
	meta   tiles.Metadata
	params tiles.TilesReaderParameters
}

var _ tiles.TilesReader = (*Reader)(nil)

// Open reads the root directory's tiles.json and probes for the first tile
// it can find to infer the stored format/compression, mirroring how the TAR
// reader derives the same fields from its first tile entry.
func Open(ctx context.Context, root string) (*Reader, error) {
	r := &Reader{root: root, meta: make(tiles.Metadata)}

	metaPath := filepath.Join(root, metadataFileName)
	if raw, err := os.ReadFile(metaPath); err == nil {
		if err := json.Unmarshal(raw, &r.meta); err != nil {
			return nil, fmt.Errorf("dircontainer: parsing %s: %w", metadataFileName, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("dircontainer: reading %s: %w", metadataFileName, err)
	}

	pyramid, format, comp, err := scanPyramid(root)
	if err != nil {
		return nil, err
	}
	r.params = tiles.TilesReaderParameters{Format: format, Compression: comp, Pyramid: pyramid}
	return r, nil
}

// scanPyramid walks the tree once to build the coverage pyramid and detect
// the stored format/compression from the first tile file found. A full
// walk is unavoidable here since, unlike TAR, a plain directory carries no
// single index to read instead.
func scanPyramid(root string) (tiles.TileBBoxPyramid, tiles.TileFormat, tiles.TileCompression, error) {
	pyramid := tiles.NewTileBBoxPyramidEmpty()
	var format tiles.TileFormat = tiles.FormatUnknown
	var comp tiles.TileCompression

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if filepath.ToSlash(rel) == metadataFileName {
			return nil
		}
		coord, f, c, ok := parseRelPath(filepath.ToSlash(rel))
		if !ok {
			return nil
		}
		if format == tiles.FormatUnknown {
			format = f
			comp = c
		}
		level := pyramid.Level(coord.Z)
		pyramid.SetLevel(coord.Z, level.IncludeTile(coord.X, coord.Y))
		return nil
	})
	if err != nil {
		return pyramid, format, comp, fmt.Errorf("dircontainer: scanning %q: %w", root, err)
	}
	return pyramid, format, comp, nil
}

func (r *Reader) Parameters() tiles.TilesReaderParameters { return r.params }
func (r *Reader) Metadata(_ context.Context) (tiles.Metadata, error) { return r.meta, nil }

// GetTileData reads the one path built from the format and compression
// detected at Open; a tile file stored under any other suffix is reported
// as absent.
func (r *Reader) GetTileData(_ context.Context, coord tiles.TileCoord) ([]byte, bool, error) {
	path := filepath.Join(r.root, tilePath(coord, r.params.Format, r.params.Compression))
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("dircontainer: reading %q: %w", path, err)
	}
	return data, true, nil
}

func (r *Reader) Name() string { return r.root }
func (r *Reader) Close() error { return nil }

func tilePath(coord tiles.TileCoord, format tiles.TileFormat, comp tiles.TileCompression) string {
	name := fmt.Sprintf("%d/%d/%d.%s", coord.Z, coord.Y, coord.X, format.Extension())
	switch comp {
	case tiles.Gzip:
		name += ".gz"
	case tiles.Brotli:
		name += ".br"
	}
	return filepath.FromSlash(name)
}

// parseRelPath parses a filesystem-relative "z/y/x.ext[.gz|.br]" path,
// matching the layout rules tarcontainer.parseEntryName applies to its tar
// entry names (the two packages don't share an exported helper since the
// name is unexported in each, so the rules are kept in sync by hand).
func parseRelPath(rel string) (tiles.TileCoord, tiles.TileFormat, tiles.TileCompression, bool) {
	parts := strings.Split(rel, "/")
	if len(parts) != 3 {
		return tiles.TileCoord{}, 0, 0, false
	}
	z, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return tiles.TileCoord{}, 0, 0, false
	}
	y, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return tiles.TileCoord{}, 0, 0, false
	}

	base := parts[2]
	comp := tiles.Uncompressed
	switch {
	case strings.HasSuffix(base, ".gz"):
		comp = tiles.Gzip
		base = strings.TrimSuffix(base, ".gz")
	case strings.HasSuffix(base, ".br"):
		comp = tiles.Brotli
		base = strings.TrimSuffix(base, ".br")
	}

	ext := strings.TrimPrefix(path.Ext(base), ".")
	xStr := strings.TrimSuffix(base, "."+ext)
	x, err := strconv.ParseUint(xStr, 10, 32)
	if err != nil {
		return tiles.TileCoord{}, 0, 0, false
	}
	format, ok := tiles.ExtensionToFormat(ext)
	if !ok {
		return tiles.TileCoord{}, 0, 0, false
	}
	return tiles.TileCoord{Z: uint8(z), X: uint32(x), Y: uint32(y)}, format, comp, true
}

// Writer mirrors tiles onto the filesystem under root, creating parent
// directories as needed.
type Writer struct {
	root   string
	format tiles.TileFormat
	comp   tiles.TileCompression
}

var _ tiles.TilesWriter = (*Writer)(nil)

// Create ensures root exists and returns a Writer rooted there. format/comp
// tag every entry written through the plain TilesWriter.WriteTile method;
// callers needing a mix of formats per tile should use
// WriteTileWithFormat directly.
func Create(format tiles.TileFormat, comp tiles.TileCompression, root string) (*Writer, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("dircontainer: creating %q: %w", root, err)
	}
	return &Writer{root: root, format: format, comp: comp}, nil
}

// WriteTileWithFormat writes one tile file, matching tarcontainer's split
// between the plain TilesWriter.WriteTile and an explicit-format variant.
func (w *Writer) WriteTileWithFormat(coord tiles.TileCoord, format tiles.TileFormat, comp tiles.TileCompression, data []byte) error {
	rel := tilePath(coord, format, comp)
	full := filepath.Join(w.root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("dircontainer: creating directory for %s: %w", coord, err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return fmt.Errorf("dircontainer: writing %s: %w", full, err)
	}
	return nil
}

func (w *Writer) WriteTile(_ context.Context, coord tiles.TileCoord, data []byte) error {
	return w.WriteTileWithFormat(coord, w.format, w.comp, data)
}

// Finalize writes the tiles.json metadata file; the directory tree itself
// needs no closing step.
func (w *Writer) Finalize(_ context.Context, params tiles.TilesReaderParameters, meta tiles.Metadata) error {
	doc := tiles.TileJSON(params, meta, "{z}/{x}/{y}."+params.Format.Extension())
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("dircontainer: marshalling %s: %w", metadataFileName, err)
	}
	return os.WriteFile(filepath.Join(w.root, metadataFileName), raw, 0644)
}

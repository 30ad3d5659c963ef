package tiles

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// ContainerKind identifies one of the container formats this module reads
// and writes, dispatched by file extension the way the teacher's main.go
// switches on the output path suffix in convert.go.
type ContainerKind int

const (
	KindUnknown ContainerKind = iota
	KindVersaTiles
	KindPMTiles
	KindMBTiles
	KindTar
	KindDirectory
)

// KindFromPath infers a ContainerKind from a path or URL's extension, per
// spec section 6.3's container-detection rule. A trailing path separator
// (or the absence of any recognized extension) is treated as a directory
// container, mirroring the original implementation's fallback.
func KindFromPath(path string) ContainerKind {
	clean := path
	if u, err := url.Parse(path); err == nil && u.Path != "" {
		clean = u.Path
	}
	clean = strings.TrimSuffix(clean, "/")
	switch {
	case strings.HasSuffix(clean, ".versatiles"):
		return KindVersaTiles
	case strings.HasSuffix(clean, ".pmtiles"):
		return KindPMTiles
	case strings.HasSuffix(clean, ".mbtiles"):
		return KindMBTiles
	case strings.HasSuffix(clean, ".tar"):
		return KindTar
	default:
		return KindDirectory
	}
}

// OpenContainerFunc opens a reader for a source of a given kind; registered
// per kind in readerRegistry so GetReaderFromString stays a flat table
// instead of a growing switch statement.
type OpenContainerFunc func(ctx context.Context, path string) (TilesReader, error)

// CreateContainerFunc creates a fresh writer for a destination of a given
// kind, given the format/compression it will store.
type CreateContainerFunc func(format TileFormat, comp TileCompression, path string) (TilesWriter, error)

var readerRegistry = map[ContainerKind]OpenContainerFunc{}
var writerRegistry = map[ContainerKind]CreateContainerFunc{}

// RegisterReader installs the constructor used for a given container kind.
// Called from each container package's init() so this package never
// imports versatiles/pmtiles/mbtiles/tarcontainer/dircontainer directly
// (which would be an import cycle, since those packages import tiles).
func RegisterReader(kind ContainerKind, fn OpenContainerFunc) { readerRegistry[kind] = fn }

// RegisterWriter installs the constructor used for a given container kind.
func RegisterWriter(kind ContainerKind, fn CreateContainerFunc) { writerRegistry[kind] = fn }

// GetReaderFromString opens path/URL as a TilesReader, inferring the
// container kind from its extension the way the original implementation's
// get_reader dispatches on suffix (versatiles_container/src/lib.rs).
func GetReaderFromString(ctx context.Context, path string) (TilesReader, error) {
	kind := KindFromPath(path)
	fn, ok := readerRegistry[kind]
	if !ok {
		return nil, fmt.Errorf("tiles: no reader registered for %q (kind %d); import the matching container package for its side effect", path, kind)
	}
	return fn(ctx, path)
}

// GetWriterFromString creates path/URL as a fresh TilesWriter of the given
// format/compression, inferring the container kind from its extension.
func GetWriterFromString(format TileFormat, comp TileCompression, path string) (TilesWriter, error) {
	kind := KindFromPath(path)
	fn, ok := writerRegistry[kind]
	if !ok {
		return nil, fmt.Errorf("tiles: no writer registered for %q (kind %d); import the matching container package for its side effect", path, kind)
	}
	return fn(format, comp, path)
}

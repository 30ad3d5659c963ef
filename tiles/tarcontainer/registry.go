package tarcontainer

import (
	"context"
	"fmt"
	"os"

	"github.com/versatiles-org/versatiles-go/tiles"
	"github.com/versatiles-org/versatiles-go/tiles/ioreaders"
)

func init() {
	tiles.RegisterReader(tiles.KindTar, openFromPath)
	tiles.RegisterWriter(tiles.KindTar, createFromPath)
}

func openFromPath(ctx context.Context, path string) (tiles.TilesReader, error) {
	src, err := ioreaders.OpenReader(ctx, path)
	if err != nil {
		return nil, err
	}
	return Open(ctx, src)
}

// createFromPath opens path as a plain file, since the TAR writer streams
// through io.Writer directly and carries no byte-range index to patch
// later (unlike VersaTiles/PMTiles, whose writers need the DataWriter's
// Position/WriteAt to rewind and fix up their headers).
func createFromPath(format tiles.TileFormat, comp tiles.TileCompression, path string) (tiles.TilesWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("tarcontainer: creating %q: %w", path, err)
	}
	return &fileClosingWriter{Writer: Create(format, comp, f), file: f}, nil
}

// fileClosingWriter closes the backing file once Finalize has flushed the
// tar trailer, since Writer.Finalize only closes the tar.Writer, not the
// os.File beneath it.
type fileClosingWriter struct {
	*Writer
	file *os.File
}

func (w *fileClosingWriter) Finalize(ctx context.Context, params tiles.TilesReaderParameters, meta tiles.Metadata) error {
	if err := w.Writer.Finalize(ctx, params, meta); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

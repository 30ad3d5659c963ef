package dircontainer

import (
	"context"

	"github.com/versatiles-org/versatiles-go/tiles"
)

func init() {
	tiles.RegisterReader(tiles.KindDirectory, openFromPath)
	tiles.RegisterWriter(tiles.KindDirectory, createFromPath)
}

func openFromPath(ctx context.Context, path string) (tiles.TilesReader, error) {
	return Open(ctx, path)
}

func createFromPath(format tiles.TileFormat, comp tiles.TileCompression, path string) (tiles.TilesWriter, error) {
	return Create(format, comp, path)
}

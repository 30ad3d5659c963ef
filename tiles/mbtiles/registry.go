package mbtiles

import (
	"context"

	"github.com/versatiles-org/versatiles-go/tiles"
)

func init() {
	tiles.RegisterReader(tiles.KindMBTiles, openFromPath)
}

func openFromPath(ctx context.Context, path string) (tiles.TilesReader, error) {
	return Open(ctx, path)
}

package versatiles

import (
	"context"
	"fmt"

	"github.com/versatiles-org/versatiles-go/tiles"
	"github.com/versatiles-org/versatiles-go/tiles/ioreaders"
)

func init() {
	tiles.RegisterReader(tiles.KindVersaTiles, openFromPath)
	tiles.RegisterWriter(tiles.KindVersaTiles, createFromPath)
}

func openFromPath(ctx context.Context, path string) (tiles.TilesReader, error) {
	src, err := ioreaders.OpenReader(ctx, path)
	if err != nil {
		return nil, err
	}
	return Open(ctx, src)
}

func createFromPath(format tiles.TileFormat, comp tiles.TileCompression, path string) (tiles.TilesWriter, error) {
	dst, err := ioreaders.CreateFileWriter(path)
	if err != nil {
		return nil, fmt.Errorf("versatiles: %w", err)
	}
	return Create(format, comp, dst)
}

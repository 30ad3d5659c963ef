package tiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTileJSONIncludesZoomFromPyramid(t *testing.T) {
	pyramid := NewTileBBoxPyramidFull(8)
	pyramid.SetLevelMin(2)
	params := TilesReaderParameters{Format: FormatPBF, Compression: Gzip, Pyramid: pyramid}
	meta := Metadata{"name": "test layer"}

	doc := TileJSON(params, meta, "https://example.com/{z}/{x}/{y}.pbf")

	assert.Equal(t, "3.0.0", doc["tilejson"])
	assert.Equal(t, "test layer", doc["name"])
	assert.Equal(t, uint8(2), doc["minzoom"])
	assert.Equal(t, uint8(8), doc["maxzoom"])
}

func TestTileJSONOmitsMissingMetadataFields(t *testing.T) {
	params := TilesReaderParameters{Pyramid: NewTileBBoxPyramidEmpty()}
	doc := TileJSON(params, Metadata{}, "tpl")
	_, hasName := doc["name"]
	assert.False(t, hasName)
	_, hasMinZoom := doc["minzoom"]
	assert.False(t, hasMinZoom)
}

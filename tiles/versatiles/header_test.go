package versatiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versatiles-org/versatiles-go/tiles"
)

func TestHeaderRoundtrip(t *testing.T) {
	h := Header{
		Format:       tiles.FormatPNG,
		Compression:  tiles.Gzip,
		ZoomMin:      2,
		ZoomMax:      14,
		BBoxMinLonE7: -1800000000 / 10,
		BBoxMinLatE7: -850000000 / 10,
		BBoxMaxLonE7: 1800000000 / 10,
		BBoxMaxLatE7: 850000000 / 10,
		MetaRange:    tiles.ByteRange{Offset: 62, Length: 128},
		BlocksRange:  tiles.ByteRange{Offset: 190, Length: 4096},
	}

	b, err := SerializeHeader(h)
	require.NoError(t, err)
	assert.Len(t, b, HeaderLenBytes)
	assert.Equal(t, []byte(Magic), b[0:14])
	assert.Equal(t, uint8(16), b[14]) // PNG
	assert.Equal(t, uint8(1), b[15])  // gzip

	back, err := DeserializeHeader(b)
	require.NoError(t, err)
	assert.Equal(t, h, back)
}

func TestDeserializeHeaderRejectsBadMagic(t *testing.T) {
	b := make([]byte, HeaderLenBytes)
	copy(b, []byte("not-a-versatiles-file"))
	_, err := DeserializeHeader(b)
	assert.Error(t, err)
}

func TestDeserializeHeaderRejectsLegacyMagic(t *testing.T) {
	b := make([]byte, HeaderLenBytes)
	copy(b, []byte("OpenCloudTiles-Container-v1:"))
	_, err := DeserializeHeader(b)
	assert.ErrorContains(t, err, "obsolete")
}

// Package versatiles implements the VersaTiles container format: a 66-byte
// big-endian header, a brotli-compressed per-level block index, and
// per-block tile indexes, grounded on the Rust original's
// versatiles_container/src/versatiles/types tree and adapted to the
// teacher's directory.go header-marshalling idiom (fixed-width struct,
// explicit SerializeHeader/DeserializeHeader pair).
package versatiles

import (
	"encoding/binary"
	"fmt"

	"github.com/versatiles-org/versatiles-go/tiles"
)

// HeaderLenBytes is the fixed on-disk header size: 14-byte magic + format +
// compression + zoom_min + zoom_max + 16-byte geo bbox + two 16-byte
// ByteRanges. The format's much older v1 header (28-byte magic, no zoom or
// bbox fields) was 62 bytes; the current v02 layout carries those extra
// fields and is 66.
const HeaderLenBytes = 66

// Magic is the only magic string a conforming reader accepts. An older
// magic ("OpenCloudTiles-Container-v1:") appeared earlier in the format's
// history; per the format's compatibility policy it is recognized only to
// produce a precise "too old" error, never silently treated as current.
const Magic = "versatiles_v02"

const legacyMagic = "OpenCloudTiles-Container-v1:"

// Header is the VersaTiles fixed header, deserialized from the first
// HeaderLenBytes of a container.
type Header struct {
	Format       tiles.TileFormat
	Compression  tiles.TileCompression
	ZoomMin      uint8
	ZoomMax      uint8
	BBoxMinLonE7 int32
	BBoxMinLatE7 int32
	BBoxMaxLonE7 int32
	BBoxMaxLatE7 int32
	MetaRange    tiles.ByteRange
	BlocksRange  tiles.ByteRange
}

func readByteRangeBE(b []byte) tiles.ByteRange {
	return tiles.ByteRange{
		Offset: binary.BigEndian.Uint64(b[0:8]),
		Length: binary.BigEndian.Uint64(b[8:16]),
	}
}

func writeByteRangeBE(b []byte, r tiles.ByteRange) {
	binary.BigEndian.PutUint64(b[0:8], r.Offset)
	binary.BigEndian.PutUint64(b[8:16], r.Length)
}

// DeserializeHeader parses the first HeaderLenBytes of a VersaTiles file.
func DeserializeHeader(b []byte) (Header, error) {
	if len(b) < HeaderLenBytes {
		return Header{}, fmt.Errorf("versatiles: header truncated, got %d bytes", len(b))
	}

	magic := string(b[0:14])
	if magic != Magic {
		if len(b) >= len(legacyMagic) && string(b[0:len(legacyMagic)]) == legacyMagic {
			return Header{}, fmt.Errorf("versatiles: file uses the obsolete OpenCloudTiles v1 container format, not supported")
		}
		return Header{}, fmt.Errorf("versatiles: bad magic %q", magic)
	}

	formatCode := b[14]
	format, ok := tiles.FormatFromVersaTilesCode(formatCode)
	if !ok {
		return Header{}, fmt.Errorf("versatiles: unknown tile format code %d", formatCode)
	}

	compCode := b[15]
	var comp tiles.TileCompression
	switch compCode {
	case 0:
		comp = tiles.Uncompressed
	case 1:
		comp = tiles.Gzip
	case 2:
		comp = tiles.Brotli
	default:
		return Header{}, fmt.Errorf("versatiles: unknown compression code %d", compCode)
	}

	h := Header{
		Format:       format,
		Compression:  comp,
		ZoomMin:      b[16],
		ZoomMax:      b[17],
		BBoxMinLonE7: int32(binary.BigEndian.Uint32(b[18:22])),
		BBoxMinLatE7: int32(binary.BigEndian.Uint32(b[22:26])),
		BBoxMaxLonE7: int32(binary.BigEndian.Uint32(b[26:30])),
		BBoxMaxLatE7: int32(binary.BigEndian.Uint32(b[30:34])),
		MetaRange:    readByteRangeBE(b[34:50]),
		BlocksRange:  readByteRangeBE(b[50:66]),
	}
	return h, nil
}

// SerializeHeader writes h as the fixed 66-byte header.
func SerializeHeader(h Header) ([]byte, error) {
	b := make([]byte, HeaderLenBytes)
	copy(b[0:14], []byte(Magic))

	code, ok := h.Format.VersaTilesCode()
	if !ok {
		return nil, fmt.Errorf("versatiles: tile format %v has no VersaTiles wire code", h.Format)
	}
	b[14] = code

	switch h.Compression {
	case tiles.Uncompressed:
		b[15] = 0
	case tiles.Gzip:
		b[15] = 1
	case tiles.Brotli:
		b[15] = 2
	default:
		return nil, fmt.Errorf("versatiles: unknown compression %v", h.Compression)
	}

	b[16] = h.ZoomMin
	b[17] = h.ZoomMax
	binary.BigEndian.PutUint32(b[18:22], uint32(h.BBoxMinLonE7))
	binary.BigEndian.PutUint32(b[22:26], uint32(h.BBoxMinLatE7))
	binary.BigEndian.PutUint32(b[26:30], uint32(h.BBoxMaxLonE7))
	binary.BigEndian.PutUint32(b[30:34], uint32(h.BBoxMaxLatE7))
	writeByteRangeBE(b[34:50], h.MetaRange)
	writeByteRangeBE(b[50:66], h.BlocksRange)
	return b[:HeaderLenBytes], nil
}

package tiles

// TileFormat identifies the inner encoding of a tile's payload.
type TileFormat uint8

const (
	FormatBIN TileFormat = iota
	FormatPNG
	FormatJPG
	FormatWEBP
	FormatAVIF
	FormatSVG
	FormatPBF // MVT
	FormatJSON
	FormatGEOJSON
	FormatTOPOJSON
	FormatUnknown
)

// VersaTiles on-disk enum values, per spec section 4.5.
var versaTilesFormatCode = map[TileFormat]uint8{
	FormatBIN:      0,
	FormatPNG:      16,
	FormatJPG:      17,
	FormatWEBP:     18,
	FormatAVIF:     19,
	FormatSVG:      20,
	FormatPBF:      32,
	FormatGEOJSON:  33,
	FormatTOPOJSON: 34,
	FormatJSON:     35,
}

var versaTilesCodeFormat = map[uint8]TileFormat{
	0:  FormatBIN,
	16: FormatPNG,
	17: FormatJPG,
	18: FormatWEBP,
	19: FormatAVIF,
	20: FormatSVG,
	32: FormatPBF,
	33: FormatGEOJSON,
	34: FormatTOPOJSON,
	35: FormatJSON,
}

// VersaTilesCode returns the wire byte used by the VersaTiles header.
func (f TileFormat) VersaTilesCode() (uint8, bool) {
	code, ok := versaTilesFormatCode[f]
	return code, ok
}

// FormatFromVersaTilesCode decodes the VersaTiles header's format byte.
func FormatFromVersaTilesCode(code uint8) (TileFormat, bool) {
	f, ok := versaTilesCodeFormat[code]
	return f, ok
}

// IsRaster reports whether the format is a raster image encoding.
func (f TileFormat) IsRaster() bool {
	switch f {
	case FormatPNG, FormatJPG, FormatWEBP, FormatAVIF:
		return true
	}
	return false
}

// IsVector reports whether the format is a vector/structured encoding.
func (f TileFormat) IsVector() bool {
	switch f {
	case FormatPBF, FormatGEOJSON, FormatTOPOJSON, FormatJSON:
		return true
	}
	return false
}

// Extension returns the file extension used by TAR/Directory containers.
func (f TileFormat) Extension() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatJPG:
		return "jpg"
	case FormatWEBP:
		return "webp"
	case FormatAVIF:
		return "avif"
	case FormatSVG:
		return "svg"
	case FormatPBF:
		return "pbf"
	case FormatJSON:
		return "json"
	case FormatGEOJSON:
		return "geojson"
	case FormatTOPOJSON:
		return "topojson"
	default:
		return "bin"
	}
}

// ExtensionToFormat maps a TAR/Directory file extension back to a TileFormat.
func ExtensionToFormat(ext string) (TileFormat, bool) {
	switch ext {
	case "png":
		return FormatPNG, true
	case "jpg", "jpeg":
		return FormatJPG, true
	case "webp":
		return FormatWEBP, true
	case "avif":
		return FormatAVIF, true
	case "svg":
		return FormatSVG, true
	case "pbf", "mvt":
		return FormatPBF, true
	case "json":
		return FormatJSON, true
	case "geojson":
		return FormatGEOJSON, true
	case "topojson":
		return FormatTOPOJSON, true
	case "bin":
		return FormatBIN, true
	}
	return FormatUnknown, false
}

// ContentType returns the HTTP content-type for the format, when known.
func (f TileFormat) ContentType() (string, bool) {
	switch f {
	case FormatPBF:
		return "application/x-protobuf", true
	case FormatPNG:
		return "image/png", true
	case FormatJPG:
		return "image/jpeg", true
	case FormatWEBP:
		return "image/webp", true
	case FormatAVIF:
		return "image/avif", true
	case FormatSVG:
		return "image/svg+xml", true
	case FormatJSON:
		return "application/json", true
	case FormatGEOJSON:
		return "application/geo+json", true
	}
	return "", false
}

// TileCompression is the outer transport compression applied to a tile blob.
type TileCompression uint8

const (
	Uncompressed TileCompression = iota
	Gzip
	Brotli
)

func (c TileCompression) String() string {
	switch c {
	case Uncompressed:
		return "none"
	case Gzip:
		return "gzip"
	case Brotli:
		return "br"
	default:
		return "unknown"
	}
}

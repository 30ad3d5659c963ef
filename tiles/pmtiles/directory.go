// Package pmtiles implements the Protomaps PMTiles v3 container format: a
// 127-byte little-endian header, gzip-compressed root/leaf directories
// keyed by Hilbert tile id, adapted directly from the teacher's
// pmtiles/directory.go (the varint delta/run-length/length/offset encoding
// and root/leaf split strategy carry over essentially unchanged, retargeted
// onto this module's shared tiles.TileFormat/TileCompression types and
// tiles/hilbert codec instead of the teacher's bespoke ones).
package pmtiles

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/versatiles-org/versatiles-go/tiles"
	"github.com/versatiles-org/versatiles-go/tiles/compress"
)

func gzipBestWriter(w io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriterLevel(w, gzip.BestCompression)
}

func gzipReader(r io.Reader) (io.Reader, error) {
	return gzip.NewReader(r)
}

// HeaderLenBytes is the fixed-size binary header.
const HeaderLenBytes = 127

// Compression mirrors the format's internal directory/metadata compression
// tag (distinct from tiles.TileCompression, which lacks zstd).
type Compression uint8

const (
	CompressionUnknown Compression = 0
	CompressionNone     Compression = 1
	CompressionGzip     Compression = 2
	CompressionBrotli   Compression = 3
	CompressionZstd     Compression = 4
)

// TileType is the inner tile encoding tag used by the PMTiles header.
type TileType uint8

const (
	TileTypeUnknown TileType = 0
	TileTypeMVT     TileType = 1
	TileTypePNG     TileType = 2
	TileTypeJPEG    TileType = 3
	TileTypeWebP    TileType = 4
	TileTypeAVIF    TileType = 5
)

func tileTypeFromFormat(f tiles.TileFormat) TileType {
	switch f {
	case tiles.FormatPBF:
		return TileTypeMVT
	case tiles.FormatPNG:
		return TileTypePNG
	case tiles.FormatJPG:
		return TileTypeJPEG
	case tiles.FormatWEBP:
		return TileTypeWebP
	case tiles.FormatAVIF:
		return TileTypeAVIF
	default:
		return TileTypeUnknown
	}
}

func formatFromTileType(t TileType) tiles.TileFormat {
	switch t {
	case TileTypeMVT:
		return tiles.FormatPBF
	case TileTypePNG:
		return tiles.FormatPNG
	case TileTypeJPEG:
		return tiles.FormatJPG
	case TileTypeWebP:
		return tiles.FormatWEBP
	case TileTypeAVIF:
		return tiles.FormatAVIF
	default:
		return tiles.FormatUnknown
	}
}

func compressionFromTile(c tiles.TileCompression) Compression {
	switch c {
	case tiles.Uncompressed:
		return CompressionNone
	case tiles.Gzip:
		return CompressionGzip
	case tiles.Brotli:
		return CompressionBrotli
	default:
		return CompressionUnknown
	}
}

func tileFromCompression(c Compression) (tiles.TileCompression, error) {
	switch c {
	case CompressionNone:
		return tiles.Uncompressed, nil
	case CompressionGzip:
		return tiles.Gzip, nil
	case CompressionBrotli:
		return tiles.Brotli, nil
	default:
		return 0, fmt.Errorf("pmtiles: unsupported internal compression %d", c)
	}
}

func headerExt(tileType TileType) string {
	switch tileType {
	case TileTypeMVT:
		return ".mvt"
	case TileTypePNG:
		return ".png"
	case TileTypeJPEG:
		return ".jpg"
	case TileTypeWebP:
		return ".webp"
	case TileTypeAVIF:
		return ".avif"
	default:
		return ""
	}
}

// Header is the PMTiles v3 binary header.
type Header struct {
	SpecVersion         uint8
	RootOffset          uint64
	RootLength          uint64
	MetadataOffset      uint64
	MetadataLength      uint64
	LeafDirectoryOffset uint64
	LeafDirectoryLength uint64
	TileDataOffset      uint64
	TileDataLength      uint64
	AddressedTilesCount uint64
	TileEntriesCount    uint64
	TileContentsCount   uint64
	Clustered           bool
	InternalCompression Compression
	TileCompression     Compression
	TileType            TileType
	MinZoom             uint8
	MaxZoom             uint8
	MinLonE7            int32
	MinLatE7            int32
	MaxLonE7            int32
	MaxLatE7            int32
	CenterZoom          uint8
	CenterLonE7         int32
	CenterLatE7         int32
}

// Entry is a directory entry: a run of `RunLength` consecutive Hilbert ids
// starting at TileID, all sharing one (Offset, Length) tile blob, or a
// pointer into the leaf directory section when RunLength == 0.
type Entry struct {
	TileID    uint64
	Offset    uint64
	Length    uint32
	RunLength uint32
}

type nopWriteCloser struct{ *bytes.Buffer }

func (w *nopWriteCloser) Close() error { return nil }

// SerializeMetadata JSON-encodes and compresses the metadata document.
func SerializeMetadata(meta tiles.Metadata, compression Compression) ([]byte, error) {
	jsonBytes, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("pmtiles: marshalling metadata: %w", err)
	}
	switch compression {
	case CompressionNone:
		return jsonBytes, nil
	case CompressionGzip:
		return compress.CompressGzip(jsonBytes)
	default:
		return nil, fmt.Errorf("pmtiles: metadata compression %d not supported", compression)
	}
}

// DeserializeMetadata reverses SerializeMetadata.
func DeserializeMetadata(r io.Reader, compression Compression) (tiles.Metadata, error) {
	var jsonBytes []byte
	var err error
	switch compression {
	case CompressionNone:
		jsonBytes, err = io.ReadAll(r)
	case CompressionGzip:
		raw, readErr := io.ReadAll(r)
		if readErr != nil {
			return nil, readErr
		}
		jsonBytes, err = compress.DecompressGzip(raw)
	default:
		return nil, fmt.Errorf("pmtiles: metadata compression %d not supported", compression)
	}
	if err != nil {
		return nil, fmt.Errorf("pmtiles: reading metadata: %w", err)
	}
	var meta tiles.Metadata
	if err := json.Unmarshal(jsonBytes, &meta); err != nil {
		return nil, fmt.Errorf("pmtiles: parsing metadata JSON: %w", err)
	}
	return meta, nil
}

// SerializeEntries lays out entries as five parallel varint columns (count,
// id-deltas, run-lengths, lengths, offsets-with-zero-special-case), then
// compresses the result.
func SerializeEntries(entries []Entry, compression Compression) ([]byte, error) {
	var b bytes.Buffer
	var w io.WriteCloser
	switch compression {
	case CompressionNone:
		w = &nopWriteCloser{&b}
	case CompressionGzip:
		gw, err := gzipBestWriter(&b)
		if err != nil {
			return nil, err
		}
		w = gw
	default:
		return nil, fmt.Errorf("pmtiles: directory compression %d not supported", compression)
	}

	tmp := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(tmp, uint64(len(entries)))
	w.Write(tmp[:n])

	lastID := uint64(0)
	for _, e := range entries {
		n = binary.PutUvarint(tmp, e.TileID-lastID)
		w.Write(tmp[:n])
		lastID = e.TileID
	}
	for _, e := range entries {
		n = binary.PutUvarint(tmp, uint64(e.RunLength))
		w.Write(tmp[:n])
	}
	for _, e := range entries {
		n = binary.PutUvarint(tmp, uint64(e.Length))
		w.Write(tmp[:n])
	}
	for i, e := range entries {
		if i > 0 && e.Offset == entries[i-1].Offset+uint64(entries[i-1].Length) {
			n = binary.PutUvarint(tmp, 0)
		} else {
			n = binary.PutUvarint(tmp, e.Offset+1)
		}
		w.Write(tmp[:n])
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// DeserializeEntries reverses SerializeEntries.
func DeserializeEntries(data []byte, compression Compression) ([]Entry, error) {
	var r io.Reader
	switch compression {
	case CompressionNone:
		r = bytes.NewReader(data)
	case CompressionGzip:
		gr, err := gzipReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		r = gr
	default:
		return nil, fmt.Errorf("pmtiles: directory compression %d not supported", compression)
	}

	br := bufio.NewReader(r)
	numEntries, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, fmt.Errorf("pmtiles: reading entry count: %w", err)
	}

	entries := make([]Entry, numEntries)
	lastID := uint64(0)
	for i := range entries {
		delta, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, err
		}
		lastID += delta
		entries[i].TileID = lastID
	}
	for i := range entries {
		rl, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, err
		}
		entries[i].RunLength = uint32(rl)
	}
	for i := range entries {
		l, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, err
		}
		entries[i].Length = uint32(l)
	}
	for i := range entries {
		v, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, err
		}
		if i > 0 && v == 0 {
			entries[i].Offset = entries[i-1].Offset + uint64(entries[i-1].Length)
		} else {
			entries[i].Offset = v - 1
		}
	}
	return entries, nil
}

// FindTile binary-searches entries for the greatest TileID <= target,
// returning it if target falls within its run or if it is a leaf-directory
// pointer (RunLength == 0), which the caller must descend into.
func FindTile(entries []Entry, target uint64) (Entry, bool) {
	lo, hi := 0, len(entries)-1
	for lo <= hi {
		mid := (lo + hi) >> 1
		switch {
		case target > entries[mid].TileID:
			lo = mid + 1
		case target < entries[mid].TileID:
			hi = mid - 1
		default:
			return entries[mid], true
		}
	}
	if hi >= 0 {
		if entries[hi].RunLength == 0 {
			return entries[hi], true
		}
		if target-entries[hi].TileID < uint64(entries[hi].RunLength) {
			return entries[hi], true
		}
	}
	return Entry{}, false
}

// SerializeHeader writes h as the fixed 127-byte little-endian header.
func SerializeHeader(h Header) []byte {
	b := make([]byte, HeaderLenBytes)
	copy(b[0:7], "PMTiles")
	b[7] = 3
	binary.LittleEndian.PutUint64(b[8:16], h.RootOffset)
	binary.LittleEndian.PutUint64(b[16:24], h.RootLength)
	binary.LittleEndian.PutUint64(b[24:32], h.MetadataOffset)
	binary.LittleEndian.PutUint64(b[32:40], h.MetadataLength)
	binary.LittleEndian.PutUint64(b[40:48], h.LeafDirectoryOffset)
	binary.LittleEndian.PutUint64(b[48:56], h.LeafDirectoryLength)
	binary.LittleEndian.PutUint64(b[56:64], h.TileDataOffset)
	binary.LittleEndian.PutUint64(b[64:72], h.TileDataLength)
	binary.LittleEndian.PutUint64(b[72:80], h.AddressedTilesCount)
	binary.LittleEndian.PutUint64(b[80:88], h.TileEntriesCount)
	binary.LittleEndian.PutUint64(b[88:96], h.TileContentsCount)
	if h.Clustered {
		b[96] = 0x1
	}
	b[97] = uint8(h.InternalCompression)
	b[98] = uint8(h.TileCompression)
	b[99] = uint8(h.TileType)
	b[100] = h.MinZoom
	b[101] = h.MaxZoom
	binary.LittleEndian.PutUint32(b[102:106], uint32(h.MinLonE7))
	binary.LittleEndian.PutUint32(b[106:110], uint32(h.MinLatE7))
	binary.LittleEndian.PutUint32(b[110:114], uint32(h.MaxLonE7))
	binary.LittleEndian.PutUint32(b[114:118], uint32(h.MaxLatE7))
	b[118] = h.CenterZoom
	binary.LittleEndian.PutUint32(b[119:123], uint32(h.CenterLonE7))
	binary.LittleEndian.PutUint32(b[123:127], uint32(h.CenterLatE7))
	return b
}

// DeserializeHeader parses the fixed 127-byte header.
func DeserializeHeader(d []byte) (Header, error) {
	var h Header
	if len(d) < HeaderLenBytes {
		return h, fmt.Errorf("pmtiles: header truncated, got %d bytes", len(d))
	}
	if string(d[0:7]) != "PMTiles" {
		return h, fmt.Errorf("pmtiles: bad magic, not a PMTiles archive")
	}
	specVersion := d[7]
	if specVersion > 3 {
		return h, fmt.Errorf("pmtiles: archive is spec version %d, only version 3 is supported", specVersion)
	}

	h.SpecVersion = specVersion
	h.RootOffset = binary.LittleEndian.Uint64(d[8:16])
	h.RootLength = binary.LittleEndian.Uint64(d[16:24])
	h.MetadataOffset = binary.LittleEndian.Uint64(d[24:32])
	h.MetadataLength = binary.LittleEndian.Uint64(d[32:40])
	h.LeafDirectoryOffset = binary.LittleEndian.Uint64(d[40:48])
	h.LeafDirectoryLength = binary.LittleEndian.Uint64(d[48:56])
	h.TileDataOffset = binary.LittleEndian.Uint64(d[56:64])
	h.TileDataLength = binary.LittleEndian.Uint64(d[64:72])
	h.AddressedTilesCount = binary.LittleEndian.Uint64(d[72:80])
	h.TileEntriesCount = binary.LittleEndian.Uint64(d[80:88])
	h.TileContentsCount = binary.LittleEndian.Uint64(d[88:96])
	h.Clustered = d[96] == 0x1
	h.InternalCompression = Compression(d[97])
	h.TileCompression = Compression(d[98])
	h.TileType = TileType(d[99])
	h.MinZoom = d[100]
	h.MaxZoom = d[101]
	h.MinLonE7 = int32(binary.LittleEndian.Uint32(d[102:106]))
	h.MinLatE7 = int32(binary.LittleEndian.Uint32(d[106:110]))
	h.MaxLonE7 = int32(binary.LittleEndian.Uint32(d[110:114]))
	h.MaxLatE7 = int32(binary.LittleEndian.Uint32(d[114:118]))
	h.CenterZoom = d[118]
	h.CenterLonE7 = int32(binary.LittleEndian.Uint32(d[119:123]))
	h.CenterLatE7 = int32(binary.LittleEndian.Uint32(d[123:127]))
	return h, nil
}

// buildRootsLeaves packs entries into fixed-size leaf directories and
// returns the root directory entries (pointers into the leaf blob), the
// concatenated compressed leaf bytes, and the leaf count.
func buildRootsLeaves(entries []Entry, leafSize int, compression Compression) ([]byte, []byte, int, error) {
	var rootEntries []Entry
	var leavesBytes []byte
	numLeaves := 0

	for idx := 0; idx < len(entries); idx += leafSize {
		numLeaves++
		end := idx + leafSize
		if end > len(entries) {
			end = len(entries)
		}
		serialized, err := SerializeEntries(entries[idx:end], compression)
		if err != nil {
			return nil, nil, 0, err
		}
		rootEntries = append(rootEntries, Entry{
			TileID: entries[idx].TileID,
			Offset: uint64(len(leavesBytes)),
			Length: uint32(len(serialized)),
		})
		leavesBytes = append(leavesBytes, serialized...)
	}

	rootBytes, err := SerializeEntries(rootEntries, compression)
	if err != nil {
		return nil, nil, 0, err
	}
	return rootBytes, leavesBytes, numLeaves, nil
}

// OptimizeDirectories implements the root-fits-or-split-into-leaves
// strategy from spec section 4.6: start with a single root directory; if it
// doesn't fit targetRootLen, split into leaves sized by entries/3500 (floor
// 4096), growing leafSize by 1.2x until the root does fit.
func OptimizeDirectories(entries []Entry, targetRootLen int, compression Compression) (root []byte, leaves []byte, numLeaves int, err error) {
	if len(entries) < 16384 {
		testRoot, err := SerializeEntries(entries, compression)
		if err != nil {
			return nil, nil, 0, err
		}
		if len(testRoot) <= targetRootLen {
			return testRoot, nil, 0, nil
		}
	}

	leafSize := float32(len(entries)) / 3500
	if leafSize < 4096 {
		leafSize = 4096
	}

	for {
		rootBytes, leavesBytes, n, err := buildRootsLeaves(entries, int(leafSize), compression)
		if err != nil {
			return nil, nil, 0, err
		}
		if len(rootBytes) <= targetRootLen {
			return rootBytes, leavesBytes, n, nil
		}
		leafSize *= 1.2
	}
}

// IterateEntries walks the root directory and every leaf it points to,
// calling operation on each tile entry (RunLength > 0).
func IterateEntries(header Header, fetch func(offset, length uint64) ([]byte, error), operation func(Entry)) error {
	var collect func(offset, length uint64) error
	collect = func(offset, length uint64) error {
		data, err := fetch(offset, length)
		if err != nil {
			return err
		}
		entries, err := DeserializeEntries(data, header.InternalCompression)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.RunLength > 0 {
				operation(e)
			} else if err := collect(header.LeafDirectoryOffset+e.Offset, uint64(e.Length)); err != nil {
				return err
			}
		}
		return nil
	}
	return collect(header.RootOffset, header.RootLength)
}

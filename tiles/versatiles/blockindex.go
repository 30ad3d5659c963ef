package versatiles

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/versatiles-org/versatiles-go/tiles"
	"github.com/versatiles-org/versatiles-go/tiles/compress"
)

// BlockEntryLenBytes is the fixed size of one block index record: level(1) +
// block_x(4) + block_y(4) + inner bbox(4×u8=4) + tiles_range(16) +
// index_range(16). The original Rust implementation's BLOCK_INDEX_LENGTH of
// 33 predates the tiles_range/index_range split this port uses (its
// BlockDefinition carries a single 16-byte tile_range); with two full
// ByteRanges the record is 45 bytes, which this port uses consistently.
const BlockEntryLenBytes = 45

// BlockKey identifies a block by level and block column/row (each block
// covers a 256x256 tile region, per spec section 4.5).
type BlockKey struct {
	Level uint8
	BX    uint32
	BY    uint32
}

// BlockEntry describes one on-disk block: its inner bbox (tile coordinates
// relative to the block's origin), where its tile payloads live, and where
// its brotli-compressed tile index lives.
type BlockEntry struct {
	Key         BlockKey
	InnerBBox   struct{ XMin, YMin, XMax, YMax uint8 }
	TilesRange  tiles.ByteRange
	IndexRange  tiles.ByteRange
}

// BlockSize is the tile-coordinate span a single block covers on each axis.
const BlockSize = 256

// GlobalBBox converts the block's inner bbox to tile coordinates in the full
// pyramid, by adding the block's (bx*256, by*256) origin.
func (e BlockEntry) GlobalBBox() tiles.TileBBox {
	return tiles.TileBBox{
		Z:    e.Key.Level,
		XMin: e.Key.BX*BlockSize + uint32(e.InnerBBox.XMin),
		YMin: e.Key.BY*BlockSize + uint32(e.InnerBBox.YMin),
		XMax: e.Key.BX*BlockSize + uint32(e.InnerBBox.XMax),
		YMax: e.Key.BY*BlockSize + uint32(e.InnerBBox.YMax),
	}
}

func serializeBlockEntry(e BlockEntry) []byte {
	b := make([]byte, BlockEntryLenBytes)
	b[0] = e.Key.Level
	binary.BigEndian.PutUint32(b[1:5], e.Key.BX)
	binary.BigEndian.PutUint32(b[5:9], e.Key.BY)
	b[9] = e.InnerBBox.XMin
	b[10] = e.InnerBBox.YMin
	b[11] = e.InnerBBox.XMax
	b[12] = e.InnerBBox.YMax
	writeByteRangeBE(b[13:29], e.TilesRange)
	writeByteRangeBE(b[29:45], e.IndexRange)
	return b
}

func deserializeBlockEntry(b []byte) (BlockEntry, error) {
	if len(b) != BlockEntryLenBytes {
		return BlockEntry{}, fmt.Errorf("versatiles: block entry must be %d bytes, got %d", BlockEntryLenBytes, len(b))
	}
	var e BlockEntry
	e.Key.Level = b[0]
	e.Key.BX = binary.BigEndian.Uint32(b[1:5])
	e.Key.BY = binary.BigEndian.Uint32(b[5:9])
	e.InnerBBox.XMin = b[9]
	e.InnerBBox.YMin = b[10]
	e.InnerBBox.XMax = b[11]
	e.InnerBBox.YMax = b[12]
	e.TilesRange = readByteRangeBE(b[13:29])
	e.IndexRange = readByteRangeBE(b[29:45])
	return e, nil
}

// BlockIndex is the in-memory, level-then-(bx,by) lookup table built from
// the container's brotli-compressed block index section.
type BlockIndex struct {
	byKey map[BlockKey]BlockEntry
}

func NewBlockIndex() *BlockIndex {
	return &BlockIndex{byKey: make(map[BlockKey]BlockEntry)}
}

func (idx *BlockIndex) Add(e BlockEntry) {
	idx.byKey[e.Key] = e
}

func (idx *BlockIndex) Get(key BlockKey) (BlockEntry, bool) {
	e, ok := idx.byKey[key]
	return e, ok
}

func (idx *BlockIndex) Len() int { return len(idx.byKey) }

func (idx *BlockIndex) Entries() []BlockEntry {
	out := make([]BlockEntry, 0, len(idx.byKey))
	for _, e := range idx.byKey {
		out = append(out, e)
	}
	return out
}

// Pyramid derives the coverage pyramid implied by every block's global bbox.
func (idx *BlockIndex) Pyramid() tiles.TileBBoxPyramid {
	p := tiles.NewTileBBoxPyramidEmpty()
	for _, e := range idx.byKey {
		level := p.Level(e.Key.Level)
		p.SetLevel(e.Key.Level, level.Include(e.GlobalBBox()))
	}
	return p
}

// Serialize lays out every block entry, sorted by level then (bx, by)
// row-major, per spec section 4.5's ordering invariant.
func (idx *BlockIndex) Serialize() []byte {
	entries := idx.Entries()
	sortBlockEntries(entries)
	var buf bytes.Buffer
	for _, e := range entries {
		buf.Write(serializeBlockEntry(e))
	}
	return buf.Bytes()
}

func sortBlockEntries(entries []BlockEntry) {
	less := func(i, j int) bool {
		a, b := entries[i].Key, entries[j].Key
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		if a.BY != b.BY {
			return a.BY < b.BY
		}
		return a.BX < b.BX
	}
	// insertion sort keeps this dependency-free; block counts per
	// container are small enough (tens of thousands at most) that this
	// never shows up in profiles.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

// DeserializeBlockIndex parses a (still brotli-compressed) block index blob.
func DeserializeBlockIndex(compressed []byte) (*BlockIndex, error) {
	raw, err := compress.DecompressBrotli(compressed)
	if err != nil {
		return nil, fmt.Errorf("versatiles: decompressing block index: %w", err)
	}
	if len(raw)%BlockEntryLenBytes != 0 {
		return nil, fmt.Errorf("versatiles: block index is %d bytes, not a multiple of %d", len(raw), BlockEntryLenBytes)
	}
	idx := NewBlockIndex()
	for i := 0; i+BlockEntryLenBytes <= len(raw); i += BlockEntryLenBytes {
		e, err := deserializeBlockEntry(raw[i : i+BlockEntryLenBytes])
		if err != nil {
			return nil, err
		}
		idx.Add(e)
	}
	return idx, nil
}

// SerializeBlockIndex lays out and brotli-compresses the block index at the
// quality fixed by the format (q=11; per spec section 9 design note #3 this
// is a wire-format constant, not a tunable).
func SerializeBlockIndex(idx *BlockIndex) ([]byte, error) {
	return compress.CompressBrotli(idx.Serialize(), compress.BrotliQuality)
}

// tileIndexEntry is one row-major slot in a block's own tile index: the
// per-tile ByteRange, offset relative to the block's tiles_range.offset.
type tileIndexEntry = tiles.ByteRange

// SerializeTileIndex lays out a block's per-tile ranges in row-major order
// over its inner bbox and brotli-compresses the result.
func SerializeTileIndex(ranges []tileIndexEntry) ([]byte, error) {
	var buf bytes.Buffer
	for _, r := range ranges {
		b := make([]byte, 16)
		writeByteRangeBE(b, r)
		buf.Write(b)
	}
	return compress.CompressBrotli(buf.Bytes(), compress.BrotliQuality)
}

// DeserializeTileIndex reverses SerializeTileIndex.
func DeserializeTileIndex(compressed []byte) ([]tileIndexEntry, error) {
	raw, err := compress.DecompressBrotli(compressed)
	if err != nil {
		return nil, fmt.Errorf("versatiles: decompressing tile index: %w", err)
	}
	if len(raw)%16 != 0 {
		return nil, fmt.Errorf("versatiles: tile index is %d bytes, not a multiple of 16", len(raw))
	}
	out := make([]tileIndexEntry, 0, len(raw)/16)
	r := bytes.NewReader(raw)
	buf := make([]byte, 16)
	for {
		_, err := io.ReadFull(r, buf)
		if err != nil {
			break
		}
		out = append(out, readByteRangeBE(buf))
	}
	return out, nil
}

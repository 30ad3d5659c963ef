package tiles

import "fmt"

// ByteRange is a half-closed span [Offset, Offset+Length) within a source.
// Chunking sorts ranges by Offset ascending; no other ordering is assumed.
type ByteRange struct {
	Offset uint64
	Length uint64
}

// End returns the first byte past the range.
func (r ByteRange) End() uint64 {
	return r.Offset + r.Length
}

func (r ByteRange) String() string {
	return fmt.Sprintf("ByteRange[%d,%d]", r.Offset, r.Length)
}

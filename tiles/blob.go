package tiles

import (
	"os"

	"github.com/cespare/xxhash/v2"
)

// Blob is an owned byte buffer. Slicing a Blob is cheap: it shares the
// backing array with its parent.
type Blob struct {
	data []byte
}

// NewBlob wraps an existing byte slice without copying.
func NewBlob(data []byte) Blob {
	return Blob{data: data}
}

// BlobFromFile reads an entire file into a Blob.
func BlobFromFile(path string) (Blob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Blob{}, err
	}
	return Blob{data: data}, nil
}

// Len returns the number of bytes in the blob.
func (b Blob) Len() int {
	return len(b.data)
}

// AsBytes returns the underlying byte slice. Callers must not mutate it.
func (b Blob) AsBytes() []byte {
	return b.data
}

// Range returns the sub-blob covering [offset, offset+length), sharing storage.
func (b Blob) Range(offset, length uint64) Blob {
	return Blob{data: b.data[offset : offset+length]}
}

// Hash returns a fast content hash, used by writers to deduplicate tiles.
func (b Blob) Hash() uint64 {
	return xxhash.Sum64(b.data)
}

// SaveToFile writes the blob contents to path, creating or truncating it.
func (b Blob) SaveToFile(path string) error {
	return os.WriteFile(path, b.data, 0o644)
}

// Equal reports whether two blobs hold identical bytes.
func (b Blob) Equal(other Blob) bool {
	if len(b.data) != len(other.data) {
		return false
	}
	for i := range b.data {
		if b.data[i] != other.data[i] {
			return false
		}
	}
	return true
}

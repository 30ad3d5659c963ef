package tiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoalesceRangesMergesAdjacent(t *testing.T) {
	ranges := []ByteRange{
		{Offset: 0, Length: 100},
		{Offset: 100, Length: 50},
		{Offset: 150, Length: 10},
	}
	chunks := CoalesceRanges(ranges)
	assert.Len(t, chunks, 1)
	assert.Equal(t, uint64(0), chunks[0].Range.Offset)
	assert.Equal(t, uint64(160), chunks[0].Range.Length)
	assert.Len(t, chunks[0].Parts, 3)
}

func TestCoalesceRangesSplitsLargeGaps(t *testing.T) {
	ranges := []ByteRange{
		{Offset: 0, Length: 10},
		{Offset: 10 + MaxChunkGap + 1, Length: 10},
	}
	chunks := CoalesceRanges(ranges)
	assert.Len(t, chunks, 2)
}

func TestCoalesceRangesRespectsMaxChunkSize(t *testing.T) {
	ranges := []ByteRange{
		{Offset: 0, Length: MaxChunkSize},
		{Offset: MaxChunkSize, Length: 10},
	}
	chunks := CoalesceRanges(ranges)
	assert.Len(t, chunks, 2)
}

func TestCoalesceRangesUnsorted(t *testing.T) {
	ranges := []ByteRange{
		{Offset: 200, Length: 10},
		{Offset: 0, Length: 10},
	}
	chunks := CoalesceRanges(ranges)
	assert.Len(t, chunks, 1)
	assert.Equal(t, uint64(0), chunks[0].Range.Offset)
	assert.Equal(t, uint64(200), chunks[0].Parts[1].Offset)
}

func TestCoalesceRangesEmpty(t *testing.T) {
	assert.Nil(t, CoalesceRanges(nil))
}

package tiles

import "sort"

// MaxChunkSize is the largest single coalesced read request issued against a
// DataReader, per spec section 4.4.
const MaxChunkSize = 64 * 1024 * 1024

// MaxChunkGap is the largest gap between two adjacent byte ranges that is
// still worth bridging with a single overfetching read, rather than issuing
// two separate requests.
const MaxChunkGap = 256 * 1024

// Chunk is a single contiguous read request covering one or more of the
// caller's original ByteRanges, which may include bytes the caller never
// asked for (the gaps bridged between them).
type Chunk struct {
	Range ByteRange
	Parts []ByteRange // the original ranges this chunk satisfies, in order
}

// CoalesceRanges sorts ranges by offset and merges adjacent ones into the
// smallest set of Chunks that satisfy MaxChunkSize and MaxChunkGap, mirroring
// the gap-based coalescing used by the teacher's MergeRanges for bulk PMTiles
// extraction, generalized from an overfetch-budget to a hard byte-gap limit.
func CoalesceRanges(ranges []ByteRange) []Chunk {
	if len(ranges) == 0 {
		return nil
	}

	sorted := make([]ByteRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	var chunks []Chunk
	cur := Chunk{Range: sorted[0], Parts: []ByteRange{sorted[0]}}

	for _, r := range sorted[1:] {
		gap := int64(r.Offset) - int64(cur.Range.End())
		newEnd := r.End()
		if cur.Range.End() > newEnd {
			newEnd = cur.Range.End()
		}
		newLength := newEnd - cur.Range.Offset

		if gap <= MaxChunkGap && newLength <= MaxChunkSize {
			cur.Range.Length = newLength
			cur.Parts = append(cur.Parts, r)
			continue
		}
		chunks = append(chunks, cur)
		cur = Chunk{Range: r, Parts: []ByteRange{r}}
	}
	chunks = append(chunks, cur)
	return chunks
}

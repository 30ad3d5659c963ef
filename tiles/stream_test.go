package tiles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSliceToSlice(t *testing.T) {
	s := FromSlice([]int{1, 2, 3})
	assert.Equal(t, []int{1, 2, 3}, s.ToSlice())
}

func TestFromCoordsIteratesFullBBox(t *testing.T) {
	bbox := NewTileBBoxFull(2)
	s := FromCoords(bbox)
	coords := s.ToSlice()
	assert.Len(t, coords, 16)
}

func TestMapItemParallel(t *testing.T) {
	s := FromSlice([]int{1, 2, 3, 4, 5})
	out, err := MapItemParallel(context.Background(), s, func(_ context.Context, v int) (int, error) {
		return v * v, nil
	})
	require.NoError(t, err)
	assert.Len(t, out, 5)

	sum := 0
	for _, v := range out {
		sum += v
	}
	assert.Equal(t, 1+4+9+16+25, sum)
}

func TestFilterMapItemParallel(t *testing.T) {
	s := FromSlice([]int{1, 2, 3, 4, 5, 6})
	out, err := FilterMapItemParallel(context.Background(), s, func(_ context.Context, v int) (int, bool, error) {
		if v%2 != 0 {
			return 0, false, nil
		}
		return v, true, nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{2, 4, 6}, out)
}

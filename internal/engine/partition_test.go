package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/rawst/internal/utils"
)

func TestPartitionThirds(t *testing.T) {
	ranges, err := Partition(1000, 3)
	require.NoError(t, err)
	assert.Equal(t, []Range{{0, 333}, {334, 667}, {668, 999}}, ranges)
}

func TestPartitionCoversResource(t *testing.T) {
	for _, size := range []int64{1, 2, 7, 10, 100, 1000, 1023, 4096, 1 << 20, 1<<20 + 7} {
		for p := int64(1); p <= utils.MaxThreads; p++ {
			ranges, err := Partition(size, p)
			if err != nil {
				assert.ErrorIs(t, err, ErrInvalidPartition)
				assert.Less(t, MaxParallelism(size, p), p, "size %d parallelism %d", size, p)
				continue
			}
			require.Len(t, ranges, int(p))
			assert.Zero(t, ranges[0].Start)
			assert.Equal(t, size-1, ranges[len(ranges)-1].End)
			var sum int64
			for i, r := range ranges {
				assert.Positive(t, r.Size(), "size %d parallelism %d range %d", size, p, i)
				if i > 0 {
					assert.Equal(t, ranges[i-1].End+1, r.Start)
				}
				sum += r.Size()
			}
			assert.Equal(t, size, sum)
		}
	}
}

func TestPartitionRejects(t *testing.T) {
	tests := []struct {
		name        string
		size        int64
		parallelism int64
	}{
		{"zero size", 0, 2},
		{"negative size", -5, 2},
		{"zero parallelism", 100, 0},
		{"overrun", 10, 8},
		{"more ranges than bytes", 3, 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Partition(tc.size, tc.parallelism)
			assert.ErrorIs(t, err, ErrInvalidPartition)
		})
	}
}

func TestMaxParallelism(t *testing.T) {
	assert.EqualValues(t, 4, MaxParallelism(10, 8))
	assert.EqualValues(t, 8, MaxParallelism(1000, 8))
	assert.EqualValues(t, 1, MaxParallelism(1, 8))
	assert.EqualValues(t, 2, MaxParallelism(3, 3))
	assert.EqualValues(t, 0, MaxParallelism(0, 8))
}

package engine

import "fmt"

// Range is an inclusive byte interval.
type Range struct {
	Start int64
	End   int64
}

func (r Range) Size() int64 {
	return r.End - r.Start + 1
}

// Partition splits [0, totalSize-1] into parallelism contiguous ranges. The
// first and middle ranges hold totalSize/parallelism+1 bytes each and the
// last range takes whatever is left, so Partition(1000, 3) yields
// [0,333] [334,667] [668,999].
func Partition(totalSize, parallelism int64) ([]Range, error) {
	if totalSize <= 0 {
		return nil, fmt.Errorf("%w: total size %d", ErrInvalidPartition, totalSize)
	}
	if parallelism <= 0 {
		return nil, fmt.Errorf("%w: parallelism %d", ErrInvalidPartition, parallelism)
	}
	if parallelism == 1 {
		return []Range{{Start: 0, End: totalSize - 1}}, nil
	}
	last := totalSize - 1
	chunkSize := totalSize / parallelism
	ranges := make([]Range, 0, parallelism)
	ranges = append(ranges, Range{Start: 0, End: chunkSize})
	for i := int64(1); i < parallelism-1; i++ {
		start := ranges[i-1].End + 1
		ranges = append(ranges, Range{Start: start, End: start + chunkSize})
	}
	start := ranges[len(ranges)-1].End + 1
	if start > last || ranges[len(ranges)-1].End > last {
		return nil, fmt.Errorf("%w: %d bytes cannot be split into %d ranges", ErrInvalidPartition, totalSize, parallelism)
	}
	ranges = append(ranges, Range{Start: start, End: last})
	return ranges, nil
}

// MaxParallelism returns the largest parallelism up to requested for which
// Partition succeeds, or 0 when totalSize is not positive.
func MaxParallelism(totalSize, requested int64) int64 {
	if totalSize <= 0 {
		return 0
	}
	for p := min(requested, totalSize); p > 1; p-- {
		if _, err := Partition(totalSize, p); err == nil {
			return p
		}
	}
	return 1
}

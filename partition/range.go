package partition

import (
	"fmt"

	"golang.org/x/xerrors"
)

// Partition is a contiguous [Start, End) range of row indices.
type Partition struct {
	Start int
	End   int
}

// Len returns the number of rows covered by the partition.
func (p Partition) Len() int { return p.End - p.Start }

// Empty reports whether the partition covers no rows.
func (p Partition) Empty() bool { return p.End <= p.Start }

func (p Partition) String() string { return fmt.Sprintf("[%d, %d)", p.Start, p.End) }

// Range represents the row index space [0, rowCount) of a matrix which is
// split into a number of contiguous partitions.
type Range struct {
	rowCount    int
	rangeSplits []int
}

// NewRange creates a new range [0, rowCount) and splits it into the
// provided number of partitions. Partition i spans
// [floor(i*rowCount/n), floor((i+1)*rowCount/n)), so the remainder rows are
// spread over the partitions and consecutive extents always meet.
func NewRange(rowCount, numPartitions int) (*Range, error) {
	if rowCount < 0 {
		return nil, xerrors.Errorf("row count must not be negative")
	} else if numPartitions <= 0 {
		return nil, xerrors.Errorf("number of partitions must exceed 0")
	}

	ranges := make([]int, numPartitions)
	for partition := 0; partition < numPartitions; partition++ {
		// int64 keeps the product from overflowing on 32-bit platforms.
		ranges[partition] = int(int64(partition+1) * int64(rowCount) / int64(numPartitions))
	}

	return &Range{rowCount: rowCount, rangeSplits: ranges}, nil
}

// Extents returns the [start, end) extents of the entire range.
func (r *Range) Extents() (int, int) {
	return 0, r.rowCount
}

// NumPartitions returns the number of partitions in the range.
func (r *Range) NumPartitions() int {
	return len(r.rangeSplits)
}

// PartitionExtents returns the [start, end) rows for the requested partition.
func (r *Range) PartitionExtents(partition int) (int, int, error) {
	if partition < 0 || partition >= len(r.rangeSplits) {
		return 0, 0, xerrors.Errorf("invalid partition index")
	}

	if partition == 0 {
		return 0, r.rangeSplits[0], nil
	}
	return r.rangeSplits[partition-1], r.rangeSplits[partition], nil
}

// Partitions returns all partitions of the range in row order.
func (r *Range) Partitions() []Partition {
	parts := make([]Partition, len(r.rangeSplits))
	start := 0
	for i, end := range r.rangeSplits {
		parts[i] = Partition{Start: start, End: end}
		start = end
	}
	return parts
}

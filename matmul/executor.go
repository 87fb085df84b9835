package matmul

import (
	"golang.org/x/xerrors"

	"github.com/moratsam/matscan/matrix"
	"github.com/moratsam/matscan/partition"
)

// MultiplyPartial computes left[p.Start:p.End] x right using the standard
// triple loop (row, column, inner index). It has no side effects and may be
// invoked concurrently.
//
// Elements are float64 values. Integer-valued inputs produce exact results
// as long as the partial sums fit in the 53-bit mantissa.
func MultiplyPartial(left, right matrix.Matrix, p partition.Partition) (matrix.Matrix, error) {
	if err := matrix.CheckMultiply(left, right); err != nil {
		return nil, err
	}
	if p.Start < 0 || p.End > len(left) || p.Start > p.End {
		return nil, xerrors.Errorf("partition %s outside of %d left rows: %w", p, len(left), matrix.ErrInvalidDimensions)
	}

	inner, cols := right.Rows(), right.Cols()
	rows := make(matrix.Matrix, p.Len())
	for i := range rows {
		leftRow := left[p.Start+i]
		row := make([]float64, cols)
		for j := 0; j < cols; j++ {
			var sum float64
			for k := 0; k < inner; k++ {
				sum += leftRow[k] * right[k][j]
			}
			row[j] = sum
		}
		rows[i] = row
	}
	return rows, nil
}

// Execute runs the kernel for the supplied task.
func Execute(task *Task) (*PartialResult, error) {
	rows, err := MultiplyPartial(task.Left, task.Right, task.Partition)
	if err != nil {
		return nil, err
	}
	return &PartialResult{Partition: task.Partition, Rows: rows}, nil
}

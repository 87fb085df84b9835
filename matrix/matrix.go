package matrix

import (
	"math/rand"

	"golang.org/x/xerrors"
)

// Matrix is a dense, row-major matrix of float64 values. A valid Matrix is
// rectangular: all of its rows have the same length.
type Matrix [][]float64

// New returns a zero-filled matrix with the given number of rows and columns.
func New(rows, cols int) Matrix {
	m := make(Matrix, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}

// Random returns a square matrix of the given size whose elements are
// integers in [0, 10) drawn from rng.
func Random(size int, rng *rand.Rand) Matrix {
	m := New(size, size)
	for i := range m {
		for j := range m[i] {
			m[i][j] = float64(rng.Intn(10))
		}
	}
	return m
}

// Fill returns a matrix with the given shape where every element equals v.
func Fill(rows, cols int, v float64) Matrix {
	m := New(rows, cols)
	for i := range m {
		for j := range m[i] {
			m[i][j] = v
		}
	}
	return m
}

// Rows returns the number of rows in the matrix.
func (m Matrix) Rows() int { return len(m) }

// Cols returns the number of columns in the matrix. An empty matrix has
// zero columns.
func (m Matrix) Cols() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// Validate checks that all rows of the matrix have the same length.
func (m Matrix) Validate() error {
	cols := m.Cols()
	for i, row := range m {
		if len(row) != cols {
			return xerrors.Errorf("row %d has %d columns, expected %d: %w", i, len(row), cols, ErrInvalidDimensions)
		}
	}
	return nil
}

// Clone returns a deep copy of the matrix.
func (m Matrix) Clone() Matrix {
	if m == nil {
		return nil
	}
	out := make(Matrix, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Equal reports whether both matrices have the same shape and elements.
func (m Matrix) Equal(other Matrix) bool {
	if len(m) != len(other) {
		return false
	}
	for i := range m {
		if len(m[i]) != len(other[i]) {
			return false
		}
		for j := range m[i] {
			if m[i][j] != other[i][j] {
				return false
			}
		}
	}
	return true
}

// CheckMultiply verifies that left and right are both rectangular and that
// the number of columns in left matches the number of rows in right.
func CheckMultiply(left, right Matrix) error {
	if err := left.Validate(); err != nil {
		return xerrors.Errorf("left matrix: %w", err)
	}
	if err := right.Validate(); err != nil {
		return xerrors.Errorf("right matrix: %w", err)
	}
	if len(left) != 0 && left.Cols() != right.Rows() {
		return xerrors.Errorf("left matrix has %d columns but right matrix has %d rows: %w", left.Cols(), right.Rows(), ErrInvalidDimensions)
	}
	return nil
}

// Multiply computes left x right with a single thread. It is the reference
// product that every parallel strategy must agree with.
func Multiply(left, right Matrix) (Matrix, error) {
	if err := CheckMultiply(left, right); err != nil {
		return nil, err
	}

	result := New(left.Rows(), right.Cols())
	for i := range left {
		for j := 0; j < right.Cols(); j++ {
			var sum float64
			for k := range right {
				sum += left[i][k] * right[k][j]
			}
			result[i][j] = sum
		}
	}
	return result, nil
}

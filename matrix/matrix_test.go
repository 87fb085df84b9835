package matrix_test

import (
	"math/rand"
	"testing"

	gc "gopkg.in/check.v1"
	"gonum.org/v1/gonum/mat"

	"github.com/moratsam/matscan/matrix"
)

var _ = gc.Suite(new(MatrixTestSuite))

func Test(t *testing.T) {
	// Run all gocheck test-suites
	gc.TestingT(t)
}

type MatrixTestSuite struct{}

func (s *MatrixTestSuite) TestMultiplySmall(c *gc.C) {
	a := matrix.Matrix{{1, 2}, {3, 4}}
	b := matrix.Matrix{{5, 6}, {7, 8}}

	got, err := matrix.Multiply(a, b)
	c.Assert(err, gc.IsNil)
	c.Assert(got, gc.DeepEquals, matrix.Matrix{{19, 22}, {43, 50}})
}

func (s *MatrixTestSuite) TestMultiplyNonSquare(c *gc.C) {
	got, err := matrix.Multiply(matrix.Fill(4, 3, 1), matrix.Fill(3, 2, 1))
	c.Assert(err, gc.IsNil)
	c.Assert(got, gc.DeepEquals, matrix.Fill(4, 2, 3))
}

func (s *MatrixTestSuite) TestMultiplyMatchesGonum(c *gc.C) {
	rng := rand.New(rand.NewSource(42))
	for _, size := range []int{1, 2, 7, 33} {
		c.Logf("size: %d", size)
		a, b := matrix.Random(size, rng), matrix.Random(size, rng)

		got, err := matrix.Multiply(a, b)
		c.Assert(err, gc.IsNil)
		c.Assert(got.Equal(gonumProduct(a, b)), gc.Equals, true)
	}
}

func (s *MatrixTestSuite) TestDimensionMismatch(c *gc.C) {
	_, err := matrix.Multiply(matrix.Fill(2, 3, 1), matrix.Fill(2, 2, 1))
	c.Assert(err, gc.ErrorMatches, "left matrix has 3 columns but right matrix has 2 rows: invalid matrix dimensions")
}

func (s *MatrixTestSuite) TestRaggedRows(c *gc.C) {
	ragged := matrix.Matrix{{1, 2}, {3}}
	c.Assert(ragged.Validate(), gc.ErrorMatches, "row 1 has 1 columns, expected 2: invalid matrix dimensions")

	err := matrix.CheckMultiply(matrix.Fill(2, 2, 1), ragged)
	c.Assert(err, gc.ErrorMatches, "right matrix: .*")
}

func (s *MatrixTestSuite) TestCloneIsDeep(c *gc.C) {
	orig := matrix.Matrix{{1, 2}, {3, 4}}
	clone := orig.Clone()
	clone[0][0] = 42

	c.Assert(orig[0][0], gc.Equals, 1.0)
	c.Assert(orig.Equal(clone), gc.Equals, false)
}

func (s *MatrixTestSuite) TestEmpty(c *gc.C) {
	got, err := matrix.Multiply(matrix.Matrix{}, matrix.Fill(2, 2, 1))
	c.Assert(err, gc.IsNil)
	c.Assert(got.Rows(), gc.Equals, 0)
	c.Assert(got.Cols(), gc.Equals, 0)
}

// gonumProduct computes a x b with gonum so that the kernel is checked
// against an independent implementation.
func gonumProduct(a, b matrix.Matrix) matrix.Matrix {
	var out mat.Dense
	out.Mul(toDense(a), toDense(b))

	rows, cols := out.Dims()
	res := matrix.New(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			res[i][j] = out.At(i, j)
		}
	}
	return res
}

func toDense(m matrix.Matrix) *mat.Dense {
	data := make([]float64, 0, m.Rows()*m.Cols())
	for _, row := range m {
		data = append(data, row...)
	}
	return mat.NewDense(m.Rows(), m.Cols(), data)
}

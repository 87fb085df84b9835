package matrix

import "golang.org/x/xerrors"

var (
	// ErrInvalidDimensions is returned when a matrix is not rectangular or
	// when two matrices cannot be multiplied together.
	ErrInvalidDimensions = xerrors.New("invalid matrix dimensions")
)

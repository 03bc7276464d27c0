// Package linalg wraps gonum's mat package with validated entry points for
// singular value decomposition, square linear systems and bounded least
// squares.
//
// Matrices are accepted as row slices and results are returned as row slices
// so callers never need to import mat themselves.
package linalg

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrInvalidArgument is wrapped by every input validation error.
var ErrInvalidArgument = errors.New("invalid argument")

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// toDense copies rows into a dense matrix. ok is false for empty or ragged
// input.
func toDense(rows [][]float64) (*mat.Dense, bool) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, false
	}
	c := len(rows[0])
	data := make([]float64, 0, len(rows)*c)
	for _, row := range rows {
		if len(row) != c {
			return nil, false
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), c, data), true
}

func fromDense(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = make([]float64, c)
		for j := range out[i] {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}

func allFinite(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

func finiteSlice(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

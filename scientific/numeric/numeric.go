// Package numeric provides validated numerical differentiation, integration
// and boundary value problem solvers built on gonum's diff/fd, integrate and
// mat packages.
package numeric

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrInvalidArgument is wrapped by every input validation error.
var ErrInvalidArgument = errors.New("invalid argument")

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// ascending returns x and y ordered by increasing x and the sign to apply to
// an integral over them. x must be strictly monotonic.
func ascending(x, y []float64) ([]float64, []float64, float64, bool) {
	increasing, decreasing := true, true
	for i := 1; i < len(x); i++ {
		if x[i] <= x[i-1] {
			increasing = false
		}
		if x[i] >= x[i-1] {
			decreasing = false
		}
	}
	switch {
	case increasing:
		return x, y, 1, true
	case decreasing:
		xr, yr := slices.Clone(x), slices.Clone(y)
		slices.Reverse(xr)
		slices.Reverse(yr)
		return xr, yr, -1, true
	default:
		return nil, nil, 0, false
	}
}

func linspace(a, b float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = a
		return out
	}
	step := (b - a) / float64(n-1)
	for i := range out {
		out[i] = a + float64(i)*step
	}
	out[n-1] = b
	return out
}

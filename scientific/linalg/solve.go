package linalg

import (
	"errors"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DefaultConditionThreshold is the 2-norm condition number above which a
// system is reported as ill-conditioned.
const DefaultConditionThreshold = 1e10

// SolveOptions configures SolveLinearSystem.
type SolveOptions struct {
	// SkipConditionCheck disables the condition number estimate.
	SkipConditionCheck bool
	// ConditionThreshold defaults to DefaultConditionThreshold.
	ConditionThreshold float64
	// Strict turns an ill-conditioned system into an error instead of a
	// warning.
	Strict bool
	Logger *slog.Logger
}

// SolveResult is the outcome of SolveLinearSystem. ConditionNumber is NaN
// when the check was skipped.
type SolveResult struct {
	Solution        []float64
	ResidualNorm    float64
	ConditionNumber float64
	WellConditioned bool
}

// SolveLinearSystem solves the square system A·x = b with an LU
// factorization and reports the residual norm ‖A·x − b‖₂.
func SolveLinearSystem(a [][]float64, b []float64, opts SolveOptions) (*SolveResult, error) {
	am, ok := toDense(a)
	if !ok {
		return nil, invalidArgument("A must be 2-dimensional and non-empty with rows of equal length")
	}
	r, c := am.Dims()
	if r != c {
		return nil, invalidArgument("A must be square, got shape (%d, %d)", r, c)
	}
	if len(b) == 0 {
		return nil, invalidArgument("b must be 1-dimensional and non-empty")
	}
	if len(b) != r {
		return nil, invalidArgument("incompatible dimensions: A is (%d, %d), b is (%d,)", r, c, len(b))
	}
	if !allFinite(am) {
		return nil, invalidArgument("A contains NaN or Inf values")
	}
	if !finiteSlice(b) {
		return nil, invalidArgument("b contains NaN or Inf values")
	}
	if opts.ConditionThreshold == 0 {
		opts.ConditionThreshold = DefaultConditionThreshold
	}
	if opts.ConditionThreshold < 0 {
		return nil, invalidArgument("condition_threshold must be positive, got %g", opts.ConditionThreshold)
	}

	result := &SolveResult{ConditionNumber: math.NaN(), WellConditioned: true}
	if !opts.SkipConditionCheck {
		result.ConditionNumber = mat.Cond(am, 2)
		result.WellConditioned = result.ConditionNumber < opts.ConditionThreshold
		if !result.WellConditioned {
			if opts.Strict {
				return nil, invalidArgument("matrix is ill-conditioned (condition number %.3g exceeds %.3g)",
					result.ConditionNumber, opts.ConditionThreshold)
			}
			if opts.Logger != nil {
				opts.Logger.Warn("matrix is ill-conditioned",
					slog.Float64("condition_number", result.ConditionNumber),
					slog.Float64("threshold", opts.ConditionThreshold))
			}
		}
	}

	bv := mat.NewVecDense(len(b), append([]float64(nil), b...))
	var x mat.VecDense
	if err := x.SolveVec(am, bv); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, invalidArgument("failed to solve system: matrix is singular")
		}
		result.WellConditioned = false
	}

	var residual mat.VecDense
	residual.MulVec(am, &x)
	residual.SubVec(&residual, bv)

	result.Solution = x.RawVector().Data
	result.ResidualNorm = mat.Norm(&residual, 2)
	return result, nil
}

package linalg

import (
	"gonum.org/v1/gonum/mat"
)

// SVDOptions configures ComputeSVD.
type SVDOptions struct {
	// Thin returns the reduced U (m×k) and Vt (k×n) with k = min(m, n)
	// instead of the full square factors.
	Thin bool
	// ValuesOnly skips the singular vectors.
	ValuesOnly bool
	// LowRankK, when positive, also reports the rank-k reconstruction of the
	// matrix. It is ignored when ValuesOnly is set.
	LowRankK int
}

// SVDResult holds the factors of matrix = U · diag(S) · Vt.
type SVDResult struct {
	U              [][]float64
	SingularValues []float64
	Vt             [][]float64

	// Set only when a low-rank approximation was requested.
	Approximation      [][]float64
	ApproximationError float64
	RankK              int
}

// ComputeSVD factorizes matrix. Singular values are returned in descending
// order. With LowRankK set, the truncated reconstruction and its Frobenius
// norm error are included.
func ComputeSVD(matrix [][]float64, opts SVDOptions) (*SVDResult, error) {
	a, ok := toDense(matrix)
	if !ok {
		return nil, invalidArgument("matrix must be 2-dimensional and non-empty with rows of equal length")
	}
	if !allFinite(a) {
		return nil, invalidArgument("matrix contains NaN or Inf values")
	}
	m, n := a.Dims()
	maxRank := min(m, n)
	if opts.LowRankK < 0 {
		return nil, invalidArgument("low_rank_k must be >= 1, got %d", opts.LowRankK)
	}
	if opts.LowRankK > maxRank {
		return nil, invalidArgument("low_rank_k must be <= min(m, n) = %d, got %d", maxRank, opts.LowRankK)
	}

	kind := mat.SVDFull
	switch {
	case opts.ValuesOnly:
		kind = mat.SVDNone
	case opts.Thin:
		kind = mat.SVDThin
	}

	var svd mat.SVD
	if !svd.Factorize(a, kind) {
		return nil, invalidArgument("failed to compute SVD: factorization did not converge")
	}
	result := &SVDResult{SingularValues: svd.Values(nil)}
	if opts.ValuesOnly {
		return result, nil
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	result.U = fromDense(&u)
	result.Vt = fromDense(v.T())

	if k := opts.LowRankK; k > 0 {
		uk := u.Slice(0, m, 0, k)
		vk := v.Slice(0, n, 0, k)
		sk := mat.NewDiagDense(k, result.SingularValues[:k])

		var us, approx mat.Dense
		us.Mul(uk, sk)
		approx.Mul(&us, vk.T())

		var diff mat.Dense
		diff.Sub(a, &approx)

		result.Approximation = fromDense(&approx)
		result.ApproximationError = mat.Norm(&diff, 2)
		result.RankK = k
	}
	return result, nil
}

package linalg

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Least squares methods. All three are solved with the same bounded-variable
// active set iteration; the names are accepted for compatibility with callers
// that pick a method explicitly.
const (
	MethodTRF    = "trf"
	MethodBVLS   = "bvls"
	MethodDogbox = "dogbox"
)

const (
	// DefaultLstsqMaxIter caps the active set iterations.
	DefaultLstsqMaxIter = 1000
	// DefaultLstsqTol is the first-order optimality tolerance.
	DefaultLstsqTol = 1e-10
)

// Termination status codes reported in LstsqResult.Status.
const (
	StatusMaxIter    = 0
	StatusOptimal    = 1
	StatusNoProgress = -1
)

// LstsqOptions configures ConstrainedLeastSquares. Lower and Upper hold one
// bound per variable, or a single value applied to every variable. Nil
// means unbounded on that side.
type LstsqOptions struct {
	Lower   []float64
	Upper   []float64
	Method  string
	MaxIter int
	Tol     float64
}

// LstsqResult is the outcome of ConstrainedLeastSquares.
type LstsqResult struct {
	X []float64
	// Cost is 0.5·‖A·x − b‖².
	Cost      float64
	Residuals []float64
	// Optimality is the infinity norm of the projected gradient.
	Optimality        float64
	ActiveConstraints []int
	Status            int
	Success           bool
	Message           string
	Iterations        int
}

// ConstrainedLeastSquares minimises ‖A·x − b‖₂ subject to lower ≤ x ≤ upper.
//
// The solver starts from the clipped unconstrained solution and alternates
// between solving the least squares problem over the free variables and
// releasing bound variables whose gradient points into the feasible box,
// in the manner of Stark and Parker's BVLS.
func ConstrainedLeastSquares(a [][]float64, b []float64, opts LstsqOptions) (*LstsqResult, error) {
	am, ok := toDense(a)
	if !ok {
		return nil, invalidArgument("A must be a 2D array with rows of equal length")
	}
	if len(b) == 0 {
		return nil, invalidArgument("b must be a 1D array")
	}
	m, n := am.Dims()
	if m != len(b) {
		return nil, invalidArgument("Incompatible dimensions: A has %d rows, b has %d elements", m, len(b))
	}
	if opts.Method == "" {
		opts.Method = MethodTRF
	}
	switch opts.Method {
	case MethodTRF, MethodBVLS, MethodDogbox:
	default:
		return nil, invalidArgument("Invalid method: %s. Must be 'trf', 'bvls', or 'dogbox'", opts.Method)
	}
	if opts.MaxIter == 0 {
		opts.MaxIter = DefaultLstsqMaxIter
	}
	if opts.MaxIter < 0 {
		return nil, invalidArgument("max_iter must be positive, got %d", opts.MaxIter)
	}
	if opts.Tol == 0 {
		opts.Tol = DefaultLstsqTol
	}
	if opts.Tol < 0 {
		return nil, invalidArgument("tol must be positive, got %g", opts.Tol)
	}
	if !allFinite(am) {
		return nil, invalidArgument("A contains NaN or Inf values")
	}
	if !finiteSlice(b) {
		return nil, invalidArgument("b contains NaN or Inf values")
	}

	lb, err := expandBounds("Lower", opts.Lower, n, math.Inf(-1))
	if err != nil {
		return nil, err
	}
	ub, err := expandBounds("Upper", opts.Upper, n, math.Inf(1))
	if err != nil {
		return nil, err
	}
	for i := range lb {
		if lb[i] > ub[i] {
			return nil, invalidArgument("Lower bounds must be <= upper bounds")
		}
	}

	s := &bvls{a: am, b: b, lb: lb, ub: ub, tol: opts.Tol}
	res := s.solve(opts.MaxIter)

	res.Residuals = make([]float64, m)
	mat.NewVecDense(m, res.Residuals).MulVec(am, mat.NewVecDense(n, res.X))
	floats.Sub(res.Residuals, b)
	res.Cost = 0.5 * floats.Dot(res.Residuals, res.Residuals)
	res.ActiveConstraints = []int{}
	for i, x := range res.X {
		if math.Abs(x-lb[i]) < opts.Tol || math.Abs(x-ub[i]) < opts.Tol {
			res.ActiveConstraints = append(res.ActiveConstraints, i)
		}
	}
	return res, nil
}

func expandBounds(name string, bound []float64, n int, unbounded float64) ([]float64, error) {
	out := make([]float64, n)
	switch len(bound) {
	case 0:
		for i := range out {
			out[i] = unbounded
		}
	case 1:
		for i := range out {
			out[i] = bound[0]
		}
	case n:
		copy(out, bound)
	default:
		return nil, invalidArgument("%s bounds size %d doesn't match number of variables %d", name, len(bound), n)
	}
	for _, v := range out {
		if math.IsNaN(v) {
			return nil, invalidArgument("%s bounds contain NaN values", name)
		}
	}
	return out, nil
}

type bvls struct {
	a      *mat.Dense
	b      []float64
	lb, ub []float64
	tol    float64
}

func (s *bvls) solve(maxIter int) *LstsqResult {
	_, n := s.a.Dims()
	x := make([]float64, n)
	free := make([]bool, n)

	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	z, ok := s.subproblem(all, x)
	if !ok {
		return &LstsqResult{X: x, Status: StatusNoProgress, Message: "The least squares subproblem could not be solved."}
	}
	for i := range x {
		x[i] = math.Min(math.Max(z[i], s.lb[i]), s.ub[i])
		free[i] = x[i] > s.lb[i] && x[i] < s.ub[i]
	}

	threshold := s.tol * math.Max(1, s.gradientScale())
	lastReleased := -1
	for iter := 1; iter <= maxIter; iter++ {
		idx := freeIndices(free)
		if len(idx) > 0 {
			z, ok := s.subproblem(idx, x)
			if !ok {
				return s.finish(x, free, iter, StatusNoProgress, "The least squares subproblem could not be solved.")
			}
			alpha, blocking := 1.0, -1
			for k, i := range idx {
				var step float64
				switch {
				case z[k] < s.lb[i]:
					step = (s.lb[i] - x[i]) / (z[k] - x[i])
				case z[k] > s.ub[i]:
					step = (s.ub[i] - x[i]) / (z[k] - x[i])
				default:
					continue
				}
				if step < alpha {
					alpha, blocking = step, i
				}
			}
			for k, i := range idx {
				x[i] += alpha * (z[k] - x[i])
			}
			if blocking >= 0 {
				if blocking == lastReleased && alpha <= 0 {
					// The released variable cannot move inward; the
					// current point is optimal to working precision.
					return s.finish(x, free, iter, StatusOptimal, optimalMessage)
				}
				s.pin(x, free, blocking)
				for _, i := range idx {
					if free[i] && (x[i] <= s.lb[i] || x[i] >= s.ub[i]) {
						s.pin(x, free, i)
					}
				}
				continue
			}
		}

		g := s.gradient(x)
		release, worst := -1, threshold
		for i := range x {
			if free[i] || s.lb[i] == s.ub[i] {
				continue
			}
			var pull float64
			if x[i] == s.lb[i] && g[i] < 0 {
				pull = -g[i]
			} else if x[i] == s.ub[i] && g[i] > 0 {
				pull = g[i]
			}
			if pull > worst {
				release, worst = i, pull
			}
		}
		if release < 0 {
			return s.finish(x, free, iter, StatusOptimal, optimalMessage)
		}
		free[release] = true
		lastReleased = release
	}
	return s.finish(x, free, maxIter, StatusMaxIter, "The maximum number of iterations is exceeded.")
}

const optimalMessage = "The first-order optimality measure is less than tol."

// pin moves variable i onto its nearest bound and removes it from the free
// set.
func (s *bvls) pin(x []float64, free []bool, i int) {
	if math.Abs(x[i]-s.lb[i]) <= math.Abs(x[i]-s.ub[i]) {
		x[i] = s.lb[i]
	} else {
		x[i] = s.ub[i]
	}
	free[i] = false
}

// subproblem solves the least squares problem over the variables in idx with
// every other variable held at its current value. The minimum-norm SVD
// solution is used so rank-deficient column sets are tolerated.
func (s *bvls) subproblem(idx []int, x []float64) ([]float64, bool) {
	m, n := s.a.Dims()
	inSet := make([]bool, n)
	for _, i := range idx {
		inSet[i] = true
	}
	rhs := slices.Clone(s.b)
	for j := 0; j < n; j++ {
		if inSet[j] || x[j] == 0 {
			continue
		}
		for r := 0; r < m; r++ {
			rhs[r] -= s.a.At(r, j) * x[j]
		}
	}

	sub := mat.NewDense(m, len(idx), nil)
	for k, j := range idx {
		for r := 0; r < m; r++ {
			sub.Set(r, k, s.a.At(r, j))
		}
	}
	var svd mat.SVD
	if !svd.Factorize(sub, mat.SVDThin) {
		return nil, false
	}
	z := make([]float64, len(idx))
	rank := svd.Rank(1e-12)
	if rank == 0 {
		return z, true
	}
	dst := mat.NewVecDense(len(idx), z)
	svd.SolveVecTo(dst, mat.NewVecDense(m, rhs), rank)
	return z, true
}

// gradient returns Aᵀ(A·x − b).
func (s *bvls) gradient(x []float64) []float64 {
	m, n := s.a.Dims()
	r := make([]float64, m)
	rv := mat.NewVecDense(m, r)
	rv.MulVec(s.a, mat.NewVecDense(n, x))
	floats.Sub(r, s.b)
	g := make([]float64, n)
	mat.NewVecDense(n, g).MulVec(s.a.T(), rv)
	return g
}

func (s *bvls) gradientScale() float64 {
	_, n := s.a.Dims()
	g := make([]float64, n)
	mat.NewVecDense(n, g).MulVec(s.a.T(), mat.NewVecDense(len(s.b), s.b))
	return floats.Norm(g, math.Inf(1))
}

func (s *bvls) finish(x []float64, free []bool, iter, status int, msg string) *LstsqResult {
	g := s.gradient(x)
	var opt float64
	for i := range x {
		v := g[i]
		switch {
		case free[i]:
		case x[i] == s.lb[i] && x[i] == s.ub[i]:
			v = 0
		case x[i] == s.lb[i]:
			v = math.Min(v, 0)
		case x[i] == s.ub[i]:
			v = math.Max(v, 0)
		}
		opt = math.Max(opt, math.Abs(v))
	}
	return &LstsqResult{
		X:          x,
		Optimality: opt,
		Status:     status,
		Success:    status == StatusOptimal,
		Message:    msg,
		Iterations: iter,
	}
}

func freeIndices(free []bool) []int {
	var idx []int
	for i, f := range free {
		if f {
			idx = append(idx, i)
		}
	}
	return idx
}

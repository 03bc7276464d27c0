package numeric

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Boundary value problem methods.
const (
	MethodCollocation = "collocation"
	MethodShooting    = "shooting"
)

const (
	DefaultBVPPoints  = 100
	DefaultBVPTol     = 1e-6
	DefaultBVPMaxIter = 100

	// rk4Substeps is the number of Runge-Kutta steps taken between two
	// mesh points by the shooting method.
	rk4Substeps = 10
	// maxHalvings bounds the Newton line search.
	maxHalvings = 12
)

// Messages reported in BVPResult.Message.
const (
	msgConverged = "The algorithm converged to the desired accuracy."
	msgMaxIter   = "The maximum number of iterations was exceeded."
	msgStalled   = "The Newton iteration stalled."
	msgSingular  = "The Jacobian is singular."
)

// ODEFunc returns dy/dx for the first order system y' = f(x, y).
type ODEFunc func(x float64, y []float64) []float64

// BoundaryFunc returns one residual per component; the boundary conditions
// hold when every residual is zero.
type BoundaryFunc func(ya, yb []float64) []float64

// BVPOptions configures SolveBoundaryValueProblem.
type BVPOptions struct {
	// Method is collocation (default) or shooting.
	Method string
	// Points is the number of mesh points. Defaults to DefaultBVPPoints.
	Points int
	// Tol is the largest acceptable residual. Defaults to DefaultBVPTol.
	Tol float64
	// MaxIter caps the Newton iterations. Defaults to DefaultBVPMaxIter.
	MaxIter int
}

// BVPResult holds the solution on the mesh. Y[k][i] is component k at X[i].
type BVPResult struct {
	X       []float64
	Y       [][]float64
	Success bool
	Message string
	// ResidualNorm is the Euclidean norm of the boundary residuals at the
	// returned solution.
	ResidualNorm float64
	Iterations   int
}

// SolveBoundaryValueProblem solves y' = fun(x, y) on [xSpan[0], xSpan[1]]
// subject to bc(y(a), y(b)) = 0.
//
// yInit is the initial guess, one row per component. Each row is sampled
// evenly across the interval and interpolated onto the mesh; a single value
// means a constant guess.
//
// Collocation discretises the system with the trapezoidal rule on a uniform
// mesh and solves the resulting nonlinear equations with a damped Newton
// iteration. Shooting integrates the system with fourth order Runge-Kutta
// and applies Newton's method to the unknown initial state.
func SolveBoundaryValueProblem(fun ODEFunc, bc BoundaryFunc, xSpan [2]float64, yInit [][]float64, opts BVPOptions) (*BVPResult, error) {
	if fun == nil {
		return nil, invalidArgument("fun is required")
	}
	if bc == nil {
		return nil, invalidArgument("bc is required")
	}
	a, b := xSpan[0], xSpan[1]
	if !(a < b) {
		return nil, invalidArgument("x_start must be < x_end, got %g >= %g", a, b)
	}
	if opts.Method == "" {
		opts.Method = MethodCollocation
	}
	if opts.Method != MethodCollocation && opts.Method != MethodShooting {
		return nil, invalidArgument("Invalid method: %s. Must be 'shooting' or 'collocation'", opts.Method)
	}
	if opts.Points == 0 {
		opts.Points = DefaultBVPPoints
	}
	if opts.Points < 2 {
		return nil, invalidArgument("n_points must be >= 2, got %d", opts.Points)
	}
	if opts.Tol == 0 {
		opts.Tol = DefaultBVPTol
	}
	if opts.Tol < 0 {
		return nil, invalidArgument("tol must be positive, got %g", opts.Tol)
	}
	if opts.MaxIter == 0 {
		opts.MaxIter = DefaultBVPMaxIter
	}
	if opts.MaxIter < 0 {
		return nil, invalidArgument("max_iter must be positive, got %d", opts.MaxIter)
	}
	if len(yInit) == 0 {
		return nil, invalidArgument("y_init cannot be empty")
	}
	for k, row := range yInit {
		if len(row) == 0 {
			return nil, invalidArgument("y_init row %d is empty", k)
		}
		if !finite(row) {
			return nil, invalidArgument("y_init contains NaN or Inf values")
		}
	}

	p := &bvp{fun: fun, bc: bc, n: len(yInit), x: linspace(a, b, opts.Points)}
	guess := p.meshGuess(yInit)
	if got := len(fun(a, guess[:p.n])); got != p.n {
		return nil, invalidArgument("fun must return %d values, got %d", p.n, got)
	}
	if got := len(bc(guess[:p.n], guess[len(guess)-p.n:])); got != p.n {
		return nil, invalidArgument("bc must return %d residuals, got %d", p.n, got)
	}

	var (
		flat  []float64
		iters int
		msg   string
	)
	switch opts.Method {
	case MethodCollocation:
		iters, msg = newton(p.collocationResidual, guess, opts.Tol, opts.MaxIter)
		flat = guess
	case MethodShooting:
		y0 := guess[:p.n:p.n]
		iters, msg = newton(p.shootingResidual, y0, opts.Tol, opts.MaxIter)
		flat = p.integrate(y0)
	}

	res := &BVPResult{
		X:          p.x,
		Y:          p.unflatten(flat),
		Success:    msg == msgConverged,
		Message:    msg,
		Iterations: iters,
	}
	last := len(flat) - p.n
	res.ResidualNorm = floats.Norm(bc(flat[:p.n], flat[last:]), 2)
	if math.IsNaN(res.ResidualNorm) {
		res.Success = false
	}
	return res, nil
}

type bvp struct {
	fun ODEFunc
	bc  BoundaryFunc
	n   int
	x   []float64
}

// meshGuess interpolates yInit onto the mesh as a node-major flat slice:
// element i*n+k is component k at node i.
func (p *bvp) meshGuess(yInit [][]float64) []float64 {
	nodes := len(p.x)
	out := make([]float64, nodes*p.n)
	a, b := p.x[0], p.x[nodes-1]
	for k, row := range yInit {
		src := linspace(a, b, len(row))
		for i, xi := range p.x {
			out[i*p.n+k] = interp(xi, src, row)
		}
	}
	return out
}

func (p *bvp) unflatten(flat []float64) [][]float64 {
	nodes := len(p.x)
	out := make([][]float64, p.n)
	for k := range out {
		out[k] = make([]float64, nodes)
		for i := 0; i < nodes; i++ {
			out[k][i] = flat[i*p.n+k]
		}
	}
	return out
}

// collocationResidual fills dst with the trapezoidal collocation equations
// for every mesh interval followed by the boundary residuals.
func (p *bvp) collocationResidual(dst, v []float64) {
	n := p.n
	nodes := len(p.x)
	prev := p.fun(p.x[0], v[:n])
	for i := 0; i < nodes-1; i++ {
		yi := v[i*n : (i+1)*n]
		yj := v[(i+1)*n : (i+2)*n]
		next := p.fun(p.x[i+1], yj)
		h := p.x[i+1] - p.x[i]
		for k := 0; k < n; k++ {
			dst[i*n+k] = yj[k] - yi[k] - h/2*(prev[k]+next[k])
		}
		prev = next
	}
	copy(dst[(nodes-1)*n:], p.bc(v[:n], v[(nodes-1)*n:]))
}

// shootingResidual integrates from the initial state y0 and reports the
// boundary residuals.
func (p *bvp) shootingResidual(dst, y0 []float64) {
	traj := p.integrate(y0)
	copy(dst, p.bc(traj[:p.n], traj[len(traj)-p.n:]))
}

// integrate advances y0 across the mesh with classic RK4 and returns the
// node-major trajectory.
func (p *bvp) integrate(y0 []float64) []float64 {
	n := p.n
	nodes := len(p.x)
	out := make([]float64, nodes*n)
	y := append([]float64(nil), y0...)
	copy(out, y)

	tmp := make([]float64, n)
	for i := 0; i < nodes-1; i++ {
		h := (p.x[i+1] - p.x[i]) / rk4Substeps
		x := p.x[i]
		for s := 0; s < rk4Substeps; s++ {
			k1 := p.fun(x, y)
			for k := range tmp {
				tmp[k] = y[k] + h/2*k1[k]
			}
			k2 := p.fun(x+h/2, tmp)
			for k := range tmp {
				tmp[k] = y[k] + h/2*k2[k]
			}
			k3 := p.fun(x+h/2, tmp)
			for k := range tmp {
				tmp[k] = y[k] + h*k3[k]
			}
			k4 := p.fun(x+h, tmp)
			for k := range y {
				y[k] += h / 6 * (k1[k] + 2*k2[k] + 2*k3[k] + k4[k])
			}
			x += h
		}
		copy(out[(i+1)*n:], y)
	}
	return out
}

// newton drives F(v) to zero in place with a finite difference Jacobian and
// a backtracking line search on the residual norm.
func newton(f func(dst, v []float64), v []float64, tol float64, maxIter int) (int, string) {
	m := len(v)
	r := make([]float64, m)
	f(r, v)
	norm := floats.Norm(r, math.Inf(1))
	if norm <= tol {
		return 0, msgConverged
	}

	jac := mat.NewDense(m, m, nil)
	trial := make([]float64, m)
	rTrial := make([]float64, m)
	settings := &fd.JacobianSettings{Formula: fd.Central}
	for iter := 1; iter <= maxIter; iter++ {
		fd.Jacobian(jac, f, v, settings)

		var step mat.VecDense
		if err := step.SolveVec(jac, mat.NewVecDense(m, r)); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
				return iter, msgSingular
			}
		}

		lambda := 1.0
		accepted := false
		for h := 0; h <= maxHalvings; h++ {
			for i := range trial {
				trial[i] = v[i] - lambda*step.AtVec(i)
			}
			f(rTrial, trial)
			next := floats.Norm(rTrial, math.Inf(1))
			if !math.IsNaN(next) && next < norm {
				copy(v, trial)
				copy(r, rTrial)
				norm = next
				accepted = true
				break
			}
			lambda /= 2
		}
		if !accepted {
			return iter, msgStalled
		}
		if norm <= tol {
			return iter, msgConverged
		}
	}
	return maxIter, msgMaxIter
}

// interp evaluates the piecewise linear interpolant through (xs, ys) at x,
// clamping outside the sampled range.
func interp(x float64, xs, ys []float64) float64 {
	n := len(xs)
	if n == 1 || x <= xs[0] {
		return ys[0]
	}
	if x >= xs[n-1] {
		return ys[n-1]
	}
	i := 1
	for xs[i] < x {
		i++
	}
	t := (x - xs[i-1]) / (xs[i] - xs[i-1])
	return ys[i-1] + t*(ys[i]-ys[i-1])
}

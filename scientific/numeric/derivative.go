package numeric

import (
	"slices"

	"gonum.org/v1/gonum/diff/fd"
)

// Differentiation methods.
const (
	MethodGradient = "gradient"
	MethodForward  = "forward"
	MethodBackward = "backward"
	MethodCentral  = "central"
)

// DerivativeOptions selects the finite difference scheme. Method defaults to
// central and Order to 1.
type DerivativeOptions struct {
	Method string
	Order  int
}

// DerivativeResult holds the estimated derivative at every sample.
type DerivativeResult struct {
	Derivative []float64
	X          []float64
	Method     string
	Order      int
}

func (o *DerivativeOptions) normalize() error {
	if o.Method == "" {
		o.Method = MethodCentral
	}
	switch o.Method {
	case MethodGradient, MethodForward, MethodBackward, MethodCentral:
	default:
		return invalidArgument("method must be 'gradient', 'forward', 'backward', or 'central', got '%s'", o.Method)
	}
	if o.Order == 0 {
		o.Order = 1
	}
	if o.Order != 1 && o.Order != 2 {
		return invalidArgument("order must be 1 or 2, got %d", o.Order)
	}
	return nil
}

// NumericalDerivative estimates dy/dx, or d²y/dx² with Order 2, from samples
// on a possibly non-uniform grid.
//
// The gradient method uses second-order accurate differences everywhere,
// including the end points. The one-sided and central methods fill the
// samples their stencil cannot reach by copying the nearest estimate.
func NumericalDerivative(x, y []float64, opts DerivativeOptions) (*DerivativeResult, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	if len(x) != len(y) {
		return nil, invalidArgument("x and y must have same length, got %d and %d", len(x), len(y))
	}
	if len(x) < 2 {
		return nil, invalidArgument("need at least 2 points, got %d", len(x))
	}
	if opts.Order == 2 && len(x) < 3 {
		return nil, invalidArgument("need at least 3 points for 2nd derivative, got %d", len(x))
	}
	if !finite(x) {
		return nil, invalidArgument("x contains NaN or Inf values")
	}
	if !finite(y) {
		return nil, invalidArgument("y contains NaN or Inf values")
	}
	for i := 1; i < len(x); i++ {
		if x[i] == x[i-1] {
			return nil, invalidArgument("x contains repeated consecutive values at index %d", i)
		}
	}

	var d []float64
	switch opts.Method {
	case MethodGradient:
		d = gradient(x, y)
		if opts.Order == 2 {
			d = gradient(x, d)
		}
	case MethodForward:
		if opts.Order == 1 {
			d = forward1(x, y)
		} else {
			d = forward2(x, y)
		}
	case MethodBackward:
		if opts.Order == 1 {
			d = backward1(x, y)
		} else {
			d = backward2(x, y)
		}
	case MethodCentral:
		if opts.Order == 1 {
			d = central1(x, y)
		} else {
			d = central2(x, y)
		}
	}
	return &DerivativeResult{
		Derivative: d,
		X:          slices.Clone(x),
		Method:     opts.Method,
		Order:      opts.Order,
	}, nil
}

// DerivativeAt estimates the derivative of f at x with gonum's finite
// difference formulas. The gradient method is treated as central.
func DerivativeAt(f func(float64) float64, x float64, opts DerivativeOptions) (float64, error) {
	if f == nil {
		return 0, invalidArgument("func is required")
	}
	if err := opts.normalize(); err != nil {
		return 0, err
	}
	formulas := map[string][2]fd.Formula{
		MethodForward:  {fd.Forward, fd.Forward2nd},
		MethodBackward: {fd.Backward, fd.Backward2nd},
		MethodCentral:  {fd.Central, fd.Central2nd},
		MethodGradient: {fd.Central, fd.Central2nd},
	}
	formula := formulas[opts.Method][opts.Order-1]
	return fd.Derivative(f, x, &fd.Settings{Formula: formula}), nil
}

func slope(x, y []float64, i, j int) float64 {
	return (y[j] - y[i]) / (x[j] - x[i])
}

// gradient uses second-order central differences on the interior and
// second-order one-sided differences at both ends, on a possibly uneven grid.
// Two samples fall back to the plain slope.
func gradient(x, y []float64) []float64 {
	n := len(x)
	out := make([]float64, n)
	if n == 2 {
		s := slope(x, y, 0, 1)
		out[0], out[1] = s, s
		return out
	}
	for i := 1; i < n-1; i++ {
		hd := x[i] - x[i-1]
		hs := x[i+1] - x[i]
		out[i] = (hd*hd*y[i+1] - hs*hs*y[i-1] + (hs*hs-hd*hd)*y[i]) / (hs * hd * (hd + hs))
	}

	dx1, dx2 := x[1]-x[0], x[2]-x[1]
	out[0] = -(2*dx1+dx2)/(dx1*(dx1+dx2))*y[0] +
		(dx1+dx2)/(dx1*dx2)*y[1] -
		dx1/(dx2*(dx1+dx2))*y[2]

	dx1, dx2 = x[n-2]-x[n-3], x[n-1]-x[n-2]
	out[n-1] = dx2/(dx1*(dx1+dx2))*y[n-3] -
		(dx2+dx1)/(dx1*dx2)*y[n-2] +
		(2*dx2+dx1)/(dx2*(dx1+dx2))*y[n-1]
	return out
}

func forward1(x, y []float64) []float64 {
	n := len(x)
	out := make([]float64, n)
	for i := 0; i < n-1; i++ {
		out[i] = slope(x, y, i, i+1)
	}
	out[n-1] = slope(x, y, n-2, n-1)
	return out
}

func backward1(x, y []float64) []float64 {
	n := len(x)
	out := make([]float64, n)
	for i := 1; i < n; i++ {
		out[i] = slope(x, y, i-1, i)
	}
	out[0] = slope(x, y, 0, 1)
	return out
}

func central1(x, y []float64) []float64 {
	n := len(x)
	out := make([]float64, n)
	for i := 1; i < n-1; i++ {
		out[i] = (slope(x, y, i, i+1) + slope(x, y, i-1, i)) / 2
	}
	out[0] = slope(x, y, 0, 1)
	out[n-1] = slope(x, y, n-2, n-1)
	return out
}

// second is the three-point second derivative through consecutive samples
// yi, yj and yk, where h1 separates the first pair and h2 the second.
func second(yi, yj, yk, h1, h2 float64) float64 {
	return 2*yi/(h1*(h1+h2)) - 2*yj/(h1*h2) + 2*yk/(h2*(h1+h2))
}

func forward2(x, y []float64) []float64 {
	n := len(x)
	out := make([]float64, n)
	for i := 0; i < n-2; i++ {
		out[i] = second(y[i], y[i+1], y[i+2], x[i+1]-x[i], x[i+2]-x[i+1])
	}
	out[n-2] = out[n-3]
	out[n-1] = out[n-3]
	return out
}

func backward2(x, y []float64) []float64 {
	n := len(x)
	out := make([]float64, n)
	for i := 2; i < n; i++ {
		out[i] = second(y[i], y[i-1], y[i-2], x[i]-x[i-1], x[i-1]-x[i-2])
	}
	out[0] = out[2]
	out[1] = out[2]
	return out
}

func central2(x, y []float64) []float64 {
	n := len(x)
	out := make([]float64, n)
	for i := 1; i < n-1; i++ {
		out[i] = second(y[i-1], y[i], y[i+1], x[i]-x[i-1], x[i+1]-x[i])
	}
	out[0] = out[1]
	out[n-1] = out[n-2]
	return out
}

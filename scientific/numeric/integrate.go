package numeric

import (
	"math"
	"math/bits"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/integrate/quad"
)

// Integration methods.
const (
	MethodQuad    = "quad"
	MethodTrapz   = "trapz"
	MethodSimps   = "simps"
	MethodRomberg = "romberg"
)

const (
	quadAbsTol    = 1.49e-8
	quadRelTol    = 1.49e-8
	quadMinPoints = 16
	quadMaxPoints = 4096
)

// IntegrationOptions describes either a function integral (quad) or a
// sampled integral (trapz, simps, romberg).
//
// For quad, Func is integrated over [A, B]; infinite limits are allowed. For
// the sampled methods Y holds the samples and X their abscissae. A nil X
// means unit spacing.
type IntegrationOptions struct {
	Method string
	Func   func(float64) float64
	A, B   float64
	X, Y   []float64
}

// IntegrationResult is the estimate and, for quad, an absolute error
// estimate.
type IntegrationResult struct {
	Result float64
	Error  float64
	Method string
}

// NumericalIntegration evaluates a definite integral. Method defaults to
// quad.
func NumericalIntegration(opts IntegrationOptions) (*IntegrationResult, error) {
	if opts.Method == "" {
		opts.Method = MethodQuad
	}
	switch opts.Method {
	case MethodQuad:
		return integrateFunc(opts)
	case MethodTrapz, MethodSimps, MethodRomberg:
		return integrateSamples(opts)
	default:
		return nil, invalidArgument("method must be 'quad', 'trapz', 'simps', or 'romberg', got '%s'", opts.Method)
	}
}

// integrateFunc doubles the number of Gauss-Legendre nodes until two
// successive estimates agree.
func integrateFunc(opts IntegrationOptions) (*IntegrationResult, error) {
	if opts.Func == nil {
		return nil, invalidArgument("func is required for quad method")
	}
	a, b := opts.A, opts.B
	if math.IsNaN(a) || math.IsNaN(b) {
		return nil, invalidArgument("a and b must not be NaN")
	}
	sign := 1.0
	if a > b {
		a, b, sign = b, a, -1
	}

	prev := quad.Fixed(opts.Func, a, b, quadMinPoints, nil, 0)
	var cur, diff float64
	for n := 2 * quadMinPoints; n <= quadMaxPoints; n *= 2 {
		cur = quad.Fixed(opts.Func, a, b, n, nil, 0)
		diff = math.Abs(cur - prev)
		if diff <= math.Max(quadAbsTol, quadRelTol*math.Abs(cur)) {
			break
		}
		prev = cur
	}
	if math.IsNaN(cur) || math.IsInf(cur, 0) {
		return nil, invalidArgument("integration failed: integrand is not finite on [%g, %g]", a, b)
	}
	return &IntegrationResult{Result: sign * cur, Error: diff, Method: MethodQuad}, nil
}

func integrateSamples(opts IntegrationOptions) (*IntegrationResult, error) {
	y := opts.Y
	if y == nil {
		return nil, invalidArgument("y is required for %s method", opts.Method)
	}
	if len(y) == 0 {
		return nil, invalidArgument("y cannot be empty")
	}
	if !finite(y) {
		return nil, invalidArgument("y contains NaN or Inf values")
	}
	x := opts.X
	if x != nil {
		if len(x) != len(y) {
			return nil, invalidArgument("x and y must have same length, got %d and %d", len(x), len(y))
		}
		if !finite(x) {
			return nil, invalidArgument("x contains NaN or Inf values")
		}
	} else {
		x = linspace(0, float64(len(y)-1), len(y))
	}

	res := &IntegrationResult{Method: opts.Method}
	if len(y) == 1 {
		return res, nil
	}
	xs, ys, sign, ok := ascending(x, y)
	if !ok {
		return nil, invalidArgument("x must be strictly increasing or strictly decreasing")
	}

	switch opts.Method {
	case MethodTrapz:
		res.Result = sign * integrate.Trapezoidal(xs, ys)
	case MethodSimps:
		if len(ys) < 3 {
			res.Result = sign * integrate.Trapezoidal(xs, ys)
		} else {
			res.Result = sign * integrate.Simpsons(xs, ys)
		}
	case MethodRomberg:
		n := len(ys) - 1
		if n < 2 || bits.OnesCount(uint(n)) != 1 {
			return nil, invalidArgument("romberg method needs 2^k + 1 samples, got %d", len(ys))
		}
		dx := xs[1] - xs[0]
		for i := 2; i < len(xs); i++ {
			if math.Abs((xs[i]-xs[i-1])-dx) > 1e-9*math.Max(1, math.Abs(dx)) {
				return nil, invalidArgument("romberg method needs equally spaced samples")
			}
		}
		res.Result = sign * integrate.Romberg(ys, dx)
	}
	return res, nil
}

package signal

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Adaptive algorithms.
const (
	LMS  = "lms"
	NLMS = "nlms"
	RLS  = "rls"
)

const (
	DefaultFilterLength     = 32
	DefaultStepSize         = 0.1
	DefaultForgettingFactor = 0.99

	// rlsDelta scales the initial inverse correlation matrix P = I/δ.
	rlsDelta = 0.01
	// nlmsEpsilon keeps the NLMS normalisation finite for silent input.
	nlmsEpsilon = 1e-8
)

// AdaptiveOptions configures AdaptiveFilter. Zero values select the
// defaults.
type AdaptiveOptions struct {
	// Reference is the filter input. When nil, the filter runs as a
	// one-step linear predictor on the signal's own past samples.
	Reference        []float64
	FilterLength     int
	Algorithm        string
	StepSize         float64
	ForgettingFactor float64
}

// AdaptiveResult holds the filter output, the error against the signal and
// the final weights.
type AdaptiveResult struct {
	Filtered []float64
	Error    []float64
	Weights  []float64
	// MSEHistory[i] is the mean squared error over the FilterLength samples
	// ending at sample i+FilterLength-1.
	MSEHistory []float64
	// ConvergenceIteration is the first sample from which the windowed MSE
	// stays within twice its final level, or -1 if it never settles.
	ConvergenceIteration int
}

// AdaptiveFilter adapts an FIR filter so that its output tracks signal.
//
// LMS updates the weights along the instantaneous gradient, NLMS normalises
// that step by the input power, and RLS minimises an exponentially weighted
// least squares cost with forgetting factor λ.
func AdaptiveFilter(signal []float64, opts AdaptiveOptions) (*AdaptiveResult, error) {
	if len(signal) == 0 {
		return nil, invalidArgument("signal cannot be empty")
	}
	if opts.Reference != nil && len(opts.Reference) != len(signal) {
		return nil, invalidArgument("reference must have same length as signal, got %d and %d", len(opts.Reference), len(signal))
	}
	if opts.FilterLength == 0 {
		opts.FilterLength = min(DefaultFilterLength, len(signal))
	}
	if opts.FilterLength < 0 {
		return nil, invalidArgument("filter_length must be positive, got %d", opts.FilterLength)
	}
	if opts.FilterLength > len(signal) {
		return nil, invalidArgument("filter_length (%d) cannot exceed signal length (%d)", opts.FilterLength, len(signal))
	}
	if opts.Algorithm == "" {
		opts.Algorithm = NLMS
	}
	if opts.Algorithm != LMS && opts.Algorithm != NLMS && opts.Algorithm != RLS {
		return nil, invalidArgument("Invalid algorithm '%s'. Must be 'lms', 'nlms', or 'rls'", opts.Algorithm)
	}
	if opts.StepSize == 0 {
		opts.StepSize = DefaultStepSize
	}
	if opts.StepSize < 0 {
		return nil, invalidArgument("step_size must be positive, got %g", opts.StepSize)
	}
	if opts.ForgettingFactor == 0 {
		opts.ForgettingFactor = DefaultForgettingFactor
	}
	if opts.ForgettingFactor < 0 || opts.ForgettingFactor > 1 {
		return nil, invalidArgument("forgetting_factor must be in (0, 1], got %g", opts.ForgettingFactor)
	}
	if !finiteAll(signal) || !finiteAll(opts.Reference) {
		return nil, invalidArgument("signal contains NaN or Inf values")
	}

	n, taps := len(signal), opts.FilterLength
	input := opts.Reference
	delay := 0
	if input == nil {
		input = signal
		delay = 1
	}

	w := make([]float64, taps)
	x := make([]float64, taps)
	out := make([]float64, n)
	errs := make([]float64, n)

	var rls *rlsState
	if opts.Algorithm == RLS {
		rls = newRLS(taps, opts.ForgettingFactor)
	}

	for i := 0; i < n; i++ {
		// x[k] is input[i-delay-k], zero before the start.
		for k := range x {
			j := i - delay - k
			if j >= 0 {
				x[k] = input[j]
			} else {
				x[k] = 0
			}
		}
		y := floats.Dot(w, x)
		e := signal[i] - y
		out[i], errs[i] = y, e

		switch opts.Algorithm {
		case LMS:
			floats.AddScaled(w, opts.StepSize*e, x)
		case NLMS:
			power := floats.Dot(x, x)
			floats.AddScaled(w, opts.StepSize*e/(nlmsEpsilon+power), x)
		case RLS:
			rls.update(w, x, e)
		}
	}

	history := windowedMSE(errs, taps)
	return &AdaptiveResult{
		Filtered:             out,
		Error:                errs,
		Weights:              w,
		MSEHistory:           history,
		ConvergenceIteration: convergence(history, taps),
	}, nil
}

type rlsState struct {
	p      *mat.Dense
	lambda float64
	px     *mat.VecDense
	gain   *mat.VecDense
	outer  *mat.Dense
}

func newRLS(taps int, lambda float64) *rlsState {
	p := mat.NewDense(taps, taps, nil)
	for i := 0; i < taps; i++ {
		p.Set(i, i, 1/rlsDelta)
	}
	return &rlsState{
		p:      p,
		lambda: lambda,
		px:     mat.NewVecDense(taps, nil),
		gain:   mat.NewVecDense(taps, nil),
		outer:  mat.NewDense(taps, taps, nil),
	}
}

// update applies k = P·x / (λ + xᵀ·P·x), w += k·e and P = (P − k·xᵀ·P) / λ.
func (s *rlsState) update(w, x []float64, e float64) {
	xv := mat.NewVecDense(len(x), x)
	s.px.MulVec(s.p, xv)
	denom := s.lambda + mat.Dot(xv, s.px)
	s.gain.ScaleVec(1/denom, s.px)
	floats.AddScaled(w, e, s.gain.RawVector().Data)

	// P is symmetric, so xᵀ·P = (P·x)ᵀ.
	s.outer.Outer(1, s.gain, s.px)
	s.p.Sub(s.p, s.outer)
	s.p.Scale(1/s.lambda, s.p)
}

func windowedMSE(errs []float64, window int) []float64 {
	out := make([]float64, len(errs)-window+1)
	var sum float64
	for i, e := range errs {
		sum += e * e
		if i >= window {
			sum -= errs[i-window] * errs[i-window]
		}
		if i >= window-1 {
			out[i-window+1] = math.Max(sum, 0) / float64(window)
		}
	}
	return out
}

// convergence returns the sample index from which every later windowed MSE
// stays below twice the mean of the final quarter of the history.
func convergence(history []float64, window int) int {
	if len(history) == 0 {
		return -1
	}
	tail := history[len(history)*3/4:]
	limit := 2*floats.Sum(tail)/float64(len(tail)) + 1e-12
	idx := -1
	for i := len(history) - 1; i >= 0; i-- {
		if history[i] > limit {
			break
		}
		idx = i
	}
	if idx < 0 {
		return -1
	}
	return idx + window - 1
}

func finiteAll(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

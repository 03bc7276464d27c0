package signal

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"
)

// FilterOptions configures ApplyFilter. Zero values select the defaults:
// a 5th order Butterworth lowpass at 0.1 with unit sampling rate.
type FilterOptions struct {
	Type string
	// Cutoff holds one frequency for lowpass and highpass filters and two
	// for band filters, in the same unit as SamplingRate.
	Cutoff       []float64
	Order        int
	Method       string
	SamplingRate float64
	// Logger receives a warning when NaN samples are dropped.
	Logger *slog.Logger
}

// FilterResult holds the zero-phase filtered signal and the transfer
// function coefficients that produced it.
type FilterResult struct {
	Filtered []float64
	B        []float64
	A        []float64
}

const (
	defaultCutoff = 0.1
	defaultOrder  = 5
)

// ApplyFilter designs an IIR filter and runs it forward and backward over
// data so the output has no phase distortion. NaN samples are removed before
// filtering, so the output can be shorter than data. What remains must be
// longer than 3·(order+1) samples for low and high pass filters, and
// 3·(2·order+1) for band filters.
func ApplyFilter(data []float64, opts FilterOptions) (*FilterResult, error) {
	if opts.Type == "" {
		opts.Type = Lowpass
	}
	switch opts.Type {
	case Lowpass, Highpass, Bandpass, Bandstop:
	default:
		return nil, invalidArgument("filter_type must be 'lowpass', 'highpass', 'bandpass', or 'bandstop', got '%s'", opts.Type)
	}
	if opts.Order == 0 {
		opts.Order = defaultOrder
	}
	if opts.Order < 1 {
		return nil, invalidArgument("order must be >= 1, got %d", opts.Order)
	}
	if opts.Method == "" {
		opts.Method = Butterworth
	}
	switch opts.Method {
	case Butterworth, Chebyshev1, Chebyshev2, Elliptic:
	default:
		return nil, invalidArgument("filter_method must be 'butter', 'cheby1', 'cheby2', or 'ellip', got '%s'", opts.Method)
	}
	if opts.SamplingRate == 0 {
		opts.SamplingRate = 1
	}
	if opts.SamplingRate < 0 || math.IsNaN(opts.SamplingRate) {
		return nil, invalidArgument("sampling_rate must be positive, got %g", opts.SamplingRate)
	}
	if len(data) == 0 {
		return nil, invalidArgument("data cannot be empty")
	}

	clean := make([]float64, 0, len(data))
	for _, v := range data {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return nil, invalidArgument("data contains only NaN values")
	}
	if dropped := len(data) - len(clean); dropped > 0 && opts.Logger != nil {
		opts.Logger.Warn("removed NaN samples before filtering", slog.Int("dropped", dropped))
	}

	wn, err := normalizeCutoff(opts.Type, opts.Cutoff, opts.SamplingRate)
	if err != nil {
		return nil, err
	}
	b, a, err := Design(opts.Method, opts.Type, opts.Order, wn)
	if err != nil {
		return nil, err
	}
	filtered, err := FiltFilt(b, a, clean)
	if err != nil {
		return nil, fmt.Errorf("failed to apply filter: %w", err)
	}
	return &FilterResult{Filtered: filtered, B: b, A: a}, nil
}

func normalizeCutoff(band string, cutoff []float64, rate float64) ([]float64, error) {
	nyquist := rate / 2
	switch band {
	case Bandpass, Bandstop:
		switch {
		case len(cutoff) < 2:
			return nil, invalidArgument("cutoff must be a tuple for %s filter", band)
		case len(cutoff) > 2:
			return nil, invalidArgument("cutoff must have 2 elements for %s filter", band)
		}
		wn := []float64{cutoff[0] / nyquist, cutoff[1] / nyquist}
		if wn[0] >= wn[1] {
			return nil, invalidArgument("cutoff[0] must be < cutoff[1]")
		}
		for _, w := range wn {
			if !(w > 0 && w < 1) {
				return nil, invalidArgument("normalized cutoff frequencies must be between 0 and 1")
			}
		}
		return wn, nil
	default:
		if len(cutoff) > 1 {
			return nil, invalidArgument("cutoff must be a scalar for %s filter", band)
		}
		c := defaultCutoff
		if len(cutoff) == 1 {
			c = cutoff[0]
		}
		w := c / nyquist
		if !(w > 0 && w < 1) {
			return nil, invalidArgument("normalized cutoff must be between 0 and 1, got %g", w)
		}
		return []float64{w}, nil
	}
}

// LFilter runs the direct form II transposed filter defined by b and a over
// x. zi, when non-nil, is the initial delay line state of length
// max(len(a), len(b)) - 1.
func LFilter(b, a, x, zi []float64) ([]float64, error) {
	if len(a) == 0 || a[0] == 0 {
		return nil, invalidArgument("a[0] must be non-zero")
	}
	if len(b) == 0 {
		return nil, invalidArgument("b cannot be empty")
	}
	b, a = padCoefficients(b, a)
	n := len(a)
	if zi != nil && len(zi) != n-1 {
		return nil, invalidArgument("zi must have length %d, got %d", n-1, len(zi))
	}

	state := make([]float64, n-1)
	copy(state, zi)
	out := make([]float64, len(x))
	for i, xi := range x {
		var yi float64
		if n == 1 {
			yi = b[0] * xi
		} else {
			yi = b[0]*xi + state[0]
			for j := 0; j < n-2; j++ {
				state[j] = state[j+1] + b[j+1]*xi - a[j+1]*yi
			}
			state[n-2] = b[n-1]*xi - a[n-1]*yi
		}
		out[i] = yi
	}
	return out, nil
}

// padCoefficients normalises by a[0] and zero-pads b and a to equal length.
func padCoefficients(b, a []float64) ([]float64, []float64) {
	n := max(len(a), len(b))
	pb := make([]float64, n)
	pa := make([]float64, n)
	for i, v := range b {
		pb[i] = v / a[0]
	}
	for i, v := range a {
		pa[i] = v / a[0]
	}
	return pb, pa
}

// LFilterZI returns the steady-state initial conditions of LFilter for a
// unit step input.
func LFilterZI(b, a []float64) ([]float64, error) {
	if len(a) == 0 || a[0] == 0 {
		return nil, invalidArgument("a[0] must be non-zero")
	}
	b, a = padCoefficients(b, a)
	n := len(a)
	if n == 1 {
		return []float64{}, nil
	}

	// Solve (I - companion(a)ᵀ)·zi = b[1:] - a[1:]·b[0].
	m := mat.NewDense(n-1, n-1, nil)
	for i := 0; i < n-1; i++ {
		m.Set(i, 0, a[i+1])
		m.Set(i, i, m.At(i, i)+1)
		if i+1 < n-1 {
			m.Set(i, i+1, -1)
		}
	}
	rhs := make([]float64, n-1)
	for i := range rhs {
		rhs[i] = b[i+1] - a[i+1]*b[0]
	}
	var zi mat.VecDense
	if err := zi.SolveVec(m, mat.NewVecDense(n-1, rhs)); err != nil {
		return nil, invalidArgument("failed to compute initial conditions: %v", err)
	}
	return zi.RawVector().Data, nil
}

// FiltFilt applies the filter forward and then backward, giving a zero-phase
// response with squared magnitude. The signal is extended at both ends by
// odd reflection of 3·max(len(a), len(b)) samples and must be longer than
// that padding. The filter state is initialised from LFilterZI.
func FiltFilt(b, a, x []float64) ([]float64, error) {
	if len(x) == 0 {
		return nil, invalidArgument("data cannot be empty")
	}
	padlen := 3 * max(len(a), len(b))
	if len(x) <= padlen {
		return nil, invalidArgument("the length of the input vector x must be greater than padlen, which is %d", padlen)
	}
	zi, err := LFilterZI(b, a)
	if err != nil {
		return nil, err
	}
	ext := oddExtend(x, padlen)

	state := make([]float64, len(zi))
	for i := range zi {
		state[i] = zi[i] * ext[0]
	}
	y, err := LFilter(b, a, ext, state)
	if err != nil {
		return nil, err
	}

	reverse(y)
	for i := range zi {
		state[i] = zi[i] * y[0]
	}
	y, err = LFilter(b, a, y, state)
	if err != nil {
		return nil, err
	}
	reverse(y)
	return y[padlen : len(y)-padlen], nil
}

func oddExtend(x []float64, n int) []float64 {
	last := len(x) - 1
	out := make([]float64, 0, len(x)+2*n)
	for i := n; i >= 1; i-- {
		out = append(out, 2*x[0]-x[i])
	}
	out = append(out, x...)
	for i := 1; i <= n; i++ {
		out = append(out, 2*x[last]-x[last-i])
	}
	return out
}

func reverse(v []float64) {
	for i, j := 0, len(v)-1; i < j; i, j = i+1, j-1 {
		v[i], v[j] = v[j], v[i]
	}
}

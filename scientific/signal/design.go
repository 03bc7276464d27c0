// Package signal designs and applies IIR filters and adaptive FIR filters.
//
// Filters are designed in zero-pole-gain form from an analog prototype,
// mapped onto the requested band and discretised with the bilinear
// transform. Frequencies are normalised so that 1 is the Nyquist frequency.
package signal

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
)

// ErrInvalidArgument is wrapped by every input validation error.
var ErrInvalidArgument = errors.New("invalid argument")

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Band types.
const (
	Lowpass  = "lowpass"
	Highpass = "highpass"
	Bandpass = "bandpass"
	Bandstop = "bandstop"
)

// Design methods.
const (
	Butterworth = "butter"
	Chebyshev1  = "cheby1"
	Chebyshev2  = "cheby2"
	Elliptic    = "ellip"
)

const (
	// Cheby1Ripple is the passband ripple in dB used for Chebyshev type I.
	Cheby1Ripple = 0.5
	// Cheby2Attenuation is the stopband attenuation in dB used for
	// Chebyshev type II.
	Cheby2Attenuation = 40.0
	// EllipRipple and EllipAttenuation are the passband ripple and
	// stopband attenuation in dB used for elliptic filters.
	EllipRipple      = 0.5
	EllipAttenuation = 40.0
)

type zpk struct {
	z, p []complex128
	k    float64
}

// Design returns the transfer function coefficients b and a of a digital
// IIR filter. wn holds one normalised frequency for lowpass and highpass
// filters and two for band filters.
func Design(method, band string, order int, wn []float64) (b, a []float64, err error) {
	if order < 1 {
		return nil, nil, invalidArgument("order must be >= 1, got %d", order)
	}
	var proto zpk
	switch method {
	case Butterworth:
		proto = buttap(order)
	case Chebyshev1:
		proto = cheb1ap(order, Cheby1Ripple)
	case Chebyshev2:
		proto = cheb2ap(order, Cheby2Attenuation)
	case Elliptic:
		proto, err = ellipap(order, EllipRipple, EllipAttenuation)
		if err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, invalidArgument("filter_method must be 'butter', 'cheby1', 'cheby2', or 'ellip', got '%s'", method)
	}

	// Pre-warp with fs = 2 so that the bilinear transform maps wn exactly.
	const fs = 2.0
	warped := make([]float64, len(wn))
	for i, w := range wn {
		warped[i] = 2 * fs * math.Tan(math.Pi*w/fs)
	}

	var analog zpk
	switch band {
	case Lowpass, Highpass:
		if len(warped) != 1 {
			return nil, nil, invalidArgument("cutoff must be a scalar for %s filter", band)
		}
		if band == Lowpass {
			analog = lp2lp(proto, warped[0])
		} else {
			analog = lp2hp(proto, warped[0])
		}
	case Bandpass, Bandstop:
		if len(warped) != 2 {
			return nil, nil, invalidArgument("cutoff must have 2 elements for %s filter", band)
		}
		bw := warped[1] - warped[0]
		wo := math.Sqrt(warped[0] * warped[1])
		if band == Bandpass {
			analog = lp2bp(proto, wo, bw)
		} else {
			analog = lp2bs(proto, wo, bw)
		}
	default:
		return nil, nil, invalidArgument("filter_type must be 'lowpass', 'highpass', 'bandpass', or 'bandstop', got '%s'", band)
	}

	digital := bilinear(analog, fs)
	b, a = digital.transfer()
	return b, a, nil
}

// buttap is the analog Butterworth prototype with unit cutoff.
func buttap(n int) zpk {
	p := make([]complex128, n)
	for i := range p {
		m := float64(-n + 1 + 2*i)
		p[i] = -cmplx.Exp(complex(0, math.Pi*m/float64(2*n)))
	}
	return zpk{p: p, k: 1}
}

// cheb1ap is the analog Chebyshev type I prototype with rp dB of passband
// ripple.
func cheb1ap(n int, rp float64) zpk {
	eps := math.Sqrt(math.Pow(10, 0.1*rp) - 1)
	mu := math.Asinh(1/eps) / float64(n)
	p := make([]complex128, n)
	prod := complex(1, 0)
	for i := range p {
		m := float64(-n + 1 + 2*i)
		theta := math.Pi * m / float64(2*n)
		p[i] = -cmplx.Sinh(complex(mu, theta))
		prod *= -p[i]
	}
	k := real(prod)
	if n%2 == 0 {
		k /= math.Sqrt(1 + eps*eps)
	}
	return zpk{p: p, k: k}
}

// cheb2ap is the analog Chebyshev type II prototype with rs dB of stopband
// attenuation.
func cheb2ap(n int, rs float64) zpk {
	de := 1 / math.Sqrt(math.Pow(10, 0.1*rs)-1)
	mu := math.Asinh(1/de) / float64(n)

	var ms []float64
	for m := -n + 1; m < n; m += 2 {
		// Odd orders have no finite zero for m = 0.
		if n%2 == 1 && m == 0 {
			continue
		}
		ms = append(ms, float64(m))
	}
	z := make([]complex128, len(ms))
	for i, m := range ms {
		z[i] = -cmplx.Conj(complex(0, 1) / complex(math.Sin(m*math.Pi/float64(2*n)), 0))
	}

	p := make([]complex128, n)
	for i := range p {
		m := float64(-n + 1 + 2*i)
		q := -cmplx.Exp(complex(0, math.Pi*m/float64(2*n)))
		q = complex(math.Sinh(mu)*real(q), math.Cosh(mu)*imag(q))
		p[i] = 1 / q
	}

	k := real(prodNeg(p) / prodNeg(z))
	return zpk{z: z, p: p, k: k}
}

func prodNeg(v []complex128) complex128 {
	out := complex(1, 0)
	for _, x := range v {
		out *= -x
	}
	return out
}

func scaled(v []complex128, s complex128) []complex128 {
	out := make([]complex128, len(v))
	for i, x := range v {
		out[i] = x * s
	}
	return out
}

func inverted(v []complex128, s complex128) []complex128 {
	out := make([]complex128, len(v))
	for i, x := range v {
		out[i] = s / x
	}
	return out
}

func repeat(v complex128, n int) []complex128 {
	out := make([]complex128, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func lp2lp(f zpk, wo float64) zpk {
	degree := len(f.p) - len(f.z)
	return zpk{
		z: scaled(f.z, complex(wo, 0)),
		p: scaled(f.p, complex(wo, 0)),
		k: f.k * math.Pow(wo, float64(degree)),
	}
}

func lp2hp(f zpk, wo float64) zpk {
	degree := len(f.p) - len(f.z)
	z := append(inverted(f.z, complex(wo, 0)), repeat(0, degree)...)
	return zpk{
		z: z,
		p: inverted(f.p, complex(wo, 0)),
		k: f.k * real(prodNeg(f.z)/prodNeg(f.p)),
	}
}

// splitBand maps each low-pass root r onto the two roots of
// s² - r·bw·s + wo² = 0.
func splitBand(roots []complex128, wo float64) []complex128 {
	out := make([]complex128, 0, 2*len(roots))
	for _, r := range roots {
		out = append(out, r+cmplx.Sqrt(r*r-complex(wo*wo, 0)))
	}
	for _, r := range roots {
		out = append(out, r-cmplx.Sqrt(r*r-complex(wo*wo, 0)))
	}
	return out
}

func lp2bp(f zpk, wo, bw float64) zpk {
	degree := len(f.p) - len(f.z)
	half := complex(bw/2, 0)
	z := append(splitBand(scaled(f.z, half), wo), repeat(0, degree)...)
	return zpk{
		z: z,
		p: splitBand(scaled(f.p, half), wo),
		k: f.k * math.Pow(bw, float64(degree)),
	}
}

func lp2bs(f zpk, wo, bw float64) zpk {
	degree := len(f.p) - len(f.z)
	half := complex(bw/2, 0)
	z := splitBand(inverted(f.z, half), wo)
	z = append(z, repeat(complex(0, wo), degree)...)
	z = append(z, repeat(complex(0, -wo), degree)...)
	return zpk{
		z: z,
		p: splitBand(inverted(f.p, half), wo),
		k: f.k * real(prodNeg(f.z)/prodNeg(f.p)),
	}
}

func bilinear(f zpk, fs float64) zpk {
	degree := len(f.p) - len(f.z)
	fs2 := complex(2*fs, 0)
	z := make([]complex128, 0, len(f.p))
	num, den := complex(1, 0), complex(1, 0)
	for _, r := range f.z {
		z = append(z, (fs2+r)/(fs2-r))
		num *= fs2 - r
	}
	z = append(z, repeat(-1, degree)...)
	p := make([]complex128, len(f.p))
	for i, r := range f.p {
		p[i] = (fs2 + r) / (fs2 - r)
		den *= fs2 - r
	}
	return zpk{z: z, p: p, k: f.k * real(num/den)}
}

// transfer expands the zeros and poles into polynomial coefficients in
// descending powers of z.
func (f zpk) transfer() (b, a []float64) {
	bc := poly(f.z)
	ac := poly(f.p)
	b = make([]float64, len(bc))
	for i, c := range bc {
		b[i] = f.k * real(c)
	}
	a = make([]float64, len(ac))
	for i, c := range ac {
		a[i] = real(c)
	}
	return b, a
}

func poly(roots []complex128) []complex128 {
	c := []complex128{1}
	for _, r := range roots {
		next := make([]complex128, len(c)+1)
		for i, v := range c {
			next[i] += v
			next[i+1] -= v * r
		}
		c = next
	}
	return c
}

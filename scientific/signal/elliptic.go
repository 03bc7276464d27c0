package signal

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mathext"
)

const (
	// ellipEpsilon separates zero from non-zero sn values and real poles
	// from complex ones.
	ellipEpsilon = 2e-16
	// ellipdegTerms is the number of q-series terms used by ellipdeg.
	ellipdegTerms = 7
	// landenMaxIter bounds the descending Landen sequence in arcJacSN.
	landenMaxIter = 10
)

// ellipap is the analog elliptic (Cauer) prototype with rp dB of passband
// ripple and rs dB of stopband attenuation. The passband edge is at 1 and
// the response is equiripple in both bands.
func ellipap(n int, rp, rs float64) (zpk, error) {
	if rp <= 0 || rs <= 0 {
		return zpk{}, invalidArgument("ripple and attenuation must be positive")
	}
	if n == 1 {
		p := -math.Sqrt(1 / (math.Pow(10, 0.1*rp) - 1))
		return zpk{p: []complex128{complex(p, 0)}, k: -p}, nil
	}

	epsSq := math.Pow(10, 0.1*rp) - 1
	eps := math.Sqrt(epsSq)
	ck1Sq := epsSq / (math.Pow(10, 0.1*rs) - 1)
	if ck1Sq == 0 {
		return zpk{}, invalidArgument("cannot design a filter with given rp and rs specifications")
	}
	k1 := mathext.CompleteK(ck1Sq)

	m := ellipdeg(n, ck1Sq)
	capK := mathext.CompleteK(m)

	var sn, cn, dn []float64
	for j := 1 - n%2; j < n; j += 2 {
		s, c, d := ellipj(float64(j)*capK/float64(n), m)
		sn = append(sn, s)
		cn = append(cn, c)
		dn = append(dn, d)
	}

	var z []complex128
	for _, s := range sn {
		if math.Abs(s) > ellipEpsilon {
			z = append(z, complex(0, 1/(math.Sqrt(m)*s)))
		}
	}
	for _, v := range z[:len(z):len(z)] {
		z = append(z, cmplx.Conj(v))
	}

	r, err := arcJacSC1(1/eps, ck1Sq)
	if err != nil {
		return zpk{}, err
	}
	v0 := capK * r / (float64(n) * k1)
	sv, cv, dv := ellipj(v0, 1-m)

	p := make([]complex128, len(sn))
	for i := range sn {
		den := 1 - (dn[i]*sv)*(dn[i]*sv)
		p[i] = -complex(cn[i]*dn[i]*sv*cv, sn[i]*dv) / complex(den, 0)
	}
	if n%2 == 1 {
		var norm float64
		for _, v := range p {
			norm += real(v)*real(v) + imag(v)*imag(v)
		}
		norm = math.Sqrt(norm)
		for _, v := range p[:len(p):len(p)] {
			if math.Abs(imag(v)) > ellipEpsilon*norm {
				p = append(p, cmplx.Conj(v))
			}
		}
	} else {
		for _, v := range p[:len(p):len(p)] {
			p = append(p, cmplx.Conj(v))
		}
	}

	k := real(prodNeg(p) / prodNeg(z))
	if n%2 == 0 {
		k /= math.Sqrt(1 + epsSq)
	}
	return zpk{z: z, p: p, k: k}, nil
}

// ellipdeg solves the degree equation for the elliptic modulus m of an
// order n filter whose discrimination modulus is m1, using the nome
// q-series.
func ellipdeg(n int, m1 float64) float64 {
	q1 := math.Exp(-math.Pi * mathext.CompleteK(1-m1) / mathext.CompleteK(m1))
	q := math.Pow(q1, 1/float64(n))
	var num, den float64
	for i := 0; i <= ellipdegTerms; i++ {
		num += math.Pow(q, float64(i*(i+1)))
	}
	for i := 1; i <= ellipdegTerms+1; i++ {
		den += math.Pow(q, float64(i*i))
	}
	ratio := num / (1 + 2*den)
	return 16 * q * ratio * ratio * ratio * ratio
}

// ellipj returns the Jacobi elliptic functions sn, cn and dn of u with
// parameter m, by the descending arithmetic-geometric mean.
func ellipj(u, m float64) (sn, cn, dn float64) {
	if m < 1e-9 {
		t, b := math.Sin(u), math.Cos(u)
		ai := 0.25 * m * (u - t*b)
		return t - ai*b, b + ai*t, 1 - 0.5*m*t*t
	}
	if m >= 0.9999999999 {
		ai := 0.25 * (1 - m)
		b := math.Cosh(u)
		t := math.Tanh(u)
		phi := 1 / b
		twon := b * math.Sinh(u)
		sn = t + ai*(twon-u)/(b*b)
		ai *= t * phi
		return sn, phi - ai*(twon-u), phi + ai*(twon+u)
	}

	var a, c [9]float64
	a[0], c[0] = 1, math.Sqrt(m)
	b := math.Sqrt(1 - m)
	twon := 1.0
	i := 0
	for math.Abs(c[i]/a[i]) > 1.11e-16 && i < 8 {
		ai := a[i]
		i++
		c[i] = (ai - b) / 2
		t := math.Sqrt(ai * b)
		a[i] = (ai + b) / 2
		b = t
		twon *= 2
	}

	phi := twon * a[i] * u
	var prev float64
	for ; i > 0; i-- {
		t := c[i] * math.Sin(phi) / a[i]
		prev = phi
		phi = (math.Asin(t) + phi) / 2
	}
	t := math.Cos(phi)
	return math.Sin(phi), t, t / math.Cos(phi-prev)
}

// arcJacSN inverts sn for a complex argument w using the descending Landen
// transformation.
func arcJacSN(w complex128, m float64) (complex128, error) {
	complement := func(x complex128) complex128 { return cmplx.Sqrt((1 - x) * (1 + x)) }

	k := math.Sqrt(m)
	if k == 1 {
		return cmplx.Atanh(w), nil
	}
	ks := []float64{k}
	for ks[len(ks)-1] != 0 {
		if len(ks) > landenMaxIter {
			return 0, invalidArgument("Landen transformation not converging")
		}
		kp := math.Sqrt((1 - ks[len(ks)-1]) * (1 + ks[len(ks)-1]))
		ks = append(ks, (1-kp)/(1+kp))
	}

	capK := math.Pi / 2
	for _, v := range ks[1:] {
		capK *= 1 + v
	}
	wn := w
	for i := 1; i < len(ks); i++ {
		kn, knext := complex(ks[i-1], 0), complex(ks[i], 0)
		wn = 2 * wn / ((1 + knext) * (1 + complement(kn*wn)))
	}
	return complex(capK, 0) * complex(2/math.Pi, 0) * cmplx.Asin(wn), nil
}

// arcJacSC1 returns the real v with sc(v, 1-m) = w.
func arcJacSC1(w, m float64) (float64, error) {
	z, err := arcJacSN(complex(0, w), m)
	if err != nil {
		return 0, err
	}
	if math.Abs(real(z)) > 1e-14 {
		return 0, invalidArgument("arc_jac_sc1 did not converge to a real value")
	}
	return imag(z), nil
}

// Package mathx holds guarded exponentiation and seeded random sampling.
package mathx

import (
	"errors"
	"fmt"
	"math"
	"math/big"
)

// ErrInvalidArgument is wrapped by every input validation error.
var ErrInvalidArgument = errors.New("invalid argument")

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Limits enforced by Power and PowerInt.
const (
	MaxExponent = 10000
	MaxBaseAbs  = 1e308
	// maxLog10 is the largest result magnitude, in decades, Power attempts.
	maxLog10 = 300
)

func checkMagnitude(absBase, exp float64) error {
	if absBase > MaxBaseAbs {
		return invalidArgument("base magnitude must be <= %.2e to prevent overflow", MaxBaseAbs)
	}
	if math.Abs(exp) > MaxExponent {
		return invalidArgument("exponent magnitude must be <= %d to prevent overflow", MaxExponent)
	}
	if absBase > 1 && exp > 1000 && math.Abs(exp*math.Log10(absBase)) > maxLog10 {
		return invalidArgument("computation would result in value too large (> 10^%d), risking overflow or memory exhaustion", maxLog10)
	}
	return nil
}

// Power returns base raised to exp. It rejects NaN and Inf inputs, bases
// larger than MaxBaseAbs, exponents larger than MaxExponent, and large
// exponents whose result would exceed 10^300. A result that still overflows
// or is NaN, such as a negative base with a fractional exponent, is an
// error.
func Power(base, exp float64) (float64, error) {
	if math.IsNaN(base) || math.IsInf(base, 0) {
		return 0, invalidArgument("base cannot be NaN or Inf")
	}
	if math.IsNaN(exp) || math.IsInf(exp, 0) {
		return 0, invalidArgument("exponent cannot be NaN or Inf")
	}
	if err := checkMagnitude(math.Abs(base), exp); err != nil {
		return 0, err
	}
	r := math.Pow(base, exp)
	if math.IsInf(r, 0) {
		return 0, invalidArgument("computation resulted in overflow (infinity)")
	}
	if math.IsNaN(r) {
		return 0, invalidArgument("computation resulted in NaN (invalid operation)")
	}
	return r, nil
}

// PowerInt returns the exact value of base raised to exp. Negative
// exponents only have integer results for bases 1 and -1; anything else is
// an error, and Power should be used instead.
func PowerInt(base int64, exp int64) (*big.Int, error) {
	absBase := math.Abs(float64(base))
	if err := checkMagnitude(absBase, float64(exp)); err != nil {
		return nil, err
	}
	if exp < 0 {
		switch {
		case base == 1:
			return big.NewInt(1), nil
		case base == -1:
			if exp%2 == 0 {
				return big.NewInt(1), nil
			}
			return big.NewInt(-1), nil
		case base == 0:
			return nil, invalidArgument("0 cannot be raised to a negative power")
		}
		return nil, invalidArgument("result of %d^%d is not an integer", base, exp)
	}
	return new(big.Int).Exp(big.NewInt(base), big.NewInt(exp), nil), nil
}

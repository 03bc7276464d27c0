package mathx

import (
	"math"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

type config struct {
	src rand.Source
}

// Option configures the random functions.
type Option func(*config)

// WithSeed makes the output reproducible.
func WithSeed(seed uint64) Option {
	return func(c *config) { c.src = rand.NewSource(seed) }
}

// WithSource draws from src.
func WithSource(src rand.Source) Option {
	return func(c *config) { c.src = src }
}

func newConfig(opts []Option) config {
	var c config
	for _, opt := range opts {
		opt(&c)
	}
	if c.src == nil {
		c.src = rand.NewSource(uint64(time.Now().UnixNano()))
	}
	return c
}

func checkCount(n int) error {
	if n < 0 {
		return invalidArgument("count must be non-negative")
	}
	return nil
}

// RandomFloats returns n values drawn uniformly from [lo, hi).
func RandomFloats(n int, lo, hi float64, opts ...Option) ([]float64, error) {
	if err := checkCount(n); err != nil {
		return nil, err
	}
	if math.IsNaN(lo) || math.IsNaN(hi) || !(lo < hi) {
		return nil, invalidArgument("min_value must be less than max_value")
	}
	c := newConfig(opts)
	dist := distuv.Uniform{Min: lo, Max: hi, Src: c.src}
	out := make([]float64, n)
	for i := range out {
		v := dist.Rand()
		if v >= hi {
			v = math.Nextafter(hi, lo)
		}
		out[i] = v
	}
	return out, nil
}

// RandomIntegers returns n values drawn uniformly from [lo, hi], both ends
// included.
func RandomIntegers(n, lo, hi int, opts ...Option) ([]int, error) {
	if err := checkCount(n); err != nil {
		return nil, err
	}
	if lo > hi {
		return nil, invalidArgument("min_value must be less than or equal to max_value")
	}
	r := rand.New(newConfig(opts).src)
	span := uint64(hi-lo) + 1
	out := make([]int, n)
	for i := range out {
		if span == 0 {
			// lo and hi cover the whole int range.
			out[i] = int(r.Uint64())
			continue
		}
		out[i] = lo + int(r.Uint64n(span))
	}
	return out, nil
}

// RandomNormal returns n values drawn from a normal distribution.
func RandomNormal(n int, mean, stddev float64, opts ...Option) ([]float64, error) {
	if err := checkCount(n); err != nil {
		return nil, err
	}
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		return nil, invalidArgument("mean must be finite")
	}
	if !(stddev > 0) || math.IsInf(stddev, 0) {
		return nil, invalidArgument("stddev must be positive")
	}
	dist := distuv.Normal{Mu: mean, Sigma: stddev, Src: newConfig(opts).src}
	out := make([]float64, n)
	for i := range out {
		out[i] = dist.Rand()
	}
	return out, nil
}

// RandomSample draws k elements from population. Without replacement every
// element is drawn at most once, so k cannot exceed len(population).
func RandomSample[T any](population []T, k int, replace bool, opts ...Option) ([]T, error) {
	if err := checkCount(k); err != nil {
		return nil, err
	}
	if len(population) == 0 {
		if k == 0 {
			return []T{}, nil
		}
		return nil, invalidArgument("population cannot be empty")
	}
	if !replace && k > len(population) {
		return nil, invalidArgument("count cannot exceed population size when replace=False")
	}
	r := rand.New(newConfig(opts).src)
	out := make([]T, k)
	if replace {
		for i := range out {
			out[i] = population[r.Intn(len(population))]
		}
		return out, nil
	}
	for i, j := range r.Perm(len(population))[:k] {
		out[i] = population[j]
	}
	return out, nil
}

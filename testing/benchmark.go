package testing

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidIterations is returned by BenchmarkFunction for a non-positive
// iteration count.
var ErrInvalidIterations = errors.New("iterations must be positive")

// BenchmarkResult summarises a BenchmarkFunction run.
type BenchmarkResult struct {
	Iterations int
	Total      time.Duration
	Average    time.Duration
	Min        time.Duration
	Max        time.Duration
}

// String returns a one-line summary.
func (r BenchmarkResult) String() string {
	return fmt.Sprintf("%d iterations: total %s, avg %s, min %s, max %s",
		r.Iterations, r.Total, r.Average, r.Min, r.Max)
}

// BenchmarkFunction calls fn iterations times and reports the total, average,
// fastest and slowest call. The first error returned by fn stops the run.
//
// Unlike testing.B it needs no test binary, so it can be used from ordinary
// programs to compare alternatives.
func BenchmarkFunction(fn func() error, iterations int) (BenchmarkResult, error) {
	if fn == nil {
		return BenchmarkResult{}, errors.New("func must be callable")
	}
	if iterations <= 0 {
		return BenchmarkResult{}, ErrInvalidIterations
	}

	result := BenchmarkResult{Iterations: iterations}
	for i := 0; i < iterations; i++ {
		elapsed, err := measure(fn)
		if err != nil {
			return result, fmt.Errorf("iteration %d: %w", i+1, err)
		}
		result.Total += elapsed
		if i == 0 || elapsed < result.Min {
			result.Min = elapsed
		}
		if elapsed > result.Max {
			result.Max = elapsed
		}
	}
	result.Average = result.Total / time.Duration(iterations)
	return result, nil
}

func measure(fn func() error) (time.Duration, error) {
	var err error
	elapsed := MeasureLatency(func() { err = fn() })
	return elapsed, err
}

// Package stats provides resampling and outlier-resistant summary statistics
// on top of gonum's stat package.
//
// Percentiles and medians use linear interpolation between closest ranks,
// the definition spreadsheets use for PERCENTILE.INC.
package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ErrInvalidArgument is wrapped by every input validation error.
var ErrInvalidArgument = errors.New("invalid argument")

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Percentile returns the p-th percentile (0 to 100) of data. data does not
// need to be sorted and is not modified. It returns NaN for empty input.
func Percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	sorted := sortedCopy(data)
	return percentileSorted(sorted, p)
}

// Median returns the middle value of data, averaging the two middle values
// when the length is even. It returns NaN for empty input.
func Median(data []float64) float64 {
	return Percentile(data, 50)
}

// PopStdDev returns the population standard deviation of data.
func PopStdDev(data []float64) float64 {
	return stat.PopStdDev(data, nil)
}

func percentileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := p / 100 * float64(n-1)
	lo := int(math.Floor(pos))
	if lo < 0 {
		return sorted[0]
	}
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	if frac == 0 {
		return sorted[lo]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

func sortedCopy(data []float64) []float64 {
	out := make([]float64, len(data))
	copy(out, data)
	sort.Float64s(out)
	return out
}

// dropNaN returns data without NaN entries and how many were removed.
func dropNaN(data []float64) ([]float64, int) {
	out := make([]float64, 0, len(data))
	for _, v := range data {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out, len(data) - len(out)
}

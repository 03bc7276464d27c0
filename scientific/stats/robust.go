package stats

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultTrimProportion is cut from each tail for the trimmed and
// winsorized means.
const DefaultTrimProportion = 0.1

// RobustOptions configures RobustStatistics.
type RobustOptions struct {
	// Logger receives a warning when NaN values are dropped.
	Logger *slog.Logger
	// TrimProportion is the share cut from each tail, in [0, 0.5).
	// Defaults to DefaultTrimProportion.
	TrimProportion float64
}

// RobustSummary holds location and spread estimates that resist outliers.
type RobustSummary struct {
	Median         float64
	MAD            float64
	TrimmedMean    float64
	WinsorizedMean float64
	IQR            float64
}

// RobustStatistics summarises data with the median, the median absolute
// deviation, the trimmed and winsorized means and the interquartile range.
// NaN values are dropped with a warning. Infinite values are kept and sort to
// the ends.
func RobustStatistics(data []float64, opts RobustOptions) (*RobustSummary, error) {
	if len(data) == 0 {
		return nil, invalidArgument("data cannot be empty")
	}
	if opts.TrimProportion == 0 {
		opts.TrimProportion = DefaultTrimProportion
	}
	if opts.TrimProportion < 0 || opts.TrimProportion >= 0.5 {
		return nil, invalidArgument("trim_proportion must be in [0, 0.5), got %g", opts.TrimProportion)
	}

	clean, dropped := dropNaN(data)
	if dropped > 0 && opts.Logger != nil {
		opts.Logger.Warn(fmt.Sprintf("Data contains %d NaN value(s) which were removed", dropped))
	}
	if len(clean) == 0 {
		return nil, invalidArgument("data contains only NaN values")
	}

	sorted := sortedCopy(clean)
	median := percentileSorted(sorted, 50)

	deviations := make([]float64, len(sorted))
	for i, v := range sorted {
		deviations[i] = math.Abs(v - median)
	}

	return &RobustSummary{
		Median:         median,
		MAD:            Median(deviations),
		TrimmedMean:    trimmedMean(sorted, opts.TrimProportion),
		WinsorizedMean: winsorizedMean(sorted, opts.TrimProportion),
		IQR:            percentileSorted(sorted, 75) - percentileSorted(sorted, 25),
	}, nil
}

func trimmedMean(sorted []float64, proportion float64) float64 {
	cut := int(proportion * float64(len(sorted)))
	return stat.Mean(sorted[cut:len(sorted)-cut], nil)
}

func winsorizedMean(sorted []float64, proportion float64) float64 {
	n := len(sorted)
	cut := int(proportion * float64(n))
	if cut == 0 {
		return floats.Sum(sorted) / float64(n)
	}
	clipped := make([]float64, n)
	copy(clipped, sorted)
	for i := 0; i < cut; i++ {
		clipped[i] = sorted[cut]
		clipped[n-1-i] = sorted[n-1-cut]
	}
	return stat.Mean(clipped, nil)
}

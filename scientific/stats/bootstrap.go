package stats

import (
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
)

// Statistic names a summary computed on each bootstrap resample.
type Statistic string

// Supported statistics.
const (
	StatMean   Statistic = "mean"
	StatMedian Statistic = "median"
	StatStd    Statistic = "std"
)

// Bootstrap defaults.
const (
	DefaultIterations      = 10000
	DefaultConfidenceLevel = 0.95
)

// BootstrapOptions configures BootstrapStatistic. Zero values select the
// defaults.
type BootstrapOptions struct {
	// Seed makes the resampling reproducible when set.
	Seed *uint64
	// Statistic defaults to StatMean.
	Statistic Statistic
	// Iterations is the number of resamples. Defaults to DefaultIterations.
	Iterations int
	// ConfidenceLevel must lie strictly between 0 and 1. Defaults to
	// DefaultConfidenceLevel.
	ConfidenceLevel float64
}

// BootstrapResult is the outcome of BootstrapStatistic.
type BootstrapResult struct {
	PointEstimate   float64
	CILower         float64
	CIUpper         float64
	StandardError   float64
	Iterations      int
	ConfidenceLevel float64
}

// BootstrapStatistic estimates a percentile confidence interval for a
// statistic of data by resampling with replacement. NaN values are dropped
// before resampling. The standard error is the population standard deviation
// of the resampled statistics.
func BootstrapStatistic(data []float64, opts BootstrapOptions) (*BootstrapResult, error) {
	if opts.Statistic == "" {
		opts.Statistic = StatMean
	}
	fn, ok := statistics[opts.Statistic]
	if !ok {
		return nil, invalidArgument("statistic must be 'mean', 'median', or 'std', got '%s'", opts.Statistic)
	}
	if opts.Iterations < 0 {
		return nil, invalidArgument("n_iterations must be >= 1, got %d", opts.Iterations)
	}
	if opts.Iterations == 0 {
		opts.Iterations = DefaultIterations
	}
	if opts.ConfidenceLevel == 0 {
		opts.ConfidenceLevel = DefaultConfidenceLevel
	}
	if opts.ConfidenceLevel <= 0 || opts.ConfidenceLevel >= 1 {
		return nil, invalidArgument("confidence_level must be between 0 and 1, got %g", opts.ConfidenceLevel)
	}
	if len(data) == 0 {
		return nil, invalidArgument("data cannot be empty")
	}
	clean, _ := dropNaN(data)
	if len(clean) == 0 {
		return nil, invalidArgument("data contains only NaN values")
	}

	seed := uint64(time.Now().UnixNano())
	if opts.Seed != nil {
		seed = *opts.Seed
	}
	rng := rand.New(rand.NewSource(seed))

	samples := make([]float64, opts.Iterations)
	resample := make([]float64, len(clean))
	for i := range samples {
		for j := range resample {
			resample[j] = clean[rng.Intn(len(clean))]
		}
		samples[i] = fn(resample)
	}

	alpha := 1 - opts.ConfidenceLevel
	sorted := sortedCopy(samples)
	return &BootstrapResult{
		PointEstimate:   fn(clean),
		CILower:         percentileSorted(sorted, alpha/2*100),
		CIUpper:         percentileSorted(sorted, (1-alpha/2)*100),
		StandardError:   stat.PopStdDev(samples, nil),
		Iterations:      opts.Iterations,
		ConfidenceLevel: opts.ConfidenceLevel,
	}, nil
}

var statistics = map[Statistic]func([]float64) float64{
	StatMean:   func(x []float64) float64 { return stat.Mean(x, nil) },
	StatMedian: Median,
	StatStd:    PopStdDev,
}

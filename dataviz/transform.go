package dataviz

import (
	"cmp"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/zoobzio/utilz/scientific/stats"
)

// Aggregation names accepted by AggregateByGroup and PivotForHeatmap.
const (
	AggMean   = "mean"
	AggSum    = "sum"
	AggMedian = "median"
	AggMin    = "min"
	AggMax    = "max"
	AggStd    = "std"
	AggCount  = "count"
)

var aggregations = map[string]func([]float64) float64{
	AggMean:   func(x []float64) float64 { return stat.Mean(x, nil) },
	AggSum:    floats.Sum,
	AggMedian: stats.Median,
	AggMin:    floats.Min,
	AggMax:    floats.Max,
	AggStd:    stats.PopStdDev,
	AggCount:  func(x []float64) float64 { return float64(len(x)) },
}

var groupAggregations = []string{AggMean, AggSum, AggMedian, AggMin, AggMax, AggStd, AggCount}

// AggregateByGroup reduces values by group using a named aggregation: mean,
// sum, median, min, max, std (population) or count.
func AggregateByGroup[G comparable](values []float64, groups []G, agg string) (map[G]float64, error) {
	fn, ok := aggregations[agg]
	if !ok {
		return nil, invalidArgument("agg_func must be one of %v, got '%s'", groupAggregations, agg)
	}
	return AggregateByGroupFunc(values, groups, fn)
}

// AggregateByGroupFunc reduces values by group with fn.
func AggregateByGroupFunc[G comparable](values []float64, groups []G, fn func([]float64) float64) (map[G]float64, error) {
	if len(values) == 0 {
		return nil, invalidArgument("data cannot be empty")
	}
	if len(groups) == 0 {
		return nil, invalidArgument("groups cannot be empty")
	}
	if len(values) != len(groups) {
		return nil, invalidArgument("data and groups must have same length: %d != %d", len(values), len(groups))
	}
	if fn == nil {
		return nil, invalidArgument("agg_func must be string or callable")
	}
	buckets := make(map[G][]float64)
	for i, g := range groups {
		buckets[g] = append(buckets[g], values[i])
	}
	out := make(map[G]float64, len(buckets))
	for g, vs := range buckets {
		out[g] = fn(vs)
	}
	return out, nil
}

// BinData splits the range of values into bins equal-width bins and returns
// the bin index of every value along with the bins+1 edges. Constant data
// is binned over [v-0.5, v+0.5].
func BinData(values []float64, bins int) (indices []int, edges []float64, err error) {
	if len(values) == 0 {
		return nil, nil, invalidArgument("data cannot be empty")
	}
	if bins <= 0 {
		return nil, nil, invalidArgument("bins must be positive, got %d", bins)
	}
	lo, hi := floats.Min(values), floats.Max(values)
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	edges = floats.Span(make([]float64, bins+1), lo, hi)
	return digitize(values, edges), edges, nil
}

// BinDataEdges bins values against explicit, strictly increasing edges.
// Values outside the edges get index -1.
func BinDataEdges(values, edges []float64) ([]int, []float64, error) {
	if len(values) == 0 {
		return nil, nil, invalidArgument("data cannot be empty")
	}
	if len(edges) < 2 {
		return nil, nil, invalidArgument("bins must be positive, got %d", len(edges)-1)
	}
	for i := 1; i < len(edges); i++ {
		if edges[i] <= edges[i-1] {
			return nil, nil, invalidArgument("bin edges must increase monotonically")
		}
	}
	edges = slices.Clone(edges)
	return digitize(values, edges), edges, nil
}

// digitize places each value in the half-open bin [edges[i], edges[i+1]).
// The last bin also holds its right edge.
func digitize(values, edges []float64) []int {
	last := len(edges) - 2
	out := make([]int, len(values))
	for i, v := range values {
		switch {
		case v < edges[0] || v > edges[len(edges)-1] || math.IsNaN(v):
			out[i] = -1
		case v == edges[len(edges)-1]:
			out[i] = last
		default:
			out[i] = sort.SearchFloat64s(edges, v)
			if out[i] == len(edges) || edges[out[i]] != v {
				out[i]--
			}
		}
	}
	return out
}

// Moving statistics.
const (
	MovingMean   = "mean"
	MovingMedian = "median"
	MovingStd    = "std"
	MovingMin    = "min"
	MovingMax    = "max"
)

var movingStatistics = []string{MovingMean, MovingMedian, MovingStd, MovingMin, MovingMax}

// MovingStatistics computes trailing-window statistics. Each output has the
// length of values; the first window-1 entries use the shorter window that is
// available. With no statistics named, mean and std are computed.
func MovingStatistics(values []float64, window int, statistics ...string) (map[string][]float64, error) {
	if len(values) == 0 {
		return nil, invalidArgument("data cannot be empty")
	}
	if window <= 0 {
		return nil, invalidArgument("window_size must be positive, got %d", window)
	}
	if len(statistics) == 0 {
		statistics = []string{MovingMean, MovingStd}
	}
	for _, s := range statistics {
		if !slices.Contains(movingStatistics, s) {
			return nil, invalidArgument("Unknown statistic '%s'. Must be one of %v", s, movingStatistics)
		}
	}

	out := make(map[string][]float64, len(statistics))
	for _, s := range statistics {
		fn := aggregations[s]
		series := make([]float64, len(values))
		for i := range values {
			start := max(0, i-window+1)
			series[i] = fn(values[start : i+1])
		}
		out[s] = series
	}
	return out, nil
}

// Normalisation methods.
const (
	NormalizeMinMax = "minmax"
	NormalizeZScore = "zscore"
	NormalizeRobust = "robust"
)

var normalizeMethods = []string{NormalizeMinMax, NormalizeZScore, NormalizeRobust}

// NormalizeOptions configures NormalizeData.
type NormalizeOptions struct {
	// Method defaults to NormalizeMinMax.
	Method string
	// FeatureRange is the target range for minmax. The zero value selects
	// [0, 1].
	FeatureRange [2]float64
}

// NormalizeData rescales values. minmax maps onto FeatureRange, zscore
// centres on the mean in units of the population standard deviation, and
// robust centres on the median in units of the interquartile range.
// Constant data cannot be normalised by any method.
func NormalizeData(values []float64, opts NormalizeOptions) ([]float64, error) {
	if opts.Method == "" {
		opts.Method = NormalizeMinMax
	}
	if opts.FeatureRange == [2]float64{} {
		opts.FeatureRange = [2]float64{0, 1}
	}
	if len(values) == 0 {
		return nil, invalidArgument("data cannot be empty")
	}
	if !slices.Contains(normalizeMethods, opts.Method) {
		return nil, invalidArgument("method must be one of %v, got '%s'", normalizeMethods, opts.Method)
	}
	lo, hi := opts.FeatureRange[0], opts.FeatureRange[1]
	if lo >= hi {
		return nil, invalidArgument("feature_range min must be < max, got (%g, %g)", lo, hi)
	}

	var center, scale float64
	switch opts.Method {
	case NormalizeMinMax:
		center, scale = floats.Min(values), floats.Max(values)-floats.Min(values)
	case NormalizeZScore:
		center, scale = stat.PopMeanStdDev(values, nil)
	case NormalizeRobust:
		center, scale = stats.Median(values), stats.Percentile(values, 75)-stats.Percentile(values, 25)
	}
	if scale == 0 {
		return nil, invalidArgument("Cannot normalize constant data with %s method", opts.Method)
	}

	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - center) / scale
		if opts.Method == NormalizeMinMax {
			out[i] = out[i]*(hi-lo) + lo
		}
	}
	return out, nil
}

// Heatmap is a pivoted matrix with its sorted row and column labels. Cells
// with no data are NaN.
type Heatmap[R, C cmp.Ordered] struct {
	Matrix *mat.Dense
	Rows   []R
	Cols   []C
}

var pivotAggregations = []string{AggMean, AggSum, AggMedian, AggMin, AggMax, AggCount}

// PivotForHeatmap groups values by (row, col) label pairs and reduces each
// cell with agg: mean, sum, median, min, max or count.
func PivotForHeatmap[R, C cmp.Ordered](values []float64, rows []R, cols []C, agg string) (*Heatmap[R, C], error) {
	if len(values) == 0 {
		return nil, invalidArgument("data cannot be empty")
	}
	if len(rows) == 0 {
		return nil, invalidArgument("row_labels cannot be empty")
	}
	if len(cols) == 0 {
		return nil, invalidArgument("col_labels cannot be empty")
	}
	if len(values) != len(rows) || len(values) != len(cols) {
		return nil, invalidArgument("data, row_labels, and col_labels must have same length: %d, %d, %d",
			len(values), len(rows), len(cols))
	}
	if !slices.Contains(pivotAggregations, agg) {
		return nil, invalidArgument("agg_func must be one of %v, got '%s'", pivotAggregations, agg)
	}

	rowLabels := sortedUnique(rows)
	colLabels := sortedUnique(cols)
	type cell struct {
		r R
		c C
	}
	cells := make(map[cell][]float64)
	for i, v := range values {
		k := cell{rows[i], cols[i]}
		cells[k] = append(cells[k], v)
	}

	m := mat.NewDense(len(rowLabels), len(colLabels), nil)
	for i := range rowLabels {
		for j := range colLabels {
			m.Set(i, j, math.NaN())
		}
	}
	fn := aggregations[agg]
	for k, vs := range cells {
		i, _ := slices.BinarySearch(rowLabels, k.r)
		j, _ := slices.BinarySearch(colLabels, k.c)
		m.Set(i, j, fn(vs))
	}
	return &Heatmap[R, C]{Matrix: m, Rows: rowLabels, Cols: colLabels}, nil
}

func sortedUnique[T cmp.Ordered](in []T) []T {
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}

// Smoothing methods.
const (
	SmoothMovingAverage = "moving_average"
	SmoothExponential   = "exponential"
	SmoothMedian        = "median"
	SmoothSavGol        = "savgol"
)

var smoothMethods = []string{SmoothMovingAverage, SmoothExponential, SmoothMedian, SmoothSavGol}

// SmoothOptions configures SmoothTimeseries.
type SmoothOptions struct {
	// Logger receives a debug line when the window is shrunk to fit.
	Logger *slog.Logger
	// Method defaults to SmoothMovingAverage.
	Method string
	// Window defaults to 5.
	Window int
	// PolynomialOrder is the Savitzky-Golay fit order. Defaults to 2.
	PolynomialOrder int
}

// SmoothTimeseries smooths values and returns a series of the same length.
//
// moving_average and median use a centred window that shrinks at the edges.
// exponential uses alpha = 2/(window+1). savgol fits a local polynomial of
// PolynomialOrder over an odd window, and fits the first and last windows
// as a whole to fill the edges.
func SmoothTimeseries(values []float64, opts SmoothOptions) ([]float64, error) {
	if opts.Method == "" {
		opts.Method = SmoothMovingAverage
	}
	if opts.Window == 0 {
		opts.Window = 5
	}
	if opts.PolynomialOrder == 0 {
		opts.PolynomialOrder = 2
	}
	if len(values) == 0 {
		return nil, invalidArgument("data cannot be empty")
	}
	if opts.Window < 0 {
		return nil, invalidArgument("window_size must be positive, got %d", opts.Window)
	}
	if !slices.Contains(smoothMethods, opts.Method) {
		return nil, invalidArgument("Unknown smoothing method '%s'. Must be one of %v", opts.Method, smoothMethods)
	}

	switch opts.Method {
	case SmoothExponential:
		alpha := 2 / float64(opts.Window+1)
		out := make([]float64, len(values))
		out[0] = values[0]
		for i := 1; i < len(values); i++ {
			out[i] = alpha*values[i] + (1-alpha)*out[i-1]
		}
		return out, nil
	case SmoothMedian:
		return centred(values, opts.Window, stats.Median), nil
	case SmoothSavGol:
		return savitzkyGolay(values, opts)
	default:
		return centred(values, opts.Window, aggregations[AggMean]), nil
	}
}

func centred(values []float64, window int, fn func([]float64) float64) []float64 {
	half := window / 2
	out := make([]float64, len(values))
	for i := range values {
		lo := max(0, i-half)
		hi := min(len(values), i+window-half)
		out[i] = fn(values[lo:hi])
	}
	return out
}

func savitzkyGolay(values []float64, opts SmoothOptions) ([]float64, error) {
	window := opts.Window
	if window%2 == 0 {
		return nil, invalidArgument("window_size must be odd for savgol, got %d", window)
	}
	if window > len(values) {
		window = len(values)
		if window%2 == 0 {
			window--
		}
		if opts.Logger != nil {
			opts.Logger.Debug(fmt.Sprintf("window_size reduced to %d to fit %d values", window, len(values)))
		}
	}
	order := opts.PolynomialOrder
	if order >= window {
		return nil, invalidArgument("polynomial_order (%d) must be less than window_size (%d)", order, window)
	}

	half := window / 2
	design := mat.NewDense(window, order+1, nil)
	for i := 0; i < window; i++ {
		for j := 0; j <= order; j++ {
			design.Set(i, j, math.Pow(float64(i-half), float64(j)))
		}
	}
	// fit maps a window of samples to polynomial coefficients.
	var normal, fit mat.Dense
	normal.Mul(design.T(), design)
	if err := fit.Solve(&normal, design.T()); err != nil {
		return nil, fmt.Errorf("savgol fit: %w", err)
	}

	out := make([]float64, len(values))
	weights := fit.RawRowView(0)
	for i := half; i < len(values)-half; i++ {
		out[i] = floats.Dot(weights, values[i-half:i+half+1])
	}

	edge := func(start int, positions []int) {
		coef := mat.NewVecDense(order+1, nil)
		coef.MulVec(&fit, mat.NewVecDense(window, slices.Clone(values[start:start+window])))
		for _, p := range positions {
			x := float64(p - start - half)
			var v float64
			for j := order; j >= 0; j-- {
				v = v*x + coef.AtVec(j)
			}
			out[p] = v
		}
	}
	var head, tail []int
	for i := 0; i < half; i++ {
		head = append(head, i)
		tail = append(tail, len(values)-half+i)
	}
	edge(0, head)
	edge(len(values)-window, tail)
	return out, nil
}

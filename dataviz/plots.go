package dataviz

import (
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Figure is a plot together with the size, in inches, it is rendered at.
type Figure struct {
	Plot   *plot.Plot
	Width  float64
	Height float64
}

// ChartOptions holds the settings shared by every chart.
type ChartOptions struct {
	Title  string
	XLabel string
	YLabel string
	// FigSize is width and height in inches. The zero value uses
	// FigureSize().
	FigSize    [2]float64
	HideGrid   bool
	HideLegend bool
}

func newFigure(opts ChartOptions) (*Figure, ChartTheme, error) {
	w, h := opts.FigSize[0], opts.FigSize[1]
	if opts.FigSize == [2]float64{} {
		w, h = FigureSize()
	}
	if w <= 0 || h <= 0 {
		return nil, ChartTheme{}, invalidArgument("figsize dimensions must be positive, got (%g, %g)", w, h)
	}
	theme := CurrentTheme()
	p := plot.New()
	style(p, theme)
	p.Title.Text = opts.Title
	p.X.Label.Text = opts.XLabel
	p.Y.Label.Text = opts.YLabel
	p.Legend.Top = true
	fig := &Figure{Plot: p, Width: w, Height: h}
	setCurrent(fig)
	return fig, theme, nil
}

// seriesColors resolves explicit colours or falls back to the theme cycle.
func seriesColors(theme ChartTheme, explicit []string, n int) ([]color.Color, error) {
	out := make([]color.Color, n)
	for i := range out {
		if explicit == nil {
			out[i] = cycleColor(theme, i)
			continue
		}
		c, err := parseColor(explicit[i])
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// BarOptions configures CreateBarPlot.
type BarOptions struct {
	ChartOptions
	// Labels names each series in the legend.
	Labels []string
	// Colors gives one colour per series.
	Colors     []string
	Horizontal bool
	Stacked    bool
}

// CreateBarPlot draws one bar per category for every series. Series are
// drawn side by side, or on top of each other when Stacked is set.
func CreateBarPlot(categories []string, series [][]float64, opts BarOptions) (*Figure, error) {
	if len(categories) == 0 {
		return nil, invalidArgument("categories cannot be empty")
	}
	if len(series) == 0 {
		series = [][]float64{nil}
	}
	for i, s := range series {
		if len(s) != len(categories) {
			return nil, invalidArgument("values series %d length (%d) must match categories length (%d)",
				i, len(s), len(categories))
		}
	}
	if opts.Labels != nil && len(opts.Labels) != len(series) {
		return nil, invalidArgument("Number of labels (%d) must match number of series (%d)", len(opts.Labels), len(series))
	}
	if opts.Colors != nil && len(opts.Colors) != len(series) {
		return nil, invalidArgument("Number of colors (%d) must match number of series (%d)", len(opts.Colors), len(series))
	}

	fig, theme, err := newFigure(opts.ChartOptions)
	if err != nil {
		return nil, err
	}
	colors, err := seriesColors(theme, opts.Colors, len(series))
	if err != nil {
		return nil, err
	}
	p := fig.Plot

	if !opts.HideGrid {
		g := newGrid(theme, 0.3)
		g.Vertical.Dashes = gridDashes[GridDashed]
		g.Horizontal.Dashes = gridDashes[GridDashed]
		if opts.Horizontal {
			g.Horizontal.Color = nil
		} else {
			g.Vertical.Color = nil
		}
		p.Add(g)
	}

	groupWidth := vg.Points(40)
	width := groupWidth / vg.Length(len(series))
	if opts.Stacked {
		width = groupWidth
	}
	var below *plotter.BarChart
	for i, s := range series {
		bars, err := plotter.NewBarChart(plotter.Values(s), width)
		if err != nil {
			return nil, err
		}
		bars.Color = colors[i]
		bars.LineStyle.Width = 0
		bars.Horizontal = opts.Horizontal
		if opts.Stacked {
			if below != nil {
				bars.StackOn(below)
			}
			below = bars
		} else {
			bars.Offset = vg.Length(float64(i)-float64(len(series))/2+0.5) * width
		}
		p.Add(bars)
		if opts.Labels != nil && !opts.HideLegend {
			p.Legend.Add(opts.Labels[i], bars)
		}
	}

	if opts.Horizontal {
		p.NominalY(categories...)
	} else {
		p.NominalX(categories...)
	}
	return fig, nil
}

// HistogramOptions configures CreateHistogram.
type HistogramOptions struct {
	ChartOptions
	Color string
	// Bins defaults to 30.
	Bins int
	// Alpha is the bar opacity in (0, 1]. Defaults to 0.7.
	Alpha float64
	// Density scales the bars so their total area is 1.
	Density bool
}

// CreateHistogram draws the distribution of values.
func CreateHistogram(values []float64, opts HistogramOptions) (*Figure, error) {
	if len(values) == 0 {
		return nil, invalidArgument("data cannot be empty")
	}
	if opts.Bins < 0 {
		return nil, invalidArgument("bins must be positive, got %d", opts.Bins)
	}
	if opts.Bins == 0 {
		opts.Bins = 30
	}
	if opts.Alpha < 0 || opts.Alpha > 1 {
		return nil, invalidArgument("alpha must be between 0 and 1, got %g", opts.Alpha)
	}
	if opts.Alpha == 0 {
		opts.Alpha = 0.7
	}

	fig, theme, err := newFigure(opts.ChartOptions)
	if err != nil {
		return nil, err
	}
	fill, _ := parseColor(theme.ColorCycle[0])
	if opts.Color != "" {
		if fill, err = parseColor(opts.Color); err != nil {
			return nil, err
		}
	}

	h, err := plotter.NewHist(plotter.Values(values), opts.Bins)
	if err != nil {
		return nil, err
	}
	if opts.Density {
		h.Normalize(1)
	}
	h.FillColor = withAlpha(fill, opts.Alpha)
	h.LineStyle.Color = color.Black
	h.LineStyle.Width = vg.Points(0.5)

	if !opts.HideGrid {
		g := newGrid(theme, 0.3)
		g.Vertical.Color = nil
		fig.Plot.Add(g)
	}
	fig.Plot.Add(h)
	return fig, nil
}

// LineOptions configures CreateLinePlot.
type LineOptions struct {
	ChartOptions
	Labels []string
	Colors []string
	// Markers gives a marker per series: "o", "s", "^", "x", "+" or "D".
	// An empty string draws no marker for that series.
	Markers []string
}

// CreateLinePlot draws each y series against x.
func CreateLinePlot(x []float64, ys [][]float64, opts LineOptions) (*Figure, error) {
	if len(x) == 0 {
		return nil, invalidArgument("x_data cannot be empty")
	}
	if len(ys) == 0 {
		ys = [][]float64{nil}
	}
	for i, y := range ys {
		if len(y) != len(x) {
			return nil, invalidArgument("y_data series %d length (%d) must match x_data length (%d)", i, len(y), len(x))
		}
	}
	if opts.Labels != nil && len(opts.Labels) != len(ys) {
		return nil, invalidArgument("Number of labels (%d) must match number of series (%d)", len(opts.Labels), len(ys))
	}
	if opts.Colors != nil && len(opts.Colors) != len(ys) {
		return nil, invalidArgument("Number of colors (%d) must match number of series (%d)", len(opts.Colors), len(ys))
	}
	if opts.Markers != nil && len(opts.Markers) != len(ys) && len(opts.Markers) != 1 {
		return nil, invalidArgument("Number of markers (%d) must match number of series (%d)", len(opts.Markers), len(ys))
	}

	fig, theme, err := newFigure(opts.ChartOptions)
	if err != nil {
		return nil, err
	}
	colors, err := seriesColors(theme, opts.Colors, len(ys))
	if err != nil {
		return nil, err
	}
	if !opts.HideGrid {
		fig.Plot.Add(newGrid(theme, theme.GridAlpha))
	}

	for i, y := range ys {
		pts := make(plotter.XYs, len(x))
		for j := range x {
			pts[j].X, pts[j].Y = x[j], y[j]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.LineStyle.Color = colors[i]
		line.LineStyle.Width = vg.Points(theme.LineWidth)
		thumbs := []plot.Thumbnailer{line}
		fig.Plot.Add(line)

		if marker := markerFor(opts.Markers, i); marker != "" {
			shape, err := glyph(marker)
			if err != nil {
				return nil, err
			}
			points, err := plotter.NewScatter(pts)
			if err != nil {
				return nil, err
			}
			points.GlyphStyle = draw.GlyphStyle{Color: colors[i], Radius: vg.Points(3), Shape: shape}
			fig.Plot.Add(points)
			thumbs = append(thumbs, points)
		}
		if opts.Labels != nil && !opts.HideLegend {
			fig.Plot.Legend.Add(opts.Labels[i], thumbs...)
		}
	}
	return fig, nil
}

func markerFor(markers []string, i int) string {
	switch len(markers) {
	case 0:
		return ""
	case 1:
		return markers[0]
	default:
		return markers[i]
	}
}

func glyph(marker string) (draw.GlyphDrawer, error) {
	switch marker {
	case "o", ".":
		return draw.CircleGlyph{}, nil
	case "s":
		return draw.BoxGlyph{}, nil
	case "^":
		return draw.PyramidGlyph{}, nil
	case "x":
		return draw.CrossGlyph{}, nil
	case "+":
		return draw.PlusGlyph{}, nil
	case "D":
		return draw.SquareGlyph{}, nil
	default:
		return nil, invalidArgument("Unknown marker '%s'", marker)
	}
}

// ScatterOptions configures CreateScatterPlot.
type ScatterOptions struct {
	ChartOptions
	Label string
	// Colors holds either one colour for every point or one per point.
	Colors []string
	// Sizes holds marker areas in square points, either one for every
	// point or one per point. Defaults to 36.
	Sizes []float64
	// Marker defaults to "o".
	Marker string
	// Alpha is the marker opacity in (0, 1]. Defaults to 0.7.
	Alpha float64
}

// CreateScatterPlot draws y against x as individual markers.
func CreateScatterPlot(x, y []float64, opts ScatterOptions) (*Figure, error) {
	if len(x) == 0 {
		return nil, invalidArgument("x_data cannot be empty")
	}
	if len(x) != len(y) {
		return nil, invalidArgument("x_data length (%d) must match y_data length (%d)", len(x), len(y))
	}
	if opts.Alpha < 0 || opts.Alpha > 1 {
		return nil, invalidArgument("alpha must be between 0 and 1, got %g", opts.Alpha)
	}
	if opts.Alpha == 0 {
		opts.Alpha = 0.7
	}
	if n := len(opts.Colors); n > 1 && n != len(x) {
		return nil, invalidArgument("colors must have length 1 or %d, got %d", len(x), n)
	}
	if n := len(opts.Sizes); n > 1 && n != len(x) {
		return nil, invalidArgument("sizes must have length 1 or %d, got %d", len(x), n)
	}
	for _, s := range opts.Sizes {
		if s <= 0 {
			return nil, invalidArgument("sizes must be positive, got %g", s)
		}
	}
	if opts.Marker == "" {
		opts.Marker = "o"
	}
	shape, err := glyph(opts.Marker)
	if err != nil {
		return nil, err
	}

	fig, theme, err := newFigure(opts.ChartOptions)
	if err != nil {
		return nil, err
	}
	colors := make([]color.Color, len(opts.Colors))
	for i, c := range opts.Colors {
		rgb, err := parseColor(c)
		if err != nil {
			return nil, err
		}
		colors[i] = withAlpha(rgb, opts.Alpha)
	}
	base, _ := parseColor(theme.ColorCycle[0])
	fallback := withAlpha(base, opts.Alpha)

	pts := make(plotter.XYs, len(x))
	for i := range x {
		pts[i].X, pts[i].Y = x[i], y[i]
	}
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	scatter.GlyphStyle = draw.GlyphStyle{Color: fallback, Radius: markerRadius(36), Shape: shape}
	scatter.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		style := scatter.GlyphStyle
		switch len(colors) {
		case 0:
		case 1:
			style.Color = colors[0]
		default:
			style.Color = colors[i]
		}
		switch len(opts.Sizes) {
		case 0:
		case 1:
			style.Radius = markerRadius(opts.Sizes[0])
		default:
			style.Radius = markerRadius(opts.Sizes[i])
		}
		return style
	}

	if !opts.HideGrid {
		fig.Plot.Add(newGrid(theme, theme.GridAlpha))
	}
	fig.Plot.Add(scatter)
	if opts.Label != "" && !opts.HideLegend {
		fig.Plot.Legend.Add(opts.Label, scatter)
	}
	return fig, nil
}

// markerRadius converts a marker area in square points to a radius.
func markerRadius(area float64) vg.Length {
	return vg.Points(math.Sqrt(area) / 2)
}

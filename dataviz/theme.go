package dataviz

import (
	"image/color"
	"sort"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Font families accepted by ChartTheme.FontFamily.
const (
	FontSans  = "sans-serif"
	FontSerif = "serif"
	FontMono  = "monospace"
)

var fontVariants = map[string]font.Variant{
	FontSans:  "Sans",
	FontSerif: "Serif",
	FontMono:  "Mono",
}

// Default figure size in inches.
const (
	DefaultFigureWidth  = 10.0
	DefaultFigureHeight = 6.0
)

// ChartTheme is the look applied to every new figure.
type ChartTheme struct {
	Name            string
	BackgroundColor string
	GridColor       string
	TextColor       string
	FontFamily      string
	ColorCycle      []string
	GridAlpha       float64
	LineWidth       float64
	TitleFontSize   int
	LabelFontSize   int
	TickFontSize    int
	LegendFontSize  int
}

// NewChartTheme returns a theme with the given name and colours and default
// values for everything else.
func NewChartTheme(name, background, grid string) ChartTheme {
	return ChartTheme{
		Name:            name,
		BackgroundColor: background,
		GridColor:       grid,
		TextColor:       "black",
		FontFamily:      FontSans,
		ColorCycle:      append([]string(nil), tab10...),
		GridAlpha:       0.3,
		LineWidth:       2,
		TitleFontSize:   14,
		LabelFontSize:   12,
		TickFontSize:    10,
		LegendFontSize:  10,
	}
}

// Validate reports the first out-of-range field.
func (t ChartTheme) Validate() error {
	sizes := []struct {
		name  string
		value int
	}{
		{"title_fontsize", t.TitleFontSize},
		{"label_fontsize", t.LabelFontSize},
		{"tick_fontsize", t.TickFontSize},
		{"legend_fontsize", t.LegendFontSize},
	}
	for _, s := range sizes {
		if s.value <= 0 {
			return invalidArgument("%s must be positive, got %d", s.name, s.value)
		}
	}
	if t.GridAlpha < 0 || t.GridAlpha > 1 {
		return invalidArgument("grid_alpha must be between 0 and 1, got %g", t.GridAlpha)
	}
	if t.LineWidth <= 0 {
		return invalidArgument("line_width must be positive, got %g", t.LineWidth)
	}
	if len(t.ColorCycle) == 0 {
		return invalidArgument("color_cycle cannot be empty")
	}
	if _, ok := fontVariants[t.FontFamily]; !ok {
		return invalidArgument("font_family must be one of [%s %s %s], got '%s'", FontSans, FontSerif, FontMono, t.FontFamily)
	}
	for _, c := range append([]string{t.BackgroundColor, t.GridColor, t.TextColor}, t.ColorCycle...) {
		if _, err := parseColor(c); err != nil {
			return err
		}
	}
	return nil
}

var presets = map[string]func() ChartTheme{
	"default": func() ChartTheme {
		return NewChartTheme("default", "white", "#CCCCCC")
	},
	"dark": func() ChartTheme {
		t := NewChartTheme("dark", "#1E1E1E", "#444444")
		t.TextColor = "#E0E0E0"
		t.ColorCycle = []string{"#4FC3F7", "#FFB74D", "#81C784", "#E57373", "#BA68C8", "#A1887F", "#F06292", "#90A4AE"}
		return t
	},
	"minimal": func() ChartTheme {
		t := NewChartTheme("minimal", "white", "#EEEEEE")
		t.GridAlpha = 0.5
		t.LineWidth = 1.5
		t.ColorCycle = []string{"#333333", "#777777", "#AAAAAA", "#1f77b4", "#d62728"}
		return t
	},
	"presentation": func() ChartTheme {
		t := NewChartTheme("presentation", "white", "#DDDDDD")
		t.TitleFontSize, t.LabelFontSize, t.TickFontSize, t.LegendFontSize = 18, 14, 12, 12
		t.LineWidth = 3
		return t
	},
	"publication": func() ChartTheme {
		t := NewChartTheme("publication", "white", "#BBBBBB")
		t.FontFamily = FontSerif
		t.TitleFontSize, t.LabelFontSize, t.TickFontSize, t.LegendFontSize = 12, 10, 8, 8
		t.LineWidth = 1
		t.ColorCycle = append([]string(nil), okabeIto...)
		return t
	},
}

// PresetThemeNames lists the names PresetTheme accepts, sorted.
func PresetThemeNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PresetTheme returns a copy of a built-in theme.
func PresetTheme(name string) (ChartTheme, error) {
	mk, ok := presets[name]
	if !ok {
		return ChartTheme{}, invalidArgument("theme_name must be one of %v, got '%s'", PresetThemeNames(), name)
	}
	return mk(), nil
}

// MustPresetTheme is like PresetTheme but panics on an unknown name.
func MustPresetTheme(name string) ChartTheme {
	t, err := PresetTheme(name)
	if err != nil {
		panic(err)
	}
	return t
}

var settings = struct {
	theme  ChartTheme
	width  float64
	height float64
	mu     sync.RWMutex
}{
	theme:  presets["default"](),
	width:  DefaultFigureWidth,
	height: DefaultFigureHeight,
}

// ApplyTheme validates theme and makes it the theme of every figure created
// afterwards.
func ApplyTheme(theme ChartTheme) error {
	if err := theme.Validate(); err != nil {
		return err
	}
	theme.ColorCycle = append([]string(nil), theme.ColorCycle...)
	settings.mu.Lock()
	settings.theme = theme
	settings.mu.Unlock()
	return nil
}

// CurrentTheme returns a copy of the active theme.
func CurrentTheme() ChartTheme {
	settings.mu.RLock()
	defer settings.mu.RUnlock()
	t := settings.theme
	t.ColorCycle = append([]string(nil), t.ColorCycle...)
	return t
}

// ResetTheme restores the default theme, figure size and export settings.
func ResetTheme() {
	settings.mu.Lock()
	settings.theme = presets["default"]()
	settings.width = DefaultFigureWidth
	settings.height = DefaultFigureHeight
	settings.mu.Unlock()
	resetExportDefaults()
}

// SetFigureSize sets the size, in inches, of figures created afterwards.
func SetFigureSize(width, height float64) error {
	if width <= 0 {
		return invalidArgument("width must be positive, got %g", width)
	}
	if height <= 0 {
		return invalidArgument("height must be positive, got %g", height)
	}
	settings.mu.Lock()
	settings.width, settings.height = width, height
	settings.mu.Unlock()
	return nil
}

// FigureSize returns the current default figure size in inches.
func FigureSize() (width, height float64) {
	settings.mu.RLock()
	defer settings.mu.RUnlock()
	return settings.width, settings.height
}

// StylePlot applies theme to an existing plot. Series already added keep
// their colours.
func StylePlot(p *plot.Plot, theme ChartTheme) error {
	if err := theme.Validate(); err != nil {
		return err
	}
	style(p, theme)
	return nil
}

// style assumes theme is valid.
func style(p *plot.Plot, theme ChartTheme) {
	bg, _ := parseColor(theme.BackgroundColor)
	fg, _ := parseColor(theme.TextColor)
	variant := fontVariants[theme.FontFamily]

	p.BackgroundColor = bg
	setFont := func(f *font.Font, size int) {
		f.Typeface = "Liberation"
		f.Variant = variant
		f.Size = vg.Points(float64(size))
	}

	setFont(&p.Title.TextStyle.Font, theme.TitleFontSize)
	p.Title.TextStyle.Color = fg
	setFont(&p.Legend.TextStyle.Font, theme.LegendFontSize)
	p.Legend.TextStyle.Color = fg
	for _, axis := range []*plot.Axis{&p.X, &p.Y} {
		setFont(&axis.Label.TextStyle.Font, theme.LabelFontSize)
		axis.Label.TextStyle.Color = fg
		setFont(&axis.Tick.Label.Font, theme.TickFontSize)
		axis.Tick.Label.Color = fg
		axis.LineStyle.Color = fg
		axis.Tick.LineStyle.Color = fg
	}
}

// newGrid returns grid lines in the theme's grid colour.
func newGrid(theme ChartTheme, alpha float64) *plotter.Grid {
	c, _ := parseColor(theme.GridColor)
	g := plotter.NewGrid()
	g.Vertical.Color = withAlpha(c, alpha)
	g.Horizontal.Color = withAlpha(c, alpha)
	return g
}

// cycleColor returns the i-th colour of the theme's cycle.
func cycleColor(theme ChartTheme, i int) color.Color {
	c, _ := parseColor(theme.ColorCycle[i%len(theme.ColorCycle)])
	return c
}

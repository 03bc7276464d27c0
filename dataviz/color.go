package dataviz

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/brewer"
	"gonum.org/v1/plot/palette/moreland"
)

// PaletteType selects the scheme used by GeneratePalette.
type PaletteType string

// Palette schemes.
const (
	PaletteQualitative PaletteType = "qualitative"
	PaletteSequential  PaletteType = "sequential"
	PaletteDiverging   PaletteType = "diverging"
	PaletteRainbow     PaletteType = "rainbow"
)

var paletteTypes = []PaletteType{PaletteSequential, PaletteDiverging, PaletteQualitative, PaletteRainbow}

// tab10 is the default categorical cycle.
var tab10 = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

var tab20 = []string{
	"#1f77b4", "#aec7e8", "#ff7f0e", "#ffbb78", "#2ca02c",
	"#98df8a", "#d62728", "#ff9896", "#9467bd", "#c5b0d5",
	"#8c564b", "#c49c94", "#e377c2", "#f7b6d2", "#7f7f7f",
	"#c7c7c7", "#bcbd22", "#dbdb8d", "#17becf", "#9edae5",
}

// okabeIto is the Okabe-Ito colour set, distinguishable under the common
// forms of colour blindness.
var okabeIto = []string{
	"#E69F00", "#56B4E9", "#009E73", "#F0E442",
	"#0072B2", "#D55E00", "#CC79A7", "#000000",
}

// continuous colormaps accepted by PaletteOptions.Colormap in addition to
// the ColorBrewer names.
var colormaps = map[string]func() palette.ColorMap{
	"smooth_blue_red":      func() palette.ColorMap { return moreland.SmoothBlueRed() },
	"smooth_purple_orange": func() palette.ColorMap { return moreland.SmoothPurpleOrange() },
	"smooth_green_purple":  func() palette.ColorMap { return moreland.SmoothGreenPurple() },
	"smooth_blue_tan":      func() palette.ColorMap { return moreland.SmoothBlueTan() },
	"smooth_green_red":     func() palette.ColorMap { return moreland.SmoothGreenRed() },
	"black_body":           moreland.BlackBody,
	"extended_black_body":  moreland.ExtendedBlackBody,
	"kindlmann":            moreland.Kindlmann,
	"extended_kindlmann":   moreland.ExtendedKindlmann,
}

// HexToRGB converts "#RRGGBB" or "RRGGBB" to its channel values.
func HexToRGB(hex string) (r, g, b int, err error) {
	digits := strings.TrimPrefix(hex, "#")
	if len(digits) != 6 {
		return 0, 0, 0, invalidArgument("hex_color must be 6 characters (excluding #), got %d", len(digits))
	}
	v, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return 0, 0, 0, invalidArgument("Invalid hex color code: %s", hex)
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff), nil
}

// RGBToHex converts channel values in [0, 255] to "#RRGGBB".
func RGBToHex(r, g, b int) (string, error) {
	for _, ch := range []struct {
		name  string
		value int
	}{{"r", r}, {"g", g}, {"b", b}} {
		if ch.value < 0 || ch.value > 255 {
			return "", invalidArgument("%s must be in range [0, 255], got %d", ch.name, ch.value)
		}
	}
	return fmt.Sprintf("#%02X%02X%02X", r, g, b), nil
}

// AdjustBrightness scales every channel of c by factor and clamps the result
// to [0, 255]. A factor above 1 lightens, below 1 darkens.
func AdjustBrightness(c string, factor float64) (string, error) {
	if factor <= 0 {
		return "", invalidArgument("factor must be positive, got %g", factor)
	}
	rgb, err := parseColor(c)
	if err != nil {
		return "", err
	}
	scale := func(v uint8) float64 {
		return math.Min(1, float64(v)/255*factor)
	}
	return floatHex(scale(rgb.R), scale(rgb.G), scale(rgb.B)), nil
}

// CreateGradient returns steps colours interpolated linearly in RGB from
// start to end, both included.
func CreateGradient(start, end string, steps int) ([]string, error) {
	if steps <= 0 {
		return nil, invalidArgument("n_steps must be positive, got %d", steps)
	}
	from, err := parseColor(start)
	if err != nil {
		return nil, err
	}
	to, err := parseColor(end)
	if err != nil {
		return nil, err
	}
	return interpolate(from, to, steps), nil
}

// PaletteOptions configures GeneratePalette.
type PaletteOptions struct {
	// Type defaults to PaletteQualitative.
	Type PaletteType
	// Start and End bound sequential and diverging palettes.
	Start, End string
	// Colormap, when set, samples the named map instead of Type. Either a
	// ColorBrewer palette name such as "Blues" or "RdBu", or one of the
	// continuous maps such as "smooth_blue_red" or "kindlmann".
	Colormap string
}

// GeneratePalette returns n colours following opts.
func GeneratePalette(n int, opts PaletteOptions) ([]string, error) {
	if n <= 0 {
		return nil, invalidArgument("n_colors must be positive, got %d", n)
	}
	if opts.Type == "" {
		opts.Type = PaletteQualitative
	}
	if !validPaletteType(opts.Type) {
		return nil, invalidArgument("palette_type must be one of %v, got '%s'", paletteTypes, opts.Type)
	}
	if opts.Colormap != "" {
		return sampleColormap(opts.Colormap, n)
	}

	switch opts.Type {
	case PaletteSequential:
		from, to, err := endpoints(opts, "#FFFFFF", "#0000FF")
		if err != nil {
			return nil, err
		}
		return interpolate(from, to, n), nil

	case PaletteDiverging:
		from, to, err := endpoints(opts, "#0000FF", "#FF0000")
		if err != nil {
			return nil, err
		}
		mid := color.RGBA{R: 255, G: 255, B: 255, A: 255}
		colors := make([]string, n)
		for i := range colors {
			t := position(i, n)
			if t < 0.5 {
				colors[i] = lerpHex(from, mid, t*2)
			} else {
				colors[i] = lerpHex(mid, to, (t-0.5)*2)
			}
		}
		return colors, nil

	case PaletteRainbow:
		return hues(n, 0.8, 0.9), nil

	default:
		if n <= len(tab10) {
			return append([]string(nil), tab10[:n]...), nil
		}
		return append(append([]string(nil), tab10...), hues(n-len(tab10), 0.7, 0.9)...), nil
	}
}

// CategoricalColors returns n distinct colours for nominal data.
func CategoricalColors(n int) ([]string, error) {
	if n <= 0 {
		return nil, invalidArgument("n_colors must be positive, got %d", n)
	}
	switch {
	case n <= len(tab10):
		return append([]string(nil), tab10[:n]...), nil
	case n <= len(tab20):
		return append([]string(nil), tab20[:n]...), nil
	default:
		return hues(n, 0.65, 0.85), nil
	}
}

// CategoryColorMap assigns each distinct category a colour, in order of first
// appearance, so the same input always yields the same mapping.
func CategoryColorMap(categories []string) (map[string]string, error) {
	if len(categories) == 0 {
		return nil, invalidArgument("categories cannot be empty")
	}
	var distinct []string
	seen := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		distinct = append(distinct, c)
	}
	colors, err := CategoricalColors(len(distinct))
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(distinct))
	for i, c := range distinct {
		out[c] = colors[i]
	}
	return out, nil
}

// ColorblindSafePalette returns n colours from the Okabe-Ito set, repeating
// the set when more than eight are requested.
func ColorblindSafePalette(n int) ([]string, error) {
	if n <= 0 {
		return nil, invalidArgument("n_colors must be positive, got %d", n)
	}
	colors := make([]string, n)
	for i := range colors {
		colors[i] = okabeIto[i%len(okabeIto)]
	}
	return colors, nil
}

func validPaletteType(t PaletteType) bool {
	for _, v := range paletteTypes {
		if v == t {
			return true
		}
	}
	return false
}

func endpoints(opts PaletteOptions, defStart, defEnd string) (color.RGBA, color.RGBA, error) {
	start, end := opts.Start, opts.End
	if start == "" {
		start = defStart
	}
	if end == "" {
		end = defEnd
	}
	from, err := parseColor(start)
	if err != nil {
		return from, from, err
	}
	to, err := parseColor(end)
	return from, to, err
}

func sampleColormap(name string, n int) ([]string, error) {
	if mk, ok := colormaps[name]; ok {
		cmap := mk()
		cmap.SetMin(0)
		cmap.SetMax(1)
		colors := make([]string, n)
		for i := range colors {
			c, err := cmap.At(position(i, n))
			if err != nil {
				return nil, invalidArgument("Invalid colormap '%s': %v", name, err)
			}
			colors[i] = colorHex(c)
		}
		return colors, nil
	}
	p, err := brewer.GetPalette(brewer.TypeAny, name, n)
	if err != nil {
		return nil, invalidArgument("Invalid colormap '%s': %v", name, err)
	}
	colors := make([]string, 0, n)
	for _, c := range p.Colors() {
		colors = append(colors, colorHex(c))
	}
	return colors, nil
}

// hues spreads n colours evenly around the HSV hue circle.
func hues(n int, sat, val float64) []string {
	colors := make([]string, n)
	for i := range colors {
		c := palette.HSVA{H: float64(i) / float64(n), S: sat, V: val, A: 1}
		colors[i] = colorHex(c)
	}
	return colors
}

func interpolate(from, to color.RGBA, n int) []string {
	colors := make([]string, n)
	for i := range colors {
		colors[i] = lerpHex(from, to, position(i, n))
	}
	return colors
}

// position is i's fraction of the way along n evenly spaced steps.
func position(i, n int) float64 {
	if n <= 1 {
		return 0
	}
	return float64(i) / float64(n-1)
}

func lerpHex(a, b color.RGBA, t float64) string {
	lerp := func(x, y uint8) float64 {
		fx, fy := float64(x)/255, float64(y)/255
		return fx + t*(fy-fx)
	}
	return floatHex(lerp(a.R, b.R), lerp(a.G, b.G), lerp(a.B, b.B))
}

// floatHex renders channels in [0, 1] as "#rrggbb".
func floatHex(r, g, b float64) string {
	ch := func(v float64) int {
		return int(math.Round(math.Max(0, math.Min(1, v)) * 255))
	}
	return fmt.Sprintf("#%02x%02x%02x", ch(r), ch(g), ch(b))
}

func colorHex(c color.Color) string {
	n, _ := color.NRGBAModel.Convert(c).(color.NRGBA)
	return fmt.Sprintf("#%02x%02x%02x", n.R, n.G, n.B)
}

// parseColor accepts "#RRGGBB", "#RGB" and the CSS/SVG colour names.
func parseColor(s string) (color.RGBA, error) {
	spec := strings.TrimSpace(s)
	if strings.HasPrefix(spec, "#") {
		digits := spec[1:]
		if len(digits) == 3 {
			digits = string([]byte{digits[0], digits[0], digits[1], digits[1], digits[2], digits[2]})
		}
		if len(digits) == 6 {
			if v, err := strconv.ParseUint(digits, 16, 32); err == nil {
				return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
			}
		}
	} else if c, ok := colornames.Map[strings.ToLower(spec)]; ok {
		return c, nil
	}
	return color.RGBA{}, invalidArgument("Invalid color specification: '%s'", s)
}

// withAlpha returns c with its opacity set to alpha in [0, 1].
func withAlpha(c color.RGBA, alpha float64) color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(math.Round(alpha * 255))}
}

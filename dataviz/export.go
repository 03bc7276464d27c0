package dataviz

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgeps"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgpdf"
	"gonum.org/v1/plot/vg/vgsvg"
)

// Export formats, named by file extension.
var exportFormats = []string{"eps", "jpeg", "jpg", "pdf", "png", "svg", "tif", "tiff"}

// Renderable is anything SaveFigure can write: a *Figure or a *FigureGrid.
type Renderable interface {
	// Size returns width and height in inches.
	Size() (width, height float64)
	Draw(dc draw.Canvas)
	plots() []*plot.Plot
}

// Size implements Renderable.
func (f *Figure) Size() (float64, float64) { return f.Width, f.Height }

// Draw implements Renderable.
func (f *Figure) Draw(dc draw.Canvas) { f.Plot.Draw(dc) }

func (f *Figure) plots() []*plot.Plot {
	if f == nil || f.Plot == nil {
		return nil
	}
	return []*plot.Plot{f.Plot}
}

// FigureGrid is a rows by columns arrangement of plots saved as one image.
type FigureGrid struct {
	// Plots is row-major. A nil entry leaves its cell empty.
	Plots  [][]*plot.Plot
	Width  float64
	Height float64
}

// CreateFigureGrid returns a grid of themed, empty plots. A zero figsize
// uses FigureSize().
func CreateFigureGrid(nrows, ncols int, figsize [2]float64) (*FigureGrid, error) {
	if nrows <= 0 {
		return nil, invalidArgument("nrows must be positive, got %d", nrows)
	}
	if ncols <= 0 {
		return nil, invalidArgument("ncols must be positive, got %d", ncols)
	}
	w, h := figsize[0], figsize[1]
	if figsize == [2]float64{} {
		w, h = FigureSize()
	}
	if w <= 0 || h <= 0 {
		return nil, invalidArgument("figsize dimensions must be positive, got (%g, %g)", w, h)
	}

	theme := CurrentTheme()
	grid := &FigureGrid{Plots: make([][]*plot.Plot, nrows), Width: w, Height: h}
	for r := range grid.Plots {
		grid.Plots[r] = make([]*plot.Plot, ncols)
		for c := range grid.Plots[r] {
			p := plot.New()
			style(p, theme)
			grid.Plots[r][c] = p
		}
	}
	setCurrent(grid)
	return grid, nil
}

// Size implements Renderable.
func (g *FigureGrid) Size() (float64, float64) { return g.Width, g.Height }

// Draw implements Renderable.
func (g *FigureGrid) Draw(dc draw.Canvas) {
	tiles := draw.Tiles{
		Rows: len(g.Plots),
		Cols: len(g.Plots[0]),
		PadX: vg.Millimeter * 4, PadY: vg.Millimeter * 4,
		PadTop: vg.Millimeter * 2, PadBottom: vg.Millimeter * 2,
		PadLeft: vg.Millimeter * 2, PadRight: vg.Millimeter * 2,
	}
	canvases := plot.Align(g.Plots, tiles, dc)
	for r, row := range g.Plots {
		for c, p := range row {
			if p != nil {
				p.Draw(canvases[r][c])
			}
		}
	}
}

func (g *FigureGrid) plots() []*plot.Plot {
	if g == nil || len(g.Plots) == 0 || len(g.Plots[0]) == 0 {
		return nil
	}
	var out []*plot.Plot
	for _, row := range g.Plots {
		if len(row) != len(g.Plots[0]) {
			return nil
		}
		for _, p := range row {
			if p != nil {
				out = append(out, p)
			}
		}
	}
	return out
}

// ExportDefaults are the settings SaveFigure falls back on.
type ExportDefaults struct {
	DPI         int
	Format      string
	Transparent bool
}

var exportSettings = struct {
	ExportDefaults
	current Renderable
	mu      sync.Mutex
}{ExportDefaults: defaultExport()}

func defaultExport() ExportDefaults {
	return ExportDefaults{DPI: 100, Format: "png"}
}

// ConfigureExportDefaults sets the resolution, the format used by
// ExportCurrentFigure for paths without an extension, and whether
// backgrounds are transparent. An empty format keeps "png".
func ConfigureExportDefaults(d ExportDefaults) error {
	if d.DPI <= 0 {
		return invalidArgument("dpi must be positive, got %d", d.DPI)
	}
	if d.Format == "" {
		d.Format = "png"
	}
	d.Format = strings.ToLower(d.Format)
	if !validFormat(d.Format) {
		return invalidArgument("format must be one of %v, got '%s'", exportFormats, d.Format)
	}
	exportSettings.mu.Lock()
	exportSettings.ExportDefaults = d
	exportSettings.mu.Unlock()
	return nil
}

// CurrentExportDefaults returns the active export settings.
func CurrentExportDefaults() ExportDefaults {
	exportSettings.mu.Lock()
	defer exportSettings.mu.Unlock()
	return exportSettings.ExportDefaults
}

func resetExportDefaults() {
	exportSettings.mu.Lock()
	exportSettings.ExportDefaults = defaultExport()
	exportSettings.current = nil
	exportSettings.mu.Unlock()
}

func setCurrent(r Renderable) {
	exportSettings.mu.Lock()
	exportSettings.current = r
	exportSettings.mu.Unlock()
}

// CloseAll forgets the current figure.
func CloseAll() {
	setCurrent(nil)
}

// SaveOptions overrides the export defaults for one save.
type SaveOptions struct {
	// DPI is the raster resolution. Zero uses the configured default.
	DPI         int
	Transparent bool
}

func validFormat(format string) bool {
	for _, f := range exportFormats {
		if f == format {
			return true
		}
	}
	return false
}

// SaveFigure writes fig to path in the format named by its extension,
// creating parent directories as needed.
func SaveFigure(fig Renderable, path string, opts SaveOptions) error {
	if fig == nil || len(fig.plots()) == 0 {
		return invalidArgument("fig must be a Figure object")
	}
	if opts.DPI < 0 {
		return invalidArgument("dpi must be positive, got %d", opts.DPI)
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return invalidArgument("filepath must have an extension, got '%s'", path)
	}
	if !validFormat(ext) {
		return invalidArgument("Invalid format '%s'. Must be one of %v", ext, exportFormats)
	}

	defaults := CurrentExportDefaults()
	if opts.DPI == 0 {
		opts.DPI = defaults.DPI
	}
	transparent := opts.Transparent || defaults.Transparent

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(fig, ext, opts.DPI, transparent, f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// SaveMultipleFormats writes fig once per format to base plus the format's
// extension and returns the written paths in the order given.
func SaveMultipleFormats(fig Renderable, base string, formats []string, opts SaveOptions) ([]string, error) {
	if fig == nil || len(fig.plots()) == 0 {
		return nil, invalidArgument("fig must be a Figure object")
	}
	if len(formats) == 0 {
		return nil, invalidArgument("formats cannot be empty")
	}
	if opts.DPI < 0 {
		return nil, invalidArgument("dpi must be positive, got %d", opts.DPI)
	}
	for _, format := range formats {
		if !validFormat(strings.ToLower(format)) {
			return nil, invalidArgument("Invalid format '%s'. Must be one of %v", format, exportFormats)
		}
	}
	paths := make([]string, 0, len(formats))
	for _, format := range formats {
		path := base + "." + format
		if err := SaveFigure(fig, path, opts); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ExportCurrentFigure saves the figure most recently created by a Create*
// function. A path without an extension gets the default export format.
func ExportCurrentFigure(path string, opts SaveOptions) error {
	exportSettings.mu.Lock()
	current, format := exportSettings.current, exportSettings.Format
	exportSettings.mu.Unlock()
	if current == nil {
		return invalidArgument("No active figure to export")
	}
	if path == "" {
		return invalidArgument("filepath must have an extension, got ''")
	}
	if filepath.Ext(path) == "" {
		path += "." + format
	}
	return SaveFigure(current, path, opts)
}

func render(fig Renderable, format string, dpi int, transparent bool, w io.Writer) error {
	width, height := fig.Size()
	cw, ch := vg.Length(width)*vg.Inch, vg.Length(height)*vg.Inch

	if transparent {
		for _, p := range fig.plots() {
			bg := p.BackgroundColor
			p.BackgroundColor = color.Transparent
			defer func() { p.BackgroundColor = bg }()
		}
	}

	var canvas vg.CanvasWriterTo
	switch format {
	case "png", "jpg", "jpeg", "tif", "tiff":
		bg := color.Color(color.White)
		if transparent {
			bg = color.Transparent
		}
		img := vgimg.NewWith(vgimg.UseWH(cw, ch), vgimg.UseDPI(dpi), vgimg.UseBackgroundColor(bg))
		switch format {
		case "png":
			canvas = vgimg.PngCanvas{Canvas: img}
		case "jpg", "jpeg":
			canvas = vgimg.JpegCanvas{Canvas: img}
		default:
			canvas = vgimg.TiffCanvas{Canvas: img}
		}
	case "svg":
		canvas = vgsvg.New(cw, ch)
	case "pdf":
		canvas = vgpdf.New(cw, ch)
	case "eps":
		canvas = vgeps.New(cw, ch)
	}

	fig.Draw(draw.New(canvas))
	_, err := canvas.WriteTo(w)
	return err
}

package dataviz

import (
	"errors"
	"image/color"
	"strings"
	"testing"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
)

func TestPresetTheme(t *testing.T) {
	names := PresetThemeNames()
	want := []string{"dark", "default", "minimal", "presentation", "publication"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("expected %v, got %v", want, names)
		}
		theme, err := PresetTheme(want[i])
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", want[i], err)
		}
		if err := theme.Validate(); err != nil {
			t.Errorf("%s: preset does not validate: %v", want[i], err)
		}
	}

	dark := MustPresetTheme("dark")
	if dark.BackgroundColor != "#1E1E1E" {
		t.Errorf("expected dark background, got %s", dark.BackgroundColor)
	}
	if MustPresetTheme("presentation").TitleFontSize != 18 {
		t.Error("presentation theme should use larger titles")
	}
	if MustPresetTheme("publication").FontFamily != FontSerif {
		t.Error("publication theme should use a serif font")
	}

	_, err := PresetTheme("neon")
	if err == nil || !strings.Contains(err.Error(), "theme_name must be one of") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPresetThemeReturnsCopy(t *testing.T) {
	a := MustPresetTheme("default")
	a.ColorCycle[0] = "#000000"
	if MustPresetTheme("default").ColorCycle[0] == "#000000" {
		t.Error("modifying a returned theme changed the preset")
	}
}

func TestChartThemeValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(*ChartTheme)
		msg    string
	}{
		{"Title Size", func(c *ChartTheme) { c.TitleFontSize = 0 }, "title_fontsize must be positive"},
		{"Legend Size", func(c *ChartTheme) { c.LegendFontSize = -2 }, "legend_fontsize must be positive"},
		{"Grid Alpha", func(c *ChartTheme) { c.GridAlpha = 1.5 }, "grid_alpha must be between 0 and 1"},
		{"Line Width", func(c *ChartTheme) { c.LineWidth = 0 }, "line_width must be positive"},
		{"Empty Cycle", func(c *ChartTheme) { c.ColorCycle = nil }, "color_cycle cannot be empty"},
		{"Font", func(c *ChartTheme) { c.FontFamily = "comic" }, "font_family must be one of"},
		{"Color", func(c *ChartTheme) { c.BackgroundColor = "blurple" }, "Invalid color specification"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			theme := NewChartTheme("custom", "white", "#CCCCCC")
			tc.modify(&theme)
			err := theme.Validate()
			if !errors.Is(err, ErrInvalidArgument) || !strings.Contains(err.Error(), tc.msg) {
				t.Errorf("expected %q, got %v", tc.msg, err)
			}
		})
	}
}

func TestApplyTheme(t *testing.T) {
	t.Cleanup(ResetTheme)

	if err := ApplyTheme(MustPresetTheme("dark")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if CurrentTheme().Name != "dark" {
		t.Errorf("expected dark theme, got %s", CurrentTheme().Name)
	}

	bad := MustPresetTheme("minimal")
	bad.GridAlpha = -1
	if err := ApplyTheme(bad); err == nil {
		t.Fatal("expected error for invalid theme")
	}
	if CurrentTheme().Name != "dark" {
		t.Error("a rejected theme should not replace the current one")
	}

	fig, err := CreateLinePlot([]float64{1, 2}, [][]float64{{1, 2}}, LineOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bg, _ := parseColor("#1E1E1E")
	if fig.Plot.BackgroundColor != bg {
		t.Errorf("expected dark background on new figures, got %v", fig.Plot.BackgroundColor)
	}
}

func TestResetTheme(t *testing.T) {
	_ = ApplyTheme(MustPresetTheme("publication"))
	_ = SetFigureSize(3, 2)
	_ = ConfigureExportDefaults(ExportDefaults{DPI: 300, Format: "svg"})

	ResetTheme()

	if CurrentTheme().Name != "default" {
		t.Errorf("expected default theme, got %s", CurrentTheme().Name)
	}
	if w, h := FigureSize(); w != DefaultFigureWidth || h != DefaultFigureHeight {
		t.Errorf("expected default size, got %gx%g", w, h)
	}
	if d := CurrentExportDefaults(); d.DPI != 100 || d.Format != "png" {
		t.Errorf("expected default export settings, got %+v", d)
	}
}

func TestSetFigureSize(t *testing.T) {
	t.Cleanup(ResetTheme)

	if err := SetFigureSize(12, 8); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w, h := FigureSize(); w != 12 || h != 8 {
		t.Errorf("expected 12x8, got %gx%g", w, h)
	}

	fig, _ := CreateHistogram([]float64{1, 2, 3}, HistogramOptions{})
	if fig.Width != 12 || fig.Height != 8 {
		t.Errorf("new figures should use the configured size, got %gx%g", fig.Width, fig.Height)
	}

	if err := SetFigureSize(0, 5); err == nil || !strings.Contains(err.Error(), "width must be positive") {
		t.Errorf("unexpected error: %v", err)
	}
	if err := SetFigureSize(5, -1); err == nil || !strings.Contains(err.Error(), "height must be positive") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestStylePlot(t *testing.T) {
	p := plot.New()
	if err := StylePlot(p, MustPresetTheme("presentation")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Title.TextStyle.Font.Size != vg.Points(18) {
		t.Errorf("expected 18pt title, got %v", p.Title.TextStyle.Font.Size)
	}
	if p.X.Tick.Label.Font.Size != vg.Points(12) {
		t.Errorf("expected 12pt ticks, got %v", p.X.Tick.Label.Font.Size)
	}

	bad := MustPresetTheme("default")
	bad.TickFontSize = 0
	if err := StylePlot(p, bad); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestConfigureAxesStyle(t *testing.T) {
	t.Run("Labels And Spines", func(t *testing.T) {
		p := plot.New()
		err := ConfigureAxesStyle(p, AxesStyle{
			Title:         "Revenue",
			XLabel:        "Month",
			YLabel:        "USD",
			TitleFontSize: 20,
			LabelFontSize: 11,
			Spines:        map[string]bool{"left": false, "top": false},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Title.Text != "Revenue" || p.X.Label.Text != "Month" || p.Y.Label.Text != "USD" {
			t.Errorf("labels not applied: %q %q %q", p.Title.Text, p.X.Label.Text, p.Y.Label.Text)
		}
		if p.Title.TextStyle.Font.Size != vg.Points(20) || p.Y.Label.TextStyle.Font.Size != vg.Points(11) {
			t.Error("font sizes not applied")
		}
		if p.Y.LineStyle.Width != 0 {
			t.Error("left spine should be hidden")
		}
		if p.X.LineStyle.Width == 0 {
			t.Error("bottom spine should stay visible")
		}
	})

	t.Run("Grid", func(t *testing.T) {
		p := plot.New()
		if err := ConfigureAxesStyle(p, AxesStyle{Grid: true, GridStyle: GridDotted, GridAlpha: 0.5}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := p.WriterTo(vg.Inch*3, vg.Inch*2, "png"); err != nil {
			t.Errorf("styled plot failed to render: %v", err)
		}
	})

	t.Run("Errors", func(t *testing.T) {
		cases := []struct {
			style AxesStyle
			msg   string
		}{
			{AxesStyle{TitleFontSize: -1}, "title_fontsize must be positive"},
			{AxesStyle{LabelFontSize: -1}, "label_fontsize must be positive"},
			{AxesStyle{GridAlpha: 2}, "grid_alpha must be between 0 and 1"},
			{AxesStyle{GridStyle: "~"}, "grid_style must be one of"},
			{AxesStyle{Spines: map[string]bool{"middle": true}}, "Invalid spine name: middle"},
		}
		for _, tc := range cases {
			err := ConfigureAxesStyle(plot.New(), tc.style)
			if err == nil || !strings.Contains(err.Error(), tc.msg) {
				t.Errorf("expected %q, got %v", tc.msg, err)
			}
		}
		if err := ConfigureAxesStyle(nil, AxesStyle{}); err == nil || !strings.Contains(err.Error(), "ax must be a plot") {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestNewGridUsesThemeColor(t *testing.T) {
	theme := NewChartTheme("g", "white", "#102030")
	g := newGrid(theme, 0.5)
	want := color.NRGBA{R: 0x10, G: 0x20, B: 0x30, A: 128}
	if g.Vertical.Color != want || g.Horizontal.Color != want {
		t.Errorf("expected %v, got %v / %v", want, g.Vertical.Color, g.Horizontal.Color)
	}
}

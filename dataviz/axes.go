package dataviz

import (
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
)

// Grid line styles accepted by AxesStyle.GridStyle.
const (
	GridSolid   = "-"
	GridDashed  = "--"
	GridDotted  = ":"
	GridDashDot = "-."
)

var gridDashes = map[string][]vg.Length{
	GridSolid:   nil,
	GridDashed:  {vg.Points(4), vg.Points(2)},
	GridDotted:  {vg.Points(1), vg.Points(2)},
	GridDashDot: {vg.Points(4), vg.Points(2), vg.Points(1), vg.Points(2)},
}

// AxesStyle configures ConfigureAxesStyle. Empty strings and zero font sizes
// leave the current value in place.
type AxesStyle struct {
	// Spines hides or shows the axis lines by name: "left", "bottom",
	// "top" or "right". The plots drawn here have no top or right spine,
	// so those two names are accepted and have no effect.
	Spines        map[string]bool
	Title         string
	XLabel        string
	YLabel        string
	GridStyle     string
	GridAlpha     float64
	TitleFontSize int
	LabelFontSize int
	Grid          bool
}

// ConfigureAxesStyle sets titles, label sizes, spines and grid lines on p.
// The grid uses the current theme's colour with GridStyle dashes, which
// default to "--".
func ConfigureAxesStyle(p *plot.Plot, s AxesStyle) error {
	if p == nil {
		return invalidArgument("ax must be a plot")
	}
	if s.TitleFontSize < 0 {
		return invalidArgument("title_fontsize must be positive, got %d", s.TitleFontSize)
	}
	if s.LabelFontSize < 0 {
		return invalidArgument("label_fontsize must be positive, got %d", s.LabelFontSize)
	}
	if s.GridAlpha < 0 || s.GridAlpha > 1 {
		return invalidArgument("grid_alpha must be between 0 and 1, got %g", s.GridAlpha)
	}
	if s.GridStyle == "" {
		s.GridStyle = GridDashed
	}
	dashes, ok := gridDashes[s.GridStyle]
	if !ok {
		return invalidArgument("grid_style must be one of ['-', '--', ':', '-.'], got '%s'", s.GridStyle)
	}
	for name := range s.Spines {
		switch name {
		case "top", "bottom", "left", "right":
		default:
			return invalidArgument("Invalid spine name: %s", name)
		}
	}

	if s.Title != "" {
		p.Title.Text = s.Title
	}
	if s.TitleFontSize > 0 {
		p.Title.TextStyle.Font.Size = vg.Points(float64(s.TitleFontSize))
	}
	if s.XLabel != "" {
		p.X.Label.Text = s.XLabel
	}
	if s.YLabel != "" {
		p.Y.Label.Text = s.YLabel
	}
	if s.LabelFontSize > 0 {
		p.X.Label.TextStyle.Font.Size = vg.Points(float64(s.LabelFontSize))
		p.Y.Label.TextStyle.Font.Size = vg.Points(float64(s.LabelFontSize))
	}
	if visible, ok := s.Spines["left"]; ok {
		setSpine(&p.Y, visible)
	}
	if visible, ok := s.Spines["bottom"]; ok {
		setSpine(&p.X, visible)
	}
	if s.Grid {
		alpha := s.GridAlpha
		if alpha == 0 {
			alpha = CurrentTheme().GridAlpha
		}
		g := newGrid(CurrentTheme(), alpha)
		g.Vertical.Dashes = dashes
		g.Horizontal.Dashes = dashes
		p.Add(g)
	}
	return nil
}

func setSpine(axis *plot.Axis, visible bool) {
	if visible {
		if axis.LineStyle.Width == 0 {
			axis.LineStyle.Width = vg.Points(0.5)
		}
		return
	}
	axis.LineStyle.Width = 0
}

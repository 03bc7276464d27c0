// Package dataviz builds charts with gonum/plot and prepares data for them.
//
// The package keeps a process-wide chart theme and figure size, much like a
// plotting library's runtime settings. ApplyTheme and SetFigureSize change
// them, ResetTheme restores the defaults, and every Create* function reads
// them when it builds a new Figure:
//
//	dataviz.ApplyTheme(dataviz.MustPresetTheme("dark"))
//	fig, err := dataviz.CreateLinePlot(x, [][]float64{y}, dataviz.LineOptions{
//		ChartOptions: dataviz.ChartOptions{Title: "Load"},
//	})
//	if err != nil {
//		return err
//	}
//	paths, err := dataviz.SaveMultipleFormats(fig, "out/load", []string{"png", "svg"}, dataviz.SaveOptions{})
//
// Colours are given as "#RRGGBB" strings or CSS colour names. Palette helpers
// return the same form so their output can be fed straight back in.
//
// Data transformers (AggregateByGroup, BinData, MovingStatistics,
// NormalizeData, PivotForHeatmap and SmoothTimeseries) are plain functions
// over float64 slices and do not depend on any plot state.
package dataviz

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is wrapped by every input validation error.
var ErrInvalidArgument = errors.New("invalid argument")

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

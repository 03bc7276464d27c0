package parallel

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

func withPool[R any](name string, workers int, do func(*Pool) (R, error)) (R, error) {
	p, err := NewPool(name, workers)
	if err != nil {
		var zero R
		return zero, err
	}
	defer p.Close() //nolint:errcheck
	return do(p)
}

// Map applies fn to every element of data with at most workers running at
// once and returns the results in input order. Zero workers means one per
// CPU.
func Map[T, R any](ctx context.Context, fn func(context.Context, T) (R, error), data []T, workers int) ([]R, error) {
	return withPool("map", workers, func(p *Pool) ([]R, error) {
		return Run(ctx, p, fn, data)
	})
}

// Pipeline passes every element of data through stages in order. Each stage
// runs in parallel over all elements and finishes before the next starts.
func Pipeline[T any](ctx context.Context, stages []func(context.Context, T) (T, error), data []T, workers int) ([]T, error) {
	for i, s := range stages {
		if s == nil {
			return nil, invalidArgument("stage %d is nil", i)
		}
	}
	return withPool("pipeline", workers, func(p *Pool) ([]T, error) {
		out := append([]T{}, data...)
		for i, stage := range stages {
			next, err := Run(ctx, p, stage, out)
			if err != nil {
				return nil, fmt.Errorf("stage %d: %w", i, err)
			}
			out = next
		}
		return out, nil
	})
}

// ProgressBarWidth is the number of cells in the ProgressMap bar.
const ProgressBarWidth = 30

// ProgressMap is Map that redraws a progress bar on w after every task,
// finishing the line when all tasks are done. A nil w writes to stderr.
func ProgressMap[T, R any](ctx context.Context, fn func(context.Context, T) (R, error), data []T, workers int, w io.Writer) ([]R, error) {
	if w == nil {
		w = os.Stderr
	}
	return withPool("progress", workers, func(p *Pool) ([]R, error) {
		out, err := run(ctx, p, fn, data, func(done, total int) {
			fmt.Fprint(w, progressLine(done, total))
		})
		if len(data) > 0 {
			fmt.Fprintln(w)
		}
		return out, err
	})
}

func progressLine(done, total int) string {
	filled := ProgressBarWidth * done / total
	return fmt.Sprintf("\rProcessing |%s%s| %d/%d (%.1f%%)",
		strings.Repeat("#", filled),
		strings.Repeat(" ", ProgressBarWidth-filled),
		done, total, 100*float64(done)/float64(total))
}

package main

import (
	"fmt"
	"io"
	"os/exec"

	"github.com/spf13/cobra"

	utilztest "github.com/zoobzio/utilz/testing"
)

func newBenchCmd(a *app) *cobra.Command {
	var iterations int
	cmd := &cobra.Command{
		Use:     "bench -- COMMAND [ARG...]",
		Aliases: []string{"benchmark"},
		Short:   "Time repeated runs of a command",
		Long: `Run COMMAND the given number of times, one after another, and report
the total, average, fastest and slowest run. The first failing run stops the
benchmark.`,
		Example: `  utilz bench --iterations 20 -- curl -s -o /dev/null https://example.com`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			run := 0
			result, err := utilztest.BenchmarkFunction(func() error {
				run++
				c := exec.CommandContext(ctx, args[0], args[1:]...)
				c.Stdout = io.Discard
				c.Stderr = cmd.ErrOrStderr()
				a.log.Debug("bench run", "run", run, "command", args[0])
				if err := c.Run(); err != nil {
					return fmt.Errorf("run %d: %w", run, err)
				}
				return nil
			}, iterations)
			if err != nil {
				return err
			}
			return a.print(cmd, map[string]any{
				"iterations": result.Iterations,
				"total_ms":   result.Total.Milliseconds(),
				"average_ms": float64(result.Average.Microseconds()) / 1000,
				"min_ms":     float64(result.Min.Microseconds()) / 1000,
				"max_ms":     float64(result.Max.Microseconds()) / 1000,
			}, func(w io.Writer) { fmt.Fprintln(w, result) })
		},
	}
	cmd.Flags().IntVarP(&iterations, "iterations", "n", 10, "Number of runs")
	return cmd
}

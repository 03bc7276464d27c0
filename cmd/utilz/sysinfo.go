package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/zoobzio/utilz/sysinfo"
)

func newSysinfoCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sysinfo",
		Short: "Show CPU and memory figures for this host",
	}

	var interval time.Duration
	cpuCmd := &cobra.Command{
		Use:   "cpu",
		Short: "Show CPU count, utilisation, frequency and load",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := sysinfo.CPUInfo(cmd.Context(), interval)
			if err != nil {
				return err
			}
			return a.print(cmd, info, func(w io.Writer) {
				fmt.Fprintf(w, "CPUs:      %d\n", info.Count)
				fmt.Fprintf(w, "Usage:     %.1f%%\n", info.Percent)
				for i, p := range info.PercentPerCore {
					fmt.Fprintf(w, "  core %-3d %.1f%%\n", i, p)
				}
				if f := info.Frequency; f != nil {
					fmt.Fprintf(w, "Frequency: %.0f MHz (min %.0f, max %.0f)\n", f.Current, f.Min, f.Max)
				}
				if l := info.LoadAverage; l != nil {
					fmt.Fprintf(w, "Load:      %.2f %.2f %.2f\n", l.Load1, l.Load5, l.Load15)
				}
			})
		},
	}
	cpuCmd.Flags().DurationVar(&interval, "interval", sysinfo.DefaultInterval, "CPU sampling window")

	memCmd := &cobra.Command{
		Use:     "memory",
		Aliases: []string{"mem"},
		Short:   "Show physical memory usage",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := sysinfo.MemoryInfo(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(cmd, m, func(w io.Writer) {
				fmt.Fprintf(w, "Total:     %s\n", bytesHuman(m.Total))
				fmt.Fprintf(w, "Available: %s\n", bytesHuman(m.Available))
				fmt.Fprintf(w, "Used:      %s (%.1f%%)\n", bytesHuman(m.Used), m.PercentUsed)
				fmt.Fprintf(w, "Free:      %s\n", bytesHuman(m.Free))
				fmt.Fprintf(w, "Cached:    %s\n", bytesHuman(m.Cached))
				fmt.Fprintf(w, "Buffers:   %s\n", bytesHuman(m.Buffers))
			})
		},
	}

	cmd.AddCommand(cpuCmd, memCmd)
	return cmd
}

func bytesHuman(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

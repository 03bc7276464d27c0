package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zoobzio/utilz/jsonx"
	"github.com/zoobzio/utilz/logger"
)

var version = "0.1.0"

type app struct {
	jsonOut  bool
	logLevel string
	log      *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "utilz",
		Short: "System, network and text utilities",
		Long: `utilz exposes the utilz library from the command line: host CPU and
memory figures, network probes, time zone conversion, config file checks,
JSON queries and command benchmarks.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setupLogging(cmd.ErrOrStderr())
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "Print results as JSON")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warning", "Log level: debug, info, warning, error")

	root.AddCommand(
		newSysinfoCmd(a),
		newNetCmd(a),
		newTZCmd(a),
		newConfigCmd(a),
		newJSONCmd(a),
		newTextCmd(a),
		newBenchCmd(a),
	)
	return root
}

func (a *app) setupLogging(w io.Writer) error {
	var level slog.Level
	switch strings.ToLower(a.logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q", a.logLevel)
	}
	logger.SetHandler("utilz", logger.NewColoredHandler(w, &logger.ColoredOptions{Level: level}))
	a.log = logger.GetLogger("utilz.cli")
	return nil
}

// print writes v as indented JSON with --json, and as text otherwise.
func (a *app) print(cmd *cobra.Command, v any, text func(io.Writer)) error {
	out := cmd.OutOrStdout()
	if a.jsonOut || text == nil {
		s, err := jsonx.Dump(v, "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, s)
		return err
	}
	text(out)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

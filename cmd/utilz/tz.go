package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/zoobzio/utilz/timex"
)

// naiveLayouts are accepted for times without an offset, read as UTC or in
// the --from zone.
var naiveLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseTime(s string) (t time.Time, naive bool, err error) {
	if t, err = time.Parse(time.RFC3339Nano, s); err == nil {
		return t, false, nil
	}
	for _, layout := range naiveLayouts {
		if t, err = time.Parse(layout, s); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("cannot parse time %q: use RFC 3339 or YYYY-MM-DD HH:MM:SS", s)
}

func newTZCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tz",
		Short: "Time zone tools",
	}

	var to, from string
	convertCmd := &cobra.Command{
		Use:   "convert TIME",
		Short: "Convert a time to another zone",
		Long: `Convert a time to another IANA zone.

TIME is RFC 3339 (2024-01-15T12:00:00Z) or a wall clock without offset
(2024-01-15 12:00:00), which is read in the --from zone, UTC by default.
"now" converts the current time.`,
		Example: `  utilz tz convert "2024-01-15 12:00:00" --to America/New_York
  utilz tz convert now --to Asia/Tokyo`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				t     time.Time
				naive bool
				err   error
			)
			if args[0] == "now" {
				t = time.Now()
			} else if t, naive, err = parseTime(args[0]); err != nil {
				return err
			}
			src := ""
			if naive {
				src = from
			} else if from != "" {
				a.log.Warn("ignoring --from for a time with an offset", "time", args[0])
			}

			got, err := timex.ConvertTimezone(t, to, src)
			if err != nil {
				return err
			}
			return a.print(cmd, map[string]string{"time": got.Format(time.RFC3339), "zone": got.Location().String()}, func(w io.Writer) {
				fmt.Fprintf(w, "%s %s\n", got.Format("2006-01-02 15:04:05 MST"), got.Location())
			})
		},
	}
	convertCmd.Flags().StringVar(&to, "to", "UTC", "Target zone")
	convertCmd.Flags().StringVar(&from, "from", "", "Zone of a time without offset")

	cmd.AddCommand(convertCmd)
	return cmd
}

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/zoobzio/utilz/jsonx"
	"github.com/zoobzio/utilz/validation"
)

func newJSONCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "json",
		Short: "Query and validate JSON documents",
	}

	var repair bool
	queryCmd := &cobra.Command{
		Use:     "query FILE EXPR",
		Short:   "Evaluate a JSONPath expression",
		Example: `  utilz json query orders.json '$.items[*].id'`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			var opts []jsonx.Option
			if repair {
				opts = append(opts, jsonx.WithRepair(), jsonx.WithLogger(a.log))
			}
			v, err := jsonx.QueryString(data, args[1], opts...)
			if err != nil {
				return err
			}
			return a.print(cmd, v, nil)
		},
	}
	queryCmd.Flags().BoolVar(&repair, "repair", false, "Repair malformed JSON before querying")

	validateCmd := &cobra.Command{
		Use:   "validate FILE SCHEMA",
		Short: "Validate a JSON document against a JSON Schema",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			schema, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			if err := validation.ValidateJSON([]byte(doc), schema); err != nil {
				return err
			}
			return a.print(cmd, map[string]bool{"valid": true}, func(w io.Writer) { fmt.Fprintln(w, "valid") })
		},
	}

	cmd.AddCommand(queryCmd, validateCmd)
	return cmd
}

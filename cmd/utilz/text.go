package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zoobzio/utilz/textx"
)

// readInput returns the contents of path, or stdin for "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}

func newTextCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "text",
		Short: "Extract and clean text",
	}

	lines := func(items []string) func(io.Writer) {
		return func(w io.Writer) {
			for _, it := range items {
				fmt.Fprintln(w, it)
			}
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "emails FILE",
		Short: "List the distinct email addresses in FILE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			found := textx.ExtractEmails(text, true)
			return a.print(cmd, found, lines(found))
		},
	})

	var schemes []string
	urlsCmd := &cobra.Command{
		Use:   "urls FILE",
		Short: "List the distinct URLs in FILE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			found := textx.ExtractURLs(text, schemes, true)
			return a.print(cmd, found, lines(found))
		},
	}
	urlsCmd.Flags().StringSliceVar(&schemes, "scheme", nil, "Keep only these schemes")
	cmd.AddCommand(urlsCmd)

	var markdown bool
	htmlCmd := &cobra.Command{
		Use:   "html FILE",
		Short: "Strip markup from an HTML file, or convert it to Markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			var out string
			if markdown {
				out, err = textx.HTMLToMarkdown(doc)
			} else {
				out, err = textx.RemoveHTMLTags(doc, true)
				out = textx.RemoveExtraWhitespace(out, true)
			}
			if err != nil {
				return err
			}
			return a.print(cmd, map[string]string{"text": out}, func(w io.Writer) { fmt.Fprintln(w, out) })
		},
	}
	htmlCmd.Flags().BoolVar(&markdown, "markdown", false, "Convert to Markdown")
	cmd.AddCommand(htmlCmd)

	var replacement string
	var maxLength int
	sanitizeCmd := &cobra.Command{
		Use:   "sanitize NAME...",
		Short: "Make names safe to use as file names",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := make([]string, len(args))
			for i, name := range args {
				s, err := textx.SanitizeFilename(name, replacement, maxLength)
				if err != nil {
					return err
				}
				out[i] = s
			}
			return a.print(cmd, out, func(w io.Writer) { fmt.Fprintln(w, strings.Join(out, "\n")) })
		},
	}
	sanitizeCmd.Flags().StringVar(&replacement, "replacement", "_", "Replacement for invalid characters")
	sanitizeCmd.Flags().IntVar(&maxLength, "max-length", textx.DefaultMaxFilenameLength, "Maximum length")
	cmd.AddCommand(sanitizeCmd)

	return cmd
}

// Package textx extracts, cleans and converts text: email and URL
// extraction, whitespace normalisation, HTML stripping, HTML to Markdown
// conversion and filename sanitising.
package textx

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ErrInvalidArgument is wrapped by every input validation error.
var ErrInvalidArgument = errors.New("invalid argument")

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	urlPattern   = regexp.MustCompile(`\b([A-Za-z][A-Za-z0-9+.-]*)://[^\s<>"'` + "`" + `]+`)
)

// ExtractEmails returns the email addresses in text in order of appearance.
// With unique set, addresses differing only in case are reported once, as
// first seen.
func ExtractEmails(text string, unique bool) []string {
	found := emailPattern.FindAllString(text, -1)
	if !unique {
		return nonNil(found)
	}
	return dedupe(found, strings.ToLower)
}

// ExtractURLs returns the URLs in text in order of appearance. Trailing
// sentence punctuation is not part of a URL. A non-empty schemes list keeps
// only URLs with one of those schemes, compared case-insensitively.
func ExtractURLs(text string, schemes []string, unique bool) []string {
	allowed := make([]string, len(schemes))
	for i, s := range schemes {
		allowed[i] = strings.ToLower(s)
	}

	var found []string
	for _, m := range urlPattern.FindAllStringSubmatch(text, -1) {
		if len(allowed) > 0 && !slices.Contains(allowed, strings.ToLower(m[1])) {
			continue
		}
		u := strings.TrimRight(m[0], ".,;:!?)]}")
		if strings.HasSuffix(u, "://") {
			continue
		}
		found = append(found, u)
	}
	if !unique {
		return nonNil(found)
	}
	return dedupe(found, func(s string) string { return s })
}

func dedupe(items []string, key func(string) string) []string {
	seen := make(map[string]struct{}, len(items))
	out := []string{}
	for _, it := range items {
		k := key(it)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var (
	anySpace  = regexp.MustCompile(`\s+`)
	lineSpace = regexp.MustCompile(`[^\S\n]+`)
)

// RemoveExtraWhitespace collapses runs of whitespace into single spaces and
// trims the ends. With preserveNewlines set, line breaks survive: blank
// lines are dropped and each line is collapsed and trimmed on its own.
func RemoveExtraWhitespace(text string, preserveNewlines bool) string {
	if !preserveNewlines {
		return strings.TrimSpace(anySpace.ReplaceAllString(text, " "))
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(lineSpace.ReplaceAllString(line, " ")); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

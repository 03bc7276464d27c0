package browser

import (
	"fmt"
	"log/slog"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/playwright-community/playwright-go"
)

// Wait strategies for ExtractDynamicContent.
const (
	WaitDOMContentLoaded = "domcontentloaded"
	WaitLoad             = "load"
	WaitNetworkIdle      = "networkidle"
	WaitSelector         = "selector"
	WaitFunction         = "function"
)

// ExtractOptions configures ExtractDynamicContent.
type ExtractOptions struct {
	// URL is navigated to first. When empty the current page is used.
	URL string
	// WaitStrategy defaults to WaitNetworkIdle.
	WaitStrategy string
	// WaitSelector is required by WaitSelector.
	WaitSelector string
	// WaitFunction is a JavaScript predicate required by WaitFunction.
	WaitFunction string
	// Timeout bounds navigation and waiting. Defaults to DefaultTimeout.
	Timeout time.Duration
	// Selector restricts extraction to the first matching element.
	Selector string
	// SkipText disables text extraction.
	SkipText bool
	// HTML extracts the HTML of the page or element.
	HTML bool
	// Markdown converts the extracted HTML to Markdown.
	Markdown bool
	Logger   *slog.Logger
}

// Content is the result of ExtractDynamicContent. Status is zero when no
// navigation happened.
type Content struct {
	URL      string
	Title    string
	Text     string
	HTML     string
	Markdown string
	Status   int
}

func (o ExtractOptions) withDefaults() (ExtractOptions, error) {
	if o.WaitStrategy == "" {
		o.WaitStrategy = WaitNetworkIdle
	}
	switch o.WaitStrategy {
	case WaitDOMContentLoaded, WaitLoad, WaitNetworkIdle:
	case WaitSelector:
		if o.WaitSelector == "" {
			return o, invalidArgument("wait_selector is required when wait_strategy='selector'")
		}
	case WaitFunction:
		if o.WaitFunction == "" {
			return o, invalidArgument("wait_function is required when wait_strategy='function'")
		}
	default:
		return o, invalidArgument("wait_strategy must be one of ('domcontentloaded', 'load', 'networkidle', 'selector', 'function'), got %s", o.WaitStrategy)
	}
	if o.Timeout < 0 {
		return o, invalidArgument("timeout must be positive, got %s", o.Timeout)
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Logger == nil {
		o.Logger = discardLogger
	}
	return o, nil
}

func loadState(strategy string) *playwright.LoadState {
	switch strategy {
	case WaitDOMContentLoaded:
		return playwright.LoadStateDomcontentloaded
	case WaitLoad:
		return playwright.LoadStateLoad
	default:
		return playwright.LoadStateNetworkidle
	}
}

func waitUntil(strategy string) *playwright.WaitUntilState {
	switch strategy {
	case WaitDOMContentLoaded:
		return playwright.WaitUntilStateDomcontentloaded
	case WaitLoad:
		return playwright.WaitUntilStateLoad
	case WaitNetworkIdle:
		return playwright.WaitUntilStateNetworkidle
	default:
		return playwright.WaitUntilStateCommit
	}
}

// ExtractDynamicContent optionally navigates page to a URL, waits for the
// content to settle according to the wait strategy, and extracts the title,
// visible text and, on request, the HTML and its Markdown rendering.
//
// Failures after validation are wrapped as
// "Failed to extract dynamic content".
func ExtractDynamicContent(page playwright.Page, opts ExtractOptions) (*Content, error) {
	if page == nil {
		return nil, invalidArgument("page is required")
	}
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	content, err := extract(page, opts)
	if err != nil {
		err = fmt.Errorf("Failed to extract dynamic content: %w", err) //nolint:stylecheck
		opts.Logger.Error(err.Error())
		return nil, err
	}
	opts.Logger.Info("Content extracted successfully", slog.String("url", content.URL))
	return content, nil
}

func extract(page playwright.Page, opts ExtractOptions) (*Content, error) {
	timeout := millis(opts.Timeout)
	logger := opts.Logger

	var resp playwright.Response
	if opts.URL != "" {
		logger.Debug("Navigating", slog.String("url", opts.URL))
		var err error
		resp, err = page.Goto(opts.URL, playwright.PageGotoOptions{
			WaitUntil: waitUntil(opts.WaitStrategy),
			Timeout:   timeout,
		})
		if err != nil {
			return nil, err
		}
	}

	switch opts.WaitStrategy {
	case WaitSelector:
		logger.Debug("Waiting for selector", slog.String("selector", opts.WaitSelector))
		if _, err := page.WaitForSelector(opts.WaitSelector, playwright.PageWaitForSelectorOptions{Timeout: timeout}); err != nil {
			return nil, err
		}
	case WaitFunction:
		logger.Debug("Waiting for function", slog.String("function", opts.WaitFunction))
		if _, err := page.WaitForFunction(opts.WaitFunction, nil, playwright.PageWaitForFunctionOptions{Timeout: timeout}); err != nil {
			return nil, err
		}
	default:
		// Navigation already waited for this state.
		if opts.URL == "" {
			logger.Debug("Waiting for load state", slog.String("state", opts.WaitStrategy))
			err := page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
				State:   loadState(opts.WaitStrategy),
				Timeout: timeout,
			})
			if err != nil {
				return nil, err
			}
		}
	}

	title, err := page.Title()
	if err != nil {
		return nil, err
	}
	out := &Content{URL: page.URL(), Title: title}
	if resp != nil {
		out.Status = resp.Status()
	}

	var target playwright.Locator
	if opts.Selector != "" {
		target = page.Locator(opts.Selector).First()
	}

	if !opts.SkipText {
		if target != nil {
			out.Text, err = target.TextContent()
		} else {
			var v any
			v, err = page.Evaluate("() => document.body.innerText")
			if s, ok := v.(string); ok {
				out.Text = s
			}
		}
		if err != nil {
			return nil, err
		}
		logger.Debug("Extracted text", slog.Int("characters", len(out.Text)))
	}

	if opts.HTML || opts.Markdown {
		var html string
		if target != nil {
			html, err = target.InnerHTML()
		} else {
			html, err = page.Content()
		}
		if err != nil {
			return nil, err
		}
		if opts.HTML {
			out.HTML = html
		}
		if opts.Markdown {
			out.Markdown, err = htmltomarkdown.ConvertString(html)
			if err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

package browser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/playwright-community/playwright-go"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxWorkers is the number of pages ParallelScrape drives at once
// when ScrapeOptions.MaxWorkers is zero.
const DefaultMaxWorkers = 5

// ScrapeFunc extracts data from a page that is already open on a fresh
// context. It is responsible for navigating to url.
type ScrapeFunc func(ctx context.Context, page playwright.Page, url string) (any, error)

// ScrapeOptions configures ParallelScrape.
type ScrapeOptions struct {
	Options
	MaxWorkers int
}

// ScrapeResult is the outcome for one URL. Error is empty on success.
type ScrapeResult struct {
	Data    any
	URL     string
	Error   string
	Success bool
}

// ParallelScrape launches one browser and runs fn for every URL, each on its
// own context and page, with at most MaxWorkers running at once. A failing
// URL does not stop the others. Results are returned in the order of urls.
func ParallelScrape(ctx context.Context, urls []string, fn ScrapeFunc, opts ScrapeOptions) ([]ScrapeResult, error) {
	if len(urls) == 0 {
		return nil, invalidArgument("urls list cannot be empty")
	}
	for i, u := range urls {
		if u == "" {
			return nil, invalidArgument("all URLs must be non-empty strings, got empty URL at index %d", i)
		}
	}
	if fn == nil {
		return nil, invalidArgument("scrape_function must be callable")
	}
	if opts.MaxWorkers < 0 {
		return nil, invalidArgument("max_workers must be positive, got %d", opts.MaxWorkers)
	}
	if opts.MaxWorkers == 0 {
		opts.MaxWorkers = DefaultMaxWorkers
	}
	base, err := opts.Options.withDefaults()
	if err != nil {
		return nil, err
	}
	logger := base.Logger
	logger.Info("Starting parallel scrape", slog.Int("urls", len(urls)), slog.Int("workers", opts.MaxWorkers))

	b, stop, err := launch(base)
	if err != nil {
		return nil, fmt.Errorf("Parallel scrape failed: %w", err) //nolint:stylecheck
	}
	defer stop()

	results := make([]ScrapeResult, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.MaxWorkers)
	for i, u := range urls {
		g.Go(func() error {
			data, err := scrapeOne(gctx, b, base, u, fn)
			results[i] = ScrapeResult{URL: u, Data: data, Success: err == nil}
			if err != nil {
				results[i].Error = err.Error()
				logger.Warn("Scrape failed", slog.String("url", u), slog.Any("error", err))
			}
			return nil
		})
	}
	_ = g.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	logger.Info("Parallel scrape complete", slog.Int("succeeded", succeeded), slog.Int("total", len(urls)))
	return results, nil
}

func scrapeOne(ctx context.Context, b playwright.Browser, opts Options, url string, fn ScrapeFunc) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	bctx, err := b.NewContext(opts.contextOptions())
	if err != nil {
		return nil, err
	}
	defer bctx.Close() //nolint:errcheck
	bctx.SetDefaultTimeout(float64(opts.Timeout.Milliseconds()))

	page, err := bctx.NewPage()
	if err != nil {
		return nil, err
	}
	return fn(ctx, page, url)
}

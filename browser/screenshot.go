package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/zoobzio/clockz"

	"github.com/zoobzio/utilz"
)

// ScreenshotOptions configures SmartScreenshot.
type ScreenshotOptions struct {
	// Selector captures the first matching element instead of the page.
	Selector string
	// WaitForSelector is awaited before capturing.
	WaitForSelector string
	// WaitTimeout bounds every wait. Defaults to DefaultTimeout.
	WaitTimeout time.Duration
	// SkipNetworkIdle skips waiting for the network to go idle.
	SkipNetworkIdle bool
	FullPage        bool
	// ImageType is "png" (default) or "jpeg".
	ImageType string
	// Quality applies to jpeg only, 0 to 100.
	Quality *int
	// Retries is the number of extra attempts after a failed capture.
	Retries    int
	RetryDelay time.Duration
	Clock      clockz.Clock
	Logger     *slog.Logger
}

// SmartScreenshot waits for the page to settle and writes a screenshot to
// path, creating parent directories. Waiting for network idle is best
// effort: a timeout there does not fail the capture. Failed captures are
// retried Retries times. It returns path.
func SmartScreenshot(ctx context.Context, page playwright.Page, path string, opts ScreenshotOptions) (string, error) {
	if page == nil {
		return "", invalidArgument("page is required")
	}
	if path == "" {
		return "", invalidArgument("path cannot be empty")
	}
	if opts.WaitTimeout < 0 {
		return "", invalidArgument("wait_timeout must be positive, got %s", opts.WaitTimeout)
	}
	if opts.WaitTimeout == 0 {
		opts.WaitTimeout = DefaultTimeout
	}
	if opts.ImageType == "" {
		opts.ImageType = "png"
	}
	if opts.ImageType != "png" && opts.ImageType != "jpeg" {
		return "", invalidArgument("image_type must be 'png' or 'jpeg', got '%s'", opts.ImageType)
	}
	if opts.Quality != nil {
		if opts.ImageType != "jpeg" {
			return "", invalidArgument("quality parameter only applies to jpeg format")
		}
		if *opts.Quality < 0 || *opts.Quality > 100 {
			return "", invalidArgument("quality must be between 0-100, got %d", *opts.Quality)
		}
	}
	if opts.Retries < 0 {
		return "", invalidArgument("retries must be non-negative, got %d", opts.Retries)
	}
	if opts.RetryDelay < 0 {
		return "", invalidArgument("retry_delay must be non-negative, got %s", opts.RetryDelay)
	}
	logger := opts.Logger
	if logger == nil {
		logger = discardLogger
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}

	logger.Debug("Preparing screenshot", slog.String("path", path))
	timeout := millis(opts.WaitTimeout)
	if opts.WaitForSelector != "" {
		if _, err := page.WaitForSelector(opts.WaitForSelector, playwright.PageWaitForSelectorOptions{Timeout: timeout}); err != nil {
			return "", fmt.Errorf("Screenshot failed waiting for selector %q: %w", opts.WaitForSelector, err) //nolint:stylecheck
		}
	}
	if !opts.SkipNetworkIdle {
		err := page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
			State:   playwright.LoadStateNetworkidle,
			Timeout: timeout,
		})
		if err != nil {
			logger.Debug("Network idle wait timed out, continuing", slog.Any("error", err))
		}
	}

	capture := utilz.Apply("screenshot", func(_ context.Context, _ struct{}) (struct{}, error) {
		return struct{}{}, captureOnce(page, path, opts)
	})
	retry, err := utilz.NewRetry("smart-screenshot", capture, opts.Retries+1, opts.RetryDelay)
	if err != nil {
		return "", err
	}
	defer retry.Close()
	retry.SetLogger(logger)
	if opts.Clock != nil {
		retry.WithClock(opts.Clock)
	}

	if _, err := retry.Process(ctx, struct{}{}); err != nil {
		cause := err
		var wrapped *utilz.Error[struct{}]
		if errors.As(err, &wrapped) {
			cause = wrapped.Err
		}
		return "", fmt.Errorf("Screenshot failed after %d attempts: %w", opts.Retries+1, cause) //nolint:stylecheck
	}
	logger.Info("Screenshot saved", slog.String("path", path))
	return path, nil
}

func captureOnce(page playwright.Page, path string, opts ScreenshotOptions) error {
	kind := playwright.ScreenshotTypePng
	if opts.ImageType == "jpeg" {
		kind = playwright.ScreenshotTypeJpeg
	}
	if opts.Selector != "" {
		_, err := page.Locator(opts.Selector).First().Screenshot(playwright.LocatorScreenshotOptions{
			Path:    playwright.String(path),
			Type:    kind,
			Quality: opts.Quality,
		})
		return err
	}
	_, err := page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		Type:     kind,
		Quality:  opts.Quality,
		FullPage: playwright.Bool(opts.FullPage),
	})
	return err
}

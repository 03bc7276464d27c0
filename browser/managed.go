package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/playwright-community/playwright-go"
)

// ErrInvalidArgument is wrapped by every input validation error.
var ErrInvalidArgument = errors.New("invalid argument")

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Browser engines.
const (
	Chromium = "chromium"
	Firefox  = "firefox"
	WebKit   = "webkit"
)

// Defaults applied to zero-valued Options fields.
const (
	DefaultViewportWidth  = 1920
	DefaultViewportHeight = 1080
	DefaultTimeout        = 30 * time.Second
)

// Options configures how a browser is launched and how its contexts are
// created.
type Options struct {
	// BrowserType is Chromium (default), Firefox or WebKit.
	BrowserType string
	// Headed shows the browser window. Browsers run headless by default.
	Headed         bool
	ViewportWidth  int
	ViewportHeight int
	UserAgent      string
	// Timeout is the default timeout of every page operation.
	Timeout time.Duration
	// DownloadsPath enables downloads and stores them in this directory,
	// which is created if needed.
	DownloadsPath string
	Logger        *slog.Logger
}

func (o Options) withDefaults() (Options, error) {
	if o.BrowserType == "" {
		o.BrowserType = Chromium
	}
	switch o.BrowserType {
	case Chromium, Firefox, WebKit:
	default:
		return o, invalidArgument("browser_type must be 'chromium', 'firefox', or 'webkit', got '%s'", o.BrowserType)
	}
	if o.ViewportWidth < 0 {
		return o, invalidArgument("viewport_width must be positive, got %d", o.ViewportWidth)
	}
	if o.ViewportHeight < 0 {
		return o, invalidArgument("viewport_height must be positive, got %d", o.ViewportHeight)
	}
	if o.Timeout < 0 {
		return o, invalidArgument("timeout must be positive, got %s", o.Timeout)
	}
	if o.ViewportWidth == 0 {
		o.ViewportWidth = DefaultViewportWidth
	}
	if o.ViewportHeight == 0 {
		o.ViewportHeight = DefaultViewportHeight
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Logger == nil {
		o.Logger = discardLogger
	}
	return o, nil
}

func (o Options) launchOptions() playwright.BrowserTypeLaunchOptions {
	opts := playwright.BrowserTypeLaunchOptions{Headless: playwright.Bool(!o.Headed)}
	if o.DownloadsPath != "" {
		opts.DownloadsPath = playwright.String(o.DownloadsPath)
	}
	return opts
}

func (o Options) contextOptions() playwright.BrowserNewContextOptions {
	opts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: o.ViewportWidth, Height: o.ViewportHeight},
	}
	if o.UserAgent != "" {
		opts.UserAgent = playwright.String(o.UserAgent)
	}
	if o.DownloadsPath != "" {
		opts.AcceptDownloads = playwright.Bool(true)
	}
	return opts
}

// Driver is a running Playwright instance.
type Driver interface {
	BrowserType(name string) playwright.BrowserType
	Stop() error
}

type playwrightDriver struct {
	pw *playwright.Playwright
}

func (d playwrightDriver) BrowserType(name string) playwright.BrowserType {
	switch name {
	case Firefox:
		return d.pw.Firefox
	case WebKit:
		return d.pw.WebKit
	default:
		return d.pw.Chromium
	}
}

func (d playwrightDriver) Stop() error {
	return d.pw.Stop()
}

// startDriver launches the Playwright driver process. Tests replace it.
var startDriver = func() (Driver, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, err
	}
	return playwrightDriver{pw: pw}, nil
}

// Session is what ManagedBrowser hands to its callback.
type Session struct {
	Browser playwright.Browser
	Context playwright.BrowserContext
	Page    playwright.Page
}

// launch starts the driver and a browser. The returned stop function closes
// the browser and then stops the driver.
func launch(opts Options) (playwright.Browser, func(), error) {
	if opts.DownloadsPath != "" {
		if err := os.MkdirAll(opts.DownloadsPath, 0o755); err != nil {
			return nil, nil, err
		}
	}
	driver, err := startDriver()
	if err != nil {
		return nil, nil, err
	}
	opts.Logger.Debug("Playwright started")

	b, err := driver.BrowserType(opts.BrowserType).Launch(opts.launchOptions())
	if err != nil {
		_ = driver.Stop()
		return nil, nil, err
	}
	opts.Logger.Debug("Browser launched", slog.String("browser_type", opts.BrowserType), slog.Bool("headless", !opts.Headed))

	stop := func() {
		if err := b.Close(); err != nil {
			opts.Logger.Warn("Error closing browser", slog.Any("error", err))
		}
		if err := driver.Stop(); err != nil {
			opts.Logger.Warn("Error stopping Playwright", slog.Any("error", err))
		}
	}
	return b, stop, nil
}

// ManagedBrowser launches a browser with one context and one page, runs fn,
// and then closes the page, the context and the browser and stops the
// driver. Launch failures and errors returned by fn are wrapped as
// "Browser management failed".
func ManagedBrowser(ctx context.Context, opts Options, fn func(context.Context, Session) error) error {
	if fn == nil {
		return invalidArgument("fn is required")
	}
	opts, err := opts.withDefaults()
	if err != nil {
		return err
	}

	b, stop, err := launch(opts)
	if err != nil {
		return fmt.Errorf("Browser management failed: %w", err) //nolint:stylecheck
	}
	defer stop()

	bctx, err := b.NewContext(opts.contextOptions())
	if err != nil {
		return fmt.Errorf("Browser management failed: %w", err) //nolint:stylecheck
	}
	defer func() {
		if err := bctx.Close(); err != nil {
			opts.Logger.Warn("Error closing context", slog.Any("error", err))
		}
	}()
	bctx.SetDefaultTimeout(float64(opts.Timeout.Milliseconds()))

	page, err := bctx.NewPage()
	if err != nil {
		return fmt.Errorf("Browser management failed: %w", err) //nolint:stylecheck
	}
	defer func() {
		if err := page.Close(); err != nil {
			opts.Logger.Warn("Error closing page", slog.Any("error", err))
		}
	}()

	if err := fn(ctx, Session{Browser: b, Context: bctx, Page: page}); err != nil {
		return fmt.Errorf("Browser management failed: %w", err) //nolint:stylecheck
	}
	return nil
}

func millis(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

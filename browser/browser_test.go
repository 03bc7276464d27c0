package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/playwright-community/playwright-go"
)

// Fakes embed the playwright-go interfaces and override only what the
// package calls. Anything else panics on the nil embedded value.

type fakeResponse struct {
	playwright.Response
	status int
}

func (r *fakeResponse) Status() int { return r.status }

// locatorBase renames the embedded interface so its Locator method is
// promoted instead of being shadowed by a field of the same name.
type locatorBase = playwright.Locator

type fakeLocator struct {
	locatorBase
	text  string
	html  string
	shots []playwright.LocatorScreenshotOptions
}

func (l *fakeLocator) First() playwright.Locator { return l }

func (l *fakeLocator) TextContent(...playwright.LocatorTextContentOptions) (string, error) {
	return l.text, nil
}

func (l *fakeLocator) InnerHTML(...playwright.LocatorInnerHTMLOptions) (string, error) {
	return l.html, nil
}

func (l *fakeLocator) Screenshot(options ...playwright.LocatorScreenshotOptions) ([]byte, error) {
	l.shots = append(l.shots, options...)
	return nil, nil
}

type evalCall struct {
	expr string
	args []any
}

type fakePage struct {
	playwright.Page
	mu sync.Mutex

	url, title, text, html string
	status                 int
	gotoErr                error
	loadErr                error
	storage                map[string]map[string]any

	gotos          []string
	gotoOpts       []playwright.PageGotoOptions
	waitedSelector string
	waitedFunction string
	loadStates     []playwright.LoadState
	evals          []evalCall
	locatorSel     string
	locator        *fakeLocator
	shotErrs       []error
	shots          []playwright.PageScreenshotOptions
	closed         int
}

func (p *fakePage) Goto(url string, options ...playwright.PageGotoOptions) (playwright.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gotos = append(p.gotos, url)
	p.gotoOpts = append(p.gotoOpts, options...)
	if p.gotoErr != nil {
		return nil, p.gotoErr
	}
	p.url = url
	return &fakeResponse{status: p.status}, nil
}

func (p *fakePage) WaitForSelector(selector string, _ ...playwright.PageWaitForSelectorOptions) (playwright.ElementHandle, error) {
	p.waitedSelector = selector
	return nil, nil
}

func (p *fakePage) WaitForFunction(expression string, _ interface{}, _ ...playwright.PageWaitForFunctionOptions) (playwright.JSHandle, error) {
	p.waitedFunction = expression
	return nil, nil
}

func (p *fakePage) WaitForLoadState(options ...playwright.PageWaitForLoadStateOptions) error {
	for _, o := range options {
		if o.State != nil {
			p.loadStates = append(p.loadStates, *o.State)
		}
	}
	return p.loadErr
}

func (p *fakePage) Title() (string, error) { return p.title, nil }

func (p *fakePage) URL() string { return p.url }

func (p *fakePage) Content() (string, error) { return p.html, nil }

func (p *fakePage) Evaluate(expression string, arg ...interface{}) (interface{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evals = append(p.evals, evalCall{expr: expression, args: arg})
	switch expression {
	case "() => document.body.innerText":
		return p.text, nil
	case readStorage:
		return p.storage[arg[0].(string)], nil
	}
	return nil, nil
}

func (p *fakePage) Locator(selector string, _ ...playwright.PageLocatorOptions) playwright.Locator {
	p.locatorSel = selector
	return p.locator
}

func (p *fakePage) Screenshot(options ...playwright.PageScreenshotOptions) ([]byte, error) {
	p.shots = append(p.shots, options...)
	if len(p.shotErrs) > 0 {
		err := p.shotErrs[0]
		if len(p.shotErrs) > 1 {
			p.shotErrs = p.shotErrs[1:]
		}
		return nil, err
	}
	return nil, nil
}

func (p *fakePage) Close(...playwright.PageCloseOptions) error {
	p.closed++
	return nil
}

type fakeContext struct {
	playwright.BrowserContext
	pages   []playwright.Page
	page    *fakePage
	added   []playwright.OptionalCookie
	cookies []playwright.Cookie
	timeout float64
	closed  int
}

func (c *fakeContext) NewPage() (playwright.Page, error) {
	if c.page == nil {
		c.page = &fakePage{}
	}
	return c.page, nil
}

func (c *fakeContext) Pages() []playwright.Page { return c.pages }

func (c *fakeContext) AddCookies(cookies []playwright.OptionalCookie) error {
	c.added = append(c.added, cookies...)
	return nil
}

func (c *fakeContext) Cookies(...string) ([]playwright.Cookie, error) { return c.cookies, nil }

func (c *fakeContext) SetDefaultTimeout(timeout float64) { c.timeout = timeout }

func (c *fakeContext) Close(...playwright.BrowserContextCloseOptions) error {
	c.closed++
	return nil
}

type fakeBrowser struct {
	playwright.Browser
	mu       sync.Mutex
	page     func(n int) *fakePage
	contexts []*fakeContext
	ctxOpts  []playwright.BrowserNewContextOptions
	closed   int
}

func (b *fakeBrowser) NewContext(options ...playwright.BrowserNewContextOptions) (playwright.BrowserContext, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := &fakeContext{}
	if b.page != nil {
		c.page = b.page(len(b.contexts))
	}
	b.contexts = append(b.contexts, c)
	b.ctxOpts = append(b.ctxOpts, options...)
	return c, nil
}

func (b *fakeBrowser) Close(...playwright.BrowserCloseOptions) error {
	b.closed++
	return nil
}

type fakeBrowserType struct {
	playwright.BrowserType
	browser *fakeBrowser
	opts    []playwright.BrowserTypeLaunchOptions
	err     error
}

func (t *fakeBrowserType) Launch(options ...playwright.BrowserTypeLaunchOptions) (playwright.Browser, error) {
	t.opts = append(t.opts, options...)
	if t.err != nil {
		return nil, t.err
	}
	return t.browser, nil
}

type fakeDriver struct {
	types   map[string]*fakeBrowserType
	stopped int
}

func (d *fakeDriver) BrowserType(name string) playwright.BrowserType { return d.types[name] }

func (d *fakeDriver) Stop() error {
	d.stopped++
	return nil
}

func installDriver(t *testing.T) (*fakeDriver, *fakeBrowser) {
	t.Helper()
	b := &fakeBrowser{}
	d := &fakeDriver{types: map[string]*fakeBrowserType{
		Chromium: {browser: b},
		Firefox:  {browser: b},
		WebKit:   {browser: b},
	}}
	orig := startDriver
	startDriver = func() (Driver, error) { return d, nil }
	t.Cleanup(func() { startDriver = orig })
	return d, b
}

func TestManagedBrowser(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults and cleanup", func(t *testing.T) {
		d, b := installDriver(t)
		var got Session
		err := ManagedBrowser(ctx, Options{}, func(_ context.Context, s Session) error {
			got = s
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Browser != b || got.Context == nil || got.Page == nil {
			t.Fatalf("session not populated: %+v", got)
		}
		launch := d.types[Chromium].opts[0]
		if launch.Headless == nil || !*launch.Headless {
			t.Error("expected headless launch")
		}
		vp := b.ctxOpts[0].Viewport
		if vp == nil || vp.Width != DefaultViewportWidth || vp.Height != DefaultViewportHeight {
			t.Errorf("viewport = %+v", vp)
		}
		c := b.contexts[0]
		if c.timeout != 30000 {
			t.Errorf("default timeout = %v, want 30000", c.timeout)
		}
		if c.page.closed != 1 || c.closed != 1 || b.closed != 1 || d.stopped != 1 {
			t.Errorf("cleanup counts page=%d context=%d browser=%d driver=%d", c.page.closed, c.closed, b.closed, d.stopped)
		}
	})

	t.Run("custom options", func(t *testing.T) {
		d, b := installDriver(t)
		downloads := filepath.Join(t.TempDir(), "downloads")
		opts := Options{
			BrowserType:    Firefox,
			Headed:         true,
			ViewportWidth:  1280,
			ViewportHeight: 720,
			UserAgent:      "utilz-test",
			DownloadsPath:  downloads,
		}
		if err := ManagedBrowser(ctx, opts, func(context.Context, Session) error { return nil }); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		launch := d.types[Firefox].opts[0]
		if *launch.Headless {
			t.Error("expected headed launch")
		}
		if launch.DownloadsPath == nil || *launch.DownloadsPath != downloads {
			t.Errorf("downloads path = %v", launch.DownloadsPath)
		}
		if _, err := os.Stat(downloads); err != nil {
			t.Errorf("downloads directory not created: %v", err)
		}
		co := b.ctxOpts[0]
		if co.Viewport.Width != 1280 || co.Viewport.Height != 720 {
			t.Errorf("viewport = %+v", co.Viewport)
		}
		if co.UserAgent == nil || *co.UserAgent != "utilz-test" {
			t.Errorf("user agent = %v", co.UserAgent)
		}
		if co.AcceptDownloads == nil || !*co.AcceptDownloads {
			t.Error("expected downloads to be accepted")
		}
	})

	t.Run("callback error still cleans up", func(t *testing.T) {
		d, b := installDriver(t)
		err := ManagedBrowser(ctx, Options{}, func(context.Context, Session) error {
			return errors.New("boom")
		})
		if err == nil || !strings.Contains(err.Error(), "Browser management failed: boom") {
			t.Fatalf("unexpected error: %v", err)
		}
		if b.closed != 1 || d.stopped != 1 || b.contexts[0].closed != 1 {
			t.Error("resources not released")
		}
	})

	t.Run("launch failure", func(t *testing.T) {
		d, _ := installDriver(t)
		d.types[Chromium].err = errors.New("Launch failed")
		err := ManagedBrowser(ctx, Options{}, func(context.Context, Session) error { return nil })
		if err == nil || !strings.Contains(err.Error(), "Browser management failed") {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.stopped != 1 {
			t.Errorf("driver stopped %d times, want 1", d.stopped)
		}
	})

	t.Run("validation", func(t *testing.T) {
		noop := func(context.Context, Session) error { return nil }
		cases := []struct {
			name string
			opts Options
			msg  string
		}{
			{"browser type", Options{BrowserType: "safari"}, "browser_type must be"},
			{"viewport width", Options{ViewportWidth: -1}, "viewport_width must be positive"},
			{"viewport height", Options{ViewportHeight: -1}, "viewport_height must be positive"},
			{"timeout", Options{Timeout: -1}, "timeout must be positive"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				err := ManagedBrowser(ctx, tc.opts, noop)
				if !errors.Is(err, ErrInvalidArgument) || !strings.Contains(err.Error(), tc.msg) {
					t.Errorf("expected %q, got %v", tc.msg, err)
				}
			})
		}
		if err := ManagedBrowser(ctx, Options{}, nil); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for nil fn, got %v", err)
		}
	})
}

func TestExtractDynamicContent(t *testing.T) {
	t.Run("navigate with network idle", func(t *testing.T) {
		page := &fakePage{title: "Example", text: "Hello world", status: 200}
		c, err := ExtractDynamicContent(page, ExtractOptions{URL: "https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.URL != "https://example.com" || c.Title != "Example" || c.Status != 200 || c.Text != "Hello world" {
			t.Errorf("content = %+v", c)
		}
		if c.HTML != "" || c.Markdown != "" {
			t.Errorf("unexpected html extraction: %+v", c)
		}
		o := page.gotoOpts[0]
		if o.WaitUntil == nil || *o.WaitUntil != *playwright.WaitUntilStateNetworkidle {
			t.Errorf("wait until = %v", o.WaitUntil)
		}
		if o.Timeout == nil || *o.Timeout != 30000 {
			t.Errorf("timeout = %v", o.Timeout)
		}
		if len(page.loadStates) != 0 {
			t.Errorf("unexpected load state wait: %v", page.loadStates)
		}
	})

	t.Run("current page waits for load state", func(t *testing.T) {
		page := &fakePage{url: "https://current", title: "Current"}
		c, err := ExtractDynamicContent(page, ExtractOptions{WaitStrategy: WaitLoad, SkipText: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.Status != 0 || c.URL != "https://current" {
			t.Errorf("content = %+v", c)
		}
		if len(page.loadStates) != 1 || page.loadStates[0] != *playwright.LoadStateLoad {
			t.Errorf("load states = %v", page.loadStates)
		}
		if len(page.evals) != 0 {
			t.Error("text extracted despite SkipText")
		}
	})

	t.Run("selector strategy commits then waits", func(t *testing.T) {
		page := &fakePage{}
		_, err := ExtractDynamicContent(page, ExtractOptions{
			URL:          "https://example.com",
			WaitStrategy: WaitSelector,
			WaitSelector: "#app",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if *page.gotoOpts[0].WaitUntil != *playwright.WaitUntilStateCommit {
			t.Errorf("wait until = %v", *page.gotoOpts[0].WaitUntil)
		}
		if page.waitedSelector != "#app" {
			t.Errorf("waited selector = %q", page.waitedSelector)
		}
	})

	t.Run("function strategy", func(t *testing.T) {
		page := &fakePage{}
		_, err := ExtractDynamicContent(page, ExtractOptions{
			WaitStrategy: WaitFunction,
			WaitFunction: "() => window.ready",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.waitedFunction != "() => window.ready" {
			t.Errorf("waited function = %q", page.waitedFunction)
		}
	})

	t.Run("selector extraction with markdown", func(t *testing.T) {
		page := &fakePage{locator: &fakeLocator{text: "Hello", html: "<h1>Hello</h1>"}}
		c, err := ExtractDynamicContent(page, ExtractOptions{
			Selector: "main",
			HTML:     true,
			Markdown: true,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.locatorSel != "main" {
			t.Errorf("locator selector = %q", page.locatorSel)
		}
		if c.Text != "Hello" || c.HTML != "<h1>Hello</h1>" {
			t.Errorf("content = %+v", c)
		}
		if !strings.Contains(c.Markdown, "# Hello") {
			t.Errorf("markdown = %q", c.Markdown)
		}
	})

	t.Run("navigation failure", func(t *testing.T) {
		page := &fakePage{gotoErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
		_, err := ExtractDynamicContent(page, ExtractOptions{URL: "https://nowhere"})
		if err == nil || !strings.Contains(err.Error(), "Failed to extract dynamic content: net::ERR_NAME_NOT_RESOLVED") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("validation", func(t *testing.T) {
		cases := []struct {
			name string
			opts ExtractOptions
			msg  string
		}{
			{"strategy", ExtractOptions{WaitStrategy: "idle"}, "wait_strategy must be one of"},
			{"selector missing", ExtractOptions{WaitStrategy: WaitSelector}, "wait_selector is required"},
			{"function missing", ExtractOptions{WaitStrategy: WaitFunction}, "wait_function is required"},
			{"timeout", ExtractOptions{Timeout: -1}, "timeout must be positive"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := ExtractDynamicContent(&fakePage{}, tc.opts)
				if !errors.Is(err, ErrInvalidArgument) || !strings.Contains(err.Error(), tc.msg) {
					t.Errorf("expected %q, got %v", tc.msg, err)
				}
			})
		}
		if _, err := ExtractDynamicContent(nil, ExtractOptions{}); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for nil page, got %v", err)
		}
	})
}

func TestParallelScrape(t *testing.T) {
	ctx := context.Background()

	t.Run("ordered results and one context per url", func(t *testing.T) {
		d, b := installDriver(t)
		urls := []string{"https://example.com/1", "https://example.com/2", "https://example.com/3"}
		results, err := ParallelScrape(ctx, urls, func(_ context.Context, page playwright.Page, url string) (any, error) {
			if _, err := page.Goto(url); err != nil {
				return nil, err
			}
			return map[string]string{"title": "Page " + url}, nil
		}, ScrapeOptions{MaxWorkers: 2})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 3 {
			t.Fatalf("len = %d, want 3", len(results))
		}
		for i, r := range results {
			if r.URL != urls[i] || !r.Success || r.Error != "" {
				t.Errorf("result %d = %+v", i, r)
			}
			if r.Data.(map[string]string)["title"] != "Page "+urls[i] {
				t.Errorf("result %d data = %v", i, r.Data)
			}
		}
		if len(b.contexts) != 3 {
			t.Errorf("contexts = %d, want 3", len(b.contexts))
		}
		for i, c := range b.contexts {
			if c.closed != 1 {
				t.Errorf("context %d closed %d times", i, c.closed)
			}
		}
		if b.closed != 1 || d.stopped != 1 {
			t.Errorf("browser closed %d, driver stopped %d", b.closed, d.stopped)
		}
	})

	t.Run("failures are isolated", func(t *testing.T) {
		_, b := installDriver(t)
		urls := []string{"https://a", "https://b", "https://c"}
		results, err := ParallelScrape(ctx, urls, func(_ context.Context, _ playwright.Page, url string) (any, error) {
			switch url {
			case "https://a":
				return nil, errors.New("Test error")
			case "https://b":
				panic("Critical error")
			}
			return "ok", nil
		}, ScrapeOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if results[0].Success || !strings.Contains(results[0].Error, "Test error") {
			t.Errorf("result 0 = %+v", results[0])
		}
		if results[1].Success || !strings.Contains(results[1].Error, "Critical error") {
			t.Errorf("result 1 = %+v", results[1])
		}
		if !results[2].Success || results[2].Data != "ok" {
			t.Errorf("result 2 = %+v", results[2])
		}
		if b.closed != 1 {
			t.Errorf("browser closed %d times", b.closed)
		}
	})

	t.Run("validation", func(t *testing.T) {
		noop := func(context.Context, playwright.Page, string) (any, error) { return nil, nil }
		cases := []struct {
			name string
			urls []string
			fn   ScrapeFunc
			opts ScrapeOptions
			msg  string
		}{
			{"no urls", nil, noop, ScrapeOptions{}, "urls list cannot be empty"},
			{"empty url", []string{"https://a", ""}, noop, ScrapeOptions{}, "all URLs must be non-empty strings"},
			{"nil fn", []string{"https://a"}, nil, ScrapeOptions{}, "scrape_function must be callable"},
			{"workers", []string{"https://a"}, noop, ScrapeOptions{MaxWorkers: -1}, "max_workers must be positive"},
			{"browser type", []string{"https://a"}, noop, ScrapeOptions{Options: Options{BrowserType: "safari"}}, "browser_type must be"},
			{"timeout", []string{"https://a"}, noop, ScrapeOptions{Options: Options{Timeout: -1}}, "timeout must be positive"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := ParallelScrape(ctx, tc.urls, tc.fn, tc.opts)
				if !errors.Is(err, ErrInvalidArgument) || !strings.Contains(err.Error(), tc.msg) {
					t.Errorf("expected %q, got %v", tc.msg, err)
				}
			})
		}
	})
}

func TestSessionRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions", "user.json")

	lax := playwright.SameSiteAttributeLax
	source := &fakeContext{cookies: []playwright.Cookie{
		{Name: "sid", Value: "abc", Domain: "example.com", Path: "/", Expires: 1e9, HttpOnly: true, SameSite: lax},
	}}
	sourcePage := &fakePage{storage: map[string]map[string]any{
		"localStorage":   {"theme": "dark", "count": float64(3)},
		"sessionStorage": {"tab": "2"},
	}}
	if err := SaveSession(source, sourcePage, path); err != nil {
		t.Fatalf("save: %v", err)
	}

	page := &fakePage{}
	target := &fakeContext{pages: []playwright.Page{page}}
	if err := RestoreSession(target, path, "https://example.com", nil); err != nil {
		t.Fatalf("restore: %v", err)
	}

	if len(target.added) != 1 {
		t.Fatalf("cookies added = %d, want 1", len(target.added))
	}
	c := target.added[0]
	if c.Name != "sid" || c.Value != "abc" || *c.Domain != "example.com" || !*c.HttpOnly || *c.SameSite != *lax {
		t.Errorf("cookie = %+v", c)
	}
	if len(page.gotos) != 1 || page.gotos[0] != "https://example.com" {
		t.Errorf("gotos = %v", page.gotos)
	}

	var sets []string
	for _, e := range page.evals {
		if e.expr != setStorage {
			continue
		}
		args := e.args[0].([]any)
		sets = append(sets, fmt.Sprintf("%s.%s=%s", args...))
	}
	want := []string{"localStorage.count=3", "localStorage.theme=dark", "sessionStorage.tab=2"}
	if strings.Join(sets, ",") != strings.Join(want, ",") {
		t.Errorf("storage writes = %v, want %v", sets, want)
	}
}

func TestRestoreSessionErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		err := RestoreSession(&fakeContext{}, filepath.Join(dir, "missing.json"), "", nil)
		if !errors.Is(err, os.ErrNotExist) || !strings.Contains(err.Error(), "Session file not found") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("empty path", func(t *testing.T) {
		if err := RestoreSession(&fakeContext{}, "", "", nil); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if err := SaveSession(&fakeContext{}, nil, ""); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("storage without url", func(t *testing.T) {
		path := filepath.Join(dir, "storage.json")
		data := `{"cookies": [], "storage": {"localStorage": {"k": "v"}}}`
		if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		err := RestoreSession(&fakeContext{}, path, "", nil)
		if err == nil || !strings.Contains(err.Error(), "Failed to restore session: url is required") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		path := filepath.Join(dir, "broken.json")
		if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		err := RestoreSession(&fakeContext{}, path, "", nil)
		if err == nil || !strings.Contains(err.Error(), "Failed to restore session") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("cookies only opens no page", func(t *testing.T) {
		path := filepath.Join(dir, "cookies.json")
		data := `{"cookies": [{"name": "a", "value": "b", "url": "https://x"}]}`
		if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		c := &fakeContext{}
		if err := RestoreSession(c, path, "", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(c.added) != 1 || *c.added[0].URL != "https://x" || c.page != nil {
			t.Errorf("context = %+v", c)
		}
	})
}

func TestSmartScreenshot(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults create directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "a", "b", "shot.png")
		page := &fakePage{}
		got, err := SmartScreenshot(ctx, page, path, ScreenshotOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != path {
			t.Errorf("path = %q", got)
		}
		if _, err := os.Stat(filepath.Dir(path)); err != nil {
			t.Errorf("parent not created: %v", err)
		}
		if len(page.shots) != 1 {
			t.Fatalf("screenshots = %d, want 1", len(page.shots))
		}
		o := page.shots[0]
		if *o.Path != path || *o.Type != *playwright.ScreenshotTypePng || *o.FullPage || o.Quality != nil {
			t.Errorf("options = %+v", o)
		}
		if len(page.loadStates) != 1 || page.loadStates[0] != *playwright.LoadStateNetworkidle {
			t.Errorf("load states = %v", page.loadStates)
		}
	})

	t.Run("element with wait", func(t *testing.T) {
		loc := &fakeLocator{}
		page := &fakePage{locator: loc}
		_, err := SmartScreenshot(ctx, page, filepath.Join(t.TempDir(), "el.png"), ScreenshotOptions{
			Selector:        "#main-content",
			WaitForSelector: "#content",
			SkipNetworkIdle: true,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.locatorSel != "#main-content" || len(loc.shots) != 1 || len(page.shots) != 0 {
			t.Errorf("locator %q, element shots %d, page shots %d", page.locatorSel, len(loc.shots), len(page.shots))
		}
		if page.waitedSelector != "#content" {
			t.Errorf("waited selector = %q", page.waitedSelector)
		}
		if len(page.loadStates) != 0 {
			t.Error("network idle awaited despite SkipNetworkIdle")
		}
	})

	t.Run("jpeg full page", func(t *testing.T) {
		page := &fakePage{}
		q := 85
		_, err := SmartScreenshot(ctx, page, filepath.Join(t.TempDir(), "img.jpeg"), ScreenshotOptions{
			ImageType: "jpeg",
			Quality:   &q,
			FullPage:  true,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		o := page.shots[0]
		if *o.Type != *playwright.ScreenshotTypeJpeg || *o.Quality != 85 || !*o.FullPage {
			t.Errorf("options = %+v", o)
		}
	})

	t.Run("retries until success", func(t *testing.T) {
		page := &fakePage{shotErrs: []error{errors.New("Timeout"), errors.New("Render error"), nil}}
		_, err := SmartScreenshot(ctx, page, filepath.Join(t.TempDir(), "retry.png"), ScreenshotOptions{Retries: 3})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(page.shots) != 3 {
			t.Errorf("attempts = %d, want 3", len(page.shots))
		}
	})

	t.Run("retries exhausted", func(t *testing.T) {
		page := &fakePage{shotErrs: []error{errors.New("Persistent error")}}
		_, err := SmartScreenshot(ctx, page, filepath.Join(t.TempDir(), "fail.png"), ScreenshotOptions{Retries: 2})
		if err == nil || !strings.Contains(err.Error(), "Screenshot failed after 3 attempts: Persistent error") {
			t.Errorf("unexpected error: %v", err)
		}
		if len(page.shots) != 3 {
			t.Errorf("attempts = %d, want 3", len(page.shots))
		}
	})

	t.Run("network idle timeout continues", func(t *testing.T) {
		page := &fakePage{loadErr: errors.New("Timeout")}
		if _, err := SmartScreenshot(ctx, page, filepath.Join(t.TempDir(), "x.png"), ScreenshotOptions{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(page.shots) != 1 {
			t.Errorf("attempts = %d, want 1", len(page.shots))
		}
	})

	t.Run("validation", func(t *testing.T) {
		q, bad := 50, 101
		cases := []struct {
			name string
			path string
			opts ScreenshotOptions
			msg  string
		}{
			{"empty path", "", ScreenshotOptions{}, "path cannot be empty"},
			{"wait timeout", "x.png", ScreenshotOptions{WaitTimeout: -1}, "wait_timeout must be positive"},
			{"image type", "x.gif", ScreenshotOptions{ImageType: "gif"}, "image_type must be 'png' or 'jpeg'"},
			{"quality on png", "x.png", ScreenshotOptions{Quality: &q}, "quality parameter only applies to jpeg format"},
			{"quality range", "x.jpeg", ScreenshotOptions{ImageType: "jpeg", Quality: &bad}, "quality must be between 0-100"},
			{"retries", "x.png", ScreenshotOptions{Retries: -1}, "retries must be non-negative"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := SmartScreenshot(ctx, &fakePage{}, tc.path, tc.opts)
				if !errors.Is(err, ErrInvalidArgument) || !strings.Contains(err.Error(), tc.msg) {
					t.Errorf("expected %q, got %v", tc.msg, err)
				}
			})
		}
	})
}

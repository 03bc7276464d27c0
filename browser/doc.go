// Package browser automates Chromium, Firefox and WebKit through
// playwright-go.
//
// ManagedBrowser owns the full lifecycle: it starts the Playwright driver,
// launches a browser, opens a context and a page, hands them to a callback
// and closes everything afterwards, whether the callback succeeds or not.
//
//	err := browser.ManagedBrowser(ctx, browser.Options{BrowserType: browser.Firefox},
//	    func(ctx context.Context, s browser.Session) error {
//	        content, err := browser.ExtractDynamicContent(s.Page, browser.ExtractOptions{
//	            URL:      "https://example.com",
//	            Markdown: true,
//	        })
//	        if err != nil {
//	            return err
//	        }
//	        fmt.Println(content.Markdown)
//	        return nil
//	    })
//
// The remaining helpers take playwright-go interfaces, so they work with any
// page or context regardless of how it was created.
package browser

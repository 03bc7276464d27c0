package browser

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/playwright-community/playwright-go"
)

// sessionFile is the on-disk session format shared by SaveSession and
// RestoreSession.
type sessionFile struct {
	Cookies []sessionCookie `json:"cookies"`
	Storage sessionStorage  `json:"storage"`
}

type sessionStorage struct {
	Local   map[string]string `json:"localStorage,omitempty"`
	Session map[string]string `json:"sessionStorage,omitempty"`
}

type sessionCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	URL      string  `json:"url,omitempty"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
}

func (c sessionCookie) optional() playwright.OptionalCookie {
	out := playwright.OptionalCookie{
		Name:     c.Name,
		Value:    c.Value,
		HttpOnly: playwright.Bool(c.HTTPOnly),
		Secure:   playwright.Bool(c.Secure),
	}
	if c.URL != "" {
		out.URL = playwright.String(c.URL)
	}
	if c.Domain != "" {
		out.Domain = playwright.String(c.Domain)
	}
	if c.Path != "" {
		out.Path = playwright.String(c.Path)
	}
	if c.Expires != 0 {
		out.Expires = playwright.Float(c.Expires)
	}
	switch c.SameSite {
	case "Strict":
		out.SameSite = playwright.SameSiteAttributeStrict
	case "Lax":
		out.SameSite = playwright.SameSiteAttributeLax
	case "None":
		out.SameSite = playwright.SameSiteAttributeNone
	}
	return out
}

func fromCookie(c playwright.Cookie) sessionCookie {
	out := sessionCookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Expires:  c.Expires,
		HTTPOnly: c.HttpOnly,
		Secure:   c.Secure,
	}
	if c.SameSite != nil {
		out.SameSite = string(*c.SameSite)
	}
	return out
}

const (
	readStorage = `(name) => Object.fromEntries(Object.entries(window[name]))`
	setStorage  = `([name, key, value]) => window[name].setItem(key, value)`
)

// RestoreSession loads cookies and web storage saved by SaveSession into
// bctx. Web storage is bound to an origin, so url is required whenever the
// file holds localStorage or sessionStorage entries; the first page of the
// context is navigated there before the entries are written.
func RestoreSession(bctx playwright.BrowserContext, path, url string, logger *slog.Logger) error {
	if path == "" {
		return invalidArgument("session_file cannot be empty")
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("Session file not found: %s: %w", path, os.ErrNotExist) //nolint:stylecheck
	}
	if logger == nil {
		logger = discardLogger
	}
	if err := restore(bctx, path, url, logger); err != nil {
		err = fmt.Errorf("Failed to restore session: %w", err) //nolint:stylecheck
		logger.Error(err.Error())
		return err
	}
	logger.Info("Session restored successfully", slog.String("session_file", path))
	return nil
}

func restore(bctx playwright.BrowserContext, path, url string, logger *slog.Logger) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var data sessionFile
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}

	if len(data.Cookies) > 0 {
		cookies := make([]playwright.OptionalCookie, len(data.Cookies))
		for i, c := range data.Cookies {
			cookies[i] = c.optional()
		}
		if err := bctx.AddCookies(cookies); err != nil {
			return err
		}
		logger.Debug("Restored cookies", slog.Int("count", len(cookies)))
	}

	local, session := data.Storage.Local, data.Storage.Session
	if len(local) == 0 && len(session) == 0 {
		return nil
	}
	if url == "" {
		return errors.New("url is required to restore localStorage/sessionStorage")
	}

	var page playwright.Page
	if pages := bctx.Pages(); len(pages) > 0 {
		page = pages[0]
	} else if page, err = bctx.NewPage(); err != nil {
		return err
	}
	if _, err := page.Goto(url); err != nil {
		return err
	}
	for _, store := range []struct {
		name    string
		entries map[string]string
	}{{"localStorage", local}, {"sessionStorage", session}} {
		for _, k := range sortedKeys(store.entries) {
			if _, err := page.Evaluate(setStorage, []any{store.name, k, store.entries[k]}); err != nil {
				return err
			}
		}
		if len(store.entries) > 0 {
			logger.Debug("Restored "+store.name+" items", slog.Int("count", len(store.entries)))
		}
	}
	return nil
}

// SaveSession writes the cookies of bctx and the web storage of page to
// path as JSON, creating parent directories as needed. page may be nil to
// save cookies only.
func SaveSession(bctx playwright.BrowserContext, page playwright.Page, path string) error {
	if path == "" {
		return invalidArgument("session_file cannot be empty")
	}
	data, err := snapshot(bctx, page)
	if err != nil {
		return fmt.Errorf("Failed to save session: %w", err) //nolint:stylecheck
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("Failed to save session: %w", err) //nolint:stylecheck
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("Failed to save session: %w", err) //nolint:stylecheck
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("Failed to save session: %w", err) //nolint:stylecheck
	}
	return nil
}

func snapshot(bctx playwright.BrowserContext, page playwright.Page) (*sessionFile, error) {
	cookies, err := bctx.Cookies()
	if err != nil {
		return nil, err
	}
	data := &sessionFile{Cookies: make([]sessionCookie, len(cookies))}
	for i, c := range cookies {
		data.Cookies[i] = fromCookie(c)
	}
	if page == nil {
		return data, nil
	}
	if data.Storage.Local, err = storageOf(page, "localStorage"); err != nil {
		return nil, err
	}
	if data.Storage.Session, err = storageOf(page, "sessionStorage"); err != nil {
		return nil, err
	}
	return data, nil
}

func storageOf(page playwright.Page, name string) (map[string]string, error) {
	v, err := page.Evaluate(readStorage, name)
	if err != nil {
		return nil, err
	}
	entries, _ := v.(map[string]any)
	out := make(map[string]string, len(entries))
	for k, val := range entries {
		out[k] = fmt.Sprint(val)
	}
	return out, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

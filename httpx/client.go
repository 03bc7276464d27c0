package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds a request when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Options configures Get and Post.
type Options struct {
	// Headers are added to the request.
	Headers map[string]string
	// Client sends the request. Defaults to a new http.Client.
	Client *http.Client
	// Logger, when set, records each request at debug level.
	Logger *slog.Logger
	// Timeout bounds the whole request. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// Response is a fully read HTTP response. Headers holds each header once,
// with repeated values joined by ", ".
type Response struct {
	Headers    map[string]string
	URL        string
	Text       string
	Content    []byte
	StatusCode int
}

// Get performs a GET request. A 4xx or 5xx status returns the response
// together with a *StatusError.
func Get(ctx context.Context, rawURL string, opts Options) (*Response, error) {
	req, err := newRequest(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := do(req, opts)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return resp, &StatusError{URL: resp.URL, StatusCode: resp.StatusCode, Body: resp.Text}
	}
	return resp, nil
}

// Post performs a POST request. A string body is sent as
// application/x-www-form-urlencoded, url.Values are form-encoded, []byte is
// sent as is, and anything else is marshalled to JSON. A nil body sends no
// body at all. Error statuses are returned as a normal Response.
func Post(ctx context.Context, rawURL string, body any, opts Options) (*Response, error) {
	payload, contentType, err := encodeBody(body)
	if err != nil {
		return nil, err
	}
	req, err := newRequest(ctx, http.MethodPost, rawURL, payload)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return do(req, opts)
}

func encodeBody(body any) (io.Reader, string, error) {
	switch v := body.(type) {
	case nil:
		return nil, "", nil
	case string:
		return strings.NewReader(v), "application/x-www-form-urlencoded", nil
	case url.Values:
		return strings.NewReader(v.Encode()), "application/x-www-form-urlencoded", nil
	case []byte:
		return bytes.NewReader(v), "application/octet-stream", nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode request body: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

func newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, invalidArgument("URL must be a non-empty string")
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, invalidArgument("invalid URL %q: %v", rawURL, err)
	}
	return req, nil
}

func do(req *http.Request, opts Options) (*Response, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	ctx, cancel := context.WithTimeout(req.Context(), timeout)
	defer cancel()
	req = req.WithContext(ctx)

	if opts.Logger != nil {
		opts.Logger.DebugContext(ctx, "http request", "method", req.Method, "url", req.URL.String())
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Failed to reach %s: %w", req.URL, err) //nolint:stylecheck
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", req.URL, err)
	}

	headers := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		headers[k] = strings.Join(v, ", ")
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Content:    content,
		Text:       string(content),
		Headers:    headers,
		URL:        resp.Request.URL.String(),
	}, nil
}

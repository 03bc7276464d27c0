// Package httpx provides validated URL helpers and a small HTTP client.
//
// URL operations (BuildURL, ParseURL, ExtractDomain, GetQueryParams and
// IsValidURL) are pure functions over net/url. Get and Post wrap an
// *http.Client with a default 30 second timeout and return the whole
// response as a Response value, so callers do not have to manage bodies.
//
// Input problems are reported as errors wrapping ErrInvalidArgument:
//
//	_, err := httpx.Get(ctx, "   ", httpx.Options{})
//	errors.Is(err, httpx.ErrInvalidArgument) // true
package httpx

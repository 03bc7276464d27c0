package httpx

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// QueryParam is one key/value pair of an ordered query string.
type QueryParam struct {
	Key   string
	Value string
}

// URLParts describes a URL for BuildURL. Scheme and Host are required; every
// other field is omitted from the result when empty. A zero Port means no
// port. QueryPairs takes precedence over Query and keeps its order; Query is
// encoded sorted by key.
type URLParts struct {
	Query      url.Values
	Scheme     string
	Host       string
	Path       string
	Fragment   string
	Username   string
	Password   string
	QueryPairs []QueryParam
	Port       int
}

// BuildURL assembles a URL from its parts.
//
//	httpx.BuildURL(httpx.URLParts{
//	    Scheme: "https", Host: "example.com", Port: 8080, Path: "/api",
//	    QueryPairs: []httpx.QueryParam{{"limit", "10"}},
//	})
//	// https://example.com:8080/api?limit=10
func BuildURL(parts URLParts) (string, error) {
	scheme := strings.TrimSpace(parts.Scheme)
	if scheme == "" {
		return "", invalidArgument("Scheme must be a non-empty string")
	}
	host := strings.TrimSpace(parts.Host)
	if host == "" {
		return "", invalidArgument("Hostname must be a non-empty string")
	}
	if parts.Port < 0 || parts.Port > 65535 {
		return "", invalidArgument("Port must be between 1 and 65535")
	}

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	if parts.Username != "" {
		var user *url.Userinfo
		if parts.Password != "" {
			user = url.UserPassword(parts.Username, parts.Password)
		} else {
			user = url.User(parts.Username)
		}
		b.WriteString(user.String())
		b.WriteByte('@')
	}
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}
	b.WriteString(host)
	if parts.Port > 0 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(parts.Port))
	}
	if parts.Path != "" {
		if !strings.HasPrefix(parts.Path, "/") {
			b.WriteByte('/')
		}
		b.WriteString(parts.Path)
	}
	if query := encodeQuery(parts); query != "" {
		b.WriteByte('?')
		b.WriteString(query)
	}
	if parts.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(parts.Fragment)
	}
	return b.String(), nil
}

func encodeQuery(parts URLParts) string {
	if len(parts.QueryPairs) == 0 {
		return parts.Query.Encode()
	}
	pairs := make([]string, 0, len(parts.QueryPairs))
	for _, p := range parts.QueryPairs {
		pairs = append(pairs, url.QueryEscape(p.Key)+"="+url.QueryEscape(p.Value))
	}
	return strings.Join(pairs, "&")
}

// URLComponents is the result of ParseURL. Port is zero when the URL names
// none. Params holds the ";"-separated parameters of the last path segment,
// which are removed from Path.
type URLComponents struct {
	Scheme   string
	Netloc   string
	Hostname string
	Path     string
	Params   string
	Query    string
	Fragment string
	Username string
	Password string
	Port     int
}

// ParseURL splits rawURL into its components. The hostname is lower-cased.
func ParseURL(rawURL string) (URLComponents, error) {
	u, err := parse(rawURL)
	if err != nil {
		return URLComponents{}, err
	}

	c := URLComponents{
		Scheme:   u.Scheme,
		Netloc:   u.Host,
		Hostname: strings.ToLower(u.Hostname()),
		Query:    u.RawQuery,
		Fragment: u.Fragment,
	}
	if u.User != nil {
		c.Netloc = u.User.String() + "@" + u.Host
		c.Username = u.User.Username()
		c.Password, _ = u.User.Password()
	}
	if p := u.Port(); p != "" {
		c.Port, err = strconv.Atoi(p)
		if err != nil {
			return URLComponents{}, fmt.Errorf("invalid port %q: %w", p, err)
		}
	}
	c.Path, c.Params = splitParams(u.Path)
	return c, nil
}

func splitParams(path string) (string, string) {
	last := strings.LastIndexByte(path, '/')
	if i := strings.IndexByte(path[last+1:], ';'); i >= 0 {
		cut := last + 1 + i
		return path[:cut], path[cut+1:]
	}
	return path, ""
}

// ExtractDomain returns the hostname of rawURL without port or user info.
// It fails when rawURL is not a valid URL.
func ExtractDomain(rawURL string) (string, error) {
	if !IsValidURL(rawURL) {
		return "", invalidArgument("not a valid URL: %q", rawURL)
	}
	u, err := parse(rawURL)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", invalidArgument("URL has no host: %q", rawURL)
	}
	return host, nil
}

// GetQueryParams returns the query parameters of rawURL. Keys without a value
// are kept with an empty string, and "+" decodes to a space.
func GetQueryParams(rawURL string) (map[string][]string, error) {
	u, err := parse(rawURL)
	if err != nil {
		return nil, err
	}
	values, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return nil, fmt.Errorf("invalid query string: %w", err)
	}
	return values, nil
}

// IsValidURL reports whether rawURL has a scheme and a well-formed host, or
// uses the file scheme with a non-blank path.
func IsValidURL(rawURL string) bool {
	return IsValidURLWithSchemes(rawURL, nil)
}

// IsValidURLWithSchemes is IsValidURL restricted to the given schemes. A nil
// slice allows any scheme; an empty, non-nil slice allows none.
func IsValidURLWithSchemes(rawURL string, allowed []string) bool {
	if strings.TrimSpace(rawURL) == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return false
	}
	if allowed != nil && !containsFold(allowed, u.Scheme) {
		return false
	}
	if strings.EqualFold(u.Scheme, "file") {
		if u.Host != "" {
			return validHostname(u.Hostname())
		}
		return strings.TrimSpace(u.Path) != "" && strings.TrimSpace(strings.Trim(u.Path, "/")) != ""
	}
	return validHostname(u.Hostname())
}

func validHostname(host string) bool {
	if host == "" {
		return false
	}
	if net.ParseIP(host) != nil {
		return true
	}
	labels := strings.Split(strings.TrimSuffix(host, "."), ".")
	for _, label := range labels {
		if label == "" || len(label) > 63 {
			return false
		}
		for _, r := range label {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			default:
				return false
			}
		}
	}
	return true
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

func parse(rawURL string) (*url.URL, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, invalidArgument("URL must be a non-empty string")
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	return u, nil
}

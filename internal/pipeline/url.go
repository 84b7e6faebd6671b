package pipeline

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL canonicalizes a URL for use as a dedup key: lowercased
// scheme and host, default ports stripped, fragment dropped, trailing
// slash on the path removed. The scheme is required.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("normalize url: empty input")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("normalize url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("normalize url %q: unsupported scheme %q", raw, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("normalize url %q: missing host", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	} else {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""
	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String(), nil
}

package content

import (
	"html"
	"net/url"
	"strings"
)

// NormalizeURL decodes entity-escaped URLs, resolves relative references
// against base and upgrades http to https. Anything that is not an http(s)
// URL afterwards, data URIs included, yields "".
func NormalizeURL(raw, base string) string {
	u := strings.TrimSpace(html.UnescapeString(raw))
	if u == "" || strings.HasPrefix(strings.ToLower(u), "data:") {
		return ""
	}

	if strings.HasPrefix(u, "//") {
		u = "https:" + u
	}

	parsed, err := url.Parse(u)
	if err != nil {
		return ""
	}

	if !parsed.IsAbs() {
		if base == "" {
			return ""
		}
		baseURL, err := url.Parse(base)
		if err != nil || !baseURL.IsAbs() {
			return ""
		}
		parsed = baseURL.ResolveReference(parsed)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		parsed.Scheme = "https"
	default:
		return ""
	}

	if parsed.Host == "" {
		return ""
	}

	return parsed.String()
}

// CanonicalURL returns the entry link without its fragment, or "" when the
// link is not an absolute http(s) URL.
func CanonicalURL(link string) string {
	link = strings.TrimSpace(html.UnescapeString(link))
	if link == "" {
		return ""
	}

	parsed, err := url.Parse(link)
	if err != nil || parsed.Host == "" {
		return ""
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return ""
	}

	parsed.Fragment = ""
	return parsed.String()
}

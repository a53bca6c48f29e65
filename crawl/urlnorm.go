package crawl

import (
	"net/url"
	"strings"
)

// NormalizeURL canonicalizes a URL before queue deduplication: the
// fragment is stripped, scheme and host are lowercased, and
// percent-encoding is normalized by a parse/re-encode round trip.
// Unparsable input is returned with at most the fragment removed.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		if idx := strings.Index(rawURL, "#"); idx != -1 {
			return rawURL[:idx]
		}
		return rawURL
	}

	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" && u.Host != "" {
		u.Path = "/"
	}
	// Re-encode the path canonically; an encoded slash is significant
	// and keeps its original form.
	if !strings.Contains(strings.ToLower(u.RawPath), "%2f") {
		u.RawPath = ""
	}
	return u.String()
}

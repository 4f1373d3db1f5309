package authclient

import (
	"net/url"
	"strings"
)

// toSafeRedirect resolves a user-supplied returnTo target against the
// application base URL and only accepts same-origin results. Anything else,
// including absolute URLs on foreign hosts and values that fail to parse,
// falls back to the configured default so the callback can never be used as
// an open redirector.
func (c *Client) toSafeRedirect(returnTo string) string {
	fallback := c.appBaseURL.JoinPath(c.signInReturnToPath).String()
	if returnTo == "" {
		return fallback
	}

	// Scheme-relative URLs ("//evil.example") parse as absolute references
	// once resolved, so ResolveReference handles them below.
	target, err := url.Parse(returnTo)
	if err != nil {
		return fallback
	}
	resolved := c.appBaseURL.ResolveReference(target)
	if !sameOrigin(resolved, c.appBaseURL) {
		return fallback
	}
	return resolved.String()
}

// sameOrigin compares scheme and host (including port) case-insensitively.
func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}

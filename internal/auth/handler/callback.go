package handler

import (
	"net/url"
	"strings"
)

const defaultCallbackURL = "/"

// safeCallbackURL only lets relative paths on this site through, so the
// post-login redirect cannot be pointed at another origin.
func safeCallbackURL(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.ContainsAny(raw, "\\\r\n") {
		return defaultCallbackURL
	}

	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" {
		return defaultCallbackURL
	}
	return u.RequestURI()
}

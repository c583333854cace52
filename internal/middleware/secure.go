package middleware

import (
	"net/http"
	"strings"
)

// SecureHeaders sets the security headers of an embeddable widget. Framing is governed by
// the CSP frame-ancestors list rather than X-Frame-Options, and the referrer is kept on
// same-scheme navigation because the LikeCoin backend attributes likes by it.
func SecureHeaders(frameAncestors []string) func(http.Handler) http.Handler {
	ancestors := "*"
	if len(frameAncestors) > 0 {
		ancestors = strings.Join(frameAncestors, " ")
	}
	csp := "default-src 'self'; img-src 'self' data: https:; style-src 'self' 'unsafe-inline'; " +
		"script-src 'self' https://unpkg.com https://www.googletagmanager.com; " +
		"connect-src 'self' https://*.google-analytics.com; object-src 'none'; " +
		"frame-ancestors " + ancestors
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Content-Security-Policy", csp)
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "no-referrer-when-downgrade")
			next.ServeHTTP(w, r)
		})
	}
}

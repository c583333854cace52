package middleware

import (
	"context"
	"net/http"
	"strings"
)

// HTMXRequest is what htmx told us about the request. CurrentURL is the embed page URL
// the button lives on, used as the return address of a navigating sign-up.
type HTMXRequest struct {
	Enabled    bool
	CurrentURL string
	Trigger    string
}

// HTMX reads the htmx request headers. The same routes answer with a fragment or a full
// page, so every response varies on HX-Request.
func HTMX(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "HX-Request")
		hx := HTMXRequest{Enabled: r.Header.Get("HX-Request") == "true"}
		if hx.Enabled {
			hx.CurrentURL = strings.TrimSpace(r.Header.Get("HX-Current-URL"))
			hx.Trigger = r.Header.Get("HX-Trigger")
		}
		next.ServeHTTP(w, r.WithContext(WithHTMX(r.Context(), hx)))
	})
}

// WithHTMX stores hx on ctx.
func WithHTMX(ctx context.Context, hx HTMXRequest) context.Context {
	return context.WithValue(ctx, ctxKeyHTMX, hx)
}

// HTMXFrom returns the htmx details of the request, zero for plain requests.
func HTMXFrom(ctx context.Context) HTMXRequest {
	hx, _ := ctx.Value(ctxKeyHTMX).(HTMXRequest)
	return hx
}

// IsHTMX reports whether htmx issued the request.
func IsHTMX(ctx context.Context) bool {
	return HTMXFrom(ctx).Enabled
}

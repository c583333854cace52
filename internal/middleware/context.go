package middleware

type ctxKey string

const (
	ctxKeyHTMX     ctxKey = "htmx"
	ctxKeySession  ctxKey = "session"
	ctxKeyLocaleFB ctxKey = "locale_fallback"
)

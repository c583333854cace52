package observability

import (
	"net/http"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Caps for request-controlled values written to logs and span attributes.
const (
	maxMethodLen    = 10
	maxRouteLen     = 180
	maxIPLen        = 64
	maxUserAgentLen = 256
	maxButtonIDLen  = 64
)

// clean drops control characters and keeps at most limit runes, so request data can
// neither forge nor flood a log line.
func clean(value string, limit int) string {
	var b strings.Builder
	n := 0
	for _, r := range value {
		if n == limit {
			break
		}
		if unicode.IsControl(r) && r != '\t' {
			continue
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

func cleanRoute(route string) string {
	if route == "" {
		return "/"
	}
	return clean(route, maxRouteLen)
}

// buttonFields tags embed routes with the liker id of the button they served. chi fills
// the URL params while routing, so this is read after the handler ran.
func buttonFields(r *http.Request) []zap.Field {
	id := chi.URLParam(r, "id")
	if id == "" {
		return nil
	}
	return []zap.Field{zap.String("button_id", clean(id, maxButtonIDLen))}
}

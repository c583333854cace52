package format

import (
	"html"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Text strips markup from upstream strings (display names, page titles) and truncates the
// result to limit runes. limit <= 0 keeps the whole string.
func Text(s string, limit int) string {
	out := html.UnescapeString(strict.Sanitize(s))
	out = strings.Join(strings.Fields(out), " ")
	if limit > 0 && utf8.RuneCountInString(out) > limit {
		runes := []rune(out)
		out = strings.TrimSpace(string(runes[:limit-1])) + "…"
	}
	return out
}

// Count formats n with thousands separators.
func Count(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, c := range s {
		if i != 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// Percent renders a 0..100 progress value for a CSS width.
func Percent(v float64) string {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return strconv.FormatFloat(v, 'f', 2, 64) + "%"
}

// Since formats a millisecond Unix timestamp as a short date in lang. Zero is "".
func Since(ms int64, lang string) string {
	if ms <= 0 {
		return ""
	}
	t := time.UnixMilli(ms).UTC()
	switch strings.ToLower(lang) {
	case "zh":
		return t.Format("2006年1月2日")
	default:
		return t.Format("Jan 2, 2006")
	}
}

// Package referrer derives the per-page-load context that tags every like call:
// which page embedded the button, who linked to it and which session is clicking.
package referrer

import (
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/likecoin/likecoin-button/internal/likecoin"
)

// Cookies read and written by the embed page.
const (
	CookieProbe       = "likebutton_cookie"
	CookieSuperLikeID = "likebutton_superlike_id"
)

// ButtonTypeMedium marks buttons embedded from Medium posts.
const ButtonTypeMedium = "medium"

var mediumRegex = regexp.MustCompile(`(?i)^(https?:)?//([a-z0-9-]+\.)*medium\.com/`)

// Context is captured once per page load and stays fixed for the widget's lifetime.
type Context struct {
	SessionID         uuid.UUID
	Referrer          string
	DocumentReferrer  string
	ButtonType        string
	Timezone          string
	// ClientTimezone is set when the request carried the browser's tz offset.
	ClientTimezone    bool
	ParentSuperLikeID string
	CookieSupport     bool
}

// FromRequest reads the embed page request. A fresh session id is generated every call.
func FromRequest(r *http.Request, now time.Time) Context {
	query := r.URL.Query()
	ctx := Context{
		SessionID:        uuid.New(),
		Referrer:         Normalize(query.Get("referrer")),
		DocumentReferrer: strings.TrimSpace(r.Referer()),
		ButtonType:       strings.TrimSpace(query.Get("type")),
		Timezone:         Timezone(query.Get("tz"), now),
	}
	_, ctx.ClientTimezone = ParseTimezone(query.Get("tz"))
	if _, err := r.Cookie(CookieProbe); err == nil {
		ctx.CookieSupport = true
	}
	if c, err := r.Cookie(CookieSuperLikeID); err == nil {
		ctx.ParentSuperLikeID = strings.TrimSpace(c.Value)
	}
	return ctx
}

// SocialType is the platform filter used when loading the creator's social links.
// Medium referrers are detected when no explicit type was given.
func (c Context) SocialType() string {
	if c.ButtonType != "" {
		return c.ButtonType
	}
	if IsMedium(c.Referrer) {
		return ButtonTypeMedium
	}
	return ""
}

// Meta builds the request tags for an outbound call.
func (c Context) Meta(cookieSupport bool) likecoin.RequestMeta {
	return likecoin.RequestMeta{
		Referrer:         c.Referrer,
		DocumentReferrer: c.DocumentReferrer,
		SessionID:        c.SessionID.String(),
		ButtonType:       c.ButtonType,
		CookieSupport:    &cookieSupport,
	}
}

// IsMedium reports whether raw points at a medium.com page.
func IsMedium(raw string) bool {
	return mediumRegex.MatchString(strings.TrimSpace(raw))
}

// Normalize cleans a referrer passed as a query value. Values that arrive percent-encoded
// twice are decoded once more, and the fragment is dropped.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") && strings.Contains(raw, "%") {
		if decoded, err := url.QueryUnescape(raw); err == nil {
			raw = decoded
		}
	}
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}
	return raw
}

// Timezone returns the UTC offset in hours as the like backend expects it ("8", "-7", "5.5").
// A valid tz parameter wins; otherwise the offset of now's location is used.
func Timezone(param string, now time.Time) string {
	if tz, ok := ParseTimezone(param); ok {
		return tz
	}
	_, offset := now.Zone()
	return strconv.FormatFloat(float64(offset)/3600, 'f', -1, 64)
}

// ParseTimezone validates a browser-supplied offset in hours, e.g. "-new Date().getTimezoneOffset()/60".
func ParseTimezone(param string) (string, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(param), 64)
	if err != nil || math.IsNaN(v) || v < -14 || v > 14 {
		return "", false
	}
	return strconv.FormatFloat(v, 'f', -1, 64), true
}

// ParseAmount reads the optional amount path segment. Leading digits are honoured;
// zero or anything unparsable yields nil.
func ParseAmount(raw string) *int {
	raw = strings.TrimSpace(raw)
	end := 0
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	if end == 0 {
		return nil
	}
	v, err := strconv.Atoi(raw[:end])
	if err != nil || v == 0 {
		return nil
	}
	return &v
}

package middleware

import (
	"net/http"

	"github.com/likecoin/likecoin-button/internal/httpx"
)

const (
	csrfHeader = "X-CSRF-Token"
	csrfName   = "csrf"
)

// CSRFToken binds a token to the widget session id. Third-party iframes often cannot keep
// cookies, so the token is verified against the sid form value instead of a cookie.
func (s *Sessions) CSRFToken(sid string) string {
	token, err := s.codec.Encode(csrfName, sid)
	if err != nil {
		return ""
	}
	return token
}

// VerifyCSRF reports whether token was issued for sid.
func (s *Sessions) VerifyCSRF(token, sid string) bool {
	if token == "" || sid == "" {
		return false
	}
	var got string
	if err := s.codec.Decode(csrfName, token, &got); err != nil {
		return false
	}
	return got == sid
}

// CSRF verifies modifying requests carry a token issued for their sid.
func (s *Sessions) CSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isSafeMethod(r.Method) && !s.VerifyCSRF(r.Header.Get(csrfHeader), r.FormValue("sid")) {
			httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeInvalidCSRF, "invalid CSRF token", http.StatusForbidden))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isSafeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

// Package httpx writes the JSON bodies of the widget endpoints.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/likecoin/likecoin-button/internal/requestctx"
)

// Error codes of the widget endpoints.
const (
	CodeWidgetNotFound  = "widget_not_found"
	CodeWidgetClosed    = "widget_closed"
	CodeInvalidWidget   = "invalid_widget"
	CodeInvalidTimezone = "invalid_timezone"
	CodeUpstream        = "upstream_failed"
	CodeInvalidCSRF     = "invalid_csrf"
	CodeRateLimited     = "rate_limited"
	CodeUnavailable     = "unavailable"
	CodeInternal        = "internal_server_error"
)

// Error is the JSON error body. Upstream messages are flattened to one short line.
type Error struct {
	Code       string        `json:"error"`
	Message    string        `json:"message"`
	Status     int           `json:"status"`
	RequestID  string        `json:"request_id,omitempty"`
	TraceID    string        `json:"trace_id,omitempty"`
	RetryAfter time.Duration `json:"-"`
}

// NewError builds an error body; a zero status means 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    oneLine(code, 80),
		Message: oneLine(message, 512),
		Status:  status,
	}
}

func (e Error) Error() string { return e.Code + ": " + e.Message }

// WithRetryAfter asks the client to wait d before retrying.
func (e Error) WithRetryAfter(d time.Duration) Error {
	e.RetryAfter = d
	return e
}

// WriteError writes e, tagged with the request and trace ids of ctx.
func WriteError(ctx context.Context, w http.ResponseWriter, e Error) {
	if e.Status == 0 {
		e.Status = http.StatusInternalServerError
	}
	if e.RequestID == "" {
		e.RequestID = oneLine(middleware.GetReqID(ctx), 80)
	}
	if e.TraceID == "" {
		e.TraceID = requestctx.TraceID(ctx)
	}
	if e.RetryAfter > 0 {
		secs := int((e.RetryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	WriteJSON(w, e.Status, e)
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func oneLine(value string, limit int) string {
	value = strings.Join(strings.Fields(value), " ")
	if len(value) <= limit {
		return value
	}
	value = value[:limit]
	for !utf8.ValidString(value) {
		value = value[:len(value)-1]
	}
	return value
}

package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	e := NewError(CodeRateLimited, "too many\nrequests", http.StatusTooManyRequests).WithRetryAfter(1500 * time.Millisecond)
	WriteError(context.Background(), rec, e)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rate_limited", body["error"])
	assert.Equal(t, "too many requests", body["message"])
	assert.Equal(t, float64(429), body["status"])
	assert.NotContains(t, body, "request_id")
}

func TestNewErrorDefaultsAndTruncates(t *testing.T) {
	e := NewError(CodeUpstream, strings.Repeat("讚", 300), 0)
	assert.Equal(t, http.StatusInternalServerError, e.Status)
	assert.LessOrEqual(t, len(e.Message), 512)
	assert.True(t, strings.HasPrefix(e.Error(), "upstream_failed: 讚"))
}

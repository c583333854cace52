package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMetricsRecorders(t *testing.T) {
	m := NewMetrics()
	m.RecordLikeFlush(3)
	m.RecordLikeFlush(2)
	m.RecordSuperLike("ok")
	m.RecordToggle("bookmark", "error")
	m.ObserveUpstream("get_user_min", "ok", 20*time.Millisecond)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.LikesFlushed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LikeBatches))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SuperLikes.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Toggles.WithLabelValues("bookmark", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.UpstreamDuration))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "likebutton_likes_flushed_total 5")
}

func TestRequestLoggerLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := InjectLogger(zap.New(core))(RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Debug("inside handler")
		if strings.HasSuffix(r.URL.Path, "/missing") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})))

	req := httptest.NewRequest(http.MethodPost, "/in/embed/abc/button/like", nil)
	req.Header.Set("HX-Request", "true")
	h.ServeHTTP(httptest.NewRecorder(), req)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	inner := logs.FilterMessage("inside handler").All()
	require.Len(t, inner, 2)
	assert.Equal(t, "POST", inner[0].ContextMap()["method"])
	assert.Equal(t, true, inner[0].ContextMap()["htmx"])

	done := logs.FilterMessage("request completed").All()
	require.Len(t, done, 2)
	assert.Equal(t, zapcore.InfoLevel, done[0].Level)
	assert.Equal(t, int64(2), done[0].ContextMap()["bytes"])
	assert.Equal(t, zapcore.WarnLevel, done[1].Level)
}

func TestRecoveryWritesEnvelope(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := Recovery(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"internal_server_error"`)
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger, err := NewLoggerTo("verbose", "stderr")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestRequestLoggerTagsButtonRoutes(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := chi.NewRouter()
	r.Use(InjectLogger(zap.New(core)))
	r.Use(RequestLogger)
	r.Get("/in/embed/{id}/button", func(w http.ResponseWriter, r *http.Request) {})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/in/embed/abc/button", nil))

	done := logs.FilterMessage("request completed").All()
	require.Len(t, done, 1)
	assert.Equal(t, "abc", done[0].ContextMap()["button_id"])
	assert.Equal(t, "/in/embed/{id}/button", done[0].ContextMap()["route"])
}

func TestClean(t *testing.T) {
	assert.Equal(t, "GETX", clean("GET\r\nX", maxMethodLen))
	assert.Equal(t, "讚讚", clean("讚讚讚", 2))
	assert.Equal(t, "/", cleanRoute(""))
}

package observability

import (
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/likecoin/likecoin-button/internal/httpx"
	"github.com/likecoin/likecoin-button/internal/requestctx"
)

// InjectLogger puts logger on every request context; a nil logger means no logging.
func InjectLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestctx.WithLogger(r.Context(), logger)))
		})
	}
}

// RequestLogger scopes the context logger to the request and writes one completion line
// per request. Server errors and panics log at error level, client errors at warn.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := requestLogger(r)
		r = r.WithContext(requestctx.WithLogger(r.Context(), logger))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		panicked := true
		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if panicked {
				status = max(status, http.StatusInternalServerError)
			}
			route := cleanRoute(routePattern(r))
			annotateSpan(r, route, status)

			fields := append([]zap.Field{
				zap.String("route", route),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
				zap.Int("bytes", ww.BytesWritten()),
			}, buttonFields(r)...)
			if ce := logger.Check(completionLevel(status), "request completed"); ce != nil {
				ce.Write(fields...)
			}
		}()
		next.ServeHTTP(ww, r)
		panicked = false
	})
}

func requestLogger(r *http.Request) *zap.Logger {
	ctx := r.Context()
	fields := []zap.Field{
		zap.String("request_id", middleware.GetReqID(ctx)),
		zap.String("method", clean(r.Method, maxMethodLen)),
		zap.String("path", cleanRoute(r.URL.Path)),
		zap.String("trace_id", requestctx.TraceID(ctx)),
	}
	if ip := remoteIP(r.RemoteAddr); ip != "" {
		fields = append(fields, zap.String("remote_ip", ip))
	}
	if ua := r.UserAgent(); ua != "" {
		fields = append(fields, zap.String("user_agent", clean(ua, maxUserAgentLen)))
	}
	if r.Header.Get("HX-Request") == "true" {
		fields = append(fields, zap.Bool("htmx", true))
	}
	return requestctx.Logger(ctx).With(fields...)
}

func completionLevel(status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

func annotateSpan(r *http.Request, route string, status int) {
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.Int("http.response.status_code", status),
		attribute.String("http.route", route),
	)
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}

// Recovery turns a panic into a logged stack trace and a JSON 500. fallback is used when
// no request logger is on the context.
func Recovery(fallback *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger := requestctx.Logger(r.Context())
				if logger == requestctx.NoopLogger() && fallback != nil {
					logger = fallback
				}
				logger.Error("panic recovered", zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))
				httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeInternal, "internal server error", http.StatusInternalServerError))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// routePattern prefers chi's matched pattern so ids do not explode label cardinality.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func remoteIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return clean(addr, maxIPLen)
}

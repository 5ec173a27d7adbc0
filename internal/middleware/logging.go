package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/partnerportal/portal/internal/auth"
)

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// authSink is filled in by the authentication middleware further down the
// chain so the access log can name the caller.
type authSink struct {
	userID        string
	integrationID string
}

const authSinkKey contextKey = "auth_sink"

// Logger returns a middleware that logs HTTP requests.
// Headers and bodies are never logged; they carry passwords, tokens and keys.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sink := &authSink{}
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r.WithContext(contextWithSink(r.Context(), sink)))

			attrs := []slog.Attr{
				slog.String("request_id", GetRequestID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", wrapped.status),
				slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
			}
			if sink.userID != "" {
				attrs = append(attrs, slog.String("user_id", sink.userID))
			}
			if sink.integrationID != "" {
				attrs = append(attrs, slog.String("integration_id", sink.integrationID))
			}

			level := slog.LevelInfo
			if wrapped.status >= 500 {
				level = slog.LevelError
			} else if wrapped.status >= 400 {
				level = slog.LevelWarn
			}

			logger.LogAttrs(r.Context(), level, "http request", attrs...)
		})
	}
}

func contextWithSink(ctx context.Context, sink *authSink) context.Context {
	return context.WithValue(ctx, authSinkKey, sink)
}

// recordCaller notes the authenticated principal for the access log.
func recordCaller(r *http.Request) {
	sink, ok := r.Context().Value(authSinkKey).(*authSink)
	if !ok {
		return
	}
	if claims := auth.SessionFromContext(r.Context()); claims != nil {
		sink.userID = claims.UserID()
	}
	if in := auth.IntegrationFromContext(r.Context()); in != nil {
		sink.integrationID = in.ID
	}
}

// Package middleware contains the storefront's HTTP middleware.
//
// A middleware wraps an http.Handler to add behaviour around every request
// (logging here; auth lives in internal/auth) without touching the handlers:
//
//	func MyMiddleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // before
//	        next.ServeHTTP(w, r)
//	        // after
//	    })
//	}
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

type loggerKey struct{}

// LoggerFrom returns the request-scoped logger that Logger stored in ctx,
// or slog.Default() outside a request.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// Logger writes one access log line per request and hands downstream code
// a logger already tagged with chi's request id (see LoggerFrom), so an
// error logged by a handler can be matched to its access line.
//
// Level follows the response: 5xx at Error, 4xx at Warn, the rest at Info.
// Must run after chimiddleware.RequestID.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := chimiddleware.GetReqID(r.Context())
			reqLogger := logger.With(slog.String("requestID", reqID))

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), loggerKey{}, reqLogger)))

			status := ww.Status()
			if status == 0 {
				// nothing was written; net/http sends 200
				status = http.StatusOK
			}

			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}

			reqLogger.LogAttrs(r.Context(), level, "request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Duration("duration", time.Since(start)),
				slog.Int("bytes", ww.BytesWritten()),
			)
		})
	}
}

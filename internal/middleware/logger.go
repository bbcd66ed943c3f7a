package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/exp/slog"
)

// RequestObserver receives the matched route pattern of every request.
type RequestObserver func(method, route string, status int, elapsed time.Duration)

// NewStructuredLogger logs one line per request through logger. Observers,
// if any, are called after the handler returns.
func NewStructuredLogger(logger *slog.Logger, observers ...RequestObserver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			elapsed := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}

			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", route),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("elapsed", elapsed),
			}
			if id := chimw.GetReqID(r.Context()); id != "" {
				attrs = append(attrs, slog.String("request_id", id))
			}
			if status >= http.StatusInternalServerError {
				logger.Error("request served", attrs...)
			} else {
				logger.Info("request served", attrs...)
			}

			for _, o := range observers {
				o(r.Method, route, status, elapsed)
			}
		}
		return http.HandlerFunc(fn)
	}
}

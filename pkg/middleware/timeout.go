package middleware

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Timeout bounds the request context with d unless the caller already set a deadline.
// Handlers observe the deadline through the context; the response is not cut off.
func Timeout(d time.Duration, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, hasDeadline := r.Context().Deadline(); hasDeadline {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))

			if ctx.Err() == context.DeadlineExceeded {
				logger.Warn("Handler exceeded timeout",
					zap.String("path", r.URL.Path),
					zap.Duration("timeout", d),
				)
			}
		})
	}
}

// Chain applies middlewares so the first one listed is the outermost
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

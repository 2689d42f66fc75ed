package middleware

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// userHolder lets the outer logger see the user id set by the auth middleware further down the chain.
type userHolder struct {
	userID string
}

const userHolderKey contextKey = "userHolder"

func LoggerMiddleware(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			holder := &userHolder{}
			r = r.WithContext(contextWithHolder(r, holder))

			next.ServeHTTP(rw, r)

			userID := holder.userID
			if userID == "" {
				userID = "anonymous"
			}

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote", r.RemoteAddr),
				zap.Int("status", rw.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("user_id", userID),
			}

			switch {
			case rw.statusCode >= 500:
				log.Error("request", fields...)
			case rw.statusCode >= 400:
				log.Warn("request", fields...)
			default:
				log.Info("request", fields...)
			}
		})
	}
}

func contextWithHolder(r *http.Request, h *userHolder) context.Context {
	return context.WithValue(r.Context(), userHolderKey, h)
}

func recordUser(r *http.Request, userID string) {
	if h, ok := r.Context().Value(userHolderKey).(*userHolder); ok {
		h.userID = userID
	}
}

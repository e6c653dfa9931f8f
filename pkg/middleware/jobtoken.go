package middleware

import (
	"crypto/subtle"
	"net/http"

	"tour-booking/pkg/utils"

	"go.uber.org/zap"
)

const JobTokenHeader = "X-Job-Token"

// JobToken guards internal job endpoints with a shared secret. With no token
// configured every call is refused.
func JobToken(token string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				logger.Warn("Job endpoint called but JOBS_TOKEN is not set", zap.String("path", r.URL.Path))
				utils.ResponseForbidden(w, "Job endpoints are disabled")
				return
			}

			got := r.Header.Get(JobTokenHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				logger.Warn("Invalid job token", zap.String("ip", clientIP(r)))
				utils.ResponseUnauthorized(w, "Invalid job token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

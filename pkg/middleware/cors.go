package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows the listed origins; an empty list or "*" allows any.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Job-Token"},
		MaxAge:         600,
	})
}

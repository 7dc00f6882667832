package api

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows browser access to the admin routes from the listed origins.
// cors treats an empty origin list as "*", so no origins means no CORS headers at all.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", AdminKeyHeader},
	})
}

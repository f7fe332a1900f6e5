package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/agentstation/metastage/internal/server/response"
)

// AuthConfig holds API key authentication configuration.
type AuthConfig struct {
	// APIKey is the expected key. Empty disables authentication.
	APIKey string
	// PublicPaths are served without authentication.
	PublicPaths []string
}

// Auth returns middleware that validates an API key from the X-API-Key
// header or an Authorization bearer token.
func Auth(config AuthConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.APIKey == "" || isPublicPath(r.URL.Path, config.PublicPaths) {
				next.ServeHTTP(w, r)
				return
			}

			key := extractAPIKey(r)
			if key == "" {
				response.JSON(w, http.StatusUnauthorized, response.Fail(
					"UNAUTHORIZED",
					"Authentication required",
					"Provide an API key via X-API-Key header or Authorization bearer token",
				))
				return
			}

			if subtle.ConstantTimeCompare([]byte(key), []byte(config.APIKey)) != 1 {
				response.JSON(w, http.StatusUnauthorized, response.Fail(
					"UNAUTHORIZED",
					"Invalid API key",
					"",
				))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractAPIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func isPublicPath(path string, publicPaths []string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AuthConfig controls which requests need the API key.
type AuthConfig struct {
	// APIKey is the shared secret. Empty disables authentication.
	APIKey string
	// PublicReads lets GET and HEAD requests through without a key, so oracle
	// state stays readable while only state-changing calls are gated.
	PublicReads bool
	// Public lists paths that are always served.
	Public []string
}

// Auth returns middleware that validates API requests using either a Bearer
// token in the Authorization header or a static key in the X-API-Key header.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	open := make(map[string]bool, len(cfg.Public))
	for _, p := range cfg.Public {
		open[p] = true
	}
	key := []byte(cfg.APIKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(key) == 0 || open[r.URL.Path] || r.Method == http.MethodOptions ||
				(cfg.PublicReads && isRead(r.Method)) {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			if token == "" {
				writeUnauthorized(w, "missing authentication token")
				return
			}
			if subtle.ConstantTimeCompare([]byte(token), key) != 1 {
				writeUnauthorized(w, "invalid authentication token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isRead(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// extractToken looks for a token in the Authorization header (Bearer scheme)
// or in the X-API-Key header.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// writeUnauthorized sends a 401 response in the API's error shape.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("WWW-Authenticate", `Bearer realm="realityarb"`)
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `","kind":"unauthorized"}`))
}

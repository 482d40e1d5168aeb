package auth

import (
	"net/http"
)

// APIKeyMiddleware returns an http middleware that enforces API key
// authentication on every request.
//
// Behaviour:
//   - If mode != "apikey" or key == "", all requests are allowed (pass-through).
//   - Otherwise the middleware reads the value of header from the request and
//     compares it to key. A WebSocket upgrade from a browser cannot set
//     headers, so an "api_key" query parameter is accepted as a fallback.
//   - A missing, empty, or incorrect key returns 401.
func APIKeyMiddleware(mode, header, key string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Non-apikey modes or unconfigured key: allow everything.
		if mode != "apikey" || key == "" {
			next.ServeHTTP(w, r)
			return
		}

		got := r.Header.Get(header)
		if got == "" {
			got = r.URL.Query().Get("api_key")
		}
		if got != key {
			http.Error(w, "invalid api key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

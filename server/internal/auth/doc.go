// Package auth provides authentication middleware for coursepulse-server.
//
// APIKeyMiddleware(mode, header, key, next) wraps an http.Handler and
// validates the API key from the named HTTP header, falling back to an
// "api_key" query parameter for WebSocket upgrades.
//
// When mode != "apikey" or key == "", all requests pass through (useful for
// local development with auth disabled). When the key is incorrect or absent,
// the middleware returns 401 immediately.
package auth

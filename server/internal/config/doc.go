// Package config loads the server-side configuration from the `server:`
// section of config.yaml (the `client:` key in the same file is ignored by
// the server binary).
//
// Config fields:
//   - HTTPPort     — port for the REST API and WebSocket hub (default 8080)
//   - Auth.Mode    — "apikey" or "none"
//   - Auth.KeyEnv  — environment variable holding the expected API key
//   - Auth.Header  — HTTP header name (default "x-api-key")
//   - History      — per-stream retention: limit (default 100) and TTL (default 5m)
//   - Bridge       — Redis pub/sub fan-out between instances (off by default)
//   - Notify       — offline-delivery rules and webhook targets
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, onChange) hot-reloads the file on change so notify rules
// can be swapped without a restart.
package config

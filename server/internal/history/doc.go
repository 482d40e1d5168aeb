// Package history implements per-stream message retention for the
// coursepulse server.
//
// Store keeps the last N envelopes of every stream (default 100, FIFO
// eviction) so late-joining subscribers receive recent traffic on connect.
// New(limit, ttl) creates a Store; Store.Run(ctx) starts the background TTL
// loop that drops streams idle for longer than the TTL — blocks until ctx is
// cancelled.
package history

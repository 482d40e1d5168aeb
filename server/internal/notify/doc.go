// Package notify delivers webhook notifications for publishes that reached
// a stream with no connected subscribers. Rules select streams by prefix and
// optionally by event type; a per-rule, per-stream cooldown deduplicates
// repeated misses.
package notify

// Package bridge relays stream envelopes between server instances over
// Redis pub/sub, keeping WebSocket clients on different instances in sync.
// Each instance tags outbound messages with a unique instance ID and
// ignores its own messages on the inbound path.
package bridge

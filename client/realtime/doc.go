// Package realtime implements the coursepulse channel client: one logical
// WebSocket subscription with automatic reconnection, normalized envelope
// delivery, and a bounded message history.
//
// A Client is created per logical stream (a user's notification feed, a
// lesson collaboration room) and torn down when its owner goes away. All
// configuration is explicit in Config — the package reads no environment.
//
// Connection states follow the transport: disconnected → connecting →
// connected, back to disconnected on connection loss, and error once the
// configured attempt budget is exhausted. The error state does not self-heal;
// it is left via Reconnect or a signal on Config.Wake. Transport failures are
// logged and surfaced through state transitions and Handlers.OnError — they
// are never returned to the caller.
package realtime

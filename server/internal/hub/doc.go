// Package hub implements the WebSocket fan-out for the coursepulse server.
//
// Hub manages subscribers keyed by stream (dashboard:<userId>, lesson:<lessonId>,
// or a named feed) and delivers published envelopes to all of a stream's
// subscribers. On connect a late joiner first receives the stream's retained
// history, then live traffic.
//
// New(hist) creates a Hub backed by a history store.
// Hub.Run(ctx) blocks until ctx is cancelled, then closes all connections.
// Hub.ServeHTTP upgrades an HTTP connection; the stream is resolved from the
// query parameters (type=dashboard&userId=…, lessonId=…, or stream=…).
//
// Wire format on the socket, both directions:
//
//	{
//	  "type":      "dashboard_update" | "progress" | "message",
//	  "data":      /* opaque payload */,
//	  "timestamp": 1700000000000
//	}
//
// Subscribers of collaboration rooms (lesson:*) may send envelopes, which are
// recorded and rebroadcast to the room. All other streams are receive-only.
// The upgrader accepts all origins; apply CORS restrictions at the reverse
// proxy level. The WebSocket endpoint is mounted at /ws by the server.
package hub

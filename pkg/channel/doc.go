// Package channel defines the wire types shared by the coursepulse client
// and server: the message envelope, the event names carried on a stream, and
// the mapping from a subscription path to connection parameters and the
// canonical server-side stream key.
package channel

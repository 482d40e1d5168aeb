package bridge

import "github.com/coursepulse/coursepulse/pkg/channel"

// Relay is the cross-instance fan-out contract. Implementations carry
// envelopes published on one server instance to every other instance.
type Relay interface {
	// Publish sends an envelope to all other instances.
	Publish(stream string, env channel.Envelope) error

	// Start begins listening for envelopes from other instances.
	Start() error

	// Stop shuts down the relay connection.
	Stop() error

	// Available reports whether the relay is connected and operational.
	Available() bool
}

// LocalTarget is implemented by the hub to receive envelopes relayed from
// other instances. Delivery through PublishLocal must not be forwarded back
// to the relay.
type LocalTarget interface {
	PublishLocal(stream string, env channel.Envelope)
}

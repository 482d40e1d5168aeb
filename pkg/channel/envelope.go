package channel

import (
	"encoding/json"
	"time"
)

// Event names carried in Envelope.Type. Payload schemas are owned by the
// producing service; the channel layer forwards Data uninterpreted.
const (
	// EventDashboardUpdate carries a refreshed dashboard payload for one user.
	EventDashboardUpdate = "dashboard_update"

	// EventProgress carries a lesson/quiz progress tick.
	EventProgress = "progress"

	// EventMessage is the generic chat/room event, and the fallback type for
	// frames that could not be decoded.
	EventMessage = "message"
)

// Envelope is the normalized wrapper around every message on a stream.
// Timestamp is producer-assigned epoch milliseconds; senders stamp it when
// absent. Data is opaque to the channel layer.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Stamp sets Timestamp to the current time if it has not been assigned.
func (e *Envelope) Stamp() {
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
}

// Decode parses a raw frame into an Envelope. A frame that is not valid JSON,
// or that lacks a type, yields the fallback envelope instead of an error so a
// bad frame can never break the dispatch chain. A missing timestamp is
// stamped with the receive time.
func Decode(raw []byte) Envelope {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		return Fallback(raw)
	}
	env.Stamp()
	return env
}

// Fallback wraps an undecodable frame as a generic message event, with the
// raw bytes carried as a JSON string payload. Bytes that are not valid UTF-8
// are replaced with U+FFFD so the payload always re-marshals.
func Fallback(raw []byte) Envelope {
	data, _ := json.Marshal(string(raw))
	return Envelope{
		Type:      EventMessage,
		Data:      json.RawMessage(data),
		Timestamp: time.Now().UnixMilli(),
	}
}

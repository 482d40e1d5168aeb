package api

import "github.com/coursepulse/coursepulse/pkg/channel"

// PublishRequest is the body for POST /api/v1/publish.
type PublishRequest struct {
	Stream   string           `json:"stream"`
	Envelope channel.Envelope `json:"envelope"`
}

// PublishResponse acknowledges an accepted publish.
type PublishResponse struct {
	Stream    string `json:"stream"`
	Timestamp int64  `json:"timestamp"`
}

// StreamResponse is one stream entry in GET /api/v1/streams.
type StreamResponse struct {
	Stream      string `json:"stream"`
	Subscribers int    `json:"subscribers"`
	Retained    int    `json:"retained"`
	Room        bool   `json:"room"`
}

// HistoryResponse is the payload for GET /api/v1/streams/{key}/history.
type HistoryResponse struct {
	Stream    string             `json:"stream"`
	Count     int                `json:"count"`
	Envelopes []channel.Envelope `json:"envelopes"`
}

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	State     string `json:"state"`
	Clients   int    `json:"clients"`
	Streams   int    `json:"streams"`
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
	Bridge    string `json:"bridge"` // "connected" | "disconnected" | "disabled"
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}

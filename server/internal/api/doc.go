// Package api implements the coursepulse-server REST surface:
//
//	POST /api/v1/publish                  backend ingress onto a stream
//	GET  /api/v1/streams                  live streams with subscriber counts
//	GET  /api/v1/streams/{key}/history    retained envelopes for one stream
//	GET  /api/v1/health                   hub counters and bridge state
//	GET  /metrics                         Prometheus text exposition
//
// All responses are JSON except /metrics. The handler holds no state of its
// own; it reads from the hub and the history store.
package api

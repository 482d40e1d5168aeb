package api

import (
	"log/slog"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// metrics handles GET /metrics — Prometheus text exposition of the hub and
// history counters.
func (a *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats := a.hub.Stats()
	families := []*dto.MetricFamily{
		gauge("coursepulse_connected_clients",
			"Number of WebSocket clients currently connected.",
			float64(stats.Clients)),
		gauge("coursepulse_active_streams",
			"Number of streams with at least one subscriber.",
			float64(stats.Streams)),
		gauge("coursepulse_history_streams",
			"Number of streams with retained history.",
			float64(a.hist.Count())),
		counter("coursepulse_messages_published_total",
			"Total envelopes published through the hub.",
			float64(stats.Published)),
		counter("coursepulse_messages_dropped_total",
			"Total envelopes dropped on slow subscriber disconnect.",
			float64(stats.Dropped)),
	}

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			slog.Error("api: metrics encode failed", "family", mf.GetName(), "err", err)
			return
		}
	}
}

func gauge(name, help string, value float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: strPtr(name),
		Help: strPtr(help),
		Type: dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{
			{Gauge: &dto.Gauge{Value: f64Ptr(value)}},
		},
	}
}

func counter(name, help string, value float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: strPtr(name),
		Help: strPtr(help),
		Type: dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{
			{Counter: &dto.Counter{Value: f64Ptr(value)}},
		},
	}
}

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }

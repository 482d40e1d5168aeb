package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coursepulse/coursepulse/pkg/channel"
	"github.com/coursepulse/coursepulse/server/internal/api"
	"github.com/coursepulse/coursepulse/server/internal/history"
	"github.com/coursepulse/coursepulse/server/internal/hub"
)

// --- test helpers -----------------------------------------------------------

func newHandler() (http.Handler, *hub.Hub, *history.Store) {
	st := history.New(100, 5*time.Minute)
	h := hub.New(st)
	return api.New(h, st, nil), h, st
}

func env(typ string, ts int64) channel.Envelope {
	return channel.Envelope{Type: typ, Data: json.RawMessage(`{}`), Timestamp: ts}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

// --- /api/v1/publish --------------------------------------------------------

func TestPublish_AcceptsAndRecords(t *testing.T) {
	h, _, st := newHandler()
	rr := post(t, h, "/api/v1/publish",
		`{"stream":"dashboard:42","envelope":{"type":"progress","data":{"pct":40},"timestamp":123}}`)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, want 202 (body: %s)", rr.Code, rr.Body.String())
	}
	var resp map[string]interface{}
	decode(t, rr, &resp)
	if resp["stream"] != "dashboard:42" {
		t.Errorf("stream: got %v, want dashboard:42", resp["stream"])
	}
	if resp["timestamp"].(float64) != 123 {
		t.Errorf("timestamp: got %v, want 123", resp["timestamp"])
	}
	if st.Len("dashboard:42") != 1 {
		t.Errorf("history: got %d entries, want 1", st.Len("dashboard:42"))
	}
}

func TestPublish_DefaultsStream(t *testing.T) {
	h, _, st := newHandler()
	rr := post(t, h, "/api/v1/publish", `{"envelope":{"type":"message","data":"hi"}}`)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, want 202", rr.Code)
	}
	if st.Len(channel.DefaultStream) != 1 {
		t.Errorf("history on default stream: got %d, want 1", st.Len(channel.DefaultStream))
	}
}

func TestPublish_StampsMissingTimestamp(t *testing.T) {
	h, _, _ := newHandler()
	rr := post(t, h, "/api/v1/publish", `{"stream":"dashboard:1","envelope":{"type":"progress"}}`)

	var resp map[string]interface{}
	decode(t, rr, &resp)
	if resp["timestamp"].(float64) == 0 {
		t.Error("timestamp: not stamped")
	}
}

func TestPublish_Rejections(t *testing.T) {
	h, _, _ := newHandler()

	cases := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{not json`, http.StatusBadRequest},
		{"empty type", `{"stream":"s","envelope":{"data":"x"}}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := post(t, h, "/api/v1/publish", tc.body)
			if rr.Code != tc.want {
				t.Errorf("status: got %d, want %d", rr.Code, tc.want)
			}
		})
	}
}

func TestPublish_GetNotAllowed(t *testing.T) {
	h, _, _ := newHandler()
	rr := get(t, h, "/api/v1/publish")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rr.Code)
	}
}

// --- /api/v1/streams --------------------------------------------------------

func TestStreams_Empty(t *testing.T) {
	h, _, _ := newHandler()
	rr := get(t, h, "/api/v1/streams")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp []map[string]interface{}
	decode(t, rr, &resp)
	if len(resp) != 0 {
		t.Errorf("streams: got %d, want 0", len(resp))
	}
}

func TestStreams_ListsRetainedSorted(t *testing.T) {
	h, hb, _ := newHandler()
	hb.Publish("lesson:room9", env(channel.EventMessage, 1))
	hb.Publish("dashboard:42", env(channel.EventProgress, 2))

	rr := get(t, h, "/api/v1/streams")
	var resp []map[string]interface{}
	decode(t, rr, &resp)

	if len(resp) != 2 {
		t.Fatalf("streams: got %d, want 2", len(resp))
	}
	if resp[0]["stream"] != "dashboard:42" || resp[1]["stream"] != "lesson:room9" {
		t.Errorf("order: got %v then %v, want alphabetical", resp[0]["stream"], resp[1]["stream"])
	}
	if resp[1]["room"] != true {
		t.Errorf("lesson:room9 room flag: got %v, want true", resp[1]["room"])
	}
	if resp[0]["retained"].(float64) != 1 {
		t.Errorf("retained: got %v, want 1", resp[0]["retained"])
	}
}

// --- /api/v1/streams/{key}/history ------------------------------------------

func TestStreamHistory_ReturnsEnvelopesInOrder(t *testing.T) {
	h, hb, _ := newHandler()
	hb.Publish("dashboard:42", env(channel.EventProgress, 1))
	hb.Publish("dashboard:42", env(channel.EventDashboardUpdate, 2))

	rr := get(t, h, "/api/v1/streams/dashboard:42/history")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}

	var resp api.HistoryResponse
	decode(t, rr, &resp)
	if resp.Stream != "dashboard:42" || resp.Count != 2 {
		t.Fatalf("response: got %+v", resp)
	}
	if resp.Envelopes[0].Timestamp != 1 || resp.Envelopes[1].Timestamp != 2 {
		t.Errorf("order: got %d, %d; want 1, 2", resp.Envelopes[0].Timestamp, resp.Envelopes[1].Timestamp)
	}
}

func TestStreamHistory_UnknownStreamEmpty(t *testing.T) {
	h, _, _ := newHandler()
	rr := get(t, h, "/api/v1/streams/dashboard:404/history")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.HistoryResponse
	decode(t, rr, &resp)
	if resp.Count != 0 || len(resp.Envelopes) != 0 {
		t.Errorf("response: got %+v, want empty", resp)
	}
}

func TestStreamHistory_BadPaths(t *testing.T) {
	h, _, _ := newHandler()
	for _, path := range []string{
		"/api/v1/streams//history",
		"/api/v1/streams/dashboard:42",
		"/api/v1/streams/a/b/history",
	} {
		rr := get(t, h, path)
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s: got %d, want 404", path, rr.Code)
		}
	}
}

// --- /api/v1/health ---------------------------------------------------------

func TestHealth_NoBridge(t *testing.T) {
	h, hb, _ := newHandler()
	hb.Publish("dashboard:42", env(channel.EventProgress, 1))

	rr := get(t, h, "/api/v1/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}

	var resp api.HealthResponse
	decode(t, rr, &resp)
	if resp.State != "ok" {
		t.Errorf("state: got %q, want ok", resp.State)
	}
	if resp.Published != 1 {
		t.Errorf("published: got %d, want 1", resp.Published)
	}
	if resp.Bridge != "disabled" {
		t.Errorf("bridge: got %q, want disabled", resp.Bridge)
	}
}

type fakeAvail bool

func (f fakeAvail) Available() bool { return bool(f) }

func TestHealth_BridgeStates(t *testing.T) {
	st := history.New(100, 5*time.Minute)
	hb := hub.New(st)

	for _, tc := range []struct {
		avail fakeAvail
		want  string
	}{
		{true, "connected"},
		{false, "disconnected"},
	} {
		h := api.New(hb, st, tc.avail)
		var resp api.HealthResponse
		decode(t, get(t, h, "/api/v1/health"), &resp)
		if resp.Bridge != tc.want {
			t.Errorf("bridge: got %q, want %q", resp.Bridge, tc.want)
		}
	}
}

// --- /metrics ---------------------------------------------------------------

func TestMetrics_TextExposition(t *testing.T) {
	h, hb, _ := newHandler()
	hb.Publish("dashboard:42", env(channel.EventProgress, 1))
	hb.Publish("dashboard:42", env(channel.EventProgress, 2))

	rr := get(t, h, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}

	body := rr.Body.String()
	for _, want := range []string{
		"# TYPE coursepulse_connected_clients gauge",
		"# TYPE coursepulse_messages_published_total counter",
		"coursepulse_messages_published_total 2",
		"coursepulse_history_streams 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q (body:\n%s)", want, body)
		}
	}
}

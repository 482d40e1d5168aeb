package channel_test

import (
	"net/url"
	"testing"

	"github.com/coursepulse/coursepulse/pkg/channel"
)

func TestParseParams_Notifications(t *testing.T) {
	v := channel.ParseParams("/notifications/42")

	if got := v.Get("type"); got != "dashboard" {
		t.Errorf("type: got %q, want dashboard", got)
	}
	if got := v.Get("userId"); got != "42" {
		t.Errorf("userId: got %q, want 42", got)
	}
}

func TestParseParams_Collaboration(t *testing.T) {
	v := channel.ParseParams("/collaboration/room9")

	if got := v.Get("lessonId"); got != "room9" {
		t.Errorf("lessonId: got %q, want room9", got)
	}
	if v.Get("type") != "" {
		t.Errorf("type: got %q, want empty", v.Get("type"))
	}
}

func TestParseParams_ArbitraryQuery(t *testing.T) {
	v := channel.ParseParams("/feed?stream=announcements&limit=5")

	if got := v.Get("stream"); got != "announcements" {
		t.Errorf("stream: got %q, want announcements", got)
	}
	if got := v.Get("limit"); got != "5" {
		t.Errorf("limit: got %q, want 5", got)
	}
}

func TestParseParams_NoQuery(t *testing.T) {
	v := channel.ParseParams("/feed")
	if len(v) != 0 {
		t.Errorf("params: got %v, want empty", v)
	}
}

func TestStreamKey(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"dashboard", "/notifications/42", "dashboard:42"},
		{"lesson room", "/collaboration/room9", "lesson:room9"},
		{"explicit stream", "/feed?stream=announcements", "announcements"},
		{"no stream named", "/feed", channel.DefaultStream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := channel.StreamKey(channel.ParseParams(tt.path)); got != tt.want {
				t.Errorf("StreamKey(%q): got %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestStreamKey_DashboardWithoutUser(t *testing.T) {
	v := url.Values{}
	v.Set("type", "dashboard")
	if got := channel.StreamKey(v); got != channel.DefaultStream {
		t.Errorf("StreamKey: got %q, want %q", got, channel.DefaultStream)
	}
}

func TestIsRoom(t *testing.T) {
	if !channel.IsRoom("lesson:room9") {
		t.Error("IsRoom(lesson:room9): got false, want true")
	}
	if channel.IsRoom("dashboard:42") {
		t.Error("IsRoom(dashboard:42): got true, want false")
	}
}

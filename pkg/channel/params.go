package channel

import (
	"net/url"
	"strings"
)

// Subscription path prefixes recognised by ParseParams.
const (
	notificationsPrefix = "/notifications/"
	collaborationPrefix = "/collaboration/"
)

// DefaultStream is the stream key used when the connection parameters name
// no specific stream.
const DefaultStream = "lobby"

// ParseParams derives the connection query parameters for a subscription
// path. Notification paths subscribe to one user's dashboard stream,
// collaboration paths to one lesson room; any other path contributes its own
// query string verbatim.
//
//	/notifications/42      → type=dashboard&userId=42
//	/collaboration/room9   → lessonId=room9
//	/feed?stream=announce  → stream=announce
func ParseParams(path string) url.Values {
	p, query, _ := strings.Cut(path, "?")

	v := url.Values{}
	switch {
	case strings.HasPrefix(p, notificationsPrefix):
		v.Set("type", "dashboard")
		v.Set("userId", strings.TrimPrefix(p, notificationsPrefix))
	case strings.HasPrefix(p, collaborationPrefix):
		v.Set("lessonId", strings.TrimPrefix(p, collaborationPrefix))
	default:
		if parsed, err := url.ParseQuery(query); err == nil {
			v = parsed
		}
	}
	return v
}

// StreamKey maps connection parameters to the canonical server-side stream
// name. Dashboard subscriptions are per-user, collaboration rooms per-lesson.
func StreamKey(v url.Values) string {
	if v.Get("type") == "dashboard" && v.Get("userId") != "" {
		return "dashboard:" + v.Get("userId")
	}
	if id := v.Get("lessonId"); id != "" {
		return "lesson:" + id
	}
	if s := v.Get("stream"); s != "" {
		return s
	}
	return DefaultStream
}

// IsRoom reports whether a stream key names a collaboration room, i.e. a
// stream whose subscribers may themselves publish.
func IsRoom(key string) bool {
	return strings.HasPrefix(key, "lesson:")
}

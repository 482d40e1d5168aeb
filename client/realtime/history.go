package realtime

import (
	"sync"

	"github.com/coursepulse/coursepulse/pkg/channel"
)

// history is a bounded FIFO of envelopes: once limit entries are held, the
// oldest is evicted to make room for each new one.
type history struct {
	mu    sync.Mutex
	buf   []channel.Envelope
	limit int
}

func newHistory(limit int) *history {
	return &history{buf: make([]channel.Envelope, 0, limit), limit: limit}
}

func (h *history) add(env channel.Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buf) >= h.limit {
		h.buf = h.buf[1:]
	}
	h.buf = append(h.buf, env)
}

// list returns a copy of the retained envelopes, oldest first.
func (h *history) list() []channel.Envelope {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]channel.Envelope, len(h.buf))
	copy(out, h.buf)
	return out
}

func (h *history) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.buf)
}

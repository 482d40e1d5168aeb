package history

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coursepulse/coursepulse/pkg/channel"
)

// entry is one stream's retained envelopes together with the time of the
// last append.
type entry struct {
	envs      []channel.Envelope
	updatedAt time.Time
}

// Store is a thread-safe in-memory message history, keyed by stream. Each
// stream keeps at most limit envelopes, oldest evicted first. A background
// goroutine (Run) drops streams that have seen no traffic within the TTL.
type Store struct {
	mu      sync.RWMutex
	streams map[string]*entry
	limit   int
	ttl     time.Duration
	now     func() time.Time // injectable for deterministic tests
}

// New creates a Store retaining up to limit envelopes per stream, evicting
// streams idle for longer than ttl.
func New(limit int, ttl time.Duration) *Store {
	return &Store{
		streams: make(map[string]*entry),
		limit:   limit,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Append records an envelope on a stream, evicting the stream's oldest
// envelope when the per-stream limit is reached.
func (s *Store) Append(stream string, env channel.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.streams[stream]
	if !ok {
		e = &entry{envs: make([]channel.Envelope, 0, s.limit)}
		s.streams[stream] = e
	}
	if len(e.envs) >= s.limit {
		e.envs = e.envs[1:]
	}
	e.envs = append(e.envs, env)
	e.updatedAt = s.now()
}

// List returns a copy of the retained envelopes for a stream, oldest first.
// An unknown stream yields an empty slice.
func (s *Store) List(stream string) []channel.Envelope {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.streams[stream]
	if !ok {
		return nil
	}
	out := make([]channel.Envelope, len(e.envs))
	copy(out, e.envs)
	return out
}

// Len returns the number of envelopes retained for a stream.
func (s *Store) Len(stream string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.streams[stream]
	if !ok {
		return 0
	}
	return len(e.envs)
}

// Streams returns the names of streams with traffic inside the TTL window.
// Idle streams that have not yet been evicted are excluded.
func (s *Store) Streams() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-s.ttl)
	out := make([]string, 0, len(s.streams))
	for name, e := range s.streams {
		if e.updatedAt.After(cutoff) {
			out = append(out, name)
		}
	}
	return out
}

// Count returns the total number of streams currently held, including idle ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.streams)
}

// Evict removes streams whose last append is older than now minus TTL.
// It returns the number of streams removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-s.ttl)
	removed := 0
	for name, e := range s.streams {
		if !e.updatedAt.After(cutoff) {
			delete(s.streams, name)
			removed++
		}
	}
	return removed
}

// Run starts the background TTL eviction loop. It ticks at half the TTL
// interval (minimum 1 second) so idle streams are dropped promptly. Run
// blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("history: evicted idle streams", "count", n)
			}
		}
	}
}

package realtime

import (
	"testing"
	"time"

	"github.com/coursepulse/coursepulse/pkg/channel"
)

func envAt(ts int64) channel.Envelope {
	return channel.Envelope{Type: channel.EventMessage, Timestamp: ts}
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	bo := newBackoff(time.Second, 4*time.Second)

	// With ±25 % jitter each delay stays within [0.75x, 1.25x] of the nominal
	// value, and the nominal value doubles up to the cap.
	nominals := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second}
	for i, nominal := range nominals {
		d := bo.next()
		lo := time.Duration(float64(nominal) * 0.75)
		hi := time.Duration(float64(nominal) * 1.25)
		if d < lo || d > hi {
			t.Errorf("next %d: got %v, want within [%v, %v]", i, d, lo, hi)
		}
	}
}

func TestBackoff_Reset(t *testing.T) {
	bo := newBackoff(time.Second, time.Minute)
	bo.next()
	bo.next()
	bo.reset()

	d := bo.next()
	if d > 1250*time.Millisecond {
		t.Errorf("next after reset: got %v, want ~1s", d)
	}
}

func TestHistory_EvictsOldestFirst(t *testing.T) {
	h := newHistory(3)
	for i := int64(1); i <= 5; i++ {
		h.add(envAt(i))
	}

	if h.len() != 3 {
		t.Fatalf("len: got %d, want 3", h.len())
	}
	got := h.list()
	for i, want := range []int64{3, 4, 5} {
		if got[i].Timestamp != want {
			t.Errorf("entry %d: got timestamp %d, want %d", i, got[i].Timestamp, want)
		}
	}
}

func TestHistory_ListReturnsCopy(t *testing.T) {
	h := newHistory(3)
	h.add(envAt(1))

	out := h.list()
	out[0].Timestamp = 99

	if got := h.list()[0].Timestamp; got != 1 {
		t.Errorf("timestamp after mutating copy: got %d, want 1", got)
	}
}

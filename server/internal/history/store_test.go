package history

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/coursepulse/coursepulse/pkg/channel"
)

func env(ts int64) channel.Envelope {
	return channel.Envelope{Type: channel.EventProgress, Timestamp: ts}
}

// fixedClock returns a func() time.Time that always returns t.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestAppendAndList(t *testing.T) {
	st := New(100, 5*time.Minute)
	st.Append("dashboard:42", env(1))
	st.Append("dashboard:42", env(2))

	got := st.List("dashboard:42")
	if len(got) != 2 {
		t.Fatalf("List: got %d entries, want 2", len(got))
	}
	if got[0].Timestamp != 1 || got[1].Timestamp != 2 {
		t.Errorf("order: got %d,%d, want 1,2", got[0].Timestamp, got[1].Timestamp)
	}
}

func TestList_UnknownStream(t *testing.T) {
	st := New(100, 5*time.Minute)
	if got := st.List("missing"); len(got) != 0 {
		t.Errorf("List: got %d entries, want 0", len(got))
	}
}

func TestAppend_EvictsOldestAtLimit(t *testing.T) {
	st := New(3, 5*time.Minute)
	for i := int64(1); i <= 5; i++ {
		st.Append("lesson:room9", env(i))
	}

	got := st.List("lesson:room9")
	if len(got) != 3 {
		t.Fatalf("List: got %d entries, want 3", len(got))
	}
	for i, want := range []int64{3, 4, 5} {
		if got[i].Timestamp != want {
			t.Errorf("entry %d: got timestamp %d, want %d", i, got[i].Timestamp, want)
		}
	}
}

func TestList_ReturnsCopy(t *testing.T) {
	st := New(10, 5*time.Minute)
	st.Append("s", env(1))

	out := st.List("s")
	out[0].Timestamp = 99

	if got := st.List("s")[0].Timestamp; got != 1 {
		t.Errorf("timestamp after mutating copy: got %d, want 1", got)
	}
}

func TestStreams_ExcludesIdle(t *testing.T) {
	base := time.Now()
	st := New(100, 5*time.Minute)

	st.now = fixedClock(base.Add(-10 * time.Minute)) // idle
	st.Append("old", env(1))

	st.now = fixedClock(base) // live
	st.Append("new", env(2))

	streams := st.Streams()
	if len(streams) != 1 {
		t.Fatalf("Streams: got %d, want 1", len(streams))
	}
	if streams[0] != "new" {
		t.Errorf("Streams[0]: got %q, want new", streams[0])
	}
}

func TestCount_IncludesIdle(t *testing.T) {
	base := time.Now()
	st := New(100, 5*time.Minute)

	st.now = fixedClock(base.Add(-10 * time.Minute))
	st.Append("old", env(1))

	st.now = fixedClock(base)
	st.Append("new", env(2))

	if n := st.Count(); n != 2 {
		t.Errorf("Count: got %d, want 2", n)
	}
}

func TestEvict_RemovesIdleStreams(t *testing.T) {
	base := time.Now()
	st := New(100, 5*time.Minute)

	st.now = fixedClock(base.Add(-10 * time.Minute))
	st.Append("old1", env(1))
	st.Append("old2", env(2))

	st.now = fixedClock(base)
	st.Append("live", env(3))

	removed := st.Evict(base)
	if removed != 2 {
		t.Errorf("Evict: removed %d, want 2", removed)
	}
	if st.Count() != 1 {
		t.Errorf("Count after evict: got %d, want 1", st.Count())
	}
	if len(st.List("old1")) != 0 {
		t.Error("List(old1): expected empty after evict")
	}
}

func TestEvict_NoOp_AllLive(t *testing.T) {
	base := time.Now()
	st := New(100, 5*time.Minute)

	st.now = fixedClock(base)
	st.Append("s", env(1))

	if removed := st.Evict(base); removed != 0 {
		t.Errorf("Evict on live stream: removed %d, want 0", removed)
	}
}

func TestConcurrentAppends(t *testing.T) {
	st := New(100, 5*time.Minute)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			st.Append(fmt.Sprintf("s-%d", n%4), env(int64(n)))
		}(i)
	}
	wg.Wait()

	if st.Count() != 4 {
		t.Errorf("Count after concurrent appends: got %d, want 4", st.Count())
	}
	total := 0
	for i := 0; i < 4; i++ {
		total += st.Len(fmt.Sprintf("s-%d", i))
	}
	if total != 100 {
		t.Errorf("total retained: got %d, want 100", total)
	}
}

func TestConcurrentMixedOps(t *testing.T) {
	st := New(100, 5*time.Minute)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			st.Append("s", env(1))
		}()
		go func() {
			defer wg.Done()
			st.List("s")
		}()
	}
	wg.Wait()
}

//go:build linux || darwin

package persist

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/persistq/snapring/ring"
	"github.com/persistq/snapring/snapshot"
)

type memorySink struct {
	mu     sync.Mutex
	bodies []string
	fail   bool
}

func (m *memorySink) Persist(_ context.Context, s *snapshot.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("sink unavailable")
	}
	m.bodies = append(m.bodies, string(s.Body.Bytes()))
	return nil
}

func (m *memorySink) got() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.bodies...)
}

func testRing(t *testing.T) *ring.Ring {
	t.Helper()
	r, err := ring.Create(filepath.Join(t.TempDir(), "ring.dat"),
		ring.Options{Slots: 4, HeadCapacity: 8, BodyCapacity: 32})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func produce(t *testing.T, r *ring.Ring, body string) {
	t.Helper()
	s, err := r.NextFree(time.Second)
	if err != nil {
		t.Fatalf("NextFree: %v", err)
	}
	s.Body.Append([]byte(body))
	if err := r.PutFilled(s); err != nil {
		t.Fatalf("PutFilled: %v", err)
	}
}

func TestRunOnceDrainsInOrder(t *testing.T) {
	r := testRing(t)
	sink := &memorySink{}
	p := New(r, sink, Options{})

	produce(t, r, "x")
	produce(t, r, "y")

	ctx := context.Background()
	if !p.RunOnce(ctx) || !p.RunOnce(ctx) {
		t.Fatalf("expected two units of work")
	}
	if p.RunOnce(ctx) {
		t.Fatalf("expected nothing left to drain")
	}

	want := []string{"x", "y"}
	got := sink.got()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("sink got %v, want %v", got, want)
	}
	if !r.Empty() {
		t.Fatalf("drained slots must be released")
	}
	if st := p.Stats(); st.Persisted != 2 || st.Failures != 0 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestSinkFailureDropsRecord(t *testing.T) {
	r := testRing(t)
	sink := &memorySink{fail: true}
	p := New(r, sink, Options{})

	produce(t, r, "doomed")
	if !p.RunOnce(context.Background()) {
		t.Fatalf("expected work")
	}
	if !r.Empty() {
		t.Fatalf("slot must be released even when the sink fails")
	}
	if st := p.Stats(); st.Failures != 1 || st.Persisted != 0 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestOverflowDrainedAfterRing(t *testing.T) {
	r := testRing(t)
	sink := &memorySink{}
	p := New(r, sink, Options{})

	ext := snapshot.New(8, 32)
	ext.Body.Append([]byte("overflow"))
	p.Enqueue(ext)
	produce(t, r, "ring")

	ctx := context.Background()
	p.RunOnce(ctx)
	p.RunOnce(ctx)

	got := sink.got()
	if len(got) != 2 || got[0] != "ring" || got[1] != "overflow" {
		t.Fatalf("sink got %v, want ring before overflow", got)
	}
	if st := p.Stats(); st.Overflow != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	r := testRing(t)
	sink := &memorySink{}
	p := New(r, sink, Options{PollInterval: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	for i := 0; i < 10; i++ {
		produce(t, r, fmt.Sprintf("rec-%d", i))
	}

	deadline := time.After(10 * time.Second)
	for len(sink.got()) < 10 {
		select {
		case <-deadline:
			t.Fatalf("pump drained only %d of 10 records", len(sink.got()))
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}

	got := sink.got()
	for i, body := range got {
		if want := fmt.Sprintf("rec-%d", i); body != want {
			t.Fatalf("record %d = %q, want %q", i, body, want)
		}
	}
}

func TestSinkFunc(t *testing.T) {
	var called bool
	f := SinkFunc(func(context.Context, *snapshot.Snapshot) error {
		called = true
		return nil
	})
	if err := f.Persist(context.Background(), snapshot.New(1, 1)); err != nil || !called {
		t.Fatalf("SinkFunc adapter broken")
	}
}

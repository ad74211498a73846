//go:build linux || darwin

package ring

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/persistq/snapring/internal/format"
	"github.com/persistq/snapring/snapshot"
)

func fill(t *testing.T, r *Ring, body string) *snapshot.Snapshot {
	t.Helper()
	s, err := r.NextFree(time.Second)
	if err != nil {
		t.Fatalf("NextFree: %v", err)
	}
	s.Body.Append([]byte(body))
	if err := r.PutFilled(s); err != nil {
		t.Fatalf("PutFilled: %v", err)
	}
	return s
}

func TestFIFOOrdering(t *testing.T) {
	r := testRing(t, Options{Slots: 4, HeadCapacity: 8, BodyCapacity: 32})

	fill(t, r, "first")
	fill(t, r, "second")
	fill(t, r, "third")

	for _, want := range []string{"first", "second", "third"} {
		s := r.NextFilled()
		if s == nil {
			t.Fatalf("NextFilled returned nil, want %q", want)
		}
		if got := string(s.Body.Bytes()); got != want {
			t.Fatalf("drained %q, want %q", got, want)
		}
		if err := r.ReleaseFilled(s); err != nil {
			t.Fatalf("ReleaseFilled: %v", err)
		}
	}
	if s := r.NextFilled(); s != nil {
		t.Fatalf("drained ring should report nothing ready")
	}
}

func TestNextFilledEmptyRing(t *testing.T) {
	r := testRing(t, Options{Slots: 2, HeadCapacity: 8, BodyCapacity: 8})
	if s := r.NextFilled(); s != nil {
		t.Fatalf("fresh ring should have nothing to drain")
	}
}

func TestBackpressureTimeout(t *testing.T) {
	r := testRing(t, Options{Slots: 2, HeadCapacity: 8, BodyCapacity: 8})

	fill(t, r, "a")
	fill(t, r, "b")

	start := time.Now()
	_, err := r.NextFree(50 * time.Millisecond)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrNoFreeSlot) {
		t.Fatalf("expected ErrNoFreeSlot, got %v", err)
	}
	if elapsed < 50*time.Millisecond {
		t.Fatalf("gave up after %v, before the timeout", elapsed)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("spun for %v, far past the timeout", elapsed)
	}
}

func TestAbandonSkipsToConsumerAsFree(t *testing.T) {
	r := testRing(t, Options{Slots: 3, HeadCapacity: 8, BodyCapacity: 16})

	fill(t, r, "keep-1")

	s, err := r.NextFree(time.Second)
	if err != nil {
		t.Fatalf("NextFree: %v", err)
	}
	s.Body.Append([]byte("discard"))
	if err := r.ReturnFree(s); err != nil {
		t.Fatalf("ReturnFree: %v", err)
	}

	fill(t, r, "keep-2")

	// The abandoned record keeps its place in the sequence but must never
	// surface; the consumer sees keep-1 then keep-2.
	for _, want := range []string{"keep-1", "keep-2"} {
		got := r.NextFilled()
		if got == nil {
			t.Fatalf("NextFilled returned nil, want %q", want)
		}
		if string(got.Body.Bytes()) != want {
			t.Fatalf("drained %q, want %q", got.Body.Bytes(), want)
		}
		if err := r.ReleaseFilled(got); err != nil {
			t.Fatalf("ReleaseFilled: %v", err)
		}
	}
}

func TestSequenceNumbersDense(t *testing.T) {
	r := testRing(t, Options{Slots: 2, HeadCapacity: 8, BodyCapacity: 8})

	for i := 1; i <= 6; i++ {
		s, err := r.NextFree(time.Second)
		if err != nil {
			t.Fatalf("NextFree #%d: %v", i, err)
		}
		if got := r.hdrs[r.curFree].seq.Load(); got != uint64(i) {
			t.Fatalf("acquisition #%d stamped seq %d", i, got)
		}
		s.Body.Append([]byte{byte(i)})
		if err := r.PutFilled(s); err != nil {
			t.Fatalf("PutFilled: %v", err)
		}
		drained := r.NextFilled()
		if drained == nil {
			t.Fatalf("NextFilled #%d returned nil", i)
		}
		if err := r.ReleaseFilled(drained); err != nil {
			t.Fatalf("ReleaseFilled: %v", err)
		}
	}
}

func TestMutualExclusionInvariant(t *testing.T) {
	r := testRing(t, Options{Slots: 4, HeadCapacity: 8, BodyCapacity: 8})

	countState := func(want uint32) int {
		n := 0
		for _, h := range r.hdrs {
			if h.state.Load() == want {
				n++
			}
		}
		return n
	}

	s, err := r.NextFree(time.Second)
	if err != nil {
		t.Fatalf("NextFree: %v", err)
	}
	if countState(format.StateFilling) != 1 {
		t.Fatalf("expected exactly one Filling slot")
	}
	s.Body.Append([]byte("x"))
	_ = r.PutFilled(s)
	fill(t, r, "y")

	claimed := r.NextFilled()
	if claimed == nil {
		t.Fatalf("expected a filled slot")
	}
	if countState(format.StatePersisting) != 1 {
		t.Fatalf("expected exactly one Persisting slot")
	}
	if countState(format.StateFilling) != 0 {
		t.Fatalf("no slot should be Filling")
	}
}

func TestExternalSnapshotRejected(t *testing.T) {
	r := testRing(t, Options{Slots: 2, HeadCapacity: 8, BodyCapacity: 8})

	ext := snapshot.New(8, 8)
	if err := r.PutFilled(ext); !errors.Is(err, ErrNotInRing) {
		t.Fatalf("PutFilled(external) = %v, want ErrNotInRing", err)
	}
	if err := r.ReleaseFilled(ext); !errors.Is(err, ErrNotInRing) {
		t.Fatalf("ReleaseFilled(external) = %v, want ErrNotInRing", err)
	}
	if r.Contains(ext) {
		t.Fatalf("external snapshot reported as ring-owned")
	}
}

func TestSpilledPayloadRestoredOnRelease(t *testing.T) {
	r := testRing(t, Options{Slots: 2, HeadCapacity: 4, BodyCapacity: 4})

	s, err := r.NextFree(time.Second)
	if err != nil {
		t.Fatalf("NextFree: %v", err)
	}
	s.Body.Append([]byte("much longer than four bytes"))
	if !s.Spilled() {
		t.Fatalf("expected spill past in-file capacity")
	}
	if err := r.PutFilled(s); err != nil {
		t.Fatalf("PutFilled: %v", err)
	}

	drained := r.NextFilled()
	if drained == nil {
		t.Fatalf("expected the spilled payload")
	}
	if err := r.ReleaseFilled(drained); err != nil {
		t.Fatalf("ReleaseFilled: %v", err)
	}
	if drained.Spilled() {
		t.Fatalf("release must re-point the payload at in-file storage")
	}
	if drained.Body.Cap() != 4 {
		t.Fatalf("released body capacity = %d, want 4", drained.Body.Cap())
	}
}

func TestUnprocessedEstimate(t *testing.T) {
	r := testRing(t, Options{Slots: 4, HeadCapacity: 8, BodyCapacity: 8})

	if got := r.Unprocessed(); got != 0 {
		t.Fatalf("fresh ring Unprocessed = %d", got)
	}
	fill(t, r, "a")
	fill(t, r, "b")
	if got := r.Unprocessed(); got != 2 {
		t.Fatalf("Unprocessed = %d, want 2", got)
	}
	s := r.NextFilled()
	_ = r.ReleaseFilled(s)
	if got := r.Unprocessed(); got != 1 {
		t.Fatalf("Unprocessed after one drain = %d, want 1", got)
	}
}

func TestEmptyReflectsSlotStates(t *testing.T) {
	r := testRing(t, Options{Slots: 3, HeadCapacity: 8, BodyCapacity: 8})
	if !r.Empty() {
		t.Fatalf("fresh ring must be empty")
	}
	s := fill(t, r, "z")
	if r.Empty() {
		t.Fatalf("ring with a filled slot is not empty")
	}
	got := r.NextFilled()
	if got != s {
		t.Fatalf("drained a different slot")
	}
	_ = r.ReleaseFilled(got)
	if !r.Empty() {
		t.Fatalf("ring must be empty after full drain")
	}
}

func TestSenderRecordedInHeader(t *testing.T) {
	r := testRing(t, Options{Slots: 2, HeadCapacity: 8, BodyCapacity: 8})

	s, err := r.NextFree(time.Second)
	if err != nil {
		t.Fatalf("NextFree: %v", err)
	}
	s.SetSender(914)
	s.Body.Append([]byte("m"))
	if err := r.PutFilled(s); err != nil {
		t.Fatalf("PutFilled: %v", err)
	}
	idx := r.index[s]
	if got := r.hdrs[idx].sender; got != 914 {
		t.Fatalf("header sender = %d, want 914", got)
	}
}

func TestProducerConsumerThreads(t *testing.T) {
	r := testRing(t, Options{Slots: 8, HeadCapacity: 8, BodyCapacity: 32})

	const n = 500
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			s, err := r.NextFree(5 * time.Second)
			if err != nil {
				t.Errorf("producer #%d: %v", i, err)
				return
			}
			s.Body.Append([]byte(fmt.Sprintf("msg-%04d", i)))
			if err := r.PutFilled(s); err != nil {
				t.Errorf("commit #%d: %v", i, err)
				return
			}
		}
	}()

	go func() {
		defer wg.Done()
		deadline := time.Now().Add(30 * time.Second)
		for i := 0; i < n; {
			s := r.NextFilled()
			if s == nil {
				if time.Now().After(deadline) {
					t.Errorf("consumer stalled at message %d", i)
					return
				}
				time.Sleep(time.Microsecond)
				continue
			}
			want := fmt.Sprintf("msg-%04d", i)
			if got := string(s.Body.Bytes()); got != want {
				t.Errorf("out of order: got %q want %q", got, want)
				return
			}
			if err := r.ReleaseFilled(s); err != nil {
				t.Errorf("release #%d: %v", i, err)
				return
			}
			i++
		}
	}()

	wg.Wait()
}

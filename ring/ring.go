// Package ring implements a persistent, memory-mapped circular slot
// allocator handing fixed-size snapshot records from one producer to one
// consumer. The ring lives in a backing file: slot headers and payload
// buffers are mapped shared, so committed records survive process restarts
// and are rebuilt by a recovery scan on open.
//
// The design is strictly single-producer / single-consumer. Coordination
// happens only through atomic state and sequence fields in the mapped slot
// headers; the four ring cursors are process-local and unsynchronized.
package ring

import (
	"fmt"
	"io"
	"log/slog"
	"time"
	"unsafe"

	"github.com/persistq/snapring/internal/buf"
	"github.com/persistq/snapring/internal/format"
	"github.com/persistq/snapring/internal/mmfile"
	"github.com/persistq/snapring/snapshot"
)

// Options describe ring geometry and behavior. Geometry is fixed at
// creation time; opening an existing file with different geometry fails.
type Options struct {
	// Slots is the number of slots in the ring. Must be > 0.
	Slots int

	// HeadCapacity and BodyCapacity are the per-slot in-file buffer
	// capacities in bytes. Both must be > 0.
	HeadCapacity int
	BodyCapacity int

	// Checksums seals every committed payload with a BLAKE2b-128 sum and
	// re-verifies filled slots during recovery. Mismatching content is
	// cleared instead of being handed to the consumer.
	Checksums bool

	// Logger receives lifecycle events. nil discards them.
	Logger *slog.Logger
}

func (o *Options) validate() error {
	if o.Slots <= 0 {
		return fmt.Errorf("%w: slot count %d", ErrBadGeometry, o.Slots)
	}
	if o.HeadCapacity <= 0 || o.BodyCapacity <= 0 {
		return fmt.Errorf("%w: head/body capacity %d/%d",
			ErrBadGeometry, o.HeadCapacity, o.BodyCapacity)
	}
	payload, ok := buf.AddChecked(o.HeadCapacity, o.BodyCapacity)
	if ok {
		_, ok = buf.MulChecked(o.Slots, format.ItemSize(payload, 0))
	}
	if !ok {
		return fmt.Errorf("%w: %d slots of %d+%d bytes overflows file size",
			ErrBadGeometry, o.Slots, o.HeadCapacity, o.BodyCapacity)
	}
	return nil
}

// Ring is an open snapshot ring. Methods are split by role: NextFree,
// PutFilled and ReturnFree belong to the producer; NextFilled and
// ReleaseFilled belong to the consumer. No method is safe for concurrent
// use by more than one goroutine per role.
type Ring struct {
	m        *mmfile.File
	path     string
	opts     Options
	itemSize int
	log      *slog.Logger

	hdrs  []*slotHeader
	snaps []*snapshot.Snapshot
	index map[*snapshot.Snapshot]int

	// Producer cursor state.
	curFree int
	freeSeq uint64 // last assigned sequence number

	// Consumer cursor state.
	curFilled int
	filledSeq uint64 // next expected sequence number
}

// Create creates the backing file at path and maps a fresh ring over it.
// The file must not already hold data; an existing non-empty file of the
// right size is recovered instead (same as Open).
func Create(path string, opts Options) (*Ring, error) {
	return newRing(path, opts, true)
}

// Open maps an existing ring file, replaying slot states to rebuild the
// allocator cursors. The geometry must match the one the file was created
// with, or Open fails.
func Open(path string, opts Options) (*Ring, error) {
	return newRing(path, opts, false)
}

func newRing(path string, opts Options, create bool) (*Ring, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	size := format.FileSize(opts.Slots, opts.HeadCapacity, opts.BodyCapacity)
	m, err := mmfile.Map(path, size, create)
	if err != nil {
		return nil, fmt.Errorf("ring %s: %w", path, err)
	}

	r := &Ring{
		m:        m,
		path:     path,
		opts:     opts,
		itemSize: format.ItemSize(opts.HeadCapacity, opts.BodyCapacity),
		log:      log,
		hdrs:     make([]*slotHeader, opts.Slots),
		snaps:    make([]*snapshot.Snapshot, opts.Slots),
		index:    make(map[*snapshot.Snapshot]int, opts.Slots),
	}

	data := m.Data()
	for i := 0; i < opts.Slots; i++ {
		r.hdrs[i] = (*slotHeader)(unsafe.Pointer(&data[i*r.itemSize]))
		s := &snapshot.Snapshot{}
		s.Reset(r.headMem(i), r.bodyMem(i))
		r.snaps[i] = s
		r.index[s] = i
	}

	if m.Fresh() {
		// A fresh file is zero-filled: every header already decodes as
		// Free with seq 0 and every buffer as empty.
		r.curFree, r.curFilled = 0, 0
		r.freeSeq, r.filledSeq = 0, 1
		log.Info("ring created", "path", path, "slots", opts.Slots, "size", size)
		return r, nil
	}

	if err := r.recover(); err != nil {
		_ = m.Close()
		return nil, err
	}
	log.Info("ring opened", "path", path, "slots", opts.Slots,
		"nextSeq", r.freeSeq+1, "expectSeq", r.filledSeq)
	return r, nil
}

// recover walks every slot once, normalizing states interrupted by a crash
// and rebuilding the four cursors from what the file holds.
func (r *Ring) recover() error {
	var (
		curFree     = -1
		curFilled   = -1
		lastFilled  = 0
		filledSeq   uint64
		maxSeq      uint64 // highest seq anywhere; seeds the producer counter
		maxOcc      uint64 // highest seq among occupied slots
		prevWasFree bool
	)

	for i := range r.hdrs {
		h := r.hdrs[i]
		s := r.snaps[i]
		state := h.state.Load()
		if !format.ValidState(state) {
			return fmt.Errorf("%w: slot %d state %d", ErrCorruptSlot, i, state)
		}

		if int(h.headLen) > r.opts.HeadCapacity || int(h.bodyLen) > r.opts.BodyCapacity {
			// The payload had spilled to heap storage before shutdown;
			// that content is gone. A spilled slot can never be Free,
			// so keep its place in the sequence as a filled-but-empty
			// record the consumer will skip over.
			r.clearSlot(i)
			h.setFilled()
		} else {
			s.Head.SetLen(int(h.headLen))
			s.Body.SetLen(int(h.bodyLen))
			s.SetSender(h.sender)
			r.normalizeRecoveredState(i)
		}

		if r.opts.Checksums && h.state.Load() == format.StateFilled &&
			h.sealed() && !s.Empty() && s.Sum() != h.sum {
			r.log.Warn("ring: checksum mismatch, dropping slot content",
				"path", r.path, "slot", i, "seq", h.seq.Load())
			r.clearSlot(i)
			h.setFilled()
		}

		seq := h.seq.Load()
		if seq > maxSeq {
			maxSeq = seq
		}

		if h.isFree() {
			if !prevWasFree {
				curFree = i
			}
			prevWasFree = true
		} else {
			prevWasFree = false
			if curFilled < 0 || filledSeq > seq {
				curFilled = i
				filledSeq = seq
			}
			if seq > maxOcc {
				maxOcc = seq
				lastFilled = i
			}
		}
	}

	if curFree < 0 {
		// Ring saturated: park the free cursor on the newest occupied
		// slot. Acquisition backpressures from there until the consumer
		// releases something.
		curFree = lastFilled
		r.log.Warn("ring: no free slots after recovery, producer will stall until a drain",
			"path", r.path)
	}
	if curFilled < 0 {
		// Entirely free ring: the consumer expects whatever the
		// producer assigns next.
		curFilled = curFree
		filledSeq = maxSeq + 1
	}

	r.curFree = curFree
	r.curFilled = curFilled
	r.freeSeq = maxSeq
	r.filledSeq = filledSeq
	return nil
}

// normalizeRecoveredState applies the crash normalization policy to slot i:
// a slot caught mid-fill becomes Filled with cleared content (its sequence
// number stays in the drain order, the half-written payload does not), and
// a slot caught mid-persist becomes Free (the persist is abandoned and may
// or may not have completed downstream).
func (r *Ring) normalizeRecoveredState(i int) {
	h := r.hdrs[i]
	switch h.state.Load() {
	case format.StateFilling:
		r.clearSlot(i)
		h.setFilled()
	case format.StatePersisting:
		r.clearSlot(i)
		h.setFree()
	}
}

// clearSlot resets slot i's snapshot onto its in-file storage, empties it,
// and zeroes the recorded lengths and checksum. The state is left alone.
func (r *Ring) clearSlot(i int) {
	h := r.hdrs[i]
	s := r.snaps[i]
	s.Reset(r.headMem(i), r.bodyMem(i))
	h.headLen, h.bodyLen = 0, 0
	h.unseal()
}

func (r *Ring) data() []byte { return r.m.Data() }

// Contains reports whether s is one of this ring's slot payloads, as
// opposed to an externally allocated snapshot.
func (r *Ring) Contains(s *snapshot.Snapshot) bool {
	_, ok := r.index[s]
	return ok
}

// Empty reports whether every slot is Free. Racy by nature when the other
// role is active; exact when quiescent.
func (r *Ring) Empty() bool {
	for _, h := range r.hdrs {
		if !h.isFree() {
			return false
		}
	}
	return true
}

// Unprocessed estimates how many acquired records the consumer has not yet
// drained. The two counters belong to different roles, so the estimate is
// approximate while both are running.
func (r *Ring) Unprocessed() int {
	b := r.filledSeq
	e := r.freeSeq + 1
	if e > b {
		return int(e - b)
	}
	return 0
}

// Slots returns the ring's slot count.
func (r *Ring) Slots() int { return r.opts.Slots }

// Path returns the backing file path.
func (r *Ring) Path() string { return r.path }

// Close flushes the mapping synchronously, then unmaps and closes the
// backing file. Safe to call more than once.
func (r *Ring) Close() error {
	if r == nil || r.m == nil {
		return nil
	}
	syncErr := r.Sync()
	err := r.m.Close()
	r.m = nil
	r.hdrs = nil
	r.snaps = nil
	r.log.Info("ring closed", "path", r.path)
	if err == nil {
		err = syncErr
	}
	return err
}

// NextFree busy-waits for a free slot, stamps it Filling with the next
// sequence number, and returns its payload for the producer to fill. The
// wait is bounded: once timeout elapses, NextFree gives up and returns
// ErrNoFreeSlot as the backpressure signal.
//
// While spinning it periodically kicks off an asynchronous flush of the
// mapping, bounded to once per 1024 spins.
func (r *Ring) NextFree(timeout time.Duration) (*snapshot.Snapshot, error) {
	if r.m == nil {
		return nil, ErrClosed
	}

	var deadline time.Time
	for i := 0; ; i++ {
		if r.hdrs[r.curFree].isFree() {
			break
		}
		next := r.nextSlot(r.curFree)
		if r.hdrs[next].isFree() {
			r.curFree = next
			break
		}

		if i == 0 {
			deadline = time.Now().Add(timeout)
		}
		if i%1024 == 0 {
			// Opportunistic durability while stalled; keep it rare
			// so the spin does not hammer the kernel.
			r.Flush()
		}
		if time.Now().After(deadline) {
			return nil, ErrNoFreeSlot
		}
		spinYield()
	}

	r.freeSeq++
	r.hdrs[r.curFree].setFilling(r.freeSeq)
	return r.snaps[r.curFree], nil
}

// PutFilled commits a filled payload, transitioning its slot to Filled and
// recording the payload lengths, sender and (in checksum mode) content sum
// in the mapped header. The producer must own the slot (Filling); this is
// not validated.
func (r *Ring) PutFilled(s *snapshot.Snapshot) error {
	idx, ok := r.index[s]
	if !ok {
		return ErrNotInRing
	}
	h := r.hdrs[idx]
	h.sender = s.Sender()
	h.headLen = uint32(s.Head.Len())
	h.bodyLen = uint32(s.Body.Len())
	if r.opts.Checksums && !s.Empty() {
		h.seal(s.Sum())
	} else {
		h.unseal()
	}
	h.setFilled()
	return nil
}

// ReturnFree abandons an acquired payload: the content is dropped but the
// slot still travels Filling -> Filled, keeping the sequence dense. The
// consumer notices the empty payload and releases it straight to Free.
func (r *Ring) ReturnFree(s *snapshot.Snapshot) error {
	s.Clear()
	return r.PutFilled(s)
}

// NextFilled claims the next payload in sequence order for persisting, or
// returns nil when nothing is ready. Non-blocking; the consumer polls.
// Empty payloads (abandoned or normalized by recovery) are released
// internally and skipped.
func (r *Ring) NextFilled() *snapshot.Snapshot {
	if r.m == nil {
		return nil
	}
	idx := r.curFilled
	for {
		if !r.hdrs[idx].isFilled(r.filledSeq) {
			idx = r.nextSlot(idx)
			if !r.hdrs[idx].isFilled(r.filledSeq) {
				return nil
			}
			r.curFilled = idx
		}

		r.filledSeq++

		s := r.snaps[idx]
		if s.Empty() {
			r.releaseSlot(idx)
			continue
		}

		r.hdrs[idx].setPersisting()
		return s
	}
}

// ReleaseFilled recycles a drained payload once its content is durably
// persisted. Spilled payloads are first re-pointed at their in-file
// storage, so the slot's fixed capacity is restored for the next producer.
func (r *Ring) ReleaseFilled(s *snapshot.Snapshot) error {
	idx, ok := r.index[s]
	if !ok {
		return ErrNotInRing
	}
	r.releaseSlot(idx)
	return nil
}

func (r *Ring) releaseSlot(idx int) {
	r.clearSlot(idx)
	r.hdrs[idx].setFree()
}

package ring

import (
	"sync/atomic"

	"github.com/persistq/snapring/internal/format"
)

// slotHeader is the live view of a slot header, overlaid directly on the
// mapped file bytes. Field order and sizes must match internal/format; the
// layout is asserted in header_test.go.
//
// state and seq are the only fields both roles touch, and every access to
// them goes through atomics: the consumer's acquiring load of state is what
// makes the producer's payload writes visible (and vice versa on release).
// The remaining fields are written only by the slot's current owner before
// the state transition that publishes them.
type slotHeader struct {
	state   atomic.Uint32
	flags   uint32
	seq     atomic.Uint64
	sender  uint64
	headLen uint32
	bodyLen uint32
	sum     [format.SumSize]byte
}

func (h *slotHeader) isFree() bool {
	return h.state.Load() == format.StateFree
}

// isFilled reports whether the slot is Filled with exactly the given
// sequence number. Draining order is driven by seq, not slot position.
func (h *slotHeader) isFilled(seq uint64) bool {
	return h.state.Load() == format.StateFilled && h.seq.Load() == seq
}

// setFilling stamps the slot with its sequence number and hands it to the
// producer. seq is stored first so any observer of the Filling state sees it.
func (h *slotHeader) setFilling(seq uint64) {
	h.seq.Store(seq)
	h.state.Store(format.StateFilling)
}

func (h *slotHeader) setFilled() {
	h.state.Store(format.StateFilled)
}

func (h *slotHeader) setPersisting() {
	h.state.Store(format.StatePersisting)
}

func (h *slotHeader) setFree() {
	h.state.Store(format.StateFree)
}

func (h *slotHeader) sealed() bool {
	return h.flags&format.FlagSealed != 0
}

func (h *slotHeader) seal(sum [format.SumSize]byte) {
	h.sum = sum
	h.flags |= format.FlagSealed
}

func (h *slotHeader) unseal() {
	h.flags &^= format.FlagSealed
	h.sum = [format.SumSize]byte{}
}

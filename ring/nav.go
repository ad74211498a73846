package ring

import "github.com/persistq/snapring/internal/format"

// Slot navigation is pure index arithmetic: slots are a fixed array in the
// mapped file and never move, so cursors are plain ints and byte offsets
// are derived on demand.

func (r *Ring) nextSlot(idx int) int {
	if idx == len(r.hdrs)-1 {
		return 0
	}
	return idx + 1
}

func (r *Ring) prevSlot(idx int) int {
	if idx == 0 {
		return len(r.hdrs) - 1
	}
	return idx - 1
}

// headMem returns the in-file head buffer storage of slot idx.
func (r *Ring) headMem(idx int) []byte {
	off := idx*r.itemSize + format.HeaderSize
	return r.data()[off : off+r.opts.HeadCapacity : off+r.opts.HeadCapacity]
}

// bodyMem returns the in-file body buffer storage of slot idx.
func (r *Ring) bodyMem(idx int) []byte {
	off := idx*r.itemSize + format.HeaderSize + r.opts.HeadCapacity
	return r.data()[off : off+r.opts.BodyCapacity : off+r.opts.BodyCapacity]
}

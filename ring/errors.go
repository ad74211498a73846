package ring

import "errors"

var (
	// ErrNoFreeSlot indicates NextFree ran out of its time budget without
	// finding a free slot. This is backpressure, not a failure: the
	// producer is outrunning the consumer and should throttle upstream.
	ErrNoFreeSlot = errors.New("ring: no free slot within timeout")

	// ErrBadGeometry indicates an unusable slot count or buffer capacity,
	// including geometries whose file size would overflow.
	ErrBadGeometry = errors.New("ring: invalid geometry")

	// ErrNotInRing indicates a snapshot that does not belong to this ring.
	ErrNotInRing = errors.New("ring: snapshot not backed by this ring")

	// ErrCorruptSlot indicates a slot header whose state field does not
	// decode to any known state.
	ErrCorruptSlot = errors.New("ring: corrupt slot header")

	// ErrClosed indicates an operation on a ring after Close.
	ErrClosed = errors.New("ring: closed")
)

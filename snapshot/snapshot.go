// Package snapshot holds the payload records exchanged through a ring:
// a fixed-capacity head buffer and body buffer, normally backed by mapped
// file storage, with transparent spill to heap storage when a producer
// writes past the in-file capacity.
package snapshot

// Buffer is one region of a snapshot. It starts out pointing at in-file
// storage of fixed capacity; appending past that capacity moves the content
// to a larger heap allocation ("spilled"). Spilled content never reaches
// the backing file and is lost on restart.
type Buffer struct {
	mapped  []byte // in-file storage, len == configured capacity (nil for heap-only snapshots)
	data    []byte // active backing; == mapped unless spilled
	n       int
	spilled bool
}

// Reset repoints the buffer at mem, discarding any spilled storage and any
// recorded content. mem is retained, not copied.
func (b *Buffer) Reset(mem []byte) {
	b.mapped = mem
	b.data = mem
	b.n = 0
	b.spilled = false
}

// Len returns the current content length.
func (b *Buffer) Len() int { return b.n }

// Cap returns the capacity of the active backing storage.
func (b *Buffer) Cap() int { return len(b.data) }

// MappedCap returns the in-file capacity, regardless of spill.
func (b *Buffer) MappedCap() int { return len(b.mapped) }

// Spilled reports whether the content lives in heap storage instead of the
// backing file.
func (b *Buffer) Spilled() bool { return b.spilled }

// Bytes returns the current content. The slice aliases the backing storage.
func (b *Buffer) Bytes() []byte { return b.data[:b.n] }

// Truncate drops content down to n bytes. It does not unspill.
func (b *Buffer) Truncate(n int) {
	if n < 0 || n > b.n {
		return
	}
	b.n = n
}

// SetLen declares n bytes of the backing storage as content. Used during
// recovery to restore lengths recorded in slot headers. Lengths beyond the
// backing capacity are clamped.
func (b *Buffer) SetLen(n int) {
	if n < 0 {
		n = 0
	}
	if n > len(b.data) {
		n = len(b.data)
	}
	b.n = n
}

// Append adds p to the content, spilling to heap storage when the active
// backing is too small.
func (b *Buffer) Append(p []byte) {
	need := b.n + len(p)
	if need > len(b.data) {
		b.spill(need)
	}
	copy(b.data[b.n:], p)
	b.n = need
}

// Write implements io.Writer over Append. It never fails.
func (b *Buffer) Write(p []byte) (int, error) {
	b.Append(p)
	return len(p), nil
}

func (b *Buffer) spill(need int) {
	newCap := 2 * len(b.data)
	if newCap < need {
		newCap = need
	}
	grown := make([]byte, newCap)
	copy(grown, b.data[:b.n])
	b.data = grown
	b.spilled = true
}

// Snapshot is one payload record: head and body buffers plus an opaque
// sender identifier. Mutation rights follow the owning slot's state; see
// the ring package.
type Snapshot struct {
	Head   Buffer
	Body   Buffer
	sender uint64
}

// New returns a heap-backed snapshot detached from any ring, used when a
// producer cannot obtain a ring slot in time.
func New(headCap, bodyCap int) *Snapshot {
	s := &Snapshot{}
	s.Head.Reset(make([]byte, headCap))
	s.Body.Reset(make([]byte, bodyCap))
	return s
}

// Sender returns the opaque sender identifier.
func (s *Snapshot) Sender() uint64 { return s.sender }

// SetSender records the opaque sender identifier. It survives restarts for
// ring-backed snapshots.
func (s *Snapshot) SetSender(id uint64) { s.sender = id }

// Clear empties both buffers. Backing storage, including any spilled heap
// storage, is kept.
func (s *Snapshot) Clear() {
	s.Head.Truncate(0)
	s.Body.Truncate(0)
}

// Empty reports whether the snapshot holds no content.
func (s *Snapshot) Empty() bool {
	return s.Head.Len() == 0 && s.Body.Len() == 0
}

// Reset repoints both buffers at the given storage and clears them.
func (s *Snapshot) Reset(headMem, bodyMem []byte) {
	s.Head.Reset(headMem)
	s.Body.Reset(bodyMem)
}

// Spilled reports whether either buffer escaped its in-file storage.
func (s *Snapshot) Spilled() bool {
	return s.Head.Spilled() || s.Body.Spilled()
}

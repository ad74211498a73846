package format

import "encoding/binary"

// Header is a decoded slot header. It is a plain value used for cold
// inspection of ring files (ringctl, verification, tests); the live
// allocator accesses header fields through atomics instead.
type Header struct {
	State   uint32
	Flags   uint32
	Seq     uint64
	Sender  uint64
	HeadLen uint32
	BodyLen uint32
	Sum     [SumSize]byte
}

// Sealed reports whether the header carries a payload checksum.
func (h *Header) Sealed() bool {
	return h.Flags&FlagSealed != 0
}

// Occupied reports whether the slot holds undrained content
// (Filled or Persisting).
func (h *Header) Occupied() bool {
	return h.State == StateFilled || h.State == StatePersisting
}

// DecodeHeader decodes the slot header at the start of b.
// Returns the zero Header when b is too short.
func DecodeHeader(b []byte) Header {
	if len(b) < HeaderSize {
		return Header{}
	}
	var h Header
	h.State = binary.LittleEndian.Uint32(b[StateOff:])
	h.Flags = binary.LittleEndian.Uint32(b[FlagsOff:])
	h.Seq = binary.LittleEndian.Uint64(b[SeqOff:])
	h.Sender = binary.LittleEndian.Uint64(b[SenderOff:])
	h.HeadLen = binary.LittleEndian.Uint32(b[HeadLenOff:])
	h.BodyLen = binary.LittleEndian.Uint32(b[BodyLenOff:])
	copy(h.Sum[:], b[SumOff:SumOff+SumSize])
	return h
}

// EncodeHeader writes h to the start of b. b must be at least HeaderSize long.
func EncodeHeader(b []byte, h Header) {
	binary.LittleEndian.PutUint32(b[StateOff:], h.State)
	binary.LittleEndian.PutUint32(b[FlagsOff:], h.Flags)
	binary.LittleEndian.PutUint64(b[SeqOff:], h.Seq)
	binary.LittleEndian.PutUint64(b[SenderOff:], h.Sender)
	binary.LittleEndian.PutUint32(b[HeadLenOff:], h.HeadLen)
	binary.LittleEndian.PutUint32(b[BodyLenOff:], h.BodyLen)
	copy(b[SumOff:SumOff+SumSize], h.Sum[:])
}

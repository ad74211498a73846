// Package format defines the on-disk slot layout of a snapshot ring file.
//
// A ring file is a fixed array of slots. Each slot is a 48-byte header
// followed by the head buffer, the body buffer, and padding up to an 8-byte
// boundary. There is no file superblock: geometry (slot count and buffer
// capacities) is supplied by the opener and validated against the file size.
package format

// Slot states. The zero value is Free so a freshly truncated (zero-filled)
// file decodes as an entirely free ring.
const (
	StateFree       = uint32(0)
	StateFilling    = uint32(1)
	StateFilled     = uint32(2)
	StatePersisting = uint32(3)
)

// Header field offsets within a slot. All fields are little-endian.
const (
	StateOff   = 0
	FlagsOff   = 4
	SeqOff     = 8
	SenderOff  = 16
	HeadLenOff = 24
	BodyLenOff = 28
	SumOff     = 32

	HeaderSize = 48
	SumSize    = 16
)

// Header flags.
const (
	// FlagSealed marks a slot whose checksum field holds a BLAKE2b-128 sum
	// of the payload content recorded at commit time.
	FlagSealed = uint32(1 << 0)
)

const alignMask = 7

// Align8 rounds n up to the next 8-byte boundary.
func Align8(n int) int {
	return (n + alignMask) & ^alignMask
}

// ItemSize returns the byte size of one slot, including trailing padding.
// The padding keeps every header 8-byte aligned, which the 64-bit atomic
// fields require.
func ItemSize(headCap, bodyCap int) int {
	return Align8(HeaderSize + headCap + bodyCap)
}

// FileSize returns the total ring file size for the given geometry.
func FileSize(slots, headCap, bodyCap int) int64 {
	return int64(slots) * int64(ItemSize(headCap, bodyCap))
}

// SlotOffset returns the absolute file offset of slot idx.
func SlotOffset(idx, headCap, bodyCap int) int {
	return idx * ItemSize(headCap, bodyCap)
}

// ValidState reports whether s decodes to a known slot state.
func ValidState(s uint32) bool {
	return s <= StatePersisting
}

// StateName returns a printable name for a slot state.
func StateName(s uint32) string {
	switch s {
	case StateFree:
		return "free"
	case StateFilling:
		return "filling"
	case StateFilled:
		return "filled"
	case StatePersisting:
		return "persisting"
	default:
		return "invalid"
	}
}

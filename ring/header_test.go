package ring

import (
	"testing"
	"unsafe"

	"github.com/persistq/snapring/internal/format"
)

// The live header overlay and the cold decoder in internal/format must
// agree on the byte layout, or recovery and ringctl would read garbage.
func TestSlotHeaderLayoutMatchesFormat(t *testing.T) {
	var h slotHeader
	if got := unsafe.Sizeof(h); got != format.HeaderSize {
		t.Fatalf("slotHeader size = %d, want %d", got, format.HeaderSize)
	}
	offsets := map[string][2]uintptr{
		"state":   {unsafe.Offsetof(h.state), format.StateOff},
		"flags":   {unsafe.Offsetof(h.flags), format.FlagsOff},
		"seq":     {unsafe.Offsetof(h.seq), format.SeqOff},
		"sender":  {unsafe.Offsetof(h.sender), format.SenderOff},
		"headLen": {unsafe.Offsetof(h.headLen), format.HeadLenOff},
		"bodyLen": {unsafe.Offsetof(h.bodyLen), format.BodyLenOff},
		"sum":     {unsafe.Offsetof(h.sum), format.SumOff},
	}
	for name, o := range offsets {
		if o[0] != o[1] {
			t.Errorf("field %s at offset %d, format says %d", name, o[0], o[1])
		}
	}
}

func TestSlotHeaderStateMachine(t *testing.T) {
	var h slotHeader
	if !h.isFree() {
		t.Fatalf("zero header must be Free")
	}
	h.setFilling(7)
	if h.isFree() || h.isFilled(7) {
		t.Fatalf("filling slot is neither free nor filled")
	}
	h.setFilled()
	if !h.isFilled(7) {
		t.Fatalf("expected filled with seq 7")
	}
	if h.isFilled(8) {
		t.Fatalf("filled check must match the exact sequence number")
	}
	h.setPersisting()
	if h.isFilled(7) || h.isFree() {
		t.Fatalf("persisting slot is neither filled nor free")
	}
	h.setFree()
	if !h.isFree() {
		t.Fatalf("expected free after release")
	}
}

func TestSlotHeaderSeal(t *testing.T) {
	var h slotHeader
	sum := [format.SumSize]byte{1, 2, 3}
	h.seal(sum)
	if !h.sealed() || h.sum != sum {
		t.Fatalf("seal did not record the sum")
	}
	h.unseal()
	if h.sealed() || h.sum != ([format.SumSize]byte{}) {
		t.Fatalf("unseal did not clear the sum")
	}
}

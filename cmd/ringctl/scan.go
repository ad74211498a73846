package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/persistq/snapring/internal/buf"
	"github.com/persistq/snapring/internal/format"
)

// geometry carries the ring layout flags shared by every subcommand.
// Ring files have no superblock, so the caller must restate how the file
// was created.
type geometry struct {
	slots   int
	headCap int
	bodyCap int
}

func (g *geometry) addFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&g.slots, "slots", 0, "Number of slots in the ring (required)")
	cmd.Flags().IntVar(&g.headCap, "head-cap", 0, "Per-slot head buffer capacity in bytes (required)")
	cmd.Flags().IntVar(&g.bodyCap, "body-cap", 0, "Per-slot body buffer capacity in bytes (required)")
	_ = cmd.MarkFlagRequired("slots")
	_ = cmd.MarkFlagRequired("head-cap")
	_ = cmd.MarkFlagRequired("body-cap")
}

func (g *geometry) validate() error {
	if g.slots <= 0 || g.headCap <= 0 || g.bodyCap <= 0 {
		return fmt.Errorf("slots, head-cap and body-cap must all be positive")
	}
	payload, ok := buf.AddChecked(g.headCap, g.bodyCap)
	if ok {
		_, ok = buf.MulChecked(g.slots, format.ItemSize(payload, 0))
	}
	if !ok {
		return fmt.Errorf("geometry overflows file size")
	}
	return nil
}

// scanFile reads a ring file cold (no mapping) and decodes every slot
// header. The raw file bytes are returned alongside for payload checks.
func scanFile(path string, g geometry) ([]format.Header, []byte, error) {
	if err := g.validate(); err != nil {
		return nil, nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read ring file: %w", err)
	}
	want := format.FileSize(g.slots, g.headCap, g.bodyCap)
	if int64(len(raw)) != want {
		return nil, nil, fmt.Errorf("file is %d bytes, geometry wants %d: wrong --slots/--head-cap/--body-cap or truncated file",
			len(raw), want)
	}

	hdrs := make([]format.Header, g.slots)
	for i := 0; i < g.slots; i++ {
		hdrs[i] = format.DecodeHeader(raw[format.SlotOffset(i, g.headCap, g.bodyCap):])
	}
	return hdrs, raw, nil
}

// payloadBytes returns slot i's head and body content as recorded by its
// header, clamped to the in-file capacities.
func payloadBytes(raw []byte, g geometry, i int, h format.Header) (head, body []byte) {
	off := format.SlotOffset(i, g.headCap, g.bodyCap) + format.HeaderSize
	hn, bn := int(h.HeadLen), int(h.BodyLen)
	if hn > g.headCap {
		hn = g.headCap
	}
	if bn > g.bodyCap {
		bn = g.bodyCap
	}
	return raw[off : off+hn], raw[off+g.headCap : off+g.headCap+bn]
}

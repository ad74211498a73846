package main

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/blake2b"

	"github.com/persistq/snapring/internal/format"
)

func init() {
	var g geometry
	cmd := &cobra.Command{
		Use:   "verify <file>",
		Short: "Check slot headers and sealed payloads for corruption",
		Long: `The verify command checks every slot header for a valid state,
detects duplicate sequence numbers among undrained slots, and recomputes
the checksum of every sealed payload.

Exit status is non-zero when any problem is found.

Example:
  ringctl verify market.ring --slots 1024 --head-cap 128 --body-cap 4096`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(args[0], g)
		},
	}
	g.addFlags(cmd)
	rootCmd.AddCommand(cmd)
}

type verifyProblem struct {
	Slot   int    `json:"slot"`
	Reason string `json:"reason"`
}

func runVerify(path string, g geometry) error {
	hdrs, raw, err := scanFile(path, g)
	if err != nil {
		return err
	}

	var problems []verifyProblem
	seen := make(map[uint64]int)
	for i := range hdrs {
		h := hdrs[i]
		if !format.ValidState(h.State) {
			problems = append(problems, verifyProblem{i,
				fmt.Sprintf("invalid state %d", h.State)})
			continue
		}
		if h.Occupied() {
			if prev, dup := seen[h.Seq]; dup {
				problems = append(problems, verifyProblem{i,
					fmt.Sprintf("seq %d also held by slot %d", h.Seq, prev)})
			}
			seen[h.Seq] = i
		}
		if h.Sealed() {
			if int(h.HeadLen) > g.headCap || int(h.BodyLen) > g.bodyCap {
				// Spilled content never reaches the file; the recorded
				// sum cannot be checked against it.
				printVerbose("slot %d: sealed but spilled, skipping sum\n", i)
				continue
			}
			head, body := payloadBytes(raw, g, i, h)
			sum := payloadSum(head, body)
			if !bytes.Equal(sum[:], h.Sum[:]) {
				problems = append(problems, verifyProblem{i, "checksum mismatch"})
			}
		}
	}

	if jsonOut {
		if err := printJSON(struct {
			FilePath string          `json:"file_path"`
			Problems []verifyProblem `json:"problems"`
		}{path, problems}); err != nil {
			return err
		}
	} else if len(problems) == 0 {
		printInfo("%s: %d slots, no problems found\n", path, g.slots)
	} else {
		for _, p := range problems {
			printInfo("slot %d: %s\n", p.Slot, p.Reason)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%d problem(s) found", len(problems))
	}
	return nil
}

// payloadSum mirrors the sum the ring records at commit time.
func payloadSum(head, body []byte) [format.SumSize]byte {
	h, err := blake2b.New(format.SumSize, nil)
	if err != nil {
		panic(err)
	}
	_, _ = h.Write(head)
	_, _ = h.Write(body)
	var sum [format.SumSize]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

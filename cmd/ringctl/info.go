package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/persistq/snapring/internal/format"
)

func init() {
	var g geometry
	cmd := &cobra.Command{
		Use:   "info <file>",
		Short: "Validate a ring file against its geometry and report layout",
		Long: `The info command checks that a ring file matches the given geometry
and prints its layout.

Example:
  ringctl info market.ring --slots 1024 --head-cap 128 --body-cap 4096
  ringctl info market.ring --slots 1024 --head-cap 128 --body-cap 4096 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args[0], g)
		},
	}
	g.addFlags(cmd)
	rootCmd.AddCommand(cmd)
}

type ringInfo struct {
	FilePath string `json:"file_path"`
	FileSize int64  `json:"file_size"`
	Slots    int    `json:"slots"`
	HeadCap  int    `json:"head_capacity"`
	BodyCap  int    `json:"body_capacity"`
	ItemSize int    `json:"item_size"`
	Free     int    `json:"free_slots"`
	Occupied int    `json:"occupied_slots"`
}

func runInfo(path string, g geometry) error {
	printVerbose("Scanning ring: %s\n", path)

	hdrs, _, err := scanFile(path, g)
	if err != nil {
		return err
	}
	st, err := os.Stat(path)
	if err != nil {
		return err
	}

	info := ringInfo{
		FilePath: path,
		FileSize: st.Size(),
		Slots:    g.slots,
		HeadCap:  g.headCap,
		BodyCap:  g.bodyCap,
		ItemSize: format.ItemSize(g.headCap, g.bodyCap),
	}
	for i := range hdrs {
		if hdrs[i].State == format.StateFree {
			info.Free++
		} else {
			info.Occupied++
		}
	}

	if jsonOut {
		return printJSON(info)
	}

	printInfo("Ring file: %s\n", path)
	printInfo("  Size:      %d bytes\n", info.FileSize)
	printInfo("  Slots:     %d (%d bytes each)\n", info.Slots, info.ItemSize)
	printInfo("  Head/Body: %d / %d bytes per slot\n", info.HeadCap, info.BodyCap)
	printInfo("  Free:      %d\n", info.Free)
	printInfo("  Occupied:  %d\n", info.Occupied)
	return nil
}

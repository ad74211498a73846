package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/persistq/snapring/internal/format"
	"github.com/persistq/snapring/ring"
)

func init() {
	var g geometry
	cmd := &cobra.Command{
		Use:   "create <file>",
		Short: "Create an empty ring file",
		Long: `The create command allocates and zero-initializes a new ring file.

Example:
  ringctl create market.ring --slots 1024 --head-cap 128 --body-cap 4096`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(args[0], g)
		},
	}
	g.addFlags(cmd)
	rootCmd.AddCommand(cmd)
}

func runCreate(path string, g geometry) error {
	r, err := ring.Create(path, ring.Options{
		Slots:        g.slots,
		HeadCapacity: g.headCap,
		BodyCapacity: g.bodyCap,
	})
	if err != nil {
		return fmt.Errorf("create ring: %w", err)
	}
	if err := r.Close(); err != nil {
		return fmt.Errorf("close ring: %w", err)
	}

	size := format.FileSize(g.slots, g.headCap, g.bodyCap)
	printInfo("Created %s: %d slots, %d bytes\n", path, g.slots, size)
	return nil
}

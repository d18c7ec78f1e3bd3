package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/memkit/bootmap"
	"github.com/joshuapare/memkit/cmd/memctl/logger"
	"github.com/joshuapare/memkit/global"
	"github.com/joshuapare/memkit/phys"
)

var (
	initMapFile string
)

func init() {
	cmd := newInitCmd()
	cmd.Flags().StringVar(&initMapFile, "map", "", "YAML boot memory map (default: 8 MiB at 0x80000000)")
	rootCmd.AddCommand(cmd)
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init <image>",
		Short: "Create a new memory image",
		Long: `The init command creates a zeroed memory image laid out by a boot memory
map, seeds the heap free list and clears the frame descriptor table.
An existing file at the same path is replaced.

Example:
  memctl init ram.img
  memctl init ram.img --map boot.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.Context(), args)
		},
	}
	return cmd
}

func runInit(ctx context.Context, args []string) error {
	path := args[0]

	bm := bootmap.Default()
	if initMapFile != "" {
		printVerbose("Loading memory map: %s\n", initMapFile)
		var err error
		if bm, err = bootmap.Load(initMapFile); err != nil {
			return err
		}
	}

	img, err := phys.Create(path, bm.Memory.Addr(), bm.Memory.Len())
	if err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}
	s := &session{img: img, bm: bm}
	defer s.close()

	if s.sys, err = global.Boot(img.Memory(), bm); err != nil {
		return err
	}
	hdr := img.Header()
	hdr.SetHeap(bm.Heap.Addr(), bm.Heap.Len())
	hdr.SetFrames(bm.Frames.Addr(), bm.Frames.Len())
	if err := s.save(ctx); err != nil {
		return err
	}
	logger.Info("image created", "path", path, "memory", bm.Memory.String())

	if jsonOut {
		return printJSON(mapInfo(bm, s.sys))
	}
	printInfo("Created %s\n", path)
	printInfo("  Memory: %s\n", bm.Memory)
	printInfo("  Heap:   %s\n", bm.Heap)
	printInfo("  Frames: %s (%d frames)\n", bm.Frames, s.sys.Frames.Unwrap().Frames())
	return nil
}

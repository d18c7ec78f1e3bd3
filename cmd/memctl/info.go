package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/memkit/bootmap"
	"github.com/joshuapare/memkit/global"
	"github.com/joshuapare/memkit/phys"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <image>",
		Short: "Validate an image header and report its layout and usage",
		Long: `The info command validates a memory image and displays its layout
(memory, heap and frame regions), the page table root and how much of each
allocator is in use.

Example:
  memctl info ram.img
  memctl info ram.img --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd.Context(), args)
		},
	}
	return cmd
}

// ImageInfo is the JSON form of the info command.
type ImageInfo struct {
	Memory      string    `json:"memory"`
	Heap        string    `json:"heap"`
	Frames      string    `json:"frames"`
	FrameCount  uint64    `json:"frame_count"`
	FramesInUse uint64    `json:"frames_in_use"`
	HeapInUse   uint64    `json:"heap_bytes_in_use"`
	HeapFree    uint64    `json:"heap_bytes_free"`
	FreeBlocks  int       `json:"heap_free_blocks"`
	RootTable   string    `json:"root_table,omitempty"`
	Clean       bool      `json:"clean"`
	Flushed     time.Time `json:"flushed,omitzero"`
}

func mapInfo(bm *bootmap.Map, sys *global.System) ImageInfo {
	info := ImageInfo{
		Memory:      bm.Memory.String(),
		Heap:        bm.Heap.String(),
		Frames:      bm.Frames.String(),
		FrameCount:  sys.Frames.Unwrap().Frames(),
		FramesInUse: sys.Frames.Stats().BytesInUse / 4096,
		HeapInUse:   sys.Heap.Stats().BytesInUse,
		HeapFree:    sys.Heap.Stats().BytesFree,
		Clean:       true,
	}
	if ll, ok := sys.Heap.LinkedList(); ok {
		info.FreeBlocks = len(ll.FreeBlocks())
	}
	return info
}

func runInfo(ctx context.Context, args []string) error {
	return withSession(ctx, args[0], false, func(s *session) error {
		hdr := s.img.Header()
		info := mapInfo(s.bm, s.sys)
		info.Clean = hdr.IsClean()
		info.Flushed = hdr.TimeStamp()
		if root := hdr.RootTable(); root != phys.Null {
			info.RootTable = root.String()
		}

		if jsonOut {
			return printJSON(info)
		}

		printInfo("\nImage Information:\n")
		printInfo("  File: %s\n", args[0])
		printInfo("  Memory: %s\n", info.Memory)
		printInfo("  Heap:   %s\n", info.Heap)
		printInfo("  Frames: %s\n", info.Frames)
		printInfo("  Last flush: %s\n", info.Flushed.Format(time.RFC3339))
		if info.RootTable != "" {
			printInfo("  Page table root: %s\n", info.RootTable)
		}

		printInfo("\nUsage:\n")
		printInfo("  Heap: %d bytes in use, %d bytes free in %d block(s)\n", info.HeapInUse, info.HeapFree, info.FreeBlocks)
		printInfo("  Frames: %d of %d in use\n", info.FramesInUse, info.FrameCount)

		printInfo("\nValidation:\n")
		printInfo("  ✓ Header checksum valid\n")
		if info.Clean {
			printInfo("  ✓ Last flush completed\n")
		} else {
			printInfo("  ✗ Last flush was interrupted\n")
		}
		return nil
	})
}

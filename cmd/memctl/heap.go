package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/memkit/alloc"
	"github.com/joshuapare/memkit/cmd/memctl/logger"
	"github.com/joshuapare/memkit/phys"
)

var (
	heapAlign uint64
	heapZero  bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "heap",
		Short: "Allocate and free heap blocks",
	}

	a := newHeapAllocCmd()
	a.Flags().Uint64Var(&heapAlign, "align", 0, "Alignment; above 8 uses an aligned allocation")
	a.Flags().BoolVar(&heapZero, "zero", false, "Zero the block")
	f := newHeapFreeCmd()
	f.Flags().Uint64Var(&heapAlign, "align", 0, "Alignment the block was allocated with")

	cmd.AddCommand(a, f, newHeapBlocksCmd())
	rootCmd.AddCommand(cmd)
}

func newHeapAllocCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alloc <image> <size>",
		Short: "Allocate a heap block",
		Long: `The alloc command allocates size bytes from the heap free list and
prints the block address. Sizes accept K, M and G suffixes.

Example:
  memctl heap alloc ram.img 100
  memctl heap alloc ram.img 1K --align 64`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeapAlloc(cmd.Context(), args)
		},
	}
}

func newHeapFreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "free <image> <addr> <size>",
		Short: "Free a heap block",
		Long: `The free command returns a block to the heap. size and --align must
match the allocation.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeapFree(cmd.Context(), args)
		},
	}
}

func newHeapBlocksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "blocks <image>",
		Short: "List the heap free list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeapBlocks(cmd.Context(), args)
		},
	}
}

// heapLayout builds the layout for size and the --align flag.
func heapLayout(size uint64) (alloc.Layout, bool, error) {
	if heapAlign == 0 {
		return alloc.NewLayout(size), false, nil
	}
	l := alloc.Layout{Size: size, Align: heapAlign}
	if !l.IsValid() {
		return l, false, fmt.Errorf("invalid alignment %d", heapAlign)
	}
	return l, heapAlign > 8, nil
}

func runHeapAlloc(ctx context.Context, args []string) error {
	size, err := parseAddr("size", args[1])
	if err != nil {
		return err
	}
	l, aligned, err := heapLayout(size)
	if err != nil {
		return err
	}
	return withSession(ctx, args[0], true, func(s *session) error {
		var ptr phys.Addr
		switch {
		case aligned:
			ptr, err = s.sys.Heap.AllocAligned(l)
			if err == nil && heapZero {
				s.img.Memory().Write(ptr, make([]byte, l.Size))
			}
		case heapZero:
			ptr, err = s.sys.Heap.Zalloc(l)
		default:
			ptr, err = s.sys.Heap.Alloc(l)
		}
		if err != nil {
			return err
		}
		logger.Info("heap block allocated", "addr", ptr.String(), "layout", l.String())
		if jsonOut {
			return printJSON(map[string]any{"addr": ptr.String(), "size": l.Size, "align": l.Align})
		}
		printInfo("%s\n", ptr)
		return nil
	})
}

func runHeapFree(ctx context.Context, args []string) error {
	addr, err := parseAddr("address", args[1])
	if err != nil {
		return err
	}
	size, err := parseAddr("size", args[2])
	if err != nil {
		return err
	}
	l, aligned, err := heapLayout(size)
	if err != nil {
		return err
	}
	ptr := phys.Addr(addr)
	return withSession(ctx, args[0], true, func(s *session) error {
		if !s.bm.Heap.Contains(ptr) {
			return fmt.Errorf("%s is outside the heap %s", ptr, s.bm.Heap)
		}
		err := guard(func() {
			if aligned {
				s.sys.Heap.DeallocAligned(ptr, l)
			} else {
				s.sys.Heap.Dealloc(ptr, l)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to free heap block: %w", err)
		}
		logger.Info("heap block freed", "addr", ptr.String(), "layout", l.String())
		return nil
	})
}

// FreeBlock is the JSON form of one free-list node.
type FreeBlock struct {
	Addr string `json:"addr"`
	Size uint64 `json:"size"`
}

func runHeapBlocks(ctx context.Context, args []string) error {
	return withSession(ctx, args[0], false, func(s *session) error {
		ll, ok := s.sys.Heap.LinkedList()
		if !ok {
			return fmt.Errorf("heap is a %s heap", s.sys.Heap.Kind())
		}
		blocks := ll.FreeBlocks()
		out := make([]FreeBlock, 0, len(blocks))
		for _, b := range blocks {
			out = append(out, FreeBlock{Addr: b.Addr.String(), Size: b.Size})
		}
		if jsonOut {
			return printJSON(out)
		}
		var total uint64
		for _, b := range out {
			printInfo("%s  %8d bytes\n", b.Addr, b.Size)
			total += b.Size
		}
		printInfo("%d block(s), %d bytes free\n", len(out), total)
		return nil
	})
}

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joshuapare/memkit/cmd/memctl/logger"
	"github.com/joshuapare/memkit/phys"
)

var (
	framesTable bool
	framesZero  bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "frames",
		Short: "Allocate, free and list page frames",
	}

	list := newFramesListCmd()
	list.Flags().BoolVar(&framesTable, "table", false, "Print the full page allocation table")
	alloc := newFramesAllocCmd()
	alloc.Flags().BoolVar(&framesZero, "zero", false, "Zero the frames after allocating them")

	cmd.AddCommand(list, alloc, newFramesFreeCmd())
	rootCmd.AddCommand(cmd)
}

func newFramesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <image>",
		Short: "List allocated frame runs",
		Long: `The list command prints every allocated run of contiguous frames.

Example:
  memctl frames list ram.img
  memctl frames list ram.img --table`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFramesList(cmd.Context(), args)
		},
	}
}

func newFramesAllocCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alloc <image> <pages>",
		Short: "Allocate a run of contiguous frames",
		Long: `The alloc command takes the first run of free contiguous frames and
prints its physical address.

Example:
  memctl frames alloc ram.img 4
  memctl frames alloc ram.img 1 --zero`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFramesAlloc(cmd.Context(), args)
		},
	}
}

func newFramesFreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "free <image> <addr>",
		Short: "Free the frame run starting at addr",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFramesFree(cmd.Context(), args)
		},
	}
}

// FrameRun is the JSON form of one allocated run.
type FrameRun struct {
	Addr   string `json:"addr"`
	End    string `json:"end"`
	Pages  uint64 `json:"pages"`
	Broken bool   `json:"broken,omitempty"`
}

func runFramesList(ctx context.Context, args []string) error {
	return withSession(ctx, args[0], false, func(s *session) error {
		pa := s.sys.Frames.Unwrap()
		if framesTable && !jsonOut {
			return pa.Dump(os.Stdout)
		}

		runs := pa.Runs()
		out := make([]FrameRun, 0, len(runs))
		for _, r := range runs {
			out = append(out, FrameRun{Addr: r.Addr.String(), End: r.End().String(), Pages: r.Pages, Broken: r.Broken})
		}
		if jsonOut {
			return printJSON(out)
		}
		if len(out) == 0 {
			printInfo("No frames allocated\n")
			return nil
		}
		for _, r := range out {
			suffix := ""
			if r.Broken {
				suffix = " (no last page)"
			}
			printInfo("%s  %4d page(s)%s\n", r.Addr, r.Pages, suffix)
		}
		return nil
	})
}

func runFramesAlloc(ctx context.Context, args []string) error {
	n, err := strconv.ParseUint(args[1], 0, 64)
	if err != nil || n == 0 {
		return fmt.Errorf("invalid page count %q", args[1])
	}
	return withSession(ctx, args[0], true, func(s *session) error {
		pa := s.sys.Frames.Unwrap()
		var ptr phys.Addr
		if framesZero {
			ptr, err = pa.ZallocPages(n)
		} else {
			ptr, err = pa.AllocPages(n)
		}
		if err != nil {
			return err
		}
		logger.Info("frames allocated", "addr", ptr.String(), "pages", n)
		if jsonOut {
			return printJSON(FrameRun{Addr: ptr.String(), End: ptr.Add(n * 4096).String(), Pages: n})
		}
		printInfo("%s\n", ptr)
		return nil
	})
}

func runFramesFree(ctx context.Context, args []string) error {
	addr, err := parseAddr("address", args[1])
	if err != nil {
		return err
	}
	return withSession(ctx, args[0], true, func(s *session) error {
		if err := guard(func() { s.sys.Frames.Unwrap().DeallocPages(phys.Addr(addr)) }); err != nil {
			return fmt.Errorf("failed to free frames: %w", err)
		}
		logger.Info("frames freed", "addr", phys.Addr(addr).String())
		printVerbose("Freed run at %s\n", phys.Addr(addr))
		return nil
	})
}

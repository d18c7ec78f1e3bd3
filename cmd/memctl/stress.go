package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/memkit/alloc"
	"github.com/joshuapare/memkit/cmd/memctl/logger"
	"github.com/joshuapare/memkit/metrics"
	"github.com/joshuapare/memkit/phys"
)

var (
	stressOps     int
	stressSeed    int64
	stressMaxSize uint64
	stressMetrics bool
)

func init() {
	cmd := newStressCmd()
	cmd.Flags().IntVarP(&stressOps, "ops", "n", 10000, "Number of operations")
	cmd.Flags().Int64Var(&stressSeed, "seed", 1, "Random seed")
	cmd.Flags().Uint64Var(&stressMaxSize, "max-size", 512, "Largest heap request in bytes")
	cmd.Flags().BoolVar(&stressMetrics, "metrics", false, "Print allocator metrics in Prometheus text format")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stress <image>",
		Short: "Exercise the heap and frame allocators with random requests",
		Long: `The stress command runs a seeded random mix of heap and frame
allocations and frees against an image, checking that live blocks never
overlap, then frees everything it allocated.

Example:
  memctl stress ram.img -n 100000 --seed 7
  memctl stress ram.img --metrics`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress(cmd.Context(), args)
		},
	}
}

// StressResult is the JSON form of a stress run.
type StressResult struct {
	Ops          int    `json:"ops"`
	HeapAllocs   uint64 `json:"heap_allocs"`
	HeapFailures uint64 `json:"heap_failures"`
	FrameAllocs  uint64 `json:"frame_allocs"`
	FrameFails   uint64 `json:"frame_failures"`
	PeakLive     int    `json:"peak_live"`
	Elapsed      string `json:"elapsed"`
}

type liveBlock struct {
	addr   phys.Addr
	layout alloc.Layout
	frames bool
}

func runStress(ctx context.Context, args []string) error {
	if stressOps <= 0 {
		return fmt.Errorf("invalid operation count %d", stressOps)
	}
	if stressMaxSize == 0 {
		return errors.New("--max-size must be positive")
	}

	return withSession(ctx, args[0], true, func(s *session) error {
		heap, frames := s.sys.Heap, s.sys.Frames
		heapBefore, framesBefore := heap.Stats(), frames.Stats()

		var w io.Writer = os.Stderr
		if quiet || jsonOut {
			w = io.Discard
		}
		bar := progressbar.NewOptions(stressOps,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("stress"),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)

		rng := rand.New(rand.NewSource(stressSeed))
		var live []liveBlock
		peak := 0
		start := time.Now()

		for i := range stressOps {
			if err := ctx.Err(); err != nil {
				return err
			}
			if len(live) > 0 && rng.Intn(100) < 45 {
				j := rng.Intn(len(live))
				b := live[j]
				live[j] = live[len(live)-1]
				live = live[:len(live)-1]
				if b.frames {
					frames.Dealloc(b.addr, b.layout)
				} else {
					heap.Dealloc(b.addr, b.layout)
				}
			} else {
				b := liveBlock{frames: rng.Intn(10) == 0}
				var err error
				if b.frames {
					b.layout = alloc.NewLayout(uint64(1+rng.Intn(4)) * 4096)
					b.addr, err = frames.Alloc(b.layout)
				} else {
					b.layout = alloc.Layout{Size: 1 + uint64(rng.Int63n(int64(stressMaxSize))), Align: 1 << rng.Intn(4)}
					b.addr, err = heap.Alloc(b.layout)
				}
				switch {
				case errors.Is(err, alloc.ErrOutOfMemory):
				case err != nil:
					return err
				default:
					if o, ok := overlapping(live, b); ok {
						return fmt.Errorf("op %d: block %s (%s) overlaps live block %s (%s)", i, b.addr, b.layout, o.addr, o.layout)
					}
					live = append(live, b)
					peak = max(peak, len(live))
				}
			}
			_ = bar.Add(1)
		}
		_ = bar.Finish()

		for _, b := range live {
			if b.frames {
				frames.Dealloc(b.addr, b.layout)
			} else {
				heap.Dealloc(b.addr, b.layout)
			}
		}

		heapAfter, framesAfter := heap.Stats(), frames.Stats()
		res := StressResult{
			Ops:          stressOps,
			HeapAllocs:   heapAfter.AllocCalls - heapBefore.AllocCalls,
			HeapFailures: heapAfter.FailedAllocs - heapBefore.FailedAllocs,
			FrameAllocs:  framesAfter.AllocCalls - framesBefore.AllocCalls,
			FrameFails:   framesAfter.FailedAllocs - framesBefore.FailedAllocs,
			PeakLive:     peak,
			Elapsed:      time.Since(start).Round(time.Millisecond).String(),
		}
		logger.Info("stress finished", "ops", res.Ops, "heap_allocs", res.HeapAllocs, "frame_allocs", res.FrameAllocs, "elapsed", res.Elapsed)

		if jsonOut {
			if err := printJSON(res); err != nil {
				return err
			}
		} else {
			p := message.NewPrinter(language.English)
			printInfo("%s", p.Sprintf("%d operations in %s\n", res.Ops, res.Elapsed))
			printInfo("%s", p.Sprintf("  heap:   %d allocations, %d out of memory\n", res.HeapAllocs, res.HeapFailures))
			printInfo("%s", p.Sprintf("  frames: %d allocations, %d out of memory\n", res.FrameAllocs, res.FrameFails))
			printInfo("%s", p.Sprintf("  peak live blocks: %d\n", res.PeakLive))
		}

		if stressMetrics {
			return writeMetrics(os.Stdout, metrics.NewCollector(map[string]metrics.StatsSource{
				"heap":   heap,
				"frames": frames,
			}))
		}
		return nil
	})
}

// overlapping returns a live block that intersects b.
func overlapping(live []liveBlock, b liveBlock) (liveBlock, bool) {
	end := b.addr.Add(b.layout.Size)
	for _, o := range live {
		if b.addr < o.addr.Add(o.layout.Size) && o.addr < end {
			return o, true
		}
	}
	return liveBlock{}, false
}

// writeMetrics gathers c and writes it in the Prometheus text format.
func writeMetrics(w io.Writer, c prometheus.Collector) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return err
	}
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, f := range families {
		if _, err := expfmt.MetricFamilyToText(w, f); err != nil {
			return err
		}
	}
	return nil
}

package page

import (
	"fmt"
	"io"

	"github.com/joshuapare/memkit/internal/format"
	"github.com/joshuapare/memkit/phys"
)

// Run is one allocated run of frames.
type Run struct {
	Addr  phys.Addr
	Pages uint64
	// Broken is set when the descriptors end without a Last page.
	Broken bool
}

// End returns the address one past the run.
func (r Run) End() phys.Addr { return r.Addr.Add(r.Pages * format.PageSize) }

// Runs lists the allocated runs in address order. It only reads the
// descriptor table.
func (a *Allocator) Runs() []Run {
	var runs []Run
	for i := uint64(0); i < a.frames; {
		if !a.Flags(i).IsTaken() {
			i++
			continue
		}
		start := i
		for i < a.frames && a.Flags(i).IsTaken() && !a.Flags(i).IsLast() {
			i++
		}
		run := Run{Addr: a.FrameAddr(start)}
		if i < a.frames && a.Flags(i).IsLast() {
			i++
		} else {
			run.Broken = true
		}
		run.Pages = i - start
		runs = append(runs, run)
	}
	return runs
}

// Dump writes a human-readable table of the allocated runs to w.
func (a *Allocator) Dump(w io.Writer) error {
	var taken uint64
	ew := &errWriter{w: w}

	ew.printf("PAGE ALLOCATION TABLE\n")
	ew.printf("META: %s -> %s\n", a.table, a.table.Add(a.frames))
	ew.printf("PHYS: %s -> %s\n", a.allocStart, a.End())
	ew.printf("~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~\n")
	for _, r := range a.Runs() {
		suffix := ""
		if r.Broken {
			suffix = " (no last page)"
		}
		ew.printf("%s => %s: %3d page(s)%s\n", r.Addr, r.End()-1, r.Pages, suffix)
		taken += r.Pages
	}
	ew.printf("~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~\n")
	ew.printf("Allocated: %6d pages (%10d bytes).\n", taken, taken*format.PageSize)
	ew.printf("Free     : %6d pages (%10d bytes).\n", a.frames-taken, (a.frames-taken)*format.PageSize)
	return ew.err
}

// errWriter remembers the first write error so Dump can print freely.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(f string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, f, args...)
}

package page

import (
	"fmt"
	"os"

	"github.com/joshuapare/memkit/alloc"
	"github.com/joshuapare/memkit/internal/buf"
	"github.com/joshuapare/memkit/internal/format"
	"github.com/joshuapare/memkit/phys"
)

// Runtime debug flag for frame logging - controlled by MEMKIT_LOG_PAGE env var.
var logPage = os.Getenv("MEMKIT_LOG_PAGE") != ""

func debugLogf(msg string, args ...any) {
	if logPage {
		fmt.Fprintf(os.Stderr, "[PAGE] "+msg+"\n", args...)
	}
}

// Allocator hands out runs of contiguous 4 KiB frames.
//
// The managed region starts with a descriptor table, one Flags byte per
// page of the region; frames begin at the first page boundary after the
// table. Allocation is a linear first-fit scan over the descriptors.
//
// NOT thread-safe. Wrap it in alloc.Locked to share it.
type Allocator struct {
	mem        *phys.Memory
	table      phys.Addr // first descriptor
	allocStart phys.Addr // first frame
	frames     uint64
	stats      alloc.Stats
}

// New lays out a descriptor table at start, clears every descriptor and
// returns an allocator for the frames of [start, start+size).
func New(mem *phys.Memory, start phys.Addr, size uint64) (*Allocator, error) {
	a, err := layout(mem, start, size)
	if err != nil {
		return nil, err
	}
	mem.Write(a.table, make([]byte, size/format.PageSize))
	a.stats.BytesFree = a.stats.Capacity
	debugLogf("init table=%s frames=%d start=%s", a.table, a.frames, a.allocStart)
	return a, nil
}

// Attach returns an allocator over a descriptor table previously built by
// New with the same bounds, keeping every allocation recorded in it.
func Attach(mem *phys.Memory, start phys.Addr, size uint64) (*Allocator, error) {
	a, err := layout(mem, start, size)
	if err != nil {
		return nil, err
	}
	for i := range a.frames {
		if a.Flags(i).IsTaken() {
			a.stats.BytesInUse += format.PageSize
		}
	}
	a.stats.BytesFree = a.stats.Capacity - a.stats.BytesInUse
	return a, nil
}

func layout(mem *phys.Memory, start phys.Addr, size uint64) (*Allocator, error) {
	if !mem.Contains(start, size) {
		return nil, fmt.Errorf("page: region %s+%d outside memory %s-%s", start, size, mem.Base(), mem.End())
	}
	end := start.Add(size)
	allocStart := phys.Addr(format.AlignPage(uint64(start) + size/format.PageSize))
	if size < format.PageSize || allocStart >= end {
		return nil, fmt.Errorf("%w: %d bytes at %s", ErrRegionTooSmall, size, start)
	}
	frames := end.Sub(allocStart) / format.PageSize
	if frames == 0 {
		return nil, fmt.Errorf("%w: %d bytes at %s", ErrRegionTooSmall, size, start)
	}
	return &Allocator{
		mem:        mem,
		table:      start,
		allocStart: allocStart,
		frames:     frames,
		stats:      alloc.Stats{Capacity: frames * format.PageSize},
	}, nil
}

// Memory returns the arena the frames live in.
func (a *Allocator) Memory() *phys.Memory { return a.mem }

// Frames returns the number of frames under management.
func (a *Allocator) Frames() uint64 { return a.frames }

// AllocStart returns the address of frame 0.
func (a *Allocator) AllocStart() phys.Addr { return a.allocStart }

// End returns the address one past the last frame.
func (a *Allocator) End() phys.Addr { return a.FrameAddr(a.frames) }

// FrameAddr returns the address of frame i.
func (a *Allocator) FrameAddr(i uint64) phys.Addr {
	return a.allocStart.Add(i * format.PageSize)
}

// Flags returns the descriptor of frame i.
func (a *Allocator) Flags(i uint64) Flags {
	return Flags(a.mem.Byte(a.table.Add(i)))
}

func (a *Allocator) setFlags(i uint64, f Flags) {
	a.mem.SetByte(a.table.Add(i), byte(f))
}

// Stats returns current allocator statistics.
func (a *Allocator) Stats() alloc.Stats { return a.stats }

// AllocPages returns the first run of n free contiguous frames. n must be
// positive.
func (a *Allocator) AllocPages(n uint64) (phys.Addr, error) {
	if n == 0 {
		panic(fmt.Errorf("%w: page: allocation of zero pages", alloc.ErrPrecondition))
	}

	for i := uint64(0); n <= a.frames && i <= a.frames-n; {
		taken, ok := a.firstTaken(i, n)
		if ok {
			// No run starting before the taken frame can fit.
			i = taken + 1
			continue
		}
		for k := i; k < i+n-1; k++ {
			a.setFlags(k, Taken)
		}
		a.setFlags(i+n-1, Taken|Last)

		a.stats.AllocCalls++
		a.stats.BytesInUse += n * format.PageSize
		a.stats.BytesFree -= n * format.PageSize
		ptr := a.FrameAddr(i)
		debugLogf("alloc %d page(s) -> %s (frame %d)", n, ptr, i)
		return ptr, nil
	}

	a.stats.FailedAllocs++
	debugLogf("alloc %d page(s) failed", n)
	return phys.Null, fmt.Errorf("%w: no run of %d free pages", alloc.ErrOutOfMemory, n)
}

// firstTaken returns the index of the first taken frame in [i, i+n).
func (a *Allocator) firstTaken(i, n uint64) (uint64, bool) {
	for j := i; j < i+n; j++ {
		if a.Flags(j).IsTaken() {
			return j, true
		}
	}
	return 0, false
}

// DeallocPages frees the run that starts at ptr. ptr must be the first
// page of a run returned by AllocPages. The run is checked before any
// descriptor is cleared; a bad pointer, an interior page or a broken run
// panics and leaves the table unchanged.
func (a *Allocator) DeallocPages(ptr phys.Addr) {
	i := a.frameIndex(ptr)
	if i > 0 {
		if prev := a.Flags(i - 1); prev.IsTaken() && !prev.IsLast() {
			panic(fmt.Errorf("%w: %s (frame %d)", ErrInteriorPage, ptr, i))
		}
	}
	if !a.Flags(i).IsTaken() {
		panic(fmt.Errorf("%w: %s (frame %d)", ErrNotTaken, ptr, i))
	}

	last := i
	for ; !a.Flags(last).IsLast(); last++ {
		if last+1 >= a.frames || !a.Flags(last+1).IsTaken() {
			panic(fmt.Errorf("%w: run at %s ends without a last page", ErrDoubleFree, ptr))
		}
	}

	for k := i; k <= last; k++ {
		a.setFlags(k, Empty)
	}
	n := last - i + 1
	a.stats.DeallocCalls++
	a.stats.BytesInUse -= n * format.PageSize
	a.stats.BytesFree += n * format.PageSize
	debugLogf("dealloc %d page(s) at %s", n, ptr)
}

// frameIndex validates ptr and converts it to a frame index.
func (a *Allocator) frameIndex(ptr phys.Addr) uint64 {
	switch {
	case ptr.IsNull():
		panic(fmt.Errorf("%w: null pointer", ErrBadPointer))
	case !ptr.IsAligned(format.PageSize):
		panic(fmt.Errorf("%w: %s is not page aligned", ErrBadPointer, ptr))
	case ptr < a.allocStart || ptr >= a.End():
		panic(fmt.Errorf("%w: %s outside frames %s-%s", ErrBadPointer, ptr, a.allocStart, a.End()))
	}
	return ptr.Sub(a.allocStart) / format.PageSize
}

// ZallocPages allocates n frames and zeroes them with 8-byte stores.
func (a *Allocator) ZallocPages(n uint64) (phys.Addr, error) {
	ptr, err := a.AllocPages(n)
	if err != nil {
		return phys.Null, err
	}
	alloc.ZeroFill(a.mem, ptr, n*format.PageSize)
	return ptr, nil
}

// pagesFor converts a byte layout to a page count. Alignments above the
// page size cannot be honoured. Sizes that overflow when rounded to a
// page return ErrOutOfMemory.
func pagesFor(l alloc.Layout) (uint64, error) {
	if l.Align > format.PageSize {
		panic(fmt.Errorf("%w: page: alignment %d exceeds page size", alloc.ErrPrecondition, l.Align))
	}
	if _, ok := buf.AddOverflowSafe(l.Size, format.PageMask); !ok {
		return 0, fmt.Errorf("%w: %d bytes overflow when rounded to pages", alloc.ErrOutOfMemory, l.Size)
	}
	return max(format.PagesFor(l.Size), 1), nil
}

// Alloc allocates enough whole frames for l.Size bytes.
func (a *Allocator) Alloc(l alloc.Layout) (phys.Addr, error) {
	n, err := pagesFor(l)
	if err != nil {
		a.stats.FailedAllocs++
		return phys.Null, err
	}
	return a.AllocPages(n)
}

// Dealloc frees the run at ptr. The layout is not needed; the run length
// comes from the descriptors.
func (a *Allocator) Dealloc(ptr phys.Addr, _ alloc.Layout) {
	a.DeallocPages(ptr)
}

// Realloc moves the run; see alloc.ReallocCopy.
func (a *Allocator) Realloc(ptr phys.Addr, oldSize uint64, l alloc.Layout) (phys.Addr, error) {
	return alloc.ReallocCopy(a, ptr, oldSize, l)
}

// Zalloc allocates and zeroes enough whole frames for l.Size bytes.
func (a *Allocator) Zalloc(l alloc.Layout) (phys.Addr, error) {
	n, err := pagesFor(l)
	if err != nil {
		a.stats.FailedAllocs++
		return phys.Null, err
	}
	return a.ZallocPages(n)
}

package alloc

import (
	"fmt"

	"github.com/joshuapare/memkit/internal/buf"
	"github.com/joshuapare/memkit/internal/format"
	"github.com/joshuapare/memkit/phys"
)

// The operations below are written once against the Allocator interface
// and work for every backend. They are not synchronized: pass a Locked
// allocator's inner backend from inside the lock, or use the Locked
// methods of the same name.

// alignedHeaderSize is the hidden word stored before an aligned pointer.
const alignedHeaderSize = format.WordSize

// alignedLayout is the over-allocated layout backing an aligned request.
// ok is false when Size+Align-1+8 overflows.
func alignedLayout(l Layout) (Layout, bool) {
	size, ok := buf.AddOverflowSafe(l.Size, l.Align-1)
	if ok {
		size, ok = buf.AddOverflowSafe(size, alignedHeaderSize)
	}
	return NewLayout(size), ok
}

// AllocAligned returns a block of l.Size bytes aligned to l.Align from any
// allocator. It over-allocates by Align-1 plus one word and stores the
// address of the underlying block in the word just before the returned
// pointer.
func AllocAligned(a Allocator, l Layout) (phys.Addr, error) {
	backing, ok := alignedLayout(l)
	if !ok {
		return phys.Null, fmt.Errorf("%w: aligned layout %s overflows", ErrOutOfMemory, l)
	}
	ptr, err := a.Alloc(backing)
	if err != nil {
		return phys.Null, err
	}
	aligned := phys.Addr(l.AlignUp(uint64(ptr) + alignedHeaderSize))
	a.Memory().SetWord(aligned-alignedHeaderSize, uint64(ptr))
	return aligned, nil
}

// DeallocAligned frees a block returned by AllocAligned with the same layout.
func DeallocAligned(a Allocator, ptr phys.Addr, l Layout) {
	if ptr.IsNull() {
		panic(fmt.Errorf("%w: aligned dealloc of null pointer", ErrPrecondition))
	}
	backing, ok := alignedLayout(l)
	if !ok {
		panic(fmt.Errorf("%w: aligned dealloc of %s with an overflowing layout", ErrPrecondition, ptr))
	}
	actual := phys.Addr(a.Memory().Word(ptr - alignedHeaderSize))
	a.Dealloc(actual, backing)
}

// ReallocCopy implements Realloc as allocate-new, copy min(oldSize, l.Size)
// bytes, free-old. A null ptr behaves like Alloc.
func ReallocCopy(a Allocator, ptr phys.Addr, oldSize uint64, l Layout) (phys.Addr, error) {
	next, err := a.Alloc(l)
	if err != nil {
		return phys.Null, err
	}
	if ptr.IsNull() {
		return next, nil
	}
	a.Memory().Copy(next, ptr, min(oldSize, l.Size))
	a.Dealloc(ptr, Layout{Size: oldSize, Align: l.Align})
	return next, nil
}

// ZeroFill clears n bytes at addr using 8-byte stores. n must be a
// multiple of 8.
func ZeroFill(mem *phys.Memory, addr phys.Addr, n uint64) {
	if n%format.WordSize != 0 {
		panic(fmt.Errorf("%w: zero fill of %d bytes is not a multiple of %d", ErrPrecondition, n, format.WordSize))
	}
	mem.Zero64(addr, n/format.WordSize)
}

// UsableSize returns how many bytes a block allocated with l may use.
// No backend reports slack, so this is l.Size.
func UsableSize(l Layout) uint64 {
	return l.Size
}

// ReallocInPlace tries to resize the block at ptr without moving it and
// returns the resulting usable size. In-place resizing is not supported,
// so it always returns oldSize and the caller must fall back to Realloc.
func ReallocInPlace(_ phys.Addr, oldSize uint64, _ Layout) uint64 {
	return oldSize
}

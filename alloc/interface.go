package alloc

import "github.com/joshuapare/memkit/phys"

// Allocator is the capability every backend provides. Containers and the
// page-table mapper depend only on this interface.
//
// Implementations:
//   - LinkedList: byte-granular first-fit free list
//   - page.Allocator: whole 4 KiB frames from a descriptor table
//   - Locked: a mutex around either of the above
//   - global.Heap: the installed process-wide allocator
type Allocator interface {
	// Alloc returns the address of a block satisfying l, or ErrOutOfMemory.
	Alloc(l Layout) (phys.Addr, error)

	// Dealloc returns a block obtained from Alloc with the same layout.
	Dealloc(ptr phys.Addr, l Layout)

	// Realloc moves the block at ptr to a new block satisfying l, copying
	// min(oldSize, l.Size) bytes. It never resizes in place. On failure the
	// old block is left untouched.
	Realloc(ptr phys.Addr, oldSize uint64, l Layout) (phys.Addr, error)

	// Zalloc is Alloc followed by zeroing the block with 8-byte stores.
	Zalloc(l Layout) (phys.Addr, error)

	// Memory returns the arena the allocator hands out addresses from.
	Memory() *phys.Memory
}

// Backend is an Allocator that also reports statistics.
type Backend interface {
	Allocator
	Stats() Stats
}

// Stats is a snapshot of an allocator's counters.
type Stats struct {
	AllocCalls   uint64 // successful allocations
	DeallocCalls uint64
	FailedAllocs uint64 // allocations that returned ErrOutOfMemory
	Splits       uint64 // blocks split to satisfy a request
	BytesInUse   uint64 // bytes handed out and not yet returned
	BytesFree    uint64 // bytes available for allocation
	Capacity     uint64 // bytes under management
}

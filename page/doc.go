// Package page implements the page-frame allocator.
//
// # Layout
//
// A managed region [start, start+size) is split into a descriptor table
// and the frames it describes:
//
//	start                       allocStart = AlignPage(start + size/4096)
//	| Flags | Flags | ... | pad | frame 0 | frame 1 | ... | frame N-1 |
//
// Each descriptor is one byte: Empty, Taken, or Taken|Last for the final
// frame of a run. Every run of Taken frames ends in exactly one Last frame.
//
// # Allocation
//
// AllocPages(n) scans the descriptors for the first n consecutive free
// frames. DeallocPages(ptr) takes the address of the FIRST page of a run;
// passing an interior page, a page that is not allocated, or a run that
// reaches a free frame before its Last frame panics with an error that
// wraps alloc.ErrPrecondition (ErrInteriorPage, ErrNotTaken or
// ErrDoubleFree).
//
// The Allocator also satisfies alloc.Allocator, rounding byte layouts up
// to whole pages, so it can back the page-table mapper or serve as the
// global heap.
//
// Set MEMKIT_LOG_PAGE=1 to trace frame operations on stderr.
package page

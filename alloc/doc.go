// Package alloc provides the allocator capability and the free-list heap
// backend used by the kernel memory layer.
//
// # Overview
//
// Every backend implements Allocator over a phys.Memory arena:
//
//   - Alloc(layout): return an address or ErrOutOfMemory
//   - Dealloc(ptr, layout): give the block back
//   - Realloc(ptr, oldSize, layout): allocate, copy, free; never in place
//   - Zalloc(layout): allocate and zero with 8-byte stores
//
// AllocAligned, DeallocAligned, ReallocCopy and ZeroFill are written once
// on top of these primitives and work for every backend.
//
// # LinkedList
//
// LinkedList keeps a first-fit chain of free blocks inside the heap:
//
//	block:  0x00 size u64 | 0x08 next u64 | ... free bytes ...
//
// Requests are rounded so every allocated block can later host a node
// (align >= 8, size >= 16, size a multiple of align). A block is used only
// when the bytes left behind are zero or at least one node; that tail is
// pushed back at the head. Freed blocks are pushed at the head too, and
// neighbours are never merged:
//
//	ll := alloc.NewLinkedList(mem)
//	ll.Init(heapStart, 4096)
//	a, _ := ll.Alloc(alloc.Layout{Size: 100, Align: 8})  // ok
//	_, err := ll.Alloc(alloc.Layout{Size: 4000, Align: 8}) // ErrOutOfMemory
//	ll.Dealloc(a, alloc.Layout{Size: 100, Align: 8})
//	_, err = ll.Alloc(alloc.Layout{Size: 4000, Align: 8})  // still ErrOutOfMemory
//
// Bytes skipped to align the start of an allocation are not returned to
// the chain.
//
// # Aligned Allocation
//
// AllocAligned over-allocates Size + Align - 1 + 8 bytes and stores the
// real block address in the word just before the aligned pointer:
//
//	| ... pad ... | real addr (u64) | aligned data ... |
//	                                ^ returned pointer
//
// # Errors
//
// Running out of memory is returned as ErrOutOfMemory. Contract
// violations (misaligned regions, foreign pointers, double frees) panic
// with an error wrapping ErrPrecondition.
//
// # Thread Safety
//
// Backends are not thread-safe. Locked wraps any Backend with a mutex.
//
// # Debugging
//
// Set MEMKIT_LOG_ALLOC=1 to trace heap operations on stderr.
package alloc

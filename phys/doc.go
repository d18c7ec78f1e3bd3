// Package phys models physical memory as a byte arena addressed by
// physical addresses.
//
// # Overview
//
// A Memory covers the half-open physical range [Base, Base+Size). Every
// allocator in this module keeps its bookkeeping inside that range: the
// free-list nodes of the heap, the page descriptor table and the page
// tables themselves are little-endian words stored in place. Addresses
// never become Go pointers; Memory translates an Addr to an offset and
// bounds-checks every access.
//
// Address 0 is reserved as the null address, so a Memory never starts
// at 0.
//
// # Backing Storage
//
//	mem, _ := phys.New(0x8000_0000, 8<<20)          // heap-backed
//	img, _ := phys.Create("ram.img", 0x8000_0000, 8<<20) // file-backed
//	mem = img.Memory()
//
// File-backed memory is mapped read/write; stores are recorded in a
// dirty.Tracker and msync'd by Image.Flush.
//
// # Errors
//
// Accessing bytes outside the arena is a programming error and panics
// with an error wrapping ErrOutOfRange.
//
// # Thread Safety
//
// Memory does no locking. Callers serialize access, normally through the
// alloc.Locked wrapper.
package phys

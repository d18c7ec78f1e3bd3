package alloc

import "errors"

var (
	// ErrOutOfMemory indicates that no free region could satisfy a request.
	// It is the only failure an allocation returns; callers may free memory
	// and retry or give up.
	ErrOutOfMemory = errors.New("alloc: out of memory")

	// ErrPrecondition indicates a caller broke an allocator contract: a
	// misaligned or undersized region, or a pointer this allocator did not
	// produce. It is never returned; allocators panic with an error that
	// wraps it.
	ErrPrecondition = errors.New("alloc: precondition violated")
)

package page

import (
	"errors"
	"fmt"

	"github.com/joshuapare/memkit/alloc"
)

var (
	// ErrRegionTooSmall indicates a region that cannot hold the descriptor
	// table and at least one frame.
	ErrRegionTooSmall = errors.New("page: region too small for one frame")

	// ErrDoubleFree indicates a run that was already freed or whose
	// descriptors are corrupted. Panics carry it.
	ErrDoubleFree = fmt.Errorf("%w: page: possible double free", alloc.ErrPrecondition)

	// ErrNotTaken indicates a free of a page that is not allocated.
	ErrNotTaken = fmt.Errorf("%w: freeing a page that is not taken", ErrDoubleFree)

	// ErrInteriorPage indicates a free of a page inside a run instead of
	// its first page.
	ErrInteriorPage = fmt.Errorf("%w: page: pointer is inside a run, not its first page", alloc.ErrPrecondition)

	// ErrBadPointer indicates a null, unaligned or out-of-region pointer.
	ErrBadPointer = fmt.Errorf("%w: page: pointer not produced by this allocator", alloc.ErrPrecondition)
)

package pagetable

import (
	"errors"
	"fmt"

	"github.com/joshuapare/memkit/alloc"
)

var (
	// ErrNoMapping indicates a translation reached an invalid entry. The
	// caller should treat it as a page fault.
	ErrNoMapping = errors.New("pagetable: no mapping")

	// ErrNoPermission indicates Map was called without any of R, W or X.
	ErrNoPermission = fmt.Errorf("%w: pagetable: leaf needs read, write or execute", alloc.ErrPrecondition)

	// ErrBadLevel indicates a leaf level outside 0..2.
	ErrBadLevel = fmt.Errorf("%w: pagetable: level out of range", alloc.ErrPrecondition)

	// ErrLeafInPath indicates Map would have to descend through an
	// existing leaf (a larger page already covers the address).
	ErrLeafInPath = fmt.Errorf("%w: pagetable: address already covered by a larger page", alloc.ErrPrecondition)
)

package alloc

import (
	"fmt"
	"reflect"

	"github.com/joshuapare/memkit/internal/buf"
	"github.com/joshuapare/memkit/internal/format"
)

// DefaultAlign is the alignment NewLayout uses.
const DefaultAlign = 4

// Layout describes the size and alignment of a memory request.
// Align must be a non-zero power of two. This is not checked by the
// allocators; use IsValid when the layout comes from an untrusted source.
type Layout struct {
	Size  uint64
	Align uint64
}

// NewLayout returns a layout of size bytes with DefaultAlign alignment.
func NewLayout(size uint64) Layout {
	return Layout{Size: size, Align: DefaultAlign}
}

// LayoutOf returns the layout of a single value of type T.
func LayoutOf[T any]() Layout {
	rt := reflect.TypeFor[T]()
	return Layout{Size: uint64(rt.Size()), Align: uint64(rt.Align())}
}

// ArrayLayout returns the layout of n consecutive values of type T. It
// panics with ErrPrecondition when the total size overflows uint64.
func ArrayLayout[T any](n uint64) Layout {
	l := LayoutOf[T]()
	size, ok := buf.MulOverflowSafe(l.Size, n)
	if !ok {
		panic(fmt.Errorf("%w: array of %d values of %d bytes overflows", ErrPrecondition, n, l.Size))
	}
	l.Size = size
	return l
}

// AlignUp rounds n up to the layout's alignment.
func (l Layout) AlignUp(n uint64) uint64 {
	return format.AlignUp(n, l.Align)
}

// alignUpChecked is format.AlignUp with ok = false when the rounded value
// does not fit in uint64.
func alignUpChecked(n, align uint64) (uint64, bool) {
	sum, ok := buf.AddOverflowSafe(n, align-1)
	if !ok {
		return 0, false
	}
	return sum &^ (align - 1), true
}

// IsValid reports whether Align is a non-zero power of two.
func (l Layout) IsValid() bool {
	return format.IsPowerOfTwo(l.Align)
}

// String formats the layout as size/align.
func (l Layout) String() string {
	return fmt.Sprintf("%d/%d", l.Size, l.Align)
}

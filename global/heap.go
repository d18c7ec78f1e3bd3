package global

import (
	"fmt"

	"github.com/joshuapare/memkit/alloc"
	"github.com/joshuapare/memkit/page"
	"github.com/joshuapare/memkit/phys"
)

// Kind names the backend inside a Heap.
type Kind uint8

const (
	KindLinkedList Kind = iota + 1
	KindPage
)

func (k Kind) String() string {
	switch k {
	case KindLinkedList:
		return "linked-list"
	case KindPage:
		return "page"
	default:
		return "unknown"
	}
}

// Heap is a locked allocator of one of the supported kinds. Every method
// dispatches with a switch on the kind. The zero Heap is invalid.
type Heap struct {
	kind  Kind
	list  *alloc.Locked[*alloc.LinkedList]
	pages *alloc.Locked[*page.Allocator]
}

var _ alloc.Backend = (*Heap)(nil)

// NewLinkedList returns a free-list heap seeded with [start, start+size).
// Bad bounds panic with alloc.ErrPrecondition.
func NewLinkedList(mem *phys.Memory, start phys.Addr, size uint64) *Heap {
	ll := alloc.NewLinkedList(mem)
	ll.Init(start, size)
	return FromLinkedList(ll)
}

// FromLinkedList wraps an existing free-list allocator.
func FromLinkedList(ll *alloc.LinkedList) *Heap {
	return &Heap{kind: KindLinkedList, list: alloc.NewLocked(ll)}
}

// NewPage returns a heap that serves every request with whole frames from
// a new descriptor table at [start, start+size).
func NewPage(mem *phys.Memory, start phys.Addr, size uint64) (*Heap, error) {
	pa, err := page.New(mem, start, size)
	if err != nil {
		return nil, err
	}
	return FromPages(pa), nil
}

// FromPages wraps an existing page allocator.
func FromPages(pa *page.Allocator) *Heap {
	return &Heap{kind: KindPage, pages: alloc.NewLocked(pa)}
}

// Kind returns the backend kind.
func (h *Heap) Kind() Kind { return h.kind }

func (h *Heap) String() string {
	return fmt.Sprintf("%s heap", h.kind)
}

func badKind(k Kind) string {
	return fmt.Sprintf("global: heap of unknown kind %d", k)
}

// Alloc allocates a block for l from the backend.
func (h *Heap) Alloc(l alloc.Layout) (phys.Addr, error) {
	switch h.kind {
	case KindLinkedList:
		return h.list.Alloc(l)
	case KindPage:
		return h.pages.Alloc(l)
	}
	panic(badKind(h.kind))
}

// Dealloc returns the block at ptr, allocated with l, to the backend.
func (h *Heap) Dealloc(ptr phys.Addr, l alloc.Layout) {
	switch h.kind {
	case KindLinkedList:
		h.list.Dealloc(ptr, l)
	case KindPage:
		h.pages.Dealloc(ptr, l)
	default:
		panic(badKind(h.kind))
	}
}

// Realloc moves the block at ptr to one sized for l, copying its contents.
func (h *Heap) Realloc(ptr phys.Addr, oldSize uint64, l alloc.Layout) (phys.Addr, error) {
	switch h.kind {
	case KindLinkedList:
		return h.list.Realloc(ptr, oldSize, l)
	case KindPage:
		return h.pages.Realloc(ptr, oldSize, l)
	}
	panic(badKind(h.kind))
}

// Zalloc allocates a zeroed block for l.
func (h *Heap) Zalloc(l alloc.Layout) (phys.Addr, error) {
	switch h.kind {
	case KindLinkedList:
		return h.list.Zalloc(l)
	case KindPage:
		return h.pages.Zalloc(l)
	}
	panic(badKind(h.kind))
}

// AllocAligned returns a block aligned to l.Align, storing the true block
// address in the word before it.
func (h *Heap) AllocAligned(l alloc.Layout) (phys.Addr, error) {
	switch h.kind {
	case KindLinkedList:
		return h.list.AllocAligned(l)
	case KindPage:
		return h.pages.AllocAligned(l)
	}
	panic(badKind(h.kind))
}

// DeallocAligned frees a block returned by AllocAligned with the same layout.
func (h *Heap) DeallocAligned(ptr phys.Addr, l alloc.Layout) {
	switch h.kind {
	case KindLinkedList:
		h.list.DeallocAligned(ptr, l)
	case KindPage:
		h.pages.DeallocAligned(ptr, l)
	default:
		panic(badKind(h.kind))
	}
}

// Memory returns the arena the backend allocates from.
func (h *Heap) Memory() *phys.Memory {
	switch h.kind {
	case KindLinkedList:
		return h.list.Memory()
	case KindPage:
		return h.pages.Memory()
	}
	panic(badKind(h.kind))
}

// Stats returns a snapshot of the backend's statistics.
func (h *Heap) Stats() alloc.Stats {
	switch h.kind {
	case KindLinkedList:
		return h.list.Stats()
	case KindPage:
		return h.pages.Stats()
	}
	panic(badKind(h.kind))
}

// LinkedList returns the free-list backend without locking, or false for
// other kinds.
func (h *Heap) LinkedList() (*alloc.LinkedList, bool) {
	if h.kind != KindLinkedList {
		return nil, false
	}
	return h.list.Unwrap(), true
}

// Pages returns the page backend without locking, or false for other kinds.
func (h *Heap) Pages() (*page.Allocator, bool) {
	if h.kind != KindPage {
		return nil, false
	}
	return h.pages.Unwrap(), true
}

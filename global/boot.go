package global

import (
	"fmt"

	"github.com/joshuapare/memkit/alloc"
	"github.com/joshuapare/memkit/bootmap"
	"github.com/joshuapare/memkit/page"
	"github.com/joshuapare/memkit/pagetable"
	"github.com/joshuapare/memkit/phys"
)

// System is the memory subsystem of one machine.
type System struct {
	Heap   *Heap
	Frames *alloc.Locked[*page.Allocator]
	Pages  *pagetable.Mapper
}

// Boot validates m against mem and builds a fresh System: a free-list heap
// over m.Heap and a frame pool over m.Frames, with the mapper taking its
// tables from the frame pool. Boot does not Install the heap.
func Boot(mem *phys.Memory, m *bootmap.Map) (*System, error) {
	if err := checkMap(mem, m); err != nil {
		return nil, err
	}
	frames, err := page.New(mem, m.Frames.Addr(), m.Frames.Len())
	if err != nil {
		return nil, fmt.Errorf("global: frames: %w", err)
	}
	return newSystem(NewLinkedList(mem, m.Heap.Addr(), m.Heap.Len()), frames), nil
}

// Resume rebuilds a System from state already present in mem, for example a
// reopened image: the free list starting at heapHead and the descriptor
// table at m.Frames.
func Resume(mem *phys.Memory, m *bootmap.Map, heapHead phys.Addr) (*System, error) {
	if err := checkMap(mem, m); err != nil {
		return nil, err
	}
	frames, err := page.Attach(mem, m.Frames.Addr(), m.Frames.Len())
	if err != nil {
		return nil, fmt.Errorf("global: frames: %w", err)
	}
	ll := alloc.AttachLinkedList(mem, heapHead, m.Heap.Len())
	return newSystem(FromLinkedList(ll), frames), nil
}

func newSystem(heap *Heap, frames *page.Allocator) *System {
	locked := alloc.NewLocked(frames)
	return &System{
		Heap:   heap,
		Frames: locked,
		Pages:  pagetable.NewMapper(locked),
	}
}

func checkMap(mem *phys.Memory, m *bootmap.Map) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.Memory.Addr() != mem.Base() || m.Memory.Len() != mem.Size() {
		return fmt.Errorf("%w: memory %s does not match arena [%s, %s)",
			bootmap.ErrInvalid, m.Memory, mem.Base(), mem.End())
	}
	return nil
}

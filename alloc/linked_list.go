package alloc

import (
	"fmt"

	"github.com/joshuapare/memkit/internal/buf"
	"github.com/joshuapare/memkit/internal/format"
	"github.com/joshuapare/memkit/phys"
)

// Block is a free region on the LinkedList chain.
type Block struct {
	Addr phys.Addr
	Size uint64
}

// End returns the address one past the block.
func (b Block) End() phys.Addr { return b.Addr.Add(b.Size) }

// LinkedList is a first-fit free-list allocator.
//
// Free blocks form a singly linked chain stored inside the free memory
// itself: each node is a 16-byte header {size, next} at an 8-aligned
// address (see format.FreeBlock*). The head of the chain lives in the
// struct. Freed blocks are pushed at the head and adjacent blocks are
// never merged, so the heap fragments over time.
//
// NOT thread-safe. Wrap it in Locked to share it.
type LinkedList struct {
	mem   *phys.Memory
	head  phys.Addr
	stats Stats
}

// NewLinkedList returns an empty allocator over mem. Every allocation
// fails until Init adds a region.
func NewLinkedList(mem *phys.Memory) *LinkedList {
	return &LinkedList{mem: mem}
}

// AttachLinkedList resumes a chain previously built in mem, for example one
// persisted in an image. capacity is the size of the heap region the chain
// was seeded with. Allocation counters start from zero.
func AttachLinkedList(mem *phys.Memory, head phys.Addr, capacity uint64) *LinkedList {
	ll := &LinkedList{mem: mem, head: head}
	for _, b := range ll.FreeBlocks() {
		ll.stats.BytesFree += b.Size
	}
	ll.stats.Capacity = capacity
	if capacity > ll.stats.BytesFree {
		ll.stats.BytesInUse = capacity - ll.stats.BytesFree
	}
	return ll
}

// Init adds the region [start, start+size) to the allocator. start must be
// 8-aligned and size at least 16 bytes; the region must be unused.
// Violations panic with ErrPrecondition.
func (ll *LinkedList) Init(start phys.Addr, size uint64) {
	ll.pushFree(start, size)
	ll.stats.Capacity += size
	ll.stats.BytesFree += size
	debugLogf("init region %s size=%d", start, size)
}

// Memory returns the arena the heap lives in.
func (ll *LinkedList) Memory() *phys.Memory { return ll.mem }

// Head returns the first free block, phys.Null when the chain is empty.
func (ll *LinkedList) Head() phys.Addr { return ll.head }

// Stats returns current allocator statistics.
func (ll *LinkedList) Stats() Stats { return ll.stats }

// FreeBlocks walks the chain from the head.
func (ll *LinkedList) FreeBlocks() []Block {
	var blocks []Block
	for cur := ll.head; !cur.IsNull(); cur = ll.next(cur) {
		blocks = append(blocks, Block{Addr: cur, Size: ll.size(cur)})
	}
	return blocks
}

// sizeAlign adjusts l so the block can later hold a free-list node:
// align at least 8, size a multiple of align and at least 16. ok is false
// when the rounded size overflows.
func sizeAlign(l Layout) (size, align uint64, ok bool) {
	align = max(l.Align, format.FreeBlockAlign)
	size, ok = alignUpChecked(l.Size, align)
	return max(size, format.FreeBlockHeaderSize), align, ok
}

// Alloc returns the first block on the chain that can hold l.
func (ll *LinkedList) Alloc(l Layout) (phys.Addr, error) {
	size, align, ok := sizeAlign(l)
	if !ok {
		ll.stats.FailedAllocs++
		debugLogf("alloc %s failed: size overflows", l)
		return phys.Null, fmt.Errorf("%w: layout %s overflows when rounded to %d", ErrOutOfMemory, l, align)
	}

	prev := phys.Null
	for cur := ll.head; !cur.IsNull(); prev, cur = cur, ll.next(cur) {
		block := Block{Addr: cur, Size: ll.size(cur)}
		start, ok := fitBlock(block, size, align)
		if !ok {
			continue
		}

		// Unlink the node, then hand the tail back as a new node.
		ll.link(prev, ll.next(cur))
		ll.stats.BytesFree -= block.Size
		end := start.Add(size)
		if excess := block.End().Sub(end); excess > 0 {
			ll.pushFree(end, excess)
			ll.stats.BytesFree += excess
			ll.stats.Splits++
		}

		ll.stats.AllocCalls++
		ll.stats.BytesInUse += size
		debugLogf("alloc %s -> %s (block %s size=%d)", l, start, block.Addr, block.Size)
		return start, nil
	}

	ll.stats.FailedAllocs++
	debugLogf("alloc %s failed: no block fits (free=%d)", l, ll.stats.BytesFree)
	return phys.Null, fmt.Errorf("%w: no free block fits %d bytes aligned to %d", ErrOutOfMemory, size, align)
}

// fitBlock reports where an allocation of size bytes aligned to align would
// start inside b. The tail left after it must be empty or big enough to
// hold a node.
func fitBlock(b Block, size, align uint64) (phys.Addr, bool) {
	start := format.AlignUp(uint64(b.Addr), align)
	end, ok := buf.AddOverflowSafe(start, size)
	if !ok || end > uint64(b.End()) {
		return phys.Null, false
	}
	excess := uint64(b.End()) - end
	if excess > 0 && excess < format.FreeBlockHeaderSize {
		return phys.Null, false
	}
	return phys.Addr(start), true
}

// Dealloc pushes the block back on the head of the chain.
func (ll *LinkedList) Dealloc(ptr phys.Addr, l Layout) {
	size, _, ok := sizeAlign(l)
	if !ok {
		panic(fmt.Errorf("%w: dealloc of %s with an overflowing layout", ErrPrecondition, ptr))
	}
	ll.pushFree(ptr, size)
	ll.stats.DeallocCalls++
	ll.stats.BytesFree += size
	if ll.stats.BytesInUse >= size {
		ll.stats.BytesInUse -= size
	}
	debugLogf("dealloc %s size=%d", ptr, size)
}

// Realloc moves the block; see ReallocCopy.
func (ll *LinkedList) Realloc(ptr phys.Addr, oldSize uint64, l Layout) (phys.Addr, error) {
	return ReallocCopy(ll, ptr, oldSize, l)
}

// Zalloc allocates and zeroes the whole adjusted block.
func (ll *LinkedList) Zalloc(l Layout) (phys.Addr, error) {
	ptr, err := ll.Alloc(l)
	if err != nil {
		return phys.Null, err
	}
	size, _, _ := sizeAlign(l)
	ZeroFill(ll.mem, ptr, size)
	return ptr, nil
}

// pushFree writes a node for [addr, addr+size) and links it at the head.
func (ll *LinkedList) pushFree(addr phys.Addr, size uint64) {
	switch {
	case addr.IsNull():
		panic(fmt.Errorf("%w: free region at null address", ErrPrecondition))
	case !addr.IsAligned(format.FreeBlockAlign):
		panic(fmt.Errorf("%w: free region %s is not %d-byte aligned", ErrPrecondition, addr, format.FreeBlockAlign))
	case size < format.FreeBlockHeaderSize:
		panic(fmt.Errorf("%w: free region of %d bytes cannot hold a %d-byte node", ErrPrecondition, size, format.FreeBlockHeaderSize))
	case !ll.mem.Contains(addr, size):
		panic(fmt.Errorf("%w: free region %s+%d outside memory", ErrPrecondition, addr, size))
	}
	ll.mem.SetWord(addr+format.FreeBlockSizeOffset, size)
	ll.mem.SetWord(addr+format.FreeBlockNextOffset, uint64(ll.head))
	ll.head = addr
}

// link points prev (or the head when prev is null) at next.
func (ll *LinkedList) link(prev, next phys.Addr) {
	if prev.IsNull() {
		ll.head = next
		return
	}
	ll.mem.SetWord(prev+format.FreeBlockNextOffset, uint64(next))
}

func (ll *LinkedList) size(node phys.Addr) uint64 {
	return ll.mem.Word(node + format.FreeBlockSizeOffset)
}

func (ll *LinkedList) next(node phys.Addr) phys.Addr {
	return phys.Addr(ll.mem.Word(node + format.FreeBlockNextOffset))
}

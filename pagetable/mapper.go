package pagetable

import (
	"fmt"
	"os"

	"github.com/joshuapare/memkit/alloc"
	"github.com/joshuapare/memkit/internal/format"
	"github.com/joshuapare/memkit/phys"
)

// Runtime debug flag for mapping logging - controlled by MEMKIT_LOG_MMU env var.
var logMMU = os.Getenv("MEMKIT_LOG_MMU") != ""

func debugLogf(msg string, args ...any) {
	if logMMU {
		fmt.Fprintf(os.Stderr, "[MMU] "+msg+"\n", args...)
	}
}

// TopLevel is the level of the root table.
const TopLevel = format.PTLevels - 1

// frameLayout is the request used for every table frame.
var frameLayout = alloc.Layout{Size: format.PageSize, Align: format.PageSize}

// Mapper builds and tears down three-level page tables, taking table
// frames from an allocator. The root table belongs to the caller.
type Mapper struct {
	frames alloc.Allocator
	mem    *phys.Memory
}

// NewMapper returns a mapper that allocates tables from frames.
func NewMapper(frames alloc.Allocator) *Mapper {
	return &Mapper{frames: frames, mem: frames.Memory()}
}

// AllocRoot returns a zeroed frame to use as a root table. The caller owns
// it; release it with FreeRoot.
func (m *Mapper) AllocRoot() (phys.Addr, error) {
	root, err := m.frames.Zalloc(frameLayout)
	if err != nil {
		return phys.Null, fmt.Errorf("pagetable: root table: %w", err)
	}
	return root, nil
}

// FreeRoot unmaps everything under root and frees root itself.
func (m *Mapper) FreeRoot(root phys.Addr) {
	m.Unmap(root)
	m.frames.Dealloc(root, frameLayout)
}

// Map installs a leaf mapping vaddr to paddr at level (0 = 4 KiB page,
// 1 = 2 MiB, 2 = 1 GiB), creating zeroed intermediate tables as needed.
// bits must include at least one of Read, Write or Execute; Valid, Access
// and Dirty are always added. Running out of frames returns an error
// wrapping alloc.ErrOutOfMemory; tables created before the failure stay
// linked under root.
func (m *Mapper) Map(root phys.Addr, vaddr VirtAddr, paddr phys.Addr, bits Entry, level int) error {
	if bits&permMask == 0 {
		panic(fmt.Errorf("%w: bits %s", ErrNoPermission, bits))
	}
	if level < 0 || level > TopLevel {
		panic(fmt.Errorf("%w: %d", ErrBadLevel, level))
	}

	t := TableAt(m.mem, root)
	for i := TopLevel; i > level; i-- {
		idx := vaddr.VPN(i)
		e := t.Entry(idx)
		switch {
		case e.IsInvalid():
			frame, err := m.frames.Zalloc(frameLayout)
			if err != nil {
				return fmt.Errorf("pagetable: map %#x: level %d table: %w", uint64(vaddr), i-1, err)
			}
			e = branchEntry(frame)
			t.SetEntry(idx, e)
			debugLogf("new level %d table %s at root[%d]", i-1, frame, idx)
		case e.IsLeaf():
			panic(fmt.Errorf("%w: %#x at level %d", ErrLeafInPath, uint64(vaddr), i))
		}
		t = TableAt(m.mem, e.Addr())
	}

	t.SetEntry(vaddr.VPN(level), leafEntry(paddr, bits.Flags()))
	debugLogf("map %#x -> %s level=%d bits=%s", uint64(vaddr), paddr, level, bits.Flags())
	return nil
}

// Unmap frees every level-1 and level-0 table reachable from root and
// clears the root entries that pointed at them. Leaf targets and root
// itself are not freed.
func (m *Mapper) Unmap(root phys.Addr) {
	top := TableAt(m.mem, root)
	for lv2 := range uint64(format.PTEntries) {
		e2 := top.Entry(lv2)
		if !e2.IsValid() || !e2.IsBranch() {
			continue
		}
		mid := TableAt(m.mem, e2.Addr())
		for lv1 := range uint64(format.PTEntries) {
			e1 := mid.Entry(lv1)
			if e1.IsValid() && e1.IsBranch() {
				m.frames.Dealloc(e1.Addr(), frameLayout)
			}
		}
		m.frames.Dealloc(mid.Addr(), frameLayout)
		top.SetEntry(lv2, 0)
	}
	debugLogf("unmap root %s", root)
}

// VirtToPhys walks the tables under root and translates vaddr. A leaf may
// sit at any level. Reaching an invalid entry returns ErrNoMapping.
func (m *Mapper) VirtToPhys(root phys.Addr, vaddr VirtAddr) (phys.Addr, error) {
	t := TableAt(m.mem, root)
	for i := TopLevel; i >= 0; i-- {
		e := t.Entry(vaddr.VPN(i))
		if e.IsInvalid() {
			break
		}
		if e.IsLeaf() {
			mask := levelMask(i)
			return phys.Addr(uint64(e.Addr())&^mask | uint64(vaddr)&mask), nil
		}
		if i == 0 {
			// A branch at the last level has nowhere to go.
			break
		}
		t = TableAt(m.mem, e.Addr())
	}
	return phys.Null, fmt.Errorf("%w: %#x", ErrNoMapping, uint64(vaddr))
}

// IdentityMap maps every page overlapping [start, end) to itself with
// 4 KiB leaves.
func (m *Mapper) IdentityMap(root phys.Addr, start, end phys.Addr, bits Entry) error {
	first := format.AlignDown(uint64(start), format.PageSize)
	last := format.AlignPage(uint64(end))
	for a := first; a < last; a += format.PageSize {
		if err := m.Map(root, VirtAddr(a), phys.Addr(a), bits, 0); err != nil {
			return err
		}
	}
	return nil
}

package pagetable

import (
	"github.com/joshuapare/memkit/internal/format"
	"github.com/joshuapare/memkit/phys"
)

// Mapping is one leaf found by Walk.
type Mapping struct {
	Virt  VirtAddr
	Phys  phys.Addr
	Level int
	Flags Entry
}

// Size returns the number of bytes the leaf maps.
func (mp Mapping) Size() uint64 { return LevelSize(mp.Level) }

// Walk calls fn for every leaf under root in ascending virtual order.
// Walk only reads the tables.
func (m *Mapper) Walk(root phys.Addr, fn func(Mapping)) {
	m.walk(TableAt(m.mem, root), TopLevel, 0, fn)
}

func (m *Mapper) walk(t Table, level int, prefix uint64, fn func(Mapping)) {
	for i := range uint64(format.PTEntries) {
		e := t.Entry(i)
		if e.IsInvalid() {
			continue
		}
		va := prefix | i<<(format.PageOrder+format.VPNBits*level)
		if e.IsLeaf() {
			fn(Mapping{Virt: canonical(va), Phys: e.Addr(), Level: level, Flags: e.Flags()})
			continue
		}
		if level > 0 {
			m.walk(TableAt(m.mem, e.Addr()), level-1, va, fn)
		}
	}
}

// Tables counts the intermediate tables reachable from root, not
// counting root.
func (m *Mapper) Tables(root phys.Addr) int {
	n := 0
	top := TableAt(m.mem, root)
	for i := range uint64(format.PTEntries) {
		e := top.Entry(i)
		if !e.IsValid() || !e.IsBranch() {
			continue
		}
		n++
		mid := TableAt(m.mem, e.Addr())
		for j := range uint64(format.PTEntries) {
			if e1 := mid.Entry(j); e1.IsValid() && e1.IsBranch() {
				n++
			}
		}
	}
	return n
}

// canonical sign-extends bit 38 of a 39-bit virtual address.
func canonical(va uint64) VirtAddr {
	const top = format.PageOrder + format.VPNBits*format.PTLevels // 39
	if va&(1<<(top-1)) != 0 {
		ones := ^uint64(0)
		va |= ones << top
	}
	return VirtAddr(va)
}

package pagetable

import (
	"github.com/joshuapare/memkit/internal/format"
	"github.com/joshuapare/memkit/phys"
)

// Table is a view of one 4 KiB page table: 512 entries stored in place.
type Table struct {
	mem  *phys.Memory
	addr phys.Addr
}

// TableAt returns the table stored at addr.
func TableAt(mem *phys.Memory, addr phys.Addr) Table {
	return Table{mem: mem, addr: addr}
}

// Addr returns the physical address of the table.
func (t Table) Addr() phys.Addr { return t.addr }

// Len returns the number of entries in a table.
func (Table) Len() int { return format.PTEntries }

// Entry reads entry i.
func (t Table) Entry(i uint64) Entry {
	return Entry(t.mem.Word(t.slot(i)))
}

// SetEntry stores e as entry i.
func (t Table) SetEntry(i uint64, e Entry) {
	t.mem.SetWord(t.slot(i), uint64(e))
}

func (t Table) slot(i uint64) phys.Addr {
	return t.addr.Add((i & format.VPNMask) * format.PTEntrySize)
}

// VirtAddr is a virtual address.
type VirtAddr uint64

// VPN returns the 9-bit virtual page number used at level.
func (v VirtAddr) VPN(level int) uint64 {
	return (uint64(v) >> (format.PageOrder + format.VPNBits*level)) & format.VPNMask
}

// levelMask selects the offset bits covered by a leaf at level.
func levelMask(level int) uint64 {
	return 1<<(format.PageOrder+format.VPNBits*level) - 1
}

// LevelSize returns the number of bytes one leaf maps at level:
// 4 KiB, 2 MiB or 1 GiB.
func LevelSize(level int) uint64 {
	return levelMask(level) + 1
}

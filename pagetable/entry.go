package pagetable

import (
	"strings"

	"github.com/joshuapare/memkit/internal/format"
	"github.com/joshuapare/memkit/phys"
)

// Entry is one 64-bit page-table entry.
//
//	63      54 53    28 27    19 18    10 9  8 7 6 5 4 3 2 1 0
//	| reserved | PPN[2] | PPN[1] | PPN[0] | RSW |D|A|G|U|X|W|R|V|
type Entry uint64

// Entry bits.
const (
	Valid   Entry = 1 << 0
	Read    Entry = 1 << 1
	Write   Entry = 1 << 2
	Execute Entry = 1 << 3
	User    Entry = 1 << 4
	Global  Entry = 1 << 5
	Access  Entry = 1 << 6
	Dirty   Entry = 1 << 7

	ReadWrite        = Read | Write
	ReadExecute      = Read | Execute
	ReadWriteExecute = Read | Write | Execute

	UserReadWrite        = User | ReadWrite
	UserReadExecute      = User | ReadExecute
	UserReadWriteExecute = User | ReadWriteExecute

	// permMask selects the bits that make an entry a leaf.
	permMask = Read | Write | Execute
)

// IsValid reports whether the V bit is set.
func (e Entry) IsValid() bool { return e&Valid != 0 }

// IsInvalid is the opposite of IsValid.
func (e Entry) IsInvalid() bool { return !e.IsValid() }

// IsLeaf reports whether any of R, W or X is set.
func (e Entry) IsLeaf() bool { return e&permMask != 0 }

// IsBranch reports whether the entry points at the next table level.
func (e Entry) IsBranch() bool { return !e.IsLeaf() }

// Flags returns the low flag bits.
func (e Entry) Flags() Entry { return e & format.PTEFlagMask }

// Addr returns the physical address the entry points at: the next table
// for a branch, or the base of the mapped page for a leaf.
func (e Entry) Addr() phys.Addr {
	return phys.Addr((uint64(e) &^ format.PTEFlagMask) << 2)
}

// branchEntry points at the table stored in frame.
func branchEntry(frame phys.Addr) Entry {
	return Entry(uint64(frame)>>2) | Valid
}

// leafEntry maps paddr with bits, marking it valid, accessed and dirty.
func leafEntry(paddr phys.Addr, bits Entry) Entry {
	p := uint64(paddr)
	ppn0 := (p >> 12) & format.VPNMask
	ppn1 := (p >> 21) & format.VPNMask
	ppn2 := (p >> 30) & format.PPN2Mask
	return Entry(ppn2<<28|ppn1<<19|ppn0<<10) | bits | Valid | Dirty | Access
}

// String renders the flag bits as "DAGUXWRV" with "-" for clear bits.
func (e Entry) String() string {
	const names = "VRWXUGAD"
	var sb strings.Builder
	for i := len(names) - 1; i >= 0; i-- {
		if e&(1<<i) != 0 {
			sb.WriteByte(names[i])
		} else {
			sb.WriteByte('-')
		}
	}
	return sb.String()
}

// Package pagetable builds Sv39-style three-level page tables in physical
// memory.
//
// # Structure
//
// Every table is one 4 KiB frame of 512 little-endian Entry words. A
// virtual address is split into three 9-bit VPN fields and a 12-bit page
// offset:
//
//	38      30 29      21 20      12 11          0
//	| VPN[2]  |  VPN[1]  |  VPN[0]  | page offset |
//
// An entry with none of R, W, X set is a branch pointing at the next
// table; otherwise it is a leaf. Leaves may sit at level 2 (1 GiB),
// level 1 (2 MiB) or level 0 (4 KiB).
//
// # Usage
//
//	m := pagetable.NewMapper(frames)         // any alloc.Allocator
//	root, _ := m.AllocRoot()
//	_ = m.Map(root, 0x4000_0000, 0x8020_0000, pagetable.ReadWrite, 0)
//	p, _ := m.VirtToPhys(root, 0x4000_0123) // 0x8020_0123
//	m.Unmap(root)                           // frees level 1 and 0 tables
//
// Map panics on contract violations (no R/W/X bits, level out of range,
// descending through an existing leaf) and returns an error wrapping
// alloc.ErrOutOfMemory when no frame is left for a table. VirtToPhys
// returns ErrNoMapping for unmapped addresses.
//
// Set MEMKIT_LOG_MMU=1 to trace table changes on stderr.
package pagetable

package phys

import "fmt"

// Addr is a physical address.
type Addr uint64

// Null is the reserved null address. It terminates free-list chains.
const Null Addr = 0

// String formats the address as 0x-prefixed hex.
func (a Addr) String() string {
	return fmt.Sprintf("0x%x", uint64(a))
}

// IsNull reports whether a is the null address.
func (a Addr) IsNull() bool { return a == Null }

// Add returns a advanced by n bytes.
func (a Addr) Add(n uint64) Addr { return a + Addr(n) }

// Sub returns the distance in bytes from b to a. a must not be below b.
func (a Addr) Sub(b Addr) uint64 { return uint64(a - b) }

// IsAligned reports whether a is a multiple of align (a power of two).
func (a Addr) IsAligned(align uint64) bool { return uint64(a)&(align-1) == 0 }

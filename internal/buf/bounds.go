// Package buf contains overflow-safe arithmetic for address ranges.
package buf

import (
	"fmt"
	"math"
)

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow uint64.
func AddOverflowSafe(a, b uint64) (uint64, bool) {
	if a > math.MaxUint64-b {
		return 0, false
	}
	return a + b, true
}

// MulOverflowSafe multiplies a and b, returning ok = false when the result would overflow uint64.
// This is essential for count * elementSize calculations such as pages * PageSize.
func MulOverflowSafe(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxUint64/b {
		return 0, false
	}
	return a * b, true
}

// CheckRange validates that the n bytes starting at addr lie inside the
// region [base, base+size). It returns the offset of addr within the region,
// or an error describing the specific failure (overflow or out of bounds).
//
//	off, err := buf.CheckRange(base, size, addr, 16)
//	if err != nil {
//	    return fmt.Errorf("free block: %w", err)
//	}
func CheckRange(base, size, addr, n uint64) (uint64, error) {
	if addr < base {
		return 0, fmt.Errorf("bounds: addr=0x%x below base=0x%x", addr, base)
	}
	off := addr - base
	end, ok := AddOverflowSafe(off, n)
	if !ok {
		return 0, fmt.Errorf("overflow: off=0x%x + n=%d", off, n)
	}
	if end > size {
		return 0, fmt.Errorf("bounds: end=0x%x > size=0x%x", base+end, size)
	}
	return off, nil
}

// Has reports whether [addr, addr+n) lies inside [base, base+size).
func Has(base, size, addr, n uint64) bool {
	_, err := CheckRange(base, size, addr, n)
	return err == nil
}

// Overlaps reports whether the half-open ranges [a, a+an) and [b, b+bn) intersect.
// Ranges whose end overflows are treated as reaching the top of the address space.
func Overlaps(a, an, b, bn uint64) bool {
	aEnd, ok := AddOverflowSafe(a, an)
	if !ok {
		aEnd = math.MaxUint64
	}
	bEnd, ok := AddOverflowSafe(b, bn)
	if !ok {
		bEnd = math.MaxUint64
	}
	return a < bEnd && b < aEnd
}

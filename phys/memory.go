package phys

import (
	"fmt"

	"github.com/joshuapare/memkit/internal/buf"
	"github.com/joshuapare/memkit/internal/format"
	"github.com/joshuapare/memkit/phys/dirty"
)

// Memory is a contiguous range of physical memory backed by a byte slice.
type Memory struct {
	base Addr
	data []byte
	dt   dirty.DirtyTracker // nil when stores need no tracking
}

// New allocates a zeroed heap-backed arena of size bytes at base.
// base must be a non-zero multiple of the page size and size a non-zero
// multiple of the page size.
func New(base Addr, size uint64) (*Memory, error) {
	if err := checkRegion(base, size); err != nil {
		return nil, err
	}
	return &Memory{base: base, data: make([]byte, size)}, nil
}

// Wrap builds an arena over existing bytes. Stores are reported to dt
// when it is non-nil.
func Wrap(base Addr, data []byte, dt dirty.DirtyTracker) (*Memory, error) {
	if err := checkRegion(base, uint64(len(data))); err != nil {
		return nil, err
	}
	return &Memory{base: base, data: data, dt: dt}, nil
}

func checkRegion(base Addr, size uint64) error {
	switch {
	case base == Null:
		return fmt.Errorf("%w: base address is null", ErrBadRegion)
	case !base.IsAligned(format.PageSize):
		return fmt.Errorf("%w: base %s is not page aligned", ErrBadRegion, base)
	case size == 0 || size%format.PageSize != 0:
		return fmt.Errorf("%w: size %d is not a non-zero multiple of %d", ErrBadRegion, size, format.PageSize)
	}
	if _, ok := buf.AddOverflowSafe(uint64(base), size); !ok {
		return fmt.Errorf("%w: %s + %d overflows", ErrBadRegion, base, size)
	}
	return nil
}

// Base returns the first physical address of the arena.
func (m *Memory) Base() Addr { return m.base }

// End returns the address one past the last byte of the arena.
func (m *Memory) End() Addr { return m.base.Add(uint64(len(m.data))) }

// Size returns the arena size in bytes.
func (m *Memory) Size() uint64 { return uint64(len(m.data)) }

// Contains reports whether the n bytes at a lie inside the arena.
func (m *Memory) Contains(a Addr, n uint64) bool {
	return buf.Has(uint64(m.base), m.Size(), uint64(a), n)
}

// Raw returns the backing bytes. Stores made through it are not tracked.
func (m *Memory) Raw() []byte { return m.data }

// off translates [a, a+n) to a slice offset, panicking when out of range.
func (m *Memory) off(a Addr, n uint64) int {
	o, err := buf.CheckRange(uint64(m.base), m.Size(), uint64(a), n)
	if err != nil {
		panic(fmt.Errorf("%w: %w", ErrOutOfRange, err))
	}
	return int(o)
}

func (m *Memory) touch(off int, n int) {
	if m.dt != nil {
		m.dt.Add(off, n)
	}
}

// Word reads the little-endian 64-bit word at a. a need not be aligned.
func (m *Memory) Word(a Addr) uint64 {
	return format.ReadU64(m.data, m.off(a, format.WordSize))
}

// SetWord stores v as a little-endian 64-bit word at a.
func (m *Memory) SetWord(a Addr, v uint64) {
	o := m.off(a, format.WordSize)
	format.PutU64(m.data, o, v)
	m.touch(o, format.WordSize)
}

// Byte reads the byte at a.
func (m *Memory) Byte(a Addr) byte {
	return m.data[m.off(a, 1)]
}

// SetByte stores v at a.
func (m *Memory) SetByte(a Addr, v byte) {
	o := m.off(a, 1)
	m.data[o] = v
	m.touch(o, 1)
}

// Bytes returns a view of the n bytes at a. The view aliases the arena;
// use Write to store through it so the change is tracked.
func (m *Memory) Bytes(a Addr, n uint64) []byte {
	o := m.off(a, n)
	return m.data[o : o+int(n) : o+int(n)]
}

// Write copies p into the arena at a.
func (m *Memory) Write(a Addr, p []byte) {
	o := m.off(a, uint64(len(p)))
	copy(m.data[o:], p)
	m.touch(o, len(p))
}

// Copy moves n bytes from src to dst. The ranges may overlap.
func (m *Memory) Copy(dst, src Addr, n uint64) {
	if n == 0 {
		return
	}
	so := m.off(src, n)
	do := m.off(dst, n)
	copy(m.data[do:do+int(n)], m.data[so:so+int(n)])
	m.touch(do, int(n))
}

// Zero64 clears words consecutive 64-bit words starting at a using
// 8-byte stores.
func (m *Memory) Zero64(a Addr, words uint64) {
	if words == 0 {
		return
	}
	n, ok := buf.MulOverflowSafe(words, format.WordSize)
	if !ok {
		panic(fmt.Errorf("%w: %d words overflow", ErrOutOfRange, words))
	}
	o := m.off(a, n)
	format.ZeroU64(m.data, o, int(words))
	m.touch(o, int(n))
}

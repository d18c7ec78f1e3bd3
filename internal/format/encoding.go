package format

import "encoding/binary"

// Binary encoding utilities for little-endian integers.
//
// All in-place records (free-list nodes, page-table entries, the aligned
// allocation header and the image header) are little-endian, matching the
// RISC-V targets the layouts come from.
//
// Implementation: Uses encoding/binary.LittleEndian, which the compiler
// inlines into single loads and stores.

// PutU32 writes a uint32 value to the buffer at the specified offset in little-endian format.
func PutU32(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:off+4], v)
}

// PutU64 writes a uint64 value to the buffer at the specified offset in little-endian format.
func PutU64(b []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(b[off:off+8], v)
}

// ReadU32 reads a uint32 value from the buffer at the specified offset in little-endian format.
func ReadU32(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off : off+4])
}

// ReadU64 reads a uint64 value from the buffer at the specified offset in little-endian format.
func ReadU64(b []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(b[off : off+8])
}

// ZeroU64 clears words 8-byte words starting at off using 8-byte stores.
// off must leave room for words*8 bytes.
func ZeroU64(b []byte, off int, words int) {
	end := off + words*WordSize
	_ = b[off:end]
	for i := off; i < end; i += WordSize {
		binary.LittleEndian.PutUint64(b[i:i+WordSize], 0)
	}
}

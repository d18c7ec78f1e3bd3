// Package format houses the low-level constants and encoders shared by the
// memory-management packages: page geometry, in-place record layouts and the
// on-disk image header. Keeping them here lets the allocator, the page-table
// mapper and the image loader agree on every offset without importing each
// other.
package format

// ImageSignature is the four-byte magic at the start of every memory image.
// Layout:
//
//	0x00  'k' 'm' 'e' 'm'
var ImageSignature = []byte{'k', 'm', 'e', 'm'}

const (
	// PageOrder is log2(PageSize).
	PageOrder = 12

	// PageSize is the size of one physical frame. Page tables occupy exactly one
	// frame each.
	PageSize = 1 << PageOrder

	// PageMask selects the offset-within-page bits of an address.
	PageMask = PageSize - 1

	// WordSize is the width of a machine word and of the hidden header stored
	// in front of aligned allocations.
	WordSize = 8

	// WordMask selects the misaligned bits of a word address.
	WordMask = WordSize - 1
)

// Free-list node written in place at the start of every free heap block.
//
//	0x00  size (u64)  total block size including this header
//	0x08  next (u64)  physical address of the next free block, 0 at the end
const (
	FreeBlockSizeOffset = 0x00
	FreeBlockNextOffset = 0x08

	// FreeBlockHeaderSize is the smallest block the free list can describe.
	FreeBlockHeaderSize = 16

	// FreeBlockAlign is the alignment of every free-list node.
	FreeBlockAlign = 8
)

// Page table geometry (Sv39: three levels of 512 entries).
const (
	// PTEntries is the number of entries per table.
	PTEntries = 512

	// PTEntrySize is the width of one entry in bytes.
	PTEntrySize = 8

	// PTLevels is the depth of the radix tree.
	PTLevels = 3

	// VPNBits is the width of the virtual page number field per level.
	VPNBits = 9

	// VPNMask selects one VPN field.
	VPNMask = 0x1ff

	// PPN2Mask selects the widened top-level physical page number (26 bits).
	PPN2Mask = 0x3ff_ffff

	// PTEFlagBits is the number of low flag bits below PPN[0] in an entry.
	PTEFlagBits = 10

	// PTEFlagMask selects the flag bits of an entry.
	PTEFlagMask = 1<<PTEFlagBits - 1
)

// Image header layout. The header occupies the first page of an image file;
// physical memory follows at ImageHeaderSize.
const (
	// ImageHeaderSize is the size of the image header in bytes.
	ImageHeaderSize = PageSize

	ImageSignatureOffset    = 0x00
	ImageSignatureSize      = 4
	ImageVersionOffset      = 0x04
	ImagePrimarySeqOffset   = 0x08
	ImageSecondarySeqOffset = 0x0C
	ImageBaseOffset         = 0x10
	ImageSizeOffset         = 0x18
	ImageHeapStartOffset    = 0x20
	ImageHeapSizeOffset     = 0x28
	ImageFramesStartOffset  = 0x30
	ImageFramesSizeOffset   = 0x38
	ImageHeapHeadOffset     = 0x40
	ImageRootTableOffset    = 0x48
	ImageTimeStampOffset    = 0x50

	// ImageCheckSumOffset stores the XOR checksum of the preceding dwords.
	ImageCheckSumOffset = 0x1FC

	// ImageChecksumRegionLen is the number of bytes covered by the checksum.
	ImageChecksumRegionLen = ImageCheckSumOffset

	// ImageChecksumDwords is ImageChecksumRegionLen in dwords.
	ImageChecksumDwords = ImageChecksumRegionLen / 4

	// ImageVersion is the only header version written and accepted.
	ImageVersion = 1
)

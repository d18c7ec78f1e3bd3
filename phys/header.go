package phys

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/joshuapare/memkit/internal/buf"
	"github.com/joshuapare/memkit/internal/format"
)

const (
	// dwordBitShift converts a dword index to a byte offset (i << 2 == i * 4).
	dwordBitShift = 2

	checksumAllOnes             = 0xFFFFFFFF
	checksumAllOnesReplacement  = 0xFFFFFFFE
	checksumAllZeros            = 0x00000000
	checksumAllZerosReplacement = 0x00000001
)

// Header is the 4 KiB page at the start of an image file.
// Zero-copy: all accessors read directly from h.raw.
type Header struct {
	raw []byte // len == format.ImageHeaderSize
}

func isImage(b []byte) bool {
	const off = format.ImageSignatureOffset
	const n = format.ImageSignatureSize
	if len(b) < off+n {
		return false
	}
	return bytes.Equal(b[off:off+n], format.ImageSignature)
}

// ParseHeader validates the signature and returns a header view of b.
func ParseHeader(b []byte) (*Header, error) {
	if len(b) < format.ImageHeaderSize {
		return nil, fmt.Errorf("%w: file too small for header (%d)", format.ErrTruncated, len(b))
	}
	if !isImage(b) {
		return nil, fmt.Errorf("%w: bad image signature", format.ErrSignatureMismatch)
	}
	return &Header{raw: b[:format.ImageHeaderSize]}, nil
}

// initHeader clears b and writes a fresh header describing memory at base.
func initHeader(b []byte, base Addr, size uint64) *Header {
	h := &Header{raw: b[:format.ImageHeaderSize]}
	clear(h.raw)
	copy(h.raw[format.ImageSignatureOffset:], format.ImageSignature)
	format.PutU32(h.raw, format.ImageVersionOffset, format.ImageVersion)
	format.PutU64(h.raw, format.ImageBaseOffset, uint64(base))
	format.PutU64(h.raw, format.ImageSizeOffset, size)
	h.SetTimeStamp(time.Now())
	h.UpdateChecksum()
	return h
}

// Raw returns the raw bytes of the header.
func (h *Header) Raw() []byte { return h.raw }

// Version returns the header version.
func (h *Header) Version() uint32 { return format.ReadU32(h.raw, format.ImageVersionOffset) }

// Sequence1 returns the primary sequence number.
func (h *Header) Sequence1() uint32 { return format.ReadU32(h.raw, format.ImagePrimarySeqOffset) }

// Sequence2 returns the secondary sequence number.
func (h *Header) Sequence2() uint32 { return format.ReadU32(h.raw, format.ImageSecondarySeqOffset) }

// IsClean returns true if Sequence1 equals Sequence2, meaning the last
// flush completed.
func (h *Header) IsClean() bool { return h.Sequence1() == h.Sequence2() }

// Base returns the physical base address of the memory that follows the header.
func (h *Header) Base() Addr { return Addr(format.ReadU64(h.raw, format.ImageBaseOffset)) }

// Size returns the size of the memory that follows the header.
func (h *Header) Size() uint64 { return format.ReadU64(h.raw, format.ImageSizeOffset) }

// Heap returns the heap region, or zeros when no heap was created.
func (h *Header) Heap() (Addr, uint64) {
	return Addr(format.ReadU64(h.raw, format.ImageHeapStartOffset)),
		format.ReadU64(h.raw, format.ImageHeapSizeOffset)
}

// SetHeap records the heap region.
func (h *Header) SetHeap(start Addr, size uint64) {
	format.PutU64(h.raw, format.ImageHeapStartOffset, uint64(start))
	format.PutU64(h.raw, format.ImageHeapSizeOffset, size)
}

// Frames returns the page-frame region, or zeros when none was created.
func (h *Header) Frames() (Addr, uint64) {
	return Addr(format.ReadU64(h.raw, format.ImageFramesStartOffset)),
		format.ReadU64(h.raw, format.ImageFramesSizeOffset)
}

// SetFrames records the page-frame region.
func (h *Header) SetFrames(start Addr, size uint64) {
	format.PutU64(h.raw, format.ImageFramesStartOffset, uint64(start))
	format.PutU64(h.raw, format.ImageFramesSizeOffset, size)
}

// HeapHead returns the persisted head of the heap free list.
func (h *Header) HeapHead() Addr { return Addr(format.ReadU64(h.raw, format.ImageHeapHeadOffset)) }

// SetHeapHead persists the head of the heap free list.
func (h *Header) SetHeapHead(a Addr) { format.PutU64(h.raw, format.ImageHeapHeadOffset, uint64(a)) }

// RootTable returns the persisted page-table root, Null when none.
func (h *Header) RootTable() Addr { return Addr(format.ReadU64(h.raw, format.ImageRootTableOffset)) }

// SetRootTable persists the page-table root.
func (h *Header) SetRootTable(a Addr) { format.PutU64(h.raw, format.ImageRootTableOffset, uint64(a)) }

// TimeStamp returns the time of the last flush.
func (h *Header) TimeStamp() time.Time {
	return time.Unix(0, int64(format.ReadU64(h.raw, format.ImageTimeStampOffset))).UTC()
}

// SetTimeStamp records t as the time of the last flush.
func (h *Header) SetTimeStamp(t time.Time) {
	format.PutU64(h.raw, format.ImageTimeStampOffset, uint64(t.UnixNano()))
}

// beginUpdate bumps the primary sequence so a crash before endUpdate
// leaves the header marked unclean.
func (h *Header) beginUpdate() {
	format.PutU32(h.raw, format.ImagePrimarySeqOffset, h.Sequence1()+1)
}

// endUpdate copies the primary sequence to the secondary one and reseals
// the checksum.
func (h *Header) endUpdate() {
	format.PutU32(h.raw, format.ImageSecondarySeqOffset, h.Sequence1())
	h.UpdateChecksum()
}

// Validate performs a thorough header validation with descriptive errors
// against the length of the whole image file.
//
//   - Signature must be "kmem" and Version must be ImageVersion
//   - Checksum must be correct (XOR of the first 508 bytes with remapping)
//   - Base must be non-zero and page aligned; Size a non-zero page multiple
//   - Header plus Size must fit in fileSize
//   - Heap and frame regions, when present, must lie inside memory
//   - Sequence1/2 may differ (interrupted flush) -> not an error; see IsClean.
func (h *Header) Validate(fileSize int64) error {
	if len(h.raw) < format.ImageHeaderSize {
		return fmt.Errorf("image: header truncated: have=%d need=%d", len(h.raw), format.ImageHeaderSize)
	}
	if !isImage(h.raw) {
		return errors.New("image: bad signature")
	}
	if !h.ChecksumOK() {
		return fmt.Errorf("image: checksum mismatch: stored=0x%08X computed=0x%08X",
			h.StoredChecksum(), imageChecksum(h.raw[:format.ImageChecksumRegionLen]))
	}
	if v := h.Version(); v != format.ImageVersion {
		return fmt.Errorf("image: %w version %d (expected %d)", format.ErrUnsupported, v, format.ImageVersion)
	}
	if err := checkRegion(h.Base(), h.Size()); err != nil {
		return fmt.Errorf("image: %w", err)
	}
	if reported := int64(format.ImageHeaderSize) + int64(h.Size()); reported > fileSize {
		return fmt.Errorf("image: reported length (%d) exceeds file size (%d)", reported, fileSize)
	}
	inside := func(start Addr, size uint64) bool {
		if size == 0 {
			return start == Null
		}
		return buf.Has(uint64(h.Base()), h.Size(), uint64(start), size)
	}
	if start, size := h.Heap(); !inside(start, size) {
		return fmt.Errorf("image: heap region %s+%d outside memory", start, size)
	}
	if start, size := h.Frames(); !inside(start, size) {
		return fmt.Errorf("image: frame region %s+%d outside memory", start, size)
	}
	return nil
}

// ChecksumOK computes the XOR checksum over the first 508 bytes and
// compares it to the stored value at 0x1FC, including the 0/-1 remapping.
func (h *Header) ChecksumOK() bool {
	return imageChecksum(h.raw[:format.ImageChecksumRegionLen]) == h.StoredChecksum()
}

// StoredChecksum returns the checksum value stored in the header.
func (h *Header) StoredChecksum() uint32 {
	return format.ReadU32(h.raw, format.ImageCheckSumOffset)
}

// UpdateChecksum recomputes and stores the header checksum.
func (h *Header) UpdateChecksum() {
	format.PutU32(h.raw, format.ImageCheckSumOffset, imageChecksum(h.raw[:format.ImageChecksumRegionLen]))
}

// imageChecksum computes the XOR checksum over 127 DWORDs (508 bytes). Then:
//
//	if xor==0xFFFFFFFF -> 0xFFFFFFFE
//	if xor==0x00000000 -> 0x00000001
func imageChecksum(head508 []byte) uint32 {
	var xor uint32
	for i := range format.ImageChecksumDwords {
		xor ^= format.ReadU32(head508, i<<dwordBitShift)
	}
	switch xor {
	case checksumAllOnes:
		return checksumAllOnesReplacement
	case checksumAllZeros:
		return checksumAllZerosReplacement
	default:
		return xor
	}
}

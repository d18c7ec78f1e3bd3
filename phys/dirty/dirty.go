package dirty

import (
	"context"
	"sort"
)

const (
	// defaultRangeCapacity is the pre-allocated capacity for dirty ranges.
	defaultRangeCapacity = 64

	// standardPageSize is the typical OS page size (4KB).
	standardPageSize = 4096
)

// FlushMode controls durability guarantees when an image is flushed.
type FlushMode int

const (
	// FlushAuto msyncs the header page and then calls fdatasync.
	// On macOS this uses fsync.
	FlushAuto FlushMode = iota

	// FlushDataOnly msyncs the header page and skips fdatasync.
	FlushDataOnly

	// FlushFull msyncs the header page and calls fdatasync, using
	// F_FULLFSYNC on macOS.
	FlushFull
)

// String returns the lowercase name of the mode.
func (m FlushMode) String() string {
	switch m {
	case FlushAuto:
		return "auto"
	case FlushDataOnly:
		return "data-only"
	case FlushFull:
		return "full"
	default:
		return "unknown"
	}
}

// Range represents a dirty byte range (offsets relative to the arena).
type Range struct {
	Off int64
	Len int64
}

// Tracker accumulates dirty ranges and flushes them efficiently.
//
// NOT thread-safe. Only one goroutine should use it at a time.
type Tracker struct {
	ranges   []Range
	pageSize int64
}

// NewTracker creates an empty dirty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		ranges:   make([]Range, 0, defaultRangeCapacity),
		pageSize: standardPageSize,
	}
}

// Add records a dirty range. Zero-length ranges are ignored.
//
// The range will be page-aligned and coalesced with other ranges at flush time.
func (t *Tracker) Add(off, length int) {
	if length <= 0 {
		return
	}
	t.ranges = append(t.ranges, Range{
		Off: int64(off),
		Len: int64(length),
	})
}

// Pending returns the number of raw ranges recorded since the last flush.
func (t *Tracker) Pending() int {
	return len(t.ranges)
}

// FlushData msyncs every dirty page of data, which must be the mapped
// arena the offsets were recorded against, then clears the ranges.
//
// The context is checked before flushing and between ranges. If cancelled
// mid-way, some ranges may have been flushed while others have not; the
// ranges are kept so a later call retries them.
func (t *Tracker) FlushData(ctx context.Context, data []byte) error {
	if len(t.ranges) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(data) == 0 {
		t.ranges = t.ranges[:0]
		return nil
	}
	if err := t.flushRanges(ctx, data); err != nil {
		return err
	}
	t.ranges = t.ranges[:0]
	return nil
}

// FlushHeader msyncs the header page and then syncs fd according to mode.
func FlushHeader(ctx context.Context, header []byte, fd int, mode FlushMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(header) == 0 {
		return nil
	}
	if err := msync(header); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if mode == FlushDataOnly {
		return nil
	}
	return fdatasync(fd, mode == FlushFull)
}

// Reset clears all tracked ranges.
func (t *Tracker) Reset() {
	t.ranges = t.ranges[:0]
}

// Ranges returns the coalesced dirty ranges: page-aligned, sorted and merged.
func (t *Tracker) Ranges() []Range {
	return t.coalesce()
}

// coalesce page-aligns all ranges, sorts them, and merges overlapping/adjacent ranges.
func (t *Tracker) coalesce() []Range {
	if len(t.ranges) == 0 {
		return nil
	}

	aligned := make([]Range, len(t.ranges))
	for i, r := range t.ranges {
		start := (r.Off / t.pageSize) * t.pageSize
		end := r.Off + r.Len
		if end%t.pageSize != 0 {
			end = ((end / t.pageSize) + 1) * t.pageSize
		}
		aligned[i] = Range{Off: start, Len: end - start}
	}

	sort.Slice(aligned, func(i, j int) bool {
		return aligned[i].Off < aligned[j].Off
	})

	merged := make([]Range, 0, len(aligned))
	current := aligned[0]
	for _, next := range aligned[1:] {
		if next.Off <= current.Off+current.Len {
			end := max(current.Off+current.Len, next.Off+next.Len)
			current.Len = end - current.Off
			continue
		}
		merged = append(merged, current)
		current = next
	}
	return append(merged, current)
}

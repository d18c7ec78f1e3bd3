// Package dirty provides page-level dirty tracking for file-backed physical memory.
//
// # Overview
//
// When a phys.Memory arena is backed by a memory-mapped image file, every
// store performed by the allocators (free-list nodes, page descriptors,
// page-table entries) marks the touched bytes dirty. Flushing then only
// msyncs the pages that actually changed.
//
// # Usage
//
//	tracker := dirty.NewTracker()
//	mem := phys.Wrap(base, mapped[format.ImageHeaderSize:], tracker)
//
//	// ... allocate, map, free ...
//
//	if err := tracker.FlushData(ctx, mem.Raw()); err != nil {
//	    return err
//	}
//	if err := dirty.FlushHeader(ctx, mapped[:format.ImageHeaderSize], fd, dirty.FlushAuto); err != nil {
//	    return err
//	}
//
// # Page-Level Granularity
//
// Ranges are rounded out to 4 KiB page boundaries and merged at flush time:
//
//	Dirty pages: [0, 1, 2, 5, 6] → Ranges: [0x0-0x3000, 0x5000-0x7000]
//
// # Thread Safety
//
// Tracker instances are not thread-safe. phys.Memory is used under the
// allocator locks, which serialize all calls to Add.
package dirty

// Package bootmap loads the boot memory map: the physical region backing
// the machine and the two sub-regions carved out of it for the kernel heap
// and the page-frame allocator.
//
// A map is a small YAML document:
//
//	memory: {start: 0x8000_0000, size: 8MiB}
//	heap:   {start: 0x8000_0000, size: 100KiB}
//	frames: {start: 0x8001_9000, size: 0x7e7000}
//
// Values accept any Go integer literal (decimal, 0x, 0o, 0b, with
// underscores) and an optional K, KiB, M, MiB, G or GiB suffix. Validate
// reports every problem it finds, not just the first.
package bootmap

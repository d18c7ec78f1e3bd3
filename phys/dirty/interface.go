package dirty

// DirtyTracker is the minimal interface for tracking dirty (modified) byte ranges.
// phys.Memory reports every store through it; offsets are relative to the
// start of the arena.
type DirtyTracker interface {
	// Add marks a byte range as dirty.
	Add(off, length int)
}

package page

// Flags is the one-byte descriptor kept for every frame.
type Flags uint8

const (
	// Empty marks a free frame.
	Empty Flags = 0
	// Taken marks an allocated frame.
	Taken Flags = 1 << 0
	// Last marks the final frame of an allocated run.
	Last Flags = 1 << 1
)

// IsTaken reports whether the frame is allocated.
func (f Flags) IsTaken() bool { return f&Taken != 0 }

// IsLast reports whether the frame ends a run.
func (f Flags) IsLast() bool { return f&Last != 0 }

// IsFree is the opposite of IsTaken.
func (f Flags) IsFree() bool { return !f.IsTaken() }

// String renders the flags as used by Dump: "." free, "T" taken, "L" last.
func (f Flags) String() string {
	switch {
	case f.IsTaken() && f.IsLast():
		return "L"
	case f.IsTaken():
		return "T"
	case f == Empty:
		return "."
	default:
		return "?"
	}
}

package format

// Alignment utilities. Every align argument must be a non-zero power of two;
// this is not checked so the helpers stay branch-free on allocator hot paths.

// AlignUp returns n rounded up to the next multiple of align.
//
// Example:
//
//	AlignUp(1, 8)    = 8
//	AlignUp(8, 8)    = 8
//	AlignUp(9, 8)    = 16
//	AlignUp(4097, 4096) = 8192
func AlignUp(n, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}

// AlignDown returns n rounded down to a multiple of align.
func AlignDown(n, align uint64) uint64 {
	return n &^ (align - 1)
}

// IsAligned reports whether n is a multiple of align.
func IsAligned(n, align uint64) bool {
	return n&(align-1) == 0
}

// IsPowerOfTwo reports whether n is a non-zero power of two.
func IsPowerOfTwo(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}

// AlignPage returns n aligned up to the next page boundary.
//
// Example:
//
//	AlignPage(1)    = 4096
//	AlignPage(4096) = 4096
//	AlignPage(4097) = 8192
func AlignPage(n uint64) uint64 {
	return (n + PageMask) &^ PageMask
}

// AlignWord returns n aligned up to the next 8-byte boundary.
func AlignWord(n uint64) uint64 {
	return (n + WordMask) &^ WordMask
}

// PagesFor returns the number of whole pages needed to hold n bytes.
func PagesFor(n uint64) uint64 {
	return AlignPage(n) >> PageOrder
}

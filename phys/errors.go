package phys

import "errors"

var (
	// ErrOutOfRange indicates an access outside the arena.
	ErrOutOfRange = errors.New("phys: address out of range")
	// ErrBadRegion indicates an unusable base or size for a new arena.
	ErrBadRegion = errors.New("phys: invalid region")
	// ErrBadImage indicates an image file whose header failed validation.
	ErrBadImage = errors.New("phys: invalid image")
	// ErrClosed indicates use of an image after Close.
	ErrClosed = errors.New("phys: image closed")
)

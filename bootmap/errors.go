package bootmap

import "errors"

var (
	// ErrBadValue indicates a size or address that is not a valid number.
	ErrBadValue = errors.New("bootmap: invalid value")
	// ErrInvalid indicates a map whose regions are inconsistent.
	ErrInvalid = errors.New("bootmap: invalid memory map")
)

package global

import "errors"

var (
	// ErrAlreadyInstalled indicates a second call to Install.
	ErrAlreadyInstalled = errors.New("global: heap already installed")
	// ErrNilHeap indicates a call to Install with a nil heap.
	ErrNilHeap = errors.New("global: Install of nil heap")
	// ErrNotInstalled indicates use of Default before Install. Panics carry it.
	ErrNotInstalled = errors.New("global: no heap installed")
)

package global

import "sync/atomic"

var installed atomic.Pointer[Heap]

// Install publishes h as the process-wide heap. It may be called once;
// later calls return ErrAlreadyInstalled and leave the first heap in place.
func Install(h *Heap) error {
	if h == nil {
		return ErrNilHeap
	}
	if !installed.CompareAndSwap(nil, h) {
		return ErrAlreadyInstalled
	}
	return nil
}

// Installed returns the process-wide heap, or nil before Install.
func Installed() *Heap { return installed.Load() }

// Default returns the process-wide heap. It panics with ErrNotInstalled
// when Install has not run.
func Default() *Heap {
	h := installed.Load()
	if h == nil {
		panic(ErrNotInstalled)
	}
	return h
}

// uninstall clears the installed heap for tests.
func uninstall() { installed.Store(nil) }

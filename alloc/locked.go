package alloc

import (
	"sync"

	"github.com/joshuapare/memkit/phys"
)

// Locked serializes every call to a backend with a mutex, so one backend
// can be shared by many goroutines. The mutex is released on every path,
// including panics raised by the backend.
type Locked[B Backend] struct {
	mu    sync.Mutex
	inner B
}

// NewLocked wraps inner. inner must not be used directly afterwards.
func NewLocked[B Backend](inner B) *Locked[B] {
	return &Locked[B]{inner: inner}
}

// Alloc locks and allocates.
func (l *Locked[B]) Alloc(layout Layout) (phys.Addr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Alloc(layout)
}

// Dealloc locks and frees.
func (l *Locked[B]) Dealloc(ptr phys.Addr, layout Layout) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inner.Dealloc(ptr, layout)
}

// Realloc locks and moves the block.
func (l *Locked[B]) Realloc(ptr phys.Addr, oldSize uint64, layout Layout) (phys.Addr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Realloc(ptr, oldSize, layout)
}

// Zalloc locks and allocates zeroed memory.
func (l *Locked[B]) Zalloc(layout Layout) (phys.Addr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Zalloc(layout)
}

// AllocAligned runs AllocAligned on the backend while holding the lock,
// so the hidden header is written before any other caller can run.
func (l *Locked[B]) AllocAligned(layout Layout) (phys.Addr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return AllocAligned(l.inner, layout)
}

// DeallocAligned runs DeallocAligned on the backend while holding the lock.
func (l *Locked[B]) DeallocAligned(ptr phys.Addr, layout Layout) {
	l.mu.Lock()
	defer l.mu.Unlock()
	DeallocAligned(l.inner, ptr, layout)
}

// Memory returns the backend's arena. The arena itself is not locked.
func (l *Locked[B]) Memory() *phys.Memory {
	return l.inner.Memory()
}

// Stats returns a snapshot of the backend's statistics.
func (l *Locked[B]) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Stats()
}

// Unwrap returns the backend without locking. Only use it when no other
// goroutine can reach the Locked value, such as in single-threaded tools.
func (l *Locked[B]) Unwrap() B {
	return l.inner
}

// Package testutil holds helpers shared by the allocator test suites.
package testutil

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/joshuapare/memkit/phys"
)

// Base is the physical base address used by tests.
const Base phys.Addr = 0x8000_0000

// NewMemory returns a heap-backed arena of size bytes at Base.
// Calls t.Fatal if the arena cannot be created.
//
// Example:
//
//	mem := testutil.NewMemory(t, 64*4096)
func NewMemory(t testing.TB, size uint64) *phys.Memory {
	t.Helper()
	mem, err := phys.New(Base, size)
	if err != nil {
		t.Fatalf("phys.New: %v", err)
	}
	return mem
}

// NewImage creates a file-backed image of size bytes at Base in a temp
// directory. The image is closed when the test ends.
func NewImage(t testing.TB, size uint64) *phys.Image {
	t.Helper()
	img, err := phys.Create(filepath.Join(t.TempDir(), "test.img"), Base, size)
	if err != nil {
		t.Fatalf("phys.Create: %v", err)
	}
	t.Cleanup(func() { _ = img.Close() })
	return img
}

// RequirePanicIs runs fn and fails the test unless it panics with an error
// matching target.
func RequirePanicIs(t testing.TB, target error, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if r == nil {
			t.Fatalf("expected panic wrapping %v", target)
		}
		err, ok := r.(error)
		if !ok {
			t.Fatalf("panic value %v is not an error", r)
		}
		if !errors.Is(err, target) {
			t.Fatalf("panic %v does not wrap %v", err, target)
		}
	}()
	fn()
}

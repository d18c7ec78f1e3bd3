package alloc

import (
	"testing"

	"github.com/joshuapare/memkit/internal/testutil"
	"github.com/joshuapare/memkit/phys"
)

const testBase = testutil.Base

// newTestHeap returns a LinkedList seeded with size bytes at the start of a
// fresh arena.
func newTestHeap(t testing.TB, size uint64) (*LinkedList, *phys.Memory) {
	t.Helper()
	mem := testutil.NewMemory(t, max(size, 4096)+4096)
	ll := NewLinkedList(mem)
	ll.Init(testBase, size)
	return ll, mem
}

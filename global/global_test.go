package global

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memkit/alloc"
	"github.com/joshuapare/memkit/bootmap"
	"github.com/joshuapare/memkit/internal/format"
	"github.com/joshuapare/memkit/pagetable"
	"github.com/joshuapare/memkit/phys"
)

func newTestMemory(t *testing.T) *phys.Memory {
	t.Helper()
	mem, err := phys.New(bootmap.DefaultBase, bootmap.DefaultMemorySize)
	require.NoError(t, err)
	return mem
}

func bootDefault(t *testing.T) (*System, *phys.Memory) {
	t.Helper()
	mem := newTestMemory(t)
	sys, err := Boot(mem, bootmap.Default())
	require.NoError(t, err)
	return sys, mem
}

func TestBoot_Default(t *testing.T) {
	sys, _ := bootDefault(t)

	require.Equal(t, KindLinkedList, sys.Heap.Kind())
	assert.Equal(t, uint64(bootmap.DefaultHeapSize), sys.Heap.Stats().Capacity)

	frames := sys.Frames.Unwrap()
	// 2023 descriptor bytes fill the first frame of the pool.
	assert.Equal(t, phys.Addr(0x8001_a000), frames.AllocStart())
	assert.Equal(t, uint64(2022), frames.Frames())

	p, err := sys.Heap.Alloc(alloc.NewLayout(64))
	require.NoError(t, err)
	assert.Equal(t, phys.Addr(bootmap.DefaultBase), p)
}

func TestBoot_MapperUsesFramePool(t *testing.T) {
	sys, _ := bootDefault(t)
	root, err := sys.Pages.AllocRoot()
	require.NoError(t, err)
	require.Equal(t, sys.Frames.Unwrap().AllocStart(), root)

	require.NoError(t, sys.Pages.Map(root, 0x1000, 0x8010_0000, pagetable.ReadWrite, 0))
	got, err := sys.Pages.VirtToPhys(root, 0x1234)
	require.NoError(t, err)
	assert.Equal(t, phys.Addr(0x8010_0234), got)
	assert.Equal(t, uint64(3), sys.Frames.Stats().AllocCalls)
}

func TestBoot_RejectsMismatchedMemory(t *testing.T) {
	mem, err := phys.New(bootmap.DefaultBase, 4<<20)
	require.NoError(t, err)
	_, err = Boot(mem, bootmap.Default())
	require.ErrorIs(t, err, bootmap.ErrInvalid)

	bad := bootmap.Default()
	bad.Heap.Size = 8
	_, err = Boot(newTestMemory(t), bad)
	require.ErrorIs(t, err, bootmap.ErrInvalid)
}

func TestResume(t *testing.T) {
	sys, mem := bootDefault(t)
	l := alloc.NewLayout(64)
	p, err := sys.Heap.Alloc(l)
	require.NoError(t, err)
	run, err := sys.Frames.Unwrap().AllocPages(3)
	require.NoError(t, err)

	ll, ok := sys.Heap.LinkedList()
	require.True(t, ok)

	again, err := Resume(mem, bootmap.Default(), ll.Head())
	require.NoError(t, err)
	assert.Equal(t, uint64(64), again.Heap.Stats().BytesInUse)
	assert.Equal(t, uint64(3*format.PageSize), again.Frames.Stats().BytesInUse)

	next, err := again.Heap.Alloc(l)
	require.NoError(t, err)
	assert.Equal(t, p+64, next)

	// the resumed pool still owns the run
	again.Frames.Unwrap().DeallocPages(run)
	assert.Equal(t, uint64(0), again.Frames.Stats().BytesInUse)
}

func TestHeap_Page(t *testing.T) {
	mem := newTestMemory(t)
	h, err := NewPage(mem, bootmap.DefaultBase, 64*format.PageSize)
	require.NoError(t, err)
	require.Equal(t, KindPage, h.Kind())
	assert.Equal(t, "page heap", h.String())
	assert.Same(t, mem, h.Memory())

	p, err := h.Alloc(alloc.NewLayout(100))
	require.NoError(t, err)
	assert.True(t, p.IsAligned(format.PageSize))

	q, err := h.AllocAligned(alloc.Layout{Size: 32, Align: 256})
	require.NoError(t, err)
	assert.True(t, q.IsAligned(256))
	h.DeallocAligned(q, alloc.Layout{Size: 32, Align: 256})

	z, err := h.Zalloc(alloc.NewLayout(8192))
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 8192), mem.Bytes(z, 8192))

	mem.SetWord(p, 0xfeed)
	r, err := h.Realloc(p, 100, alloc.NewLayout(200))
	require.NoError(t, err)
	assert.Equal(t, uint64(0xfeed), mem.Word(r))

	h.Dealloc(r, alloc.NewLayout(200))
	h.Dealloc(z, alloc.NewLayout(8192))
	assert.Equal(t, uint64(0), h.Stats().BytesInUse)

	_, ok := h.LinkedList()
	assert.False(t, ok)
	_, ok = h.Pages()
	assert.True(t, ok)
}

func TestHeap_LinkedList(t *testing.T) {
	mem := newTestMemory(t)
	h := NewLinkedList(mem, bootmap.DefaultBase, 4096)
	assert.Equal(t, "linked-list heap", h.String())

	q, err := h.AllocAligned(alloc.Layout{Size: 24, Align: 64})
	require.NoError(t, err)
	assert.True(t, q.IsAligned(64))
	h.DeallocAligned(q, alloc.Layout{Size: 24, Align: 64})

	p, err := h.Zalloc(alloc.NewLayout(40))
	require.NoError(t, err)
	r, err := h.Realloc(p, 40, alloc.NewLayout(80))
	require.NoError(t, err)
	assert.NotEqual(t, p, r)
	h.Dealloc(r, alloc.NewLayout(80))

	_, err = h.Alloc(alloc.NewLayout(8192))
	require.ErrorIs(t, err, alloc.ErrOutOfMemory)
	assert.Equal(t, uint64(1), h.Stats().FailedAllocs)
}

func TestHeap_OversizedRequestsFail(t *testing.T) {
	pages, err := NewPage(newTestMemory(t), bootmap.DefaultBase, 64*format.PageSize)
	require.NoError(t, err)
	heaps := []*Heap{NewLinkedList(newTestMemory(t), bootmap.DefaultBase, 4096), pages}

	layouts := []alloc.Layout{
		{Size: math.MaxUint64, Align: 8},
		{Size: math.MaxUint64 - 8 + 2, Align: 8},
		{Size: math.MaxUint64 - 70, Align: 64},
	}
	for _, h := range heaps {
		for _, l := range layouts {
			p, err := h.Alloc(l)
			require.ErrorIs(t, err, alloc.ErrOutOfMemory, "%s alloc %s", h, l)
			require.Equal(t, phys.Null, p)

			_, err = h.Zalloc(l)
			require.ErrorIs(t, err, alloc.ErrOutOfMemory, "%s zalloc %s", h, l)

			_, err = h.AllocAligned(l)
			require.ErrorIs(t, err, alloc.ErrOutOfMemory, "%s aligned %s", h, l)

			_, err = h.Realloc(phys.Null, 0, l)
			require.ErrorIs(t, err, alloc.ErrOutOfMemory, "%s realloc %s", h, l)
		}
		assert.Equal(t, uint64(0), h.Stats().BytesInUse, "%s", h)
	}
}

func TestHeap_ZeroValuePanics(t *testing.T) {
	var h Heap
	assert.Panics(t, func() { _, _ = h.Alloc(alloc.NewLayout(8)) })
	assert.Panics(t, func() { h.Dealloc(0x8000_0000, alloc.NewLayout(8)) })
	assert.Equal(t, "unknown", h.Kind().String())
}

func TestHeap_Concurrent(t *testing.T) {
	mem := newTestMemory(t)
	h := NewLinkedList(mem, bootmap.DefaultBase, 1<<20)
	l := alloc.NewLayout(48)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				p, err := h.Alloc(l)
				if err != nil {
					t.Error(err)
					return
				}
				mem.SetWord(p, uint64(p))
				if mem.Word(p) != uint64(p) {
					t.Errorf("block %s was overwritten", p)
				}
				h.Dealloc(p, l)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(1600), h.Stats().AllocCalls)
	assert.Equal(t, uint64(0), h.Stats().BytesInUse)
}

func TestInstall(t *testing.T) {
	t.Cleanup(uninstall)
	uninstall()

	require.Nil(t, Installed())
	defer func() {
		r := recover()
		err, ok := r.(error)
		require.True(t, ok)
		require.True(t, errors.Is(err, ErrNotInstalled))

		h := NewLinkedList(newTestMemory(t), bootmap.DefaultBase, 4096)
		require.NoError(t, Install(h))
		require.Same(t, h, Default())
		require.ErrorIs(t, Install(NewLinkedList(newTestMemory(t), bootmap.DefaultBase, 4096)), ErrAlreadyInstalled)
		require.Same(t, h, Default())
		require.ErrorIs(t, Install(nil), ErrNilHeap)
	}()
	Default()
}

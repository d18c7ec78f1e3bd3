package pagetable

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memkit/alloc"
	"github.com/joshuapare/memkit/internal/format"
	"github.com/joshuapare/memkit/internal/testutil"
	"github.com/joshuapare/memkit/page"
	"github.com/joshuapare/memkit/phys"
)

const testBase phys.Addr = 0x8000_0000

// newTestMapper returns a mapper drawing tables from a page allocator over
// pages frames, plus a fresh root.
func newTestMapper(t *testing.T, pages uint64) (*Mapper, *page.Allocator, phys.Addr) {
	t.Helper()
	mem, err := phys.New(testBase, pages*format.PageSize)
	require.NoError(t, err)
	frames, err := page.New(mem, testBase, pages*format.PageSize)
	require.NoError(t, err)
	m := NewMapper(frames)
	root, err := m.AllocRoot()
	require.NoError(t, err)
	return m, frames, root
}

func Test_MapThenTranslate(t *testing.T) {
	m, frames, root := newTestMapper(t, 64)

	v := VirtAddr(0x4000_0000)
	p := phys.Addr(0x8020_0000)
	require.NoError(t, m.Map(root, v, p, ReadWrite, 0))

	got, err := m.VirtToPhys(root, v)
	require.NoError(t, err)
	require.Equal(t, p, got)

	got, err = m.VirtToPhys(root, v+0x123)
	require.NoError(t, err)
	require.Equal(t, p+0x123, got, "page offset is preserved")

	// Root plus one level-1 and one level-0 table.
	require.Len(t, frames.Runs(), 3)
	require.Equal(t, 2, m.Tables(root))
}

func Test_TranslateUnmappedAddress(t *testing.T) {
	m, _, root := newTestMapper(t, 64)
	require.NoError(t, m.Map(root, 0x1000, 0x8000_1000, Read, 0))

	_, err := m.VirtToPhys(root, 0x2000)
	require.ErrorIs(t, err, ErrNoMapping, "sibling page in the same table")

	_, err = m.VirtToPhys(root, 0x4000_0000)
	require.ErrorIs(t, err, ErrNoMapping, "empty root slot")
}

func Test_HugePagesTranslateWithLevelOffsets(t *testing.T) {
	m, frames, root := newTestMapper(t, 64)

	// 2 MiB leaf at level 1.
	require.NoError(t, m.Map(root, 0x20_0000, 0x8040_0000, ReadExecute, 1))
	got, err := m.VirtToPhys(root, 0x20_0000+0x1_2345)
	require.NoError(t, err)
	require.Equal(t, phys.Addr(0x8040_0000+0x1_2345), got)

	// 1 GiB leaf at level 2 needs no tables at all.
	before := len(frames.Runs())
	require.NoError(t, m.Map(root, 0x80_0000_0000-0x4000_0000, 0x8000_0000, ReadWriteExecute, 2))
	require.Len(t, frames.Runs(), before)
	got, err = m.VirtToPhys(root, 0x80_0000_0000-0x4000_0000+0x3fff_ffff)
	require.NoError(t, err)
	require.Equal(t, phys.Addr(0x8000_0000+0x3fff_ffff), got)
}

func Test_MapSharesIntermediateTables(t *testing.T) {
	m, frames, root := newTestMapper(t, 64)

	for i := range uint64(16) {
		require.NoError(t, m.Map(root, VirtAddr(0x1000_0000+i*format.PageSize), phys.Addr(0x8000_0000+i*format.PageSize), ReadWrite, 0))
	}
	require.Len(t, frames.Runs(), 3, "16 neighbouring pages share one level-0 table")

	for i := range uint64(16) {
		got, err := m.VirtToPhys(root, VirtAddr(0x1000_0000+i*format.PageSize))
		require.NoError(t, err)
		require.Equal(t, phys.Addr(0x8000_0000+i*format.PageSize), got)
	}
}

func Test_UnmapFreesIntermediatesOnly(t *testing.T) {
	m, frames, root := newTestMapper(t, 64)

	require.NoError(t, m.Map(root, 0x1000, 0x8000_1000, ReadWrite, 0))
	require.NoError(t, m.Map(root, 0x40_0000, 0x8000_2000, ReadWrite, 0))     // another level-0 table
	require.NoError(t, m.Map(root, 0x1_0000_0000, 0x8000_3000, ReadWrite, 0)) // another level-1 table
	require.NoError(t, m.Map(root, 0x1_4000_0000, 0x8000_0000, ReadWrite, 2)) // root-level leaf
	require.NoError(t, m.Map(root, 0x8060_0000, 0x8060_0000, ReadWrite, 1))   // level-1 leaf
	require.Equal(t, 6, m.Tables(root))

	m.Unmap(root)

	require.Equal(t, []page.Run{{Addr: root, Pages: 1}}, frames.Runs(), "only root remains allocated")
	require.Zero(t, m.Tables(root))

	// Root-level leaves are not tables and survive.
	got, err := m.VirtToPhys(root, 0x1_4000_0000+0x10)
	require.NoError(t, err)
	require.Equal(t, phys.Addr(0x8000_0010), got)

	_, err = m.VirtToPhys(root, 0x1000)
	require.ErrorIs(t, err, ErrNoMapping)

	// The tree can be rebuilt after an unmap.
	require.NoError(t, m.Map(root, 0x1000, 0x8000_5000, ReadWrite, 0))
	got, err = m.VirtToPhys(root, 0x1000)
	require.NoError(t, err)
	require.Equal(t, phys.Addr(0x8000_5000), got)
}

func Test_FreeRootReleasesEverything(t *testing.T) {
	m, frames, root := newTestMapper(t, 64)
	require.NoError(t, m.IdentityMap(root, 0x8000_0000, 0x8000_3000, ReadWrite))

	m.FreeRoot(root)
	require.Empty(t, frames.Runs())
}

func Test_MapPreconditionsPanic(t *testing.T) {
	m, _, root := newTestMapper(t, 64)

	testutil.RequirePanicIs(t, ErrNoPermission, func() { _ = m.Map(root, 0x1000, 0x8000_1000, User|Global, 0) })
	testutil.RequirePanicIs(t, alloc.ErrPrecondition, func() { _ = m.Map(root, 0x1000, 0x8000_1000, Valid, 0) })
	testutil.RequirePanicIs(t, ErrBadLevel, func() { _ = m.Map(root, 0x1000, 0x8000_1000, Read, 3) })
	testutil.RequirePanicIs(t, ErrBadLevel, func() { _ = m.Map(root, 0x1000, 0x8000_1000, Read, -1) })

	require.NoError(t, m.Map(root, 0x20_0000, 0x8020_0000, Read, 1))
	testutil.RequirePanicIs(t, ErrLeafInPath, func() { _ = m.Map(root, 0x20_1000, 0x8000_1000, Read, 0) })
}

func Test_MapOutOfFramesReturnsError(t *testing.T) {
	// 3 frames: with the root and one spare frame taken, the level-1 table
	// fits and the level-0 table does not.
	m, _, root := newTestMapper(t, 4)
	_, err := m.frames.Alloc(frameLayout)
	require.NoError(t, err)

	err = m.Map(root, 0x1000, 0x8000_1000, ReadWrite, 0)
	require.ErrorIs(t, err, alloc.ErrOutOfMemory)

	_, err = m.VirtToPhys(root, 0x1000)
	require.ErrorIs(t, err, ErrNoMapping)
}

func Test_IdentityMapCoversPartialPages(t *testing.T) {
	m, _, root := newTestMapper(t, 64)

	require.NoError(t, m.IdentityMap(root, 0x8000_0800, 0x8000_2001, ReadWrite))

	var got []Mapping
	m.Walk(root, func(mp Mapping) { got = append(got, mp) })

	flags := ReadWrite | Valid | Dirty | Access
	want := []Mapping{
		{Virt: 0x8000_0000, Phys: 0x8000_0000, Level: 0, Flags: flags},
		{Virt: 0x8000_1000, Phys: 0x8000_1000, Level: 0, Flags: flags},
		{Virt: 0x8000_2000, Phys: 0x8000_2000, Level: 0, Flags: flags},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Walk mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, uint64(4096), got[0].Size())
}

func Test_WalkReportsHugeAndHighMappings(t *testing.T) {
	m, _, root := newTestMapper(t, 64)

	high := VirtAddr(0xffff_ffc0_0000_0000) // first address of the upper half
	require.NoError(t, m.Map(root, high, 0x8000_0000, ReadWriteExecute, 2))
	require.NoError(t, m.Map(root, 0x20_0000, 0x8020_0000, Read, 1))

	var got []Mapping
	m.Walk(root, func(mp Mapping) { got = append(got, mp) })

	want := []Mapping{
		{Virt: 0x20_0000, Phys: 0x8020_0000, Level: 1, Flags: Read | Valid | Dirty | Access},
		{Virt: high, Phys: 0x8000_0000, Level: 2, Flags: ReadWriteExecute | Valid | Dirty | Access},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Walk mismatch (-want +got):\n%s", diff)
	}

	p, err := m.VirtToPhys(root, high+0x42)
	require.NoError(t, err)
	require.Equal(t, phys.Addr(0x8000_0042), p)
}

func Test_MapperOverLinkedListHeap(t *testing.T) {
	mem, err := phys.New(testBase, 32*format.PageSize)
	require.NoError(t, err)
	heap := alloc.NewLinkedList(mem)
	heap.Init(testBase, 32*format.PageSize)

	m := NewMapper(alloc.NewLocked(heap))
	root, err := m.AllocRoot()
	require.NoError(t, err)
	require.True(t, root.IsAligned(format.PageSize))

	require.NoError(t, m.Map(root, 0x5000, 0x8000_9000, ReadWrite, 0))
	got, err := m.VirtToPhys(root, 0x5008)
	require.NoError(t, err)
	require.Equal(t, phys.Addr(0x8000_9008), got)

	inUse := heap.Stats().BytesInUse
	m.Unmap(root)
	require.Equal(t, inUse-2*format.PageSize, heap.Stats().BytesInUse)
}

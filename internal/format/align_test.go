package format

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAlignUp(t *testing.T) {
	tests := []struct {
		n, align, want uint64
	}{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 8, 16},
		{100, 16, 112},
		{1, PageSize, PageSize},
		{PageSize + 1, PageSize, 2 * PageSize},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, AlignUp(tt.n, tt.align), "AlignUp(%d, %d)", tt.n, tt.align)
	}
}

func TestAlignDownAndIsAligned(t *testing.T) {
	require.Equal(t, uint64(4096), AlignDown(8191, PageSize))
	require.Equal(t, uint64(0), AlignDown(7, 8))
	require.True(t, IsAligned(4096, PageSize))
	require.False(t, IsAligned(4097, PageSize))
	require.True(t, IsAligned(0, 8))
}

func TestIsPowerOfTwo(t *testing.T) {
	for _, n := range []uint64{1, 2, 4, 8, 4096, 1 << 63} {
		require.True(t, IsPowerOfTwo(n), "%d", n)
	}
	for _, n := range []uint64{0, 3, 6, 12, 4095} {
		require.False(t, IsPowerOfTwo(n), "%d", n)
	}
}

func TestPagesFor(t *testing.T) {
	require.Equal(t, uint64(0), PagesFor(0))
	require.Equal(t, uint64(1), PagesFor(1))
	require.Equal(t, uint64(1), PagesFor(PageSize))
	require.Equal(t, uint64(2), PagesFor(PageSize+1))
	require.Equal(t, uint64(8), AlignWord(1))
}

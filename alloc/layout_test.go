package alloc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memkit/internal/testutil"
)

type pair struct {
	a uint64
	b uint32
}

func Test_NewLayoutDefaultsAlign(t *testing.T) {
	l := NewLayout(100)
	require.Equal(t, Layout{Size: 100, Align: 4}, l)
	require.True(t, l.IsValid())
	require.Equal(t, "100/4", l.String())
}

func Test_LayoutOfTypes(t *testing.T) {
	require.Equal(t, Layout{Size: 8, Align: 8}, LayoutOf[uint64]())
	require.Equal(t, Layout{Size: 16, Align: 8}, LayoutOf[pair]())
	require.Equal(t, Layout{Size: 40, Align: 4}, ArrayLayout[uint32](10))
}

func Test_ArrayLayoutOverflowPanics(t *testing.T) {
	testutil.RequirePanicIs(t, ErrPrecondition, func() { ArrayLayout[uint64](math.MaxUint64 / 4) })
}

func Test_AlignUpChecked(t *testing.T) {
	got, ok := alignUpChecked(20, 8)
	require.True(t, ok)
	require.Equal(t, uint64(24), got)

	got, ok = alignUpChecked(math.MaxUint64-7, 8)
	require.True(t, ok)
	require.Equal(t, uint64(math.MaxUint64-7), got)

	_, ok = alignUpChecked(math.MaxUint64-6, 8)
	require.False(t, ok)
}

func Test_LayoutAlignUp(t *testing.T) {
	tests := []struct {
		align, in, want uint64
	}{
		{8, 0, 0},
		{8, 1, 8},
		{8, 8, 8},
		{16, 17, 32},
		{4096, 4097, 8192},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Layout{Align: tt.align}.AlignUp(tt.in))
	}
}

func Test_LayoutIsValid(t *testing.T) {
	require.False(t, Layout{Size: 8, Align: 0}.IsValid())
	require.False(t, Layout{Size: 8, Align: 12}.IsValid())
	require.True(t, Layout{Size: 8, Align: 1}.IsValid())
}

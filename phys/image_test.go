package phys

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memkit/internal/format"
)

func Test_ImageCreateFlushReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ram.img")

	img, err := Create(path, testBase, 64*1024)
	require.NoError(t, err)

	mem := img.Memory()
	require.Equal(t, testBase, mem.Base())
	require.Equal(t, uint64(64*1024), mem.Size())

	mem.SetWord(testBase+0x3008, 0xfeed_face)
	img.Header().SetHeap(testBase, 0x4000)
	img.Header().SetHeapHead(testBase + 0x40)
	require.Equal(t, 1, img.Pending())

	require.NoError(t, img.Flush(context.Background()))
	require.Zero(t, img.Pending())
	require.True(t, img.Header().IsClean())
	require.Equal(t, uint32(1), img.Header().Sequence1())
	require.NoError(t, img.Close())

	st, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, int64(format.ImageHeaderSize+64*1024), st.Size())

	img, err = Open(path)
	require.NoError(t, err)
	defer img.Close()

	require.Equal(t, uint64(0xfeed_face), img.Memory().Word(testBase+0x3008))
	start, size := img.Header().Heap()
	require.Equal(t, testBase, start)
	require.Equal(t, uint64(0x4000), size)
	require.Equal(t, testBase+0x40, img.Header().HeapHead())
	require.Equal(t, path, img.Name())
}

func Test_ImageOpenRejectsGarbage(t *testing.T) {
	dir := t.TempDir()

	short := filepath.Join(dir, "short.img")
	require.NoError(t, os.WriteFile(short, []byte("kmem"), 0o644))
	_, err := Open(short)
	require.ErrorIs(t, err, ErrBadImage)

	garbage := filepath.Join(dir, "garbage.img")
	require.NoError(t, os.WriteFile(garbage, make([]byte, 2*format.ImageHeaderSize), 0o644))
	_, err = Open(garbage)
	require.ErrorIs(t, err, ErrBadImage)
	require.ErrorIs(t, err, format.ErrSignatureMismatch)
}

func Test_ImageFlushAfterClose(t *testing.T) {
	img, err := Create(filepath.Join(t.TempDir(), "ram.img"), testBase, 4096)
	require.NoError(t, err)
	require.NoError(t, img.Close())
	require.ErrorIs(t, img.Flush(context.Background()), ErrClosed)
	require.NoError(t, img.Close())
}

func Test_CreateRejectsBadRegion(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "ram.img"), Null, 4096)
	require.ErrorIs(t, err, ErrBadRegion)
}

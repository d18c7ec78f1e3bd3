package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memkit/alloc"
	"github.com/joshuapare/memkit/page"
	"github.com/joshuapare/memkit/pagetable"
)

func TestInitAndInfo(t *testing.T) {
	path := newTestImage(t)
	ctx := t.Context()

	out := run(t, func() error { return runInfo(ctx, []string{path}) })
	assertContains(t, out, []string{
		"Memory: [0x80000000, 0x80800000)",
		"Heap:   [0x80000000, 0x80019000)",
		"Frames: 0 of 2022 in use",
		"✓ Last flush completed",
	})

	jsonOut = true
	out = run(t, func() error { return runInfo(ctx, []string{path}) })
	var info ImageInfo
	assertJSON(t, out, &info)
	assert.Equal(t, uint64(2022), info.FrameCount)
	assert.Equal(t, uint64(100<<10), info.HeapFree)
	assert.Equal(t, 1, info.FreeBlocks)
	assert.True(t, info.Clean)
	assert.Empty(t, info.RootTable)
}

func TestInit_WithMap(t *testing.T) {
	resetFlags()
	t.Cleanup(resetFlags)
	dir := t.TempDir()
	initMapFile = filepath.Join(dir, "boot.yaml")
	require.NoError(t, os.WriteFile(initMapFile, []byte(`
memory: {start: 0x10000000, size: 1MiB}
heap:   {start: 0x10000000, size: 64K}
frames: {start: 0x10010000, size: 960K}
`), 0o644))

	path := filepath.Join(dir, "small.img")
	out := run(t, func() error { return runInit(t.Context(), []string{path}) })
	assertContains(t, out, []string{"Frames: [0x10010000, 0x10100000) (239 frames)"})

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(4096+1<<20), st.Size())

	initMapFile = filepath.Join(dir, "missing.yaml")
	_, err = captureOutput(t, func() error { return runInit(t.Context(), []string{path}) })
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestFrames(t *testing.T) {
	path := newTestImage(t)
	ctx := t.Context()

	out := run(t, func() error { return runFramesAlloc(ctx, []string{path, "2"}) })
	assert.Equal(t, "0x8001a000\n", out)

	out = run(t, func() error { return runFramesList(ctx, []string{path}) })
	assertContains(t, out, []string{"0x8001a000", "2 page(s)"})

	framesTable = true
	out = run(t, func() error { return runFramesList(ctx, []string{path}) })
	assertContains(t, out, []string{"PAGE ALLOCATION TABLE", "Allocated:      2 pages"})
	framesTable = false

	_, err := captureOutput(t, func() error { return runFramesFree(ctx, []string{path, "0x8001b000"}) })
	require.ErrorIs(t, err, page.ErrInteriorPage)

	run(t, func() error { return runFramesFree(ctx, []string{path, "0x8001a000"}) })

	_, err = captureOutput(t, func() error { return runFramesFree(ctx, []string{path, "0x8001a000"}) })
	require.ErrorIs(t, err, page.ErrDoubleFree)

	out = run(t, func() error { return runFramesList(ctx, []string{path}) })
	assert.Equal(t, "No frames allocated\n", out)

	_, err = captureOutput(t, func() error { return runFramesAlloc(ctx, []string{path, "0"}) })
	require.Error(t, err)
	_, err = captureOutput(t, func() error { return runFramesAlloc(ctx, []string{path, "5000"}) })
	require.ErrorIs(t, err, alloc.ErrOutOfMemory)
}

func TestHeap(t *testing.T) {
	path := newTestImage(t)
	ctx := t.Context()

	out := run(t, func() error { return runHeapAlloc(ctx, []string{path, "100"}) })
	assert.Equal(t, "0x80000000\n", out)

	// the head written to the header is picked up by the next command
	out = run(t, func() error { return runHeapAlloc(ctx, []string{path, "100"}) })
	assert.Equal(t, "0x80000068\n", out)

	heapAlign = 64
	out = run(t, func() error { return runHeapAlloc(ctx, []string{path, "24"}) })
	assert.Equal(t, "0x80000100\n", out)
	run(t, func() error { return runHeapFree(ctx, []string{path, "0x80000100", "24"}) })
	heapAlign = 0

	run(t, func() error { return runHeapFree(ctx, []string{path, "0x80000000", "100"}) })

	out = run(t, func() error { return runHeapBlocks(ctx, []string{path}) })
	assertContains(t, out, []string{"0x80000000       104 bytes", "3 block(s)"})

	_, err := captureOutput(t, func() error { return runHeapFree(ctx, []string{path, "0x90000000", "8"}) })
	require.ErrorContains(t, err, "outside the heap")
	_, err = captureOutput(t, func() error { return runHeapFree(ctx, []string{path, "0x80000004", "8"}) })
	require.ErrorIs(t, err, alloc.ErrPrecondition)
	_, err = captureOutput(t, func() error { return runHeapAlloc(ctx, []string{path, "1M"}) })
	require.ErrorIs(t, err, alloc.ErrOutOfMemory)

	heapAlign = 3
	_, err = captureOutput(t, func() error { return runHeapAlloc(ctx, []string{path, "8"}) })
	require.ErrorContains(t, err, "invalid alignment")
}

func TestMapTranslateUnmap(t *testing.T) {
	path := newTestImage(t)
	ctx := t.Context()

	_, err := captureOutput(t, func() error { return runTranslate(ctx, []string{path, "0x1000"}) })
	require.ErrorContains(t, err, "no page table")

	run(t, func() error { return runMap(ctx, []string{path, "0x40000000", "0x80200000"}) })

	out := run(t, func() error { return runTranslate(ctx, []string{path, "0x40000123"}) })
	assert.Equal(t, "0x80200123\n", out)

	mapLevel = 1
	mapPerm = "rwx"
	run(t, func() error { return runMap(ctx, []string{path, "0x80000000", "0x80000000"}) })
	mapLevel = 0

	out = run(t, func() error { return runWalk(ctx, []string{path}) })
	assertContains(t, out, []string{"0x40000000", "0x80200000", "DA---WRV", "DA--XWRV", "2 mapping(s) in 3 table(s)"})

	jsonOut = true
	out = run(t, func() error { return runInfo(ctx, []string{path}) })
	var info ImageInfo
	assertJSON(t, out, &info)
	assert.Equal(t, "0x8001a000", info.RootTable)
	assert.Equal(t, uint64(4), info.FramesInUse)
	jsonOut = false

	run(t, func() error { return runUnmap(ctx, []string{path}) })
	_, err = captureOutput(t, func() error { return runTranslate(ctx, []string{path, "0x40000123"}) })
	require.ErrorIs(t, err, pagetable.ErrNoMapping)

	mapPerm = "u"
	_, err = captureOutput(t, func() error { return runMap(ctx, []string{path, "0x1000", "0x80200000"}) })
	require.ErrorContains(t, err, "at least one of r, w or x")
}

func TestMap_Identity(t *testing.T) {
	path := newTestImage(t)
	ctx := t.Context()
	mapIdentity = true
	run(t, func() error { return runMap(ctx, []string{path, "0x80000000", "0x80004000"}) })
	mapIdentity = false

	out := run(t, func() error { return runWalk(ctx, []string{path}) })
	assertContains(t, out, []string{"4 mapping(s) in 2 table(s)"})
}

func TestParsePerm(t *testing.T) {
	tests := []struct {
		in      string
		want    pagetable.Entry
		wantErr bool
	}{
		{"rw", pagetable.ReadWrite, false},
		{"rx", pagetable.ReadExecute, false},
		{"urwx", pagetable.UserReadWriteExecute, false},
		{"gr", pagetable.Global | pagetable.Read, false},
		{"", 0, true},
		{"ug", 0, true},
		{"rz", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parsePerm(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStress(t *testing.T) {
	path := newTestImage(t)
	ctx := t.Context()
	stressOps = 3000
	stressSeed = 42
	jsonOut = true

	out := run(t, func() error { return runStress(ctx, []string{path}) })
	var res StressResult
	assertJSON(t, out, &res)
	assert.Equal(t, 3000, res.Ops)
	assert.NotZero(t, res.HeapAllocs)
	assert.NotZero(t, res.FrameAllocs)
	assert.NotZero(t, res.PeakLive)

	jsonOut = false
	stressMetrics = true
	stressOps = 200
	out = run(t, func() error { return runStress(ctx, []string{path}) })
	assertContains(t, out, []string{
		"200 operations",
		`memkit_alloc_calls_total{allocator="heap"}`,
		`memkit_bytes_in_use{allocator="frames"} 0`,
	})

	// everything the run allocated was freed again
	out = run(t, func() error { return runFramesList(ctx, []string{path}) })
	assert.True(t, strings.HasPrefix(out, "No frames allocated"))
}

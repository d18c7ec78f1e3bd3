package main

import (
	"context"
	"fmt"

	"github.com/joshuapare/memkit/bootmap"
	"github.com/joshuapare/memkit/cmd/memctl/logger"
	"github.com/joshuapare/memkit/global"
	"github.com/joshuapare/memkit/phys"
)

// session is an open image with its allocators resumed from the header.
type session struct {
	img *phys.Image
	bm  *bootmap.Map
	sys *global.System
}

// mapFromHeader rebuilds the boot map recorded in an image header.
func mapFromHeader(h *phys.Header) *bootmap.Map {
	heap, heapSize := h.Heap()
	frames, framesSize := h.Frames()
	return &bootmap.Map{
		Memory: bootmap.Region{Start: bootmap.Value(h.Base()), Size: bootmap.Value(h.Size())},
		Heap:   bootmap.Region{Start: bootmap.Value(heap), Size: bootmap.Value(heapSize)},
		Frames: bootmap.Region{Start: bootmap.Value(frames), Size: bootmap.Value(framesSize)},
	}
}

func openSession(path string) (*session, error) {
	printVerbose("Opening image: %s\n", path)
	img, err := phys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	hdr := img.Header()
	if !hdr.IsClean() {
		logger.Warn("image was not flushed cleanly", "path", path,
			"seq1", hdr.Sequence1(), "seq2", hdr.Sequence2())
		printVerbose("Warning: %s was not flushed cleanly\n", path)
	}

	bm := mapFromHeader(hdr)
	sys, err := global.Resume(img.Memory(), bm, hdr.HeapHead())
	if err != nil {
		_ = img.Close()
		return nil, fmt.Errorf("failed to resume allocators: %w", err)
	}
	logger.Debug("image opened", "path", path, "base", hdr.Base().String(), "size", hdr.Size())
	return &session{img: img, bm: bm, sys: sys}, nil
}

// save records the heap head and flushes the image.
func (s *session) save(ctx context.Context) error {
	if ll, ok := s.sys.Heap.LinkedList(); ok {
		s.img.Header().SetHeapHead(ll.Head())
	}
	pending := s.img.Pending()
	if err := s.img.Flush(ctx); err != nil {
		return fmt.Errorf("failed to flush image: %w", err)
	}
	logger.Debug("image flushed", "path", s.img.Name(), "ranges", pending)
	return nil
}

func (s *session) close() {
	if err := s.img.Close(); err != nil {
		logger.Warn("close failed", "path", s.img.Name(), "err", err)
	}
}

// withSession opens path and runs fn. When write is set the image is saved
// even if fn fails, since the mapping already holds whatever fn changed.
func withSession(ctx context.Context, path string, write bool, fn func(*session) error) error {
	s, err := openSession(path)
	if err != nil {
		return err
	}
	defer s.close()
	err = fn(s)
	if !write {
		return err
	}
	if serr := s.save(ctx); serr != nil && err == nil {
		err = serr
	}
	return err
}

package phys

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joshuapare/memkit/internal/format"
	"github.com/joshuapare/memkit/internal/mmfile"
	"github.com/joshuapare/memkit/phys/dirty"
)

// Image is physical memory persisted in a file: one header page followed
// by the memory contents. The file is mapped read/write so allocator
// state survives across processes.
type Image struct {
	f     *os.File
	data  []byte // whole mapping: header page + memory
	unmap func() error
	hdr   *Header
	mem   *Memory
	dt    *dirty.Tracker
	mode  dirty.FlushMode
}

// Create makes a new zeroed image of size bytes of memory at base,
// replacing any existing file at path.
func Create(path string, base Addr, size uint64) (*Image, error) {
	if err := checkRegion(base, size); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	total := int64(format.ImageHeaderSize) + int64(size)
	if err := f.Truncate(total); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("phys: size image file: %w", err)
	}
	img, err := mapImage(f, int(total))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	img.hdr = initHeader(img.data, base, size)
	if img.mem, err = Wrap(base, img.data[format.ImageHeaderSize:], img.dt); err != nil {
		_ = img.Close()
		return nil, err
	}
	return img, nil
}

// Open maps an existing image read/write after validating its header.
func Open(path string) (*Image, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	sz := st.Size()
	if sz < format.ImageHeaderSize {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrBadImage, path, sz)
	}
	img, err := mapImage(f, int(sz))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if img.hdr, err = ParseHeader(img.data); err != nil {
		_ = img.Close()
		return nil, fmt.Errorf("%w: %w", ErrBadImage, err)
	}
	if err := img.hdr.Validate(sz); err != nil {
		_ = img.Close()
		return nil, fmt.Errorf("%w: %w", ErrBadImage, err)
	}
	end := format.ImageHeaderSize + int(img.hdr.Size())
	if img.mem, err = Wrap(img.hdr.Base(), img.data[format.ImageHeaderSize:end], img.dt); err != nil {
		_ = img.Close()
		return nil, err
	}
	return img, nil
}

func mapImage(f *os.File, size int) (*Image, error) {
	data, unmap, err := mmfile.MapRW(f, size)
	if err != nil {
		return nil, err
	}
	return &Image{
		f:     f,
		data:  data,
		unmap: unmap,
		dt:    dirty.NewTracker(),
		mode:  dirty.FlushAuto,
	}, nil
}

// Memory returns the arena backed by the image.
func (img *Image) Memory() *Memory { return img.mem }

// Header returns the image header.
func (img *Image) Header() *Header { return img.hdr }

// Name returns the file name the image was opened with.
func (img *Image) Name() string {
	if img.f == nil {
		return ""
	}
	return img.f.Name()
}

// SetFlushMode selects the durability level used by Flush.
func (img *Image) SetFlushMode(mode dirty.FlushMode) { img.mode = mode }

// Pending returns the number of dirty ranges waiting for Flush.
func (img *Image) Pending() int { return img.dt.Pending() }

// Flush writes dirty memory pages, then reseals and writes the header.
//
// The primary sequence number is bumped before any data is written and
// copied to the secondary one only after the data is on disk, so an
// interrupted flush leaves the header unclean.
func (img *Image) Flush(ctx context.Context) error {
	if img.data == nil {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	img.hdr.beginUpdate()
	img.hdr.UpdateChecksum()
	if err := img.dt.FlushData(ctx, img.mem.Raw()); err != nil {
		return fmt.Errorf("phys: flush data: %w", err)
	}
	img.hdr.SetTimeStamp(time.Now())
	img.hdr.endUpdate()
	if err := dirty.FlushHeader(ctx, img.data[:format.ImageHeaderSize], int(img.f.Fd()), img.mode); err != nil {
		return fmt.Errorf("phys: flush header: %w", err)
	}
	return nil
}

// Close unmaps the image and closes the file. It does not flush.
func (img *Image) Close() error {
	var err error
	if img.unmap != nil {
		err = img.unmap()
		img.unmap = nil
	}
	img.data = nil
	if img.f != nil {
		if cerr := img.f.Close(); err == nil {
			err = cerr
		}
		img.f = nil
	}
	return err
}

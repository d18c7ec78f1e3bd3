//go:build !unix

// Package mmfile provides platform-specific helpers for memory-mapping image files.
package mmfile

import (
	"fmt"
	"io"
	"os"
)

// MapRW reads the first size bytes of f into memory when mmap is not
// available. The cleanup function writes the buffer back to the file.
func MapRW(f *os.File, size int) ([]byte, func() error, error) {
	if size <= 0 {
		return nil, nil, fmt.Errorf("mmfile: invalid mapping size %d", size)
	}
	data := make([]byte, size)
	if _, err := f.ReadAt(data, 0); err != nil && err != io.EOF {
		return nil, nil, err
	}
	cleanup := func() error {
		if data == nil {
			return nil
		}
		_, err := f.WriteAt(data, 0)
		data = nil
		return err
	}
	return data, cleanup, nil
}

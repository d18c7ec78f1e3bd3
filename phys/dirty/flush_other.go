//go:build !unix

package dirty

import "context"

// flushRanges is a no-op where images are buffered in memory instead of
// mapped; the buffer is written back when the mapping is released.
func (t *Tracker) flushRanges(ctx context.Context, _ []byte) error {
	return ctx.Err()
}

func msync([]byte) error { return nil }

func fdatasync(int, bool) error { return nil }

package storage

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// sizedBody returns a seekable reader and its length. Readers that are already
// seekable with a known size pass through; anything else is copied into a
// uniquely named temp file. cleanup closes and removes the temp file and must
// always be called.
func sizedBody(r io.Reader, size int64) (io.ReadSeeker, int64, func(), error) {
	if rs, ok := r.(io.ReadSeeker); ok && size >= 0 {
		return rs, size, func() {}, nil
	}

	f, err := os.CreateTemp("", "docgw-upload-*")
	if err != nil {
		return nil, 0, func() {}, fmt.Errorf("create spool file: %w", err)
	}
	cleanup := func() {
		_ = f.Close()
		if err := os.Remove(f.Name()); err != nil && !os.IsNotExist(err) {
			slog.Warn("storage: remove spool file", "path", f.Name(), "error", err)
		}
	}

	n, err := io.Copy(f, r)
	if err != nil {
		cleanup()
		return nil, 0, func() {}, fmt.Errorf("spool body: %w", err)
	}
	if size >= 0 && n != size {
		cleanup()
		return nil, 0, func() {}, fmt.Errorf("spool body: read %d bytes, expected %d", n, size)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		cleanup()
		return nil, 0, func() {}, fmt.Errorf("rewind spool file: %w", err)
	}

	return f, n, cleanup, nil
}

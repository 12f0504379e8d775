//go:build linux

package pwm

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// WriteText opens path O_WRONLY without O_TRUNC/O_CREAT. Some sysfs
// attributes reject truncation flags at open() time, and a missing attribute
// must surface as ENOENT instead of a freshly created regular file.
func (OSFS) WriteText(path, content string) error {
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return &os.PathError{Op: "open", Path: path, Err: err}
	}

	n, werr := unix.Write(fd, []byte(content))
	cerr := unix.Close(fd)
	switch {
	case werr != nil:
		return &os.PathError{Op: "write", Path: path, Err: werr}
	case n != len(content):
		return &os.PathError{Op: "write", Path: path, Err: io.ErrShortWrite}
	case cerr != nil:
		return &os.PathError{Op: "close", Path: path, Err: cerr}
	}
	return nil
}

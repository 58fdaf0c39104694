// Package fs abstracts host-file access. Hosts are usually plain files,
// but on Windows a raw volume path (`\\.\D:`) is accepted too, so big
// game installs can be scanned in place without copying them out first.
package fs

import (
	"io"
	"os"
)

// File is the read surface the scanner and patcher need from a host.
type File interface {
	io.ReadCloser
	io.ReaderAt
	Stat() (os.FileInfo, error)
}

// Size returns the host size in bytes.
func Size(f File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

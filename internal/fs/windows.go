//go:build windows
// +build windows

// Copyright (c) 2025 The fsbrepack authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
package fs

import (
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Open returns a regular file, or a raw volume reader for `\\.\X:`
// style paths.
func Open(path string) (File, error) {
	if !strings.HasPrefix(path, `\\.\`) {
		return os.Open(path)
	}
	return openRawVolume(path)
}

// rawVolumeFile reads a volume opened without buffering; ReadAt rounds
// every access to sector boundaries as the kernel requires.
type rawVolumeFile struct {
	name   string
	handle windows.Handle
	offset int64
}

func openRawVolume(path string) (*rawVolumeFile, error) {
	handle, err := windows.CreateFile(
		windows.StringToUTF16Ptr(path),
		windows.GENERIC_READ,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		0,
		0,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", path, err)
	}
	return &rawVolumeFile{name: path, handle: handle}, nil
}

func (d *rawVolumeFile) Read(p []byte) (int, error) {
	var bytesRead uint32
	err := windows.ReadFile(d.handle, p, &bytesRead, nil)
	if err != nil {
		return int(bytesRead), err
	}
	d.offset += int64(bytesRead)
	return int(bytesRead), nil
}

func (d *rawVolumeFile) ReadAt(p []byte, off int64) (int, error) {
	const sectorSize = 512

	alignedOffset := off / sectorSize * sectorSize
	alignmentDiff := int(off - alignedOffset)
	alignedSize := ((len(p) + alignmentDiff + sectorSize - 1) / sectorSize) * sectorSize

	buf := make([]byte, alignedSize)

	var bytesRead uint32
	ov := new(windows.Overlapped)
	ov.Offset = uint32(alignedOffset)
	ov.OffsetHigh = uint32(alignedOffset >> 32)

	err := windows.ReadFile(d.handle, buf, &bytesRead, ov)
	if err != nil {
		if err == syscall.ERROR_IO_PENDING {
			err = windows.GetOverlappedResult(d.handle, ov, &bytesRead, true)
		}
		if err != nil {
			return 0, fmt.Errorf("aligned read failed: %w", err)
		}
	}

	n := copy(p, buf[alignmentDiff:])
	return n, nil
}

type diskGeometry struct {
	Cylinders         int64
	MediaType         uint32
	TracksPerCylinder uint32
	SectorsPerTrack   uint32
	BytesPerSector    uint32
}

const ioctlDiskGetDriveGeometry = 0x70000

func (d *rawVolumeFile) Stat() (os.FileInfo, error) {
	var geometry diskGeometry
	var bytesReturned uint32

	err := windows.DeviceIoControl(
		d.handle,
		ioctlDiskGetDriveGeometry,
		nil,
		0,
		(*byte)(unsafe.Pointer(&geometry)),
		uint32(unsafe.Sizeof(geometry)),
		&bytesReturned,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("DeviceIoControl(IOCTL_DISK_GET_DRIVE_GEOMETRY) failed: %w", err)
	}

	size := geometry.Cylinders * int64(geometry.TracksPerCylinder) * int64(geometry.SectorsPerTrack) * int64(geometry.BytesPerSector)

	return &volumeInfo{name: d.name, size: size}, nil
}

func (d *rawVolumeFile) Close() error {
	return windows.CloseHandle(d.handle)
}

type volumeInfo struct {
	name string
	size int64
}

func (fi *volumeInfo) Name() string       { return fi.name }
func (fi *volumeInfo) Size() int64        { return fi.size }
func (fi *volumeInfo) Mode() os.FileMode  { return 0 }
func (fi *volumeInfo) ModTime() time.Time { return time.Time{} }
func (fi *volumeInfo) IsDir() bool        { return false }
func (fi *volumeInfo) Sys() interface{}   { return nil }

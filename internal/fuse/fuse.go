//go:build linux
// +build linux

package fuse

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
)

// BankFS serves one bank's samples as a flat directory of WAV files.
type BankFS struct {
	mtx     sync.Mutex
	entries map[string]*wavFile

	mountpoint string
}

func newBankFS(mountpoint string, entries []WavEntry) *BankFS {
	files := make(map[string]*wavFile, len(entries))
	for _, e := range entries {
		files[e.Name] = &wavFile{entry: e}
	}
	return &BankFS{entries: files, mountpoint: mountpoint}
}

func (b *BankFS) Root() (fs.Node, error) {
	return &dir{fs: b}, nil
}

type dir struct {
	fs *BankFS
}

func (*dir) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Mode = os.ModeDir | 0555
	return nil
}

func (d *dir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	d.fs.mtx.Lock()
	defer d.fs.mtx.Unlock()

	if f, ok := d.fs.entries[name]; ok {
		return f, nil
	}
	return nil, fuse.ENOENT
}

func (d *dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	d.fs.mtx.Lock()
	defer d.fs.mtx.Unlock()

	dirEntries := make([]fuse.Dirent, 0, len(d.fs.entries))
	for name := range d.fs.entries {
		dirEntries = append(dirEntries, fuse.Dirent{
			Name: name,
			Type: fuse.DT_File,
		})
	}
	sort.Slice(dirEntries, func(i, j int) bool {
		return dirEntries[i].Name < dirEntries[j].Name
	})
	for i := range dirEntries {
		dirEntries[i].Inode = uint64(i + 2)
	}
	return dirEntries, nil
}

// wavFile synthesizes the WAV image lazily: the payload is decoded on
// the first read and kept for the mount's lifetime, so seeks and
// repeated reads stay cheap.
type wavFile struct {
	entry WavEntry

	mtx     sync.Mutex
	payload []byte
	loadErr error
}

func (f *wavFile) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Mode = 0444
	a.Size = uint64(f.entry.Size())
	a.Mtime = time.Now()
	return nil
}

func (f *wavFile) image() ([]byte, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	if f.payload == nil && f.loadErr == nil {
		f.payload, f.loadErr = f.load()
	}
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.payload, nil
}

func (f *wavFile) load() ([]byte, error) {
	r, err := f.entry.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	buf := make([]byte, f.entry.Size())
	copy(buf, f.entry.Header)

	// Short decodes leave silence at the tail; the declared size stands.
	if _, err := io.ReadFull(r, buf[len(f.entry.Header):]); err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("decode %s: %w", f.entry.Name, err)
	}
	return buf, nil
}

func (f *wavFile) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	image, err := f.image()
	if err != nil {
		return err
	}

	offset := req.Offset
	if offset >= int64(len(image)) {
		resp.Data = []byte{}
		return nil
	}

	end := offset + int64(req.Size)
	if end > int64(len(image)) {
		end = int64(len(image))
	}
	resp.Data = image[offset:end]
	return nil
}

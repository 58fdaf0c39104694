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

// Package patch splices a rebuilt bank back into a copy of its host
// file. The source host is never written to.
package patch

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"

	"fsbrepack/internal/fsb"
)

const scanChunkSize = 64 * 1024

// OriginalLength determines how many bytes the bank at offset occupies
// inside the host. The header's declared total size wins when it holds
// up against the host bounds; otherwise the next signature downstream
// marks the end, and failing that the bank runs to end of file.
func OriginalLength(r io.ReaderAt, hostSize, offset int64) (int64, error) {
	if offset < 0 || offset+fsb.HeaderSize > hostSize {
		return 0, fmt.Errorf("offset 0x%x out of host bounds (%d bytes)", offset, hostSize)
	}

	buf := make([]byte, fsb.HeaderSize)
	if _, err := r.ReadAt(buf, offset); err != nil {
		return 0, fmt.Errorf("read header at 0x%x: %w", offset, err)
	}

	if h, err := fsb.ParseHeader(buf); err == nil {
		if total := h.TotalSize(); total >= fsb.HeaderSize && offset+total <= hostSize {
			return total, nil
		}
	}

	if next, found, err := nextSignature(r, hostSize, offset+fsb.HeaderSize); err != nil {
		return 0, err
	} else if found {
		return next - offset, nil
	}

	return hostSize - offset, nil
}

// nextSignature scans forward from pos for the next signature
// occurrence, chunked with a small overlap so matches straddling chunk
// boundaries are still seen.
func nextSignature(r io.ReaderAt, hostSize, pos int64) (int64, bool, error) {
	overlap := int64(len(fsb.Signature) - 1)
	buf := make([]byte, scanChunkSize)

	for pos < hostSize {
		n, err := r.ReadAt(buf, pos)
		if err != nil && err != io.EOF {
			return 0, false, fmt.Errorf("scan at 0x%x: %w", pos, err)
		}
		if idx := bytes.Index(buf[:n], fsb.Signature); idx >= 0 {
			return pos + int64(idx), true, nil
		}
		if err == io.EOF || pos+int64(n) >= hostSize {
			break
		}
		pos += int64(n) - overlap
	}
	return 0, false, nil
}

// Splice writes destPath as host[0:offset] + bank + host[offset+origLen:].
// The bank file must be exactly origLen bytes; the rebuild engine pads
// it to that size, so a mismatch means the pipeline was bypassed.
func Splice(logger *slog.Logger, hostPath, destPath, bankPath string, offset, origLen int64) error {
	host, err := os.Open(hostPath)
	if err != nil {
		return err
	}
	defer host.Close()

	info, err := host.Stat()
	if err != nil {
		return err
	}
	hostSize := info.Size()
	if offset < 0 || origLen <= 0 || offset+origLen > hostSize {
		return fmt.Errorf("bank range [0x%x, 0x%x) exceeds host size %d", offset, offset+origLen, hostSize)
	}

	bankInfo, err := os.Stat(bankPath)
	if err != nil {
		return err
	}
	if bankInfo.Size() != origLen {
		return fmt.Errorf("rebuilt bank is %d bytes, slot is %d", bankInfo.Size(), origLen)
	}

	// Whole-file bank: the splice degenerates to a copy.
	if offset == 0 && origLen == hostSize {
		logger.Debug("host is the bank itself, copying", "dest", destPath)
		return copyFile(bankPath, destPath)
	}

	bank, err := os.Open(bankPath)
	if err != nil {
		return err
	}
	defer bank.Close()

	dest, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer dest.Close()

	w := bufio.NewWriterSize(dest, 1024*1024)
	if _, err := io.Copy(w, io.LimitReader(host, offset)); err != nil {
		return fmt.Errorf("copy prefix: %w", err)
	}
	if _, err := io.Copy(w, bank); err != nil {
		return fmt.Errorf("copy bank: %w", err)
	}
	if _, err := host.Seek(offset+origLen, io.SeekStart); err != nil {
		return err
	}
	if _, err := io.Copy(w, host); err != nil {
		return fmt.Errorf("copy suffix: %w", err)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := dest.Close(); err != nil {
		return err
	}

	logger.Info("patched host written", "dest", destPath, "offset", fmt.Sprintf("0x%x", offset), "bytes", origLen)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

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

// Package wav reads and writes canonical RIFF/WAVE files: a 44-byte
// header followed by a single data chunk of raw samples.
package wav

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// HeaderSize is the byte length of the canonical header: RIFF chunk,
	// WAVE id, 16-byte fmt chunk, data chunk header.
	HeaderSize = 44

	fmtChunkSizePCM = 16

	// FormatPCM and FormatFloat are the fmt-chunk format tags this
	// package emits.
	FormatPCM   = 1
	FormatFloat = 3
)

// Format holds the fmt-chunk fields of a canonical file.
type Format struct {
	FormatTag  uint16
	Channels   uint16
	SampleRate uint32
	Bits       uint16
}

// BlockAlign is the byte size of one frame across all channels.
func (f Format) BlockAlign() uint16 {
	return f.Channels * f.Bits / 8
}

// ByteRate is the number of payload bytes consumed per second.
func (f Format) ByteRate() uint32 {
	return f.SampleRate * uint32(f.BlockAlign())
}

// EncodeHeader writes the canonical header for a payload of dataLen
// bytes into buf, which must hold HeaderSize bytes.
func EncodeHeader(buf []byte, f Format, dataLen uint32) {
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], 36+dataLen)
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], fmtChunkSizePCM)
	binary.LittleEndian.PutUint16(buf[20:22], f.FormatTag)
	binary.LittleEndian.PutUint16(buf[22:24], f.Channels)
	binary.LittleEndian.PutUint32(buf[24:28], f.SampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], f.ByteRate())
	binary.LittleEndian.PutUint16(buf[32:34], f.BlockAlign())
	binary.LittleEndian.PutUint16(buf[34:36], f.Bits)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], dataLen)
}

// Writer emits a canonical file front to back: header first, then raw
// payload writes. The declared data length is fixed at creation; Close
// verifies the payload written matches it.
type Writer struct {
	w       io.Writer
	dataLen uint32
	written uint32
}

// NewWriter writes the header for a payload of dataLen bytes and
// returns a writer for the payload itself.
func NewWriter(w io.Writer, f Format, dataLen uint32) (*Writer, error) {
	var hdr [HeaderSize]byte
	EncodeHeader(hdr[:], f, dataLen)
	if _, err := w.Write(hdr[:]); err != nil {
		return nil, fmt.Errorf("write wav header: %w", err)
	}
	return &Writer{w: w, dataLen: dataLen}, nil
}

func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.written += uint32(n)
	return n, err
}

// Written returns the number of payload bytes written so far.
func (w *Writer) Written() uint32 {
	return w.written
}

// Close verifies the payload length. A short payload is reported as an
// error value the caller may choose to tolerate.
func (w *Writer) Close() error {
	if w.written != w.dataLen {
		return fmt.Errorf("wav payload: wrote %d of %d declared bytes", w.written, w.dataLen)
	}
	return nil
}

// Info is the decoded header of a canonical file.
type Info struct {
	Format  Format
	DataLen uint32
	// DataOffset is the file offset of the payload, HeaderSize for the
	// canonical layout this package writes.
	DataOffset int64
}

// ReadInfo decodes the header of a canonical or near-canonical file,
// walking chunks until the data chunk like the usual RIFF readers do.
func ReadInfo(r io.ReadSeeker) (*Info, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("read riff chunk: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE file")
	}

	info := &Info{}
	offset := int64(12)
	fmtSeen := false

	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return nil, fmt.Errorf("read chunk header: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])
		offset += 8

		switch id {
		case "fmt ":
			if size < fmtChunkSizePCM {
				return nil, fmt.Errorf("fmt chunk too small (%d bytes)", size)
			}
			buf := make([]byte, size)
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, fmt.Errorf("read fmt chunk: %w", err)
			}
			info.Format = Format{
				FormatTag:  binary.LittleEndian.Uint16(buf[0:2]),
				Channels:   binary.LittleEndian.Uint16(buf[2:4]),
				SampleRate: binary.LittleEndian.Uint32(buf[4:8]),
				Bits:       binary.LittleEndian.Uint16(buf[14:16]),
			}
			offset += int64(size)
			fmtSeen = true
		case "data":
			if !fmtSeen {
				return nil, fmt.Errorf("data chunk before fmt chunk")
			}
			info.DataLen = size
			info.DataOffset = offset
			return info, nil
		default:
			if _, err := r.Seek(int64(size), io.SeekCurrent); err != nil {
				return nil, fmt.Errorf("skip %q chunk: %w", id, err)
			}
			offset += int64(size)
		}
	}
}

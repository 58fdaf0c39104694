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

// Package export writes decoded samples as canonical WAV files.
package export

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"

	"fsbrepack/internal/decode"
	"fsbrepack/internal/wav"
)

// Result reports one export outcome.
type Result struct {
	Path    string
	Written int64
	// Short marks an export whose decoder signalled end-of-stream before
	// the reported PCM length. The file is still usable; the
	// inconsistency is logged, not raised.
	Short bool
}

// Sample writes the decoded payload of sub-sound index from b to
// destPath. The data section's byte length equals the decoder-reported
// PCM length unless the reader ends early. A destination that cannot be
// created is fatal for this item only, reported with source context so
// the caller can aggregate it.
func Sample(logger *slog.Logger, b decode.Bank, source string, index int, destPath string) (*Result, error) {
	sub, err := b.SubSound(index)
	if err != nil {
		return nil, fmt.Errorf("%s sub-sound %d: %w", source, index, err)
	}

	r, err := b.Reader(index)
	if err != nil {
		return nil, fmt.Errorf("%s sub-sound %d: %w", source, index, err)
	}
	defer r.Close()

	f, err := os.Create(destPath)
	if err != nil {
		return nil, fmt.Errorf("%s sub-sound %d: create %s: %w", source, index, destPath, err)
	}
	defer f.Close()

	bw := bufio.NewWriterSize(f, 1024*1024)

	format := wav.Format{
		FormatTag:  wav.FormatPCM,
		Channels:   uint16(sub.Channels),
		SampleRate: uint32(sub.SampleRate),
		Bits:       uint16(sub.Bits),
	}
	if sub.Float {
		format.FormatTag = wav.FormatFloat
	}

	w, err := wav.NewWriter(bw, format, uint32(sub.PCMLength))
	if err != nil {
		return nil, fmt.Errorf("%s sub-sound %d: %w", source, index, err)
	}

	written, err := copyPayload(w, r, sub.PCMLength)
	if err != nil {
		return nil, fmt.Errorf("%s sub-sound %d: read payload: %w", source, index, err)
	}

	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("%s sub-sound %d: flush %s: %w", source, index, destPath, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("%s sub-sound %d: close %s: %w", source, index, destPath, err)
	}

	res := &Result{Path: destPath, Written: written}
	if written < sub.PCMLength {
		res.Short = true
		logger.Warn("decoder ended early",
			"source", source, "index", index,
			"expected", sub.PCMLength, "written", written)
	}
	return res, nil
}

// copyPayload loops partial reads until want bytes are consumed or the
// reader reports end-of-stream.
func copyPayload(w io.Writer, r io.Reader, want int64) (int64, error) {
	buf := make([]byte, 64*1024)

	var written int64
	for written < want {
		chunk := int64(len(buf))
		if remaining := want - written; remaining < chunk {
			chunk = remaining
		}

		n, err := r.Read(buf[:chunk])
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return written, werr
			}
			written += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

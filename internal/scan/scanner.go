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

// Package scan locates FSB banks embedded in host files by signature.
package scan

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"fsbrepack/internal/fsb"
)

// ContainerRecord identifies one embedded bank instance. Records are
// immutable once discovered.
type ContainerRecord struct {
	HostPath string
	Offset   int64
}

const (
	// DefaultChunkSize is the scan buffer size.
	DefaultChunkSize = 64 * 1024

	// scanOverlap is how far each chunk reaches back over the previous
	// one, so a signature (and the header fields needed to validate it)
	// straddling a chunk boundary is seen intact in the next chunk.
	scanOverlap = fsb.HeaderSize
)

// Scanner finds bank signatures in a single host file. The zero chunk
// size selects DefaultChunkSize.
type Scanner struct {
	ChunkSize int

	// OnProgress, if set, is called after each chunk with the number of
	// host bytes covered so far.
	OnProgress func(processed int64)
}

// Scan reads the file in fixed-size chunks and returns the offset of
// every validated signature match, in ascending order. Candidates are
// validated against the buffered chunk only; the underlying reader is
// never re-positioned mid-chunk. Files shorter than the primary header
// are skipped with an empty result. Cancellation is checked between
// chunks.
func (s *Scanner) Scan(ctx context.Context, hostPath string, r io.ReaderAt, size int64) ([]ContainerRecord, error) {
	if size < fsb.HeaderSize {
		return nil, nil
	}

	chunkSize := s.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize <= scanOverlap {
		chunkSize = scanOverlap * 2
	}

	buf := make([]byte, chunkSize)

	var records []ContainerRecord
	pos := int64(0)
	for pos < size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := r.ReadAt(buf, pos)
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("scan %s at offset %d: %w", hostPath, pos, err)
		}
		if n == 0 {
			break
		}

		final := pos+int64(n) >= size

		// Matches inside the trailing overlap of a non-final chunk are
		// left for the next chunk, which re-reads them with the full
		// header in view.
		searchEnd := n
		if !final {
			searchEnd = n - scanOverlap
		}

		for idx := 0; idx < searchEnd; {
			rel := bytes.Index(buf[idx:searchEnd], fsb.Signature)
			if rel < 0 {
				break
			}
			idx += rel

			abs := pos + int64(idx)
			if fsb.ValidateCandidate(buf[idx:n], size-abs) {
				records = append(records, ContainerRecord{HostPath: hostPath, Offset: abs})
			}
			idx++
		}

		if s.OnProgress != nil {
			covered := pos + int64(n)
			if covered > size {
				covered = size
			}
			s.OnProgress(covered)
		}

		if final {
			break
		}

		// Advance by a full chunk minus the overlap. The position is
		// strictly monotonic, so a file no longer than the buffer cannot
		// loop.
		pos += int64(n - scanOverlap)
	}
	return records, nil
}

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
package scan

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"

	"fsbrepack/internal/fs"
	"fsbrepack/internal/fsb"
)

// DefaultWorkers bounds concurrent host-file scans. Kept small so the
// decode collaborator downstream is never contended hard.
const DefaultWorkers = 4

// Options configures a batch scan.
type Options struct {
	ChunkSize   int
	Workers     int
	WithSamples bool
	Logger      *slog.Logger

	// OnProgress receives per-file progress, keyed by path.
	OnProgress func(path string, processed, total int64)
}

// Bank is one discovered bank, optionally with its parsed sample table.
type Bank struct {
	Record    ContainerRecord
	TotalSize int64
	Samples   []fsb.SampleHeader
}

// FileResult is the outcome of scanning one host file.
type FileResult struct {
	Path  string
	Size  int64
	Banks []Bank
	Err   error
}

// Failed reports whether the file's scan was aborted by an I/O error.
func (r *FileResult) Failed() bool {
	return r.Err != nil
}

// ScanFiles scans every path with a bounded worker pool. Per-file
// failures are recorded on the FileResult and never abort the batch;
// only context cancellation stops the whole run. Results come back in
// input order.
func ScanFiles(ctx context.Context, paths []string, opts Options) []FileResult {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	results := make([]FileResult, len(paths))

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = scanOne(ctx, path, opts, logger)
		}(i, path)
	}
	wg.Wait()

	return results
}

func scanOne(ctx context.Context, path string, opts Options, logger *slog.Logger) FileResult {
	res := FileResult{Path: path}

	f, err := fs.Open(path)
	if err != nil {
		res.Err = err
		logger.Error("open host file", "path", path, "err", err)
		return res
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		res.Err = err
		return res
	}
	res.Size = info.Size()

	sc := Scanner{ChunkSize: opts.ChunkSize}
	if opts.OnProgress != nil {
		sc.OnProgress = func(processed int64) {
			opts.OnProgress(path, processed, res.Size)
		}
	}

	records, err := sc.Scan(ctx, path, f, res.Size)
	if err != nil {
		res.Err = err
		logger.Error("scan aborted", "path", path, "err", err)
		return res
	}

	for _, rec := range records {
		bank := Bank{Record: rec}

		hdr, samples, err := fsb.ParseBank(f, rec.Offset, res.Size-rec.Offset)
		if err != nil {
			// The candidate validated but the full table did not parse;
			// skip it like any other non-bank signature hit.
			logger.Warn("bank candidate rejected", "path", path, "offset", rec.Offset, "err", err)
			continue
		}
		bank.TotalSize = hdr.TotalSize()
		if opts.WithSamples {
			bank.Samples = samples
		}
		res.Banks = append(res.Banks, bank)
	}

	sort.Slice(res.Banks, func(i, j int) bool {
		return res.Banks[i].Record.Offset < res.Banks[j].Record.Offset
	})

	logger.Info("host scanned", "path", path, "banks", len(res.Banks), "bytes", res.Size)
	return res
}

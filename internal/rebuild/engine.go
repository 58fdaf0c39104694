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

// Package rebuild drives the external encoder until the rebuilt bank
// fits an exact byte budget: one deterministic build for fixed-rate
// formats, a binary search over quality for variable-rate ones, zero
// padding when undersized.
package rebuild

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"fsbrepack/internal/encoder"
	"fsbrepack/internal/fsb"
)

// Status tracks one rebuild attempt through its lifecycle.
type Status int

const (
	StatusPreparing Status = iota
	StatusBuilding
	StatusPadding
	// StatusPatching is reported by callers that splice the finished
	// bank into a host; the engine itself stops at the fitted file.
	StatusPatching
	StatusDone
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusPreparing:
		return "preparing"
	case StatusBuilding:
		return "building"
	case StatusPadding:
		return "padding"
	case StatusPatching:
		return "patching"
	case StatusDone:
		return "done"
	case StatusAborted:
		return "aborted"
	}
	return "unknown"
}

// ErrUnsatisfiable reports that no quality fits the target: the audio
// is fundamentally too large for the slot.
var ErrUnsatisfiable = errors.New("no quality setting fits the target size")

// ErrOversizeRejected reports a fixed-rate build larger than the target
// that the caller did not explicitly accept.
var ErrOversizeRejected = errors.New("rebuilt bank exceeds the target size")

const (
	minQuality = 0
	maxQuality = 100
)

// Options selects the target format and quality for a rebuild. For
// variable-rate formats a Quality of 1..99 caps the search range; zero
// leaves the full 0..100 range. Fixed-rate formats pass Quality straight
// to the encoder.
type Options struct {
	Format  fsb.EncodingKind
	Quality int
}

// Engine runs rebuild attempts. Builds are strictly sequential: every
// encoder invocation completes, including process exit, before the next
// begins.
type Engine struct {
	Encoder *encoder.Client
	Logger  *slog.Logger

	// TempDir receives throwaway probe outputs; defaults to the build
	// list's directory.
	TempDir string

	// ConfirmOversize decides whether an oversized fixed-rate build may
	// stand. Leaving it nil rejects oversize. Only safe to accept when
	// the result is saved standalone rather than spliced into a host.
	ConfirmOversize func(actual, target int64) bool

	// OnStatus, if set, observes state transitions.
	OnStatus func(Status)
}

func (e *Engine) setStatus(s Status) {
	if e.OnStatus != nil {
		e.OnStatus(s)
	}
}

// logger never returns nil so an Engine built without one still runs.
func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e.Logger
}

// Rebuild produces outputPath from the build list so that its size is
// exactly targetSize (or larger only under explicit oversize
// confirmation). On any error the output file is not left oversized or
// half-padded.
func (e *Engine) Rebuild(ctx context.Context, buildListPath, outputPath string, opts Options, targetSize int64) error {
	e.setStatus(StatusPreparing)

	if targetSize <= 0 {
		e.setStatus(StatusAborted)
		return fmt.Errorf("target size %d is not positive", targetSize)
	}

	var err error
	if opts.Format.VariableRate() {
		err = e.rebuildSearched(ctx, buildListPath, outputPath, opts, targetSize)
	} else {
		err = e.rebuildFixed(ctx, buildListPath, outputPath, opts, targetSize)
	}
	if err != nil {
		e.setStatus(StatusAborted)
		return err
	}

	e.setStatus(StatusDone)
	return nil
}

// rebuildFixed performs exactly one build at the requested settings.
func (e *Engine) rebuildFixed(ctx context.Context, buildListPath, outputPath string, opts Options, targetSize int64) error {
	e.setStatus(StatusBuilding)

	size, err := e.build(ctx, buildListPath, outputPath, opts.Format, opts.Quality)
	if err != nil {
		return err
	}

	switch {
	case size > targetSize:
		// Not auto-corrected: splicing an oversized bank corrupts the
		// host, so the caller must opt in knowingly.
		if e.ConfirmOversize != nil && e.ConfirmOversize(size, targetSize) {
			e.logger().Warn("oversize accepted", "size", size, "target", targetSize)
			return nil
		}
		_ = os.Remove(outputPath)
		return fmt.Errorf("%w: %d > %d bytes", ErrOversizeRejected, size, targetSize)
	case size < targetSize:
		e.setStatus(StatusPadding)
		if err := padWithZeros(outputPath, size, targetSize); err != nil {
			return err
		}
	}
	return nil
}

// rebuildSearched binary-searches quality 0..100 for the largest value
// whose output fits, then performs one final real build at it.
func (e *Engine) rebuildSearched(ctx context.Context, buildListPath, outputPath string, opts Options, targetSize int64) error {
	e.setStatus(StatusBuilding)

	tempDir := e.TempDir
	if tempDir == "" {
		tempDir = filepath.Dir(buildListPath)
	}

	best := -1
	low, high := minQuality, maxQuality
	if opts.Quality > minQuality && opts.Quality < maxQuality {
		high = opts.Quality
	}
	top := high
	for low <= high {
		if err := ctx.Err(); err != nil {
			return err
		}
		mid := (low + high) / 2

		probePath := filepath.Join(tempDir, "probe-"+uuid.NewString()+".fsb")
		size, err := e.build(ctx, buildListPath, probePath, opts.Format, mid)
		_ = os.Remove(probePath)

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// A failed probe counts as "does not fit": other qualities
			// may still succeed.
			e.logger().Warn("probe build failed", "quality", mid, "err", err)
			high = mid - 1
			continue
		}

		e.logger().Debug("probe", "quality", mid, "size", size, "target", targetSize)
		if size <= targetSize {
			best = mid
			low = mid + 1
		} else {
			high = mid - 1
		}
	}

	if best < 0 {
		return fmt.Errorf("%w: tried qualities %d..%d against %d bytes",
			ErrUnsatisfiable, minQuality, top, targetSize)
	}

	size, err := e.build(ctx, buildListPath, outputPath, opts.Format, best)
	if err != nil {
		return err
	}
	if size > targetSize {
		// The search invariant says this cannot happen; a non-monotonic
		// encoder gets a hard failure, never a silently broken splice.
		_ = os.Remove(outputPath)
		return fmt.Errorf("final build at quality %d produced %d bytes over target %d", best, size, targetSize)
	}
	if size < targetSize {
		e.setStatus(StatusPadding)
		if err := padWithZeros(outputPath, size, targetSize); err != nil {
			return err
		}
	}

	e.logger().Info("rebuild fitted", "quality", best, "size", size, "target", targetSize)
	return nil
}

func (e *Engine) build(ctx context.Context, buildListPath, outputPath string, format fsb.EncodingKind, quality int) (int64, error) {
	return e.Encoder.Build(ctx, encoder.Request{
		BuildListPath: buildListPath,
		OutputPath:    outputPath,
		Format:        format,
		Quality:       quality,
	}, func(line string) {
		e.logger().Debug("encoder", "line", line)
	})
}

// padWithZeros extends path from size to exactly target bytes.
func padWithZeros(path string, size, target int64) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("open for padding: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(make([]byte, target-size)); err != nil {
		return fmt.Errorf("pad %d bytes: %w", target-size, err)
	}
	return f.Close()
}

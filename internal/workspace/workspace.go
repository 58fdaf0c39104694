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

// Package workspace builds the temporary, self-contained build set the
// external encoder consumes: one exported WAV per sample, an ordered
// build list, and a manifest of per-sample metadata.
package workspace

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"fsbrepack/internal/decode"
	"fsbrepack/internal/export"
	"fsbrepack/internal/fsb"
	"fsbrepack/internal/scan"
)

const (
	// BuildListName is the build list's file name inside a workspace.
	BuildListName = "buildlist.txt"

	bankFileName = "bank.fsb"
	lockFileName = ".lock"
)

// Workspace owns one rebuild session's on-disk build set. It is created
// by Prepare and must be released with Cleanup on every exit path.
type Workspace struct {
	Root     string
	BankPath string
	// OriginalSize is the bank's byte length inside the host: the exact
	// budget a rebuilt bank must fit.
	OriginalSize int64

	manifest *Manifest
	lock     *flock.Flock
	logger   *slog.Logger
}

// ManifestPath returns the manifest's location inside the workspace.
func (w *Workspace) ManifestPath() string {
	return filepath.Join(w.Root, ManifestName)
}

// BuildListPath returns the build list's location inside the workspace.
func (w *Workspace) BuildListPath() string {
	return filepath.Join(w.Root, BuildListName)
}

// Manifest returns the current in-memory manifest.
func (w *Workspace) Manifest() *Manifest {
	return w.manifest
}

// Prepare builds a workspace for the bank identified by rec. The
// workspace directory is derived from the host file name and the bank
// offset, so sessions for different banks never collide; a stale
// directory from an earlier run of the same bank is replaced. The bank's
// bytes are copied out of the host into an isolated file, every sample
// is exported as a WAV into an index-numbered subfolder, and the
// manifest and build list are persisted.
func Prepare(ctx context.Context, logger *slog.Logger, engine decode.Engine, rec scan.ContainerRecord, baseDir string) (_ *Workspace, err error) {
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), "fsbrepack")
	}

	root := filepath.Join(baseDir, fmt.Sprintf("%s_0x%X", sanitizeName(filepath.Base(rec.HostPath)), rec.Offset))
	if err := os.RemoveAll(root); err != nil {
		return nil, fmt.Errorf("reset workspace %s: %w", root, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace %s: %w", root, err)
	}

	lock := flock.New(filepath.Join(root, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock workspace %s: %w", root, err)
	}
	if !locked {
		return nil, fmt.Errorf("workspace %s is in use by another rebuild", root)
	}

	// The workspace is held in a local so the deferred unwind still has
	// it after a `return nil, err` clears the returned pointer.
	w := &Workspace{Root: root, BankPath: filepath.Join(root, bankFileName), lock: lock, logger: logger}
	defer func() {
		if err != nil {
			w.Cleanup()
		}
	}()

	if err := exportBankBytes(rec, w.BankPath, &w.OriginalSize); err != nil {
		return nil, err
	}

	bank, err := engine.Open(w.BankPath, 0)
	if err != nil {
		return nil, fmt.Errorf("open bank: %w", err)
	}
	defer bank.Close()

	count := bank.NumSubSounds()
	if count == 0 {
		// A bank with zero reported sub-sounds still carries one implicit
		// stream at index 0.
		count = 1
	}

	manifest := &Manifest{SubSounds: make([]Entry, 0, count)}
	paths := make([]string, 0, count)

	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sub, err := bank.SubSound(i)
		if err != nil {
			return nil, fmt.Errorf("enumerate sub-sound %d: %w", i, err)
		}
		if i == 0 {
			manifest.BuildFormat = string(sub.Kind)
		}

		subDir := filepath.Join(root, fmt.Sprintf("%03d", i))
		if err := os.MkdirAll(subDir, 0o755); err != nil {
			return nil, fmt.Errorf("create sample folder: %w", err)
		}

		name := sanitizeName(sub.Name)
		if name == "" {
			name = fmt.Sprintf("subsound%d", i)
		}
		rel := filepath.Join(fmt.Sprintf("%03d", i), name+".wav")

		if _, err := export.Sample(logger, bank, rec.HostPath, i, filepath.Join(root, rel)); err != nil {
			return nil, fmt.Errorf("export sample: %w", err)
		}

		manifest.SubSounds = append(manifest.SubSounds, Entry{
			Index:            i,
			Name:             sub.Name,
			OriginalFileName: rel,
			Looping:          sub.Looping,
			LoopStartMs:      sub.LoopStartMs,
			LoopEndMs:        sub.LoopEndMs,
		})
		paths = append(paths, filepath.Join(root, rel))
	}

	w.manifest = manifest
	if err := manifest.Save(w.ManifestPath()); err != nil {
		return nil, err
	}
	if err := writeBuildList(w.BuildListPath(), paths); err != nil {
		return nil, err
	}

	logger.Info("workspace prepared", "root", root, "samples", count, "bank_size", w.OriginalSize)
	return w, nil
}

// Substitute decodes the replacement audio file and overwrites the
// exported WAV recorded for targetIndex, then persists the manifest with
// the chosen target encoding. It can be called once per target before a
// single rebuild.
func (w *Workspace) Substitute(engine decode.Engine, targetIndex int, replacementPath string, target fsb.EncodingKind) error {
	manifest, err := LoadManifest(w.ManifestPath())
	if err != nil {
		return err
	}

	entry, err := manifest.Entry(targetIndex)
	if err != nil {
		return err
	}

	repl, err := engine.Open(replacementPath, 0)
	if err != nil {
		return fmt.Errorf("open replacement %s: %w", replacementPath, err)
	}
	defer repl.Close()

	dest := filepath.Join(w.Root, entry.OriginalFileName)
	if _, err := export.Sample(w.logger, repl, replacementPath, 0, dest); err != nil {
		return fmt.Errorf("substitute sample %d: %w", targetIndex, err)
	}

	manifest.BuildFormat = string(target)
	if err := manifest.Save(w.ManifestPath()); err != nil {
		return err
	}

	w.manifest = manifest
	w.logger.Info("sample substituted", "index", targetIndex, "with", replacementPath, "format", target)
	return nil
}

// Cleanup releases the lock and deletes the workspace tree. It is safe
// to call on every exit path, success or failure.
func (w *Workspace) Cleanup() {
	if w.lock != nil {
		_ = w.lock.Unlock()
		w.lock = nil
	}
	if w.Root != "" {
		if err := os.RemoveAll(w.Root); err != nil && w.logger != nil {
			w.logger.Error("workspace cleanup", "root", w.Root, "err", err)
		}
	}
}

func exportBankBytes(rec scan.ContainerRecord, destPath string, size *int64) error {
	host, err := os.Open(rec.HostPath)
	if err != nil {
		return fmt.Errorf("open host: %w", err)
	}
	defer host.Close()

	st, err := host.Stat()
	if err != nil {
		return err
	}

	hdr, _, err := fsb.ParseBank(host, rec.Offset, st.Size()-rec.Offset)
	if err != nil {
		return fmt.Errorf("parse bank at offset %d: %w", rec.Offset, err)
	}

	total := hdr.TotalSize()
	if rec.Offset+total > st.Size() {
		total = st.Size() - rec.Offset
	}
	*size = total

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create bank copy: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, io.NewSectionReader(host, rec.Offset, total)); err != nil {
		return fmt.Errorf("copy bank bytes: %w", err)
	}
	return out.Close()
}

func writeBuildList(path string, paths []string) error {
	var sb strings.Builder
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		sb.WriteString(abs)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write build list: %w", err)
	}
	return nil
}

func sanitizeName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			return '_'
		}
		return r
	}, name)
	return strings.TrimSpace(name)
}

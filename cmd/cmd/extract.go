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
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"fsbrepack/internal/decode"
	"fsbrepack/internal/export"
	"fsbrepack/internal/scan"
)

func DefineExtractCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "extract <host>",
		Short:        "Export bank samples as WAV files",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         RunExtract,
	}

	cmd.Flags().StringP("dump", "d", "", "destination directory (default: <host>_samples)")
	cmd.Flags().IntP("bank", "b", -1, "extract only the bank at this index")
	cmd.Flags().IntP("index", "i", -1, "extract only the sample at this index")
	cmd.Flags().String("chunk-size", "64KB", "the size of the scan buffer")

	return cmd
}

func RunExtract(cmd *cobra.Command, args []string) error {
	logger, closeLog, err := sessionLogger(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	hostPath := args[0]
	bankIdx, _ := cmd.Flags().GetInt("bank")
	sampleIdx, _ := cmd.Flags().GetInt("index")

	dumpDir, _ := cmd.Flags().GetString("dump")
	if dumpDir == "" {
		dumpDir = strings.TrimSuffix(filepath.Base(hostPath), filepath.Ext(hostPath)) + "_samples"
	}

	results := scan.ScanFiles(cmd.Context(), []string{hostPath}, scan.Options{
		ChunkSize:   int(getBytes(cmd, "chunk-size", scan.DefaultChunkSize)),
		WithSamples: true,
		Logger:      logger,
	})
	res := &results[0]
	if res.Failed() {
		return res.Err
	}
	if len(res.Banks) == 0 {
		return fmt.Errorf("no banks found in %s", hostPath)
	}
	if bankIdx >= len(res.Banks) {
		return fmt.Errorf("bank %d out of range (%d found)", bankIdx, len(res.Banks))
	}

	engine := decode.Serialize(decode.NewPCMEngine())

	var tally extractTally
	for i, b := range res.Banks {
		if bankIdx >= 0 && i != bankIdx {
			continue
		}

		bankDir := filepath.Join(dumpDir, fmt.Sprintf("bank_%02d_0x%X", i, b.Record.Offset))
		if err := os.MkdirAll(bankDir, 0o755); err != nil {
			return err
		}

		if err := extractBank(cmd, logger, engine, hostPath, b, sampleIdx, bankDir, &tally); err != nil {
			return err
		}
	}

	fmt.Printf("[INFO] Exported %d sample(s) to %s (%d skipped, %d failed)\n", tally.exported, dumpDir, tally.skipped, tally.failed)
	logger.Info("extract finished", "host", hostPath,
		"exported", tally.exported, "skipped", tally.skipped, "failed", tally.failed)
	return nil
}

// extractTally aggregates per-sample outcomes across banks. A sample
// failure never aborts the run, only cancellation does.
type extractTally struct {
	exported int
	skipped  int
	failed   int
}

func extractBank(cmd *cobra.Command, logger *slog.Logger, engine decode.Engine, hostPath string, b scan.Bank, sampleIdx int, bankDir string, tally *extractTally) error {
	bank, err := engine.Open(hostPath, b.Record.Offset)
	if err != nil {
		return fmt.Errorf("open bank at 0x%X: %w", b.Record.Offset, err)
	}
	defer bank.Close()

	count := bank.NumSubSounds()
	if count == 0 {
		count = 1
	}
	if sampleIdx >= count {
		return fmt.Errorf("sample %d out of range (%d in bank)", sampleIdx, count)
	}

	source := fmt.Sprintf("%s@0x%X", filepath.Base(hostPath), b.Record.Offset)
	for idx := 0; idx < count; idx++ {
		if sampleIdx >= 0 && idx != sampleIdx {
			continue
		}
		if err := cmd.Context().Err(); err != nil {
			return err
		}

		sub, err := bank.SubSound(idx)
		if err != nil {
			logger.Warn("skipping unreadable sample entry", "source", source, "index", idx, "error", err)
			tally.failed++
			continue
		}
		destPath := filepath.Join(bankDir, fmt.Sprintf("%03d_%s.wav", idx, sanitizeSampleName(sub.Name)))

		result, err := export.Sample(logger, bank, source, idx, destPath)
		switch {
		case err == nil:
			tally.exported++
			if result.Short {
				logger.Warn("sample exported short", "path", result.Path, "written", result.Written)
			}
		case errors.Is(err, decode.ErrUnsupported), errors.Is(err, decode.ErrUndeterminable):
			logger.Warn("skipping undecodable sample", "source", source, "index", idx, "error", err)
			tally.skipped++
		default:
			logger.Warn("sample export failed", "source", source, "index", idx, "error", err)
			tally.failed++
		}
	}
	return nil
}

// sanitizeSampleName makes a sample name safe as a file name component.
func sanitizeSampleName(name string) string {
	if name == "" {
		return "sample"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, name)
}

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
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"fsbrepack/internal/env"
	"fsbrepack/internal/report"
	"fsbrepack/internal/scan"
	"fsbrepack/pkg/pbar"
	"fsbrepack/pkg/util/format"
)

func DefineScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "scan <path>...",
		Short:        "Scan host files for embedded sound banks",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE:         RunScan,
	}

	cmd.Flags().IntP("workers", "w", scan.DefaultWorkers, "number of files scanned concurrently")
	cmd.Flags().String("chunk-size", "64KB", "the size of the scan buffer")
	cmd.Flags().Bool("no-samples", false, "skip parsing each bank's sample table")
	cmd.Flags().StringP("output", "o", "", "write an XML report of the findings (single host only)")

	return cmd
}

func RunScan(cmd *cobra.Command, args []string) error {
	logger, closeLog, err := sessionLogger(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	paths, err := expandPaths(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no files to scan")
	}

	outputFile, _ := cmd.Flags().GetString("output")
	if outputFile != "" && len(paths) != 1 {
		return fmt.Errorf("-o requires a single host file, got %d", len(paths))
	}

	workers, _ := cmd.Flags().GetInt("workers")
	noSamples, _ := cmd.Flags().GetBool("no-samples")

	opts := scan.Options{
		ChunkSize:   int(getBytes(cmd, "chunk-size", scan.DefaultChunkSize)),
		Workers:     workers,
		WithSamples: !noSamples,
		Logger:      logger,
	}

	var bar *pbar.ProgressBarState
	if stdoutIsTerminal() {
		if total := totalSize(paths); total > 0 {
			bar = pbar.NewProgressBarState(total)
			var mtx sync.Mutex
			perFile := make(map[string]int64, len(paths))
			opts.OnProgress = func(path string, processed, _ int64) {
				mtx.Lock()
				perFile[path] = processed
				var sum int64
				for _, v := range perFile {
					sum += v
				}
				bar.ProcessedBytes = sum
				bar.Render(false)
				mtx.Unlock()
			}
		}
	}

	start := time.Now()
	results := scan.ScanFiles(cmd.Context(), paths, opts)
	if bar != nil {
		bar.ProcessedBytes = bar.TotalBytes
		bar.Render(true)
		bar.Finish()
	}

	banksFound := 0
	failures := 0
	for i := range results {
		res := &results[i]
		if res.Failed() {
			failures++
			fmt.Printf("[ERROR] %s: %v\n", res.Path, res.Err)
			continue
		}
		banksFound += len(res.Banks)
		printFileResult(res)
	}

	fmt.Printf("[INFO] Scanned %d file(s) in %s: %d bank(s) found, %d failure(s)\n",
		len(paths), scan.FormatDurationHMS(time.Since(start)), banksFound, failures)

	if outputFile != "" && !results[0].Failed() {
		if err := writeReport(outputFile, &results[0]); err != nil {
			return err
		}
		fmt.Printf("[INFO] Report written to %s\n", outputFile)
	}

	logger.Info("scan finished", "files", len(paths), "banks", banksFound, "failures", failures)
	return nil
}

func printFileResult(res *scan.FileResult) {
	fmt.Printf("\n%s (%s): %d bank(s)\n", res.Path, format.FormatBytes(res.Size), len(res.Banks))
	if len(res.Banks) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Offset", "Size", "Samples", "Encoding"})
	for i, b := range res.Banks {
		t.AppendRow(table.Row{
			i,
			fmt.Sprintf("0x%X", b.Record.Offset),
			format.FormatBytes(b.TotalSize),
			len(b.Samples),
			bankEncoding(b),
		})
	}
	t.Render()
}

// bankEncoding summarizes a bank's sample encodings for display.
func bankEncoding(b scan.Bank) string {
	if len(b.Samples) == 0 {
		return "-"
	}
	first := b.Samples[0].Kind
	for _, s := range b.Samples[1:] {
		if s.Kind != first {
			return "mixed"
		}
	}
	return string(first)
}

func writeReport(path string, res *scan.FileResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := report.NewWriter(f)
	err = w.WriteHeader(report.Header{
		Version: report.Version,
		Creator: report.NewCreator(env.AppName, env.Version),
		Source: report.Source{
			HostFilename: res.Path,
			HostSize:     res.Size,
		},
	})
	if err != nil {
		return err
	}

	for _, b := range res.Banks {
		rb := report.Bank{
			Offset: b.Record.Offset,
			Size:   b.TotalSize,
		}
		for _, s := range b.Samples {
			rb.Samples = append(rb.Samples, report.Sample{
				Index:      s.Index,
				Name:       s.Name,
				Encoding:   string(s.Kind),
				Channels:   s.Channels,
				Bits:       s.Bits,
				SampleRate: s.SampleRate,
				DataOffset: s.DataOffset,
				DataLength: s.DataLength,
			})
		}
		if err := w.WriteBank(rb); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	return f.Close()
}

// expandPaths flattens directories into the regular files they contain.
func expandPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return paths, nil
}

func totalSize(paths []string) int64 {
	var total int64
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			total += info.Size()
		}
	}
	return total
}

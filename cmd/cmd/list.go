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
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"fsbrepack/internal/report"
	"fsbrepack/internal/scan"
	"fsbrepack/pkg/util/format"
)

func DefineListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "list <host>",
		Short:        "List every bank and sample inside a host file",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE:         RunList,
	}

	cmd.Flags().IntP("bank", "b", -1, "restrict the listing to the bank at this index")
	cmd.Flags().String("chunk-size", "64KB", "the size of the scan buffer")
	cmd.Flags().String("from-report", "", "list from a saved scan report instead of scanning")

	return cmd
}

func RunList(cmd *cobra.Command, args []string) error {
	logger, closeLog, err := sessionLogger(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	bankIdx, _ := cmd.Flags().GetInt("bank")
	reportFile, _ := cmd.Flags().GetString("from-report")

	if reportFile != "" {
		return listFromReport(reportFile, bankIdx)
	}
	if len(args) != 1 {
		return fmt.Errorf("a host file is required unless --from-report is given")
	}

	results := scan.ScanFiles(cmd.Context(), args, scan.Options{
		ChunkSize:   int(getBytes(cmd, "chunk-size", scan.DefaultChunkSize)),
		WithSamples: true,
		Logger:      logger,
	})
	res := &results[0]
	if res.Failed() {
		return res.Err
	}

	fmt.Printf("%s (%s): %d bank(s)\n", res.Path, format.FormatBytes(res.Size), len(res.Banks))
	for i, b := range res.Banks {
		if bankIdx >= 0 && i != bankIdx {
			continue
		}
		fmt.Printf("\nBank %d @ 0x%X (%s, %d sample(s))\n",
			i, b.Record.Offset, format.FormatBytes(b.TotalSize), len(b.Samples))

		t := sampleTable()
		for _, s := range b.Samples {
			length := format.FormatBytes(s.DataLength)
			if s.Undeterminable() {
				length = "?"
			}
			t.AppendRow(table.Row{
				s.Index, s.Name, string(s.Kind), s.Channels, s.Bits,
				s.SampleRate, s.LengthMs, length, loopColumn(s.Looping, s.LoopStartMs, s.LoopEndMs),
			})
		}
		t.Render()
	}
	return nil
}

func listFromReport(path string, bankIdx int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	hdr, banks, err := report.Read(f)
	if err != nil {
		return fmt.Errorf("read report %s: %w", path, err)
	}

	fmt.Printf("%s (%s): %d bank(s)\n",
		hdr.Source.HostFilename, format.FormatBytes(hdr.Source.HostSize), len(banks))
	for i, b := range banks {
		if bankIdx >= 0 && i != bankIdx {
			continue
		}
		fmt.Printf("\nBank %d @ 0x%X (%s, %d sample(s))\n",
			i, b.Offset, format.FormatBytes(b.Size), len(b.Samples))

		t := sampleTable()
		for _, s := range b.Samples {
			t.AppendRow(table.Row{
				s.Index, s.Name, s.Encoding, s.Channels, s.Bits,
				s.SampleRate, "-", format.FormatBytes(s.DataLength), "-",
			})
		}
		t.Render()
	}
	return nil
}

func sampleTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Name", "Encoding", "Ch", "Bits", "Rate", "Len (ms)", "Data", "Loop"})
	return t
}

func loopColumn(looping bool, startMs, endMs int64) string {
	if !looping {
		return "-"
	}
	return fmt.Sprintf("%d..%dms", startMs, endMs)
}

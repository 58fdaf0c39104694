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
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"fsbrepack/internal/decode"
	"fsbrepack/internal/fuse"
	"fsbrepack/internal/wav"
)

func DefineMountCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mount <host>",
		Short: "Mount a bank's samples as a read-only directory of WAV files",
		Long: `The 'mount' command exposes the samples of one bank as virtual WAV
files, decoded on demand. Nothing is extracted to disk; unmount with
Ctrl-C or a SIGTERM.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         RunMount,
	}

	cmd.Flags().StringP("mountpoint", "m", "", "directory where the samples will be mounted (default: derived from the host name)")
	cmd.Flags().String("offset", "0", "bank offset inside the host (e.g. 0x6400)")

	return cmd
}

func RunMount(cmd *cobra.Command, args []string) error {
	logger, closeLog, err := sessionLogger(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	hostPath := args[0]
	offsetStr, _ := cmd.Flags().GetString("offset")
	offset, err := parseOffset(offsetStr)
	if err != nil {
		return err
	}

	mountpoint, _ := cmd.Flags().GetString("mountpoint")
	if mountpoint == "" {
		mountpoint = defaultMountpoint(hostPath)
	}

	engine := decode.Serialize(decode.NewPCMEngine())
	bank, err := engine.Open(hostPath, offset)
	if err != nil {
		return err
	}
	defer bank.Close()

	entries, err := wavEntries(bank)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("bank at 0x%X has no decodable samples", offset)
	}

	fmt.Printf("[INFO] Mounting %d sample(s) at %s\n", len(entries), mountpoint)
	return fuse.Mount(logger, mountpoint, entries)
}

// wavEntries builds one virtual WAV per decodable sub-sound. Samples
// with unsupported encodings are left out rather than failing the mount.
func wavEntries(bank decode.Bank) ([]fuse.WavEntry, error) {
	count := bank.NumSubSounds()
	if count == 0 {
		count = 1
	}

	entries := make([]fuse.WavEntry, 0, count)
	for idx := 0; idx < count; idx++ {
		sub, err := bank.SubSound(idx)
		if err != nil {
			return nil, err
		}
		// Unsupported encodings and undeterminable ranges report a zero
		// decoded length; there is nothing to serve for them.
		if sub.PCMLength == 0 {
			continue
		}

		tag := uint16(wav.FormatPCM)
		if sub.Float {
			tag = wav.FormatFloat
		}
		hdr := make([]byte, wav.HeaderSize)
		wav.EncodeHeader(hdr, wav.Format{
			FormatTag:  tag,
			Channels:   uint16(sub.Channels),
			SampleRate: uint32(sub.SampleRate),
			Bits:       uint16(sub.Bits),
		}, uint32(sub.PCMLength))

		index := idx
		entries = append(entries, fuse.WavEntry{
			Name:        fmt.Sprintf("%03d_%s.wav", idx, sanitizeSampleName(sub.Name)),
			Header:      hdr,
			PayloadSize: sub.PCMLength,
			Open: func() (io.ReadCloser, error) {
				return bank.Reader(index)
			},
		})
	}
	return entries, nil
}

// defaultMountpoint derives a mountpoint name from the host file name.
func defaultMountpoint(hostPath string) string {
	base := filepath.Base(hostPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return base + "_mnt"
}

func parseOffset(s string) (int64, error) {
	offset, err := strconv.ParseInt(s, 0, 64)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("invalid offset %q", s)
	}
	return offset, nil
}

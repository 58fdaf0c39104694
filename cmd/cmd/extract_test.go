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
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"fsbrepack/internal/fsb"
	"fsbrepack/internal/testsupport"
)

// runExtractCmd executes the extract command standalone, with the
// persistent logging flags the root command would normally supply.
func runExtractCmd(t *testing.T, args ...string) error {
	t.Helper()

	cmd := DefineExtractCommand()
	cmd.Flags().String("log-level", "error", "")
	cmd.Flags().Bool("no-log", true, "")
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestExtractSurvivesCorruptSampleEntry(t *testing.T) {
	dir := t.TempDir()
	bank := testsupport.BuildBank(t, 1,
		testsupport.PCM16Sample("broken", 50),
		testsupport.PCM16Sample("voice", 80),
	)
	// Blow up the first entry's declared payload length so its range no
	// longer resolves inside the bank.
	binary.LittleEndian.PutUint32(bank[fsb.HeaderSize+56:], 0xFFFFFFFF)

	host := testsupport.WriteHost(t, dir, "host.big",
		int64(0x200+len(bank)+128), map[int64][]byte{0x200: bank})
	dump := filepath.Join(dir, "out")

	// The corrupt entry is counted, not fatal.
	require.NoError(t, runExtractCmd(t, host, "-d", dump))

	entries, err := os.ReadDir(filepath.Join(dump, "bank_00_0x200"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "001_voice.wav", entries[0].Name())
}

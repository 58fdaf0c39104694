// Package testsupport builds synthetic FSB banks and host files for
// tests. Nothing here is imported by production code.
package testsupport

import (
	"encoding/binary"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"fsbrepack/internal/fsb"
)

// BankSample describes one sample of a synthetic bank.
type BankSample struct {
	Name       string
	Mode       uint32
	SampleRate int32
	Channels   uint16
	Bits       uint16
	LoopStart  uint32
	LoopEnd    uint32
	Payload    []byte
}

// PCM16Sample returns a mono 16-bit PCM sample of n frames with a
// deterministic payload.
func PCM16Sample(name string, n int) BankSample {
	rnd := rand.New(rand.NewSource(int64(len(name)) + int64(n)))
	payload := make([]byte, n*2)
	for i := 0; i < len(payload); i += 2 {
		binary.LittleEndian.PutUint16(payload[i:], uint16(rnd.Intn(1<<16)))
	}
	return BankSample{
		Name:       name,
		Mode:       fsb.ModePCM16,
		SampleRate: 44100,
		Channels:   1,
		Bits:       16,
		Payload:    payload,
	}
}

// BuildBank assembles a complete bank image with the given header-table
// sub-version (1 or 2) and samples, laid out back to back in the data
// section.
func BuildBank(t *testing.T, subVersion uint32, samples ...BankSample) []byte {
	t.Helper()

	entrySize := fsb.SampleEntrySizeV1
	if subVersion == 2 {
		entrySize = fsb.SampleEntrySizeV2
	}

	table := make([]byte, entrySize*len(samples))
	var data []byte
	for i, s := range samples {
		frameSize := int(s.Channels) * int(s.Bits) / 8
		lengthSamples := uint32(0)
		if frameSize > 0 {
			lengthSamples = uint32(len(s.Payload) / frameSize)
		}
		fsb.EncodeSampleEntry(table[i*entrySize:], subVersion, fsb.SampleEntry{
			Name:          s.Name,
			LengthSamples: lengthSamples,
			LoopStart:     s.LoopStart,
			LoopEnd:       s.LoopEnd,
			Mode:          s.Mode,
			SampleRate:    s.SampleRate,
			Channels:      s.Channels,
			Bits:          s.Bits,
			DataOffset:    uint32(len(data)),
			DataLength:    uint32(len(s.Payload)),
		})
		data = append(data, s.Payload...)
	}

	hdr := fsb.Header{
		Version:           0x00040000,
		NumSamples:        int32(len(samples)),
		SampleHeadersSize: uint32(len(table)),
		DataSize:          uint32(len(data)),
		SubVersion:        subVersion,
	}

	bank := make([]byte, fsb.HeaderSize, fsb.HeaderSize+len(table)+len(data))
	hdr.EncodeTo(bank)
	bank = append(bank, table...)
	bank = append(bank, data...)
	return bank
}

// WriteHost writes a host file embedding the given bank images at the
// given offsets, filling the gaps with a deterministic junk pattern, and
// returns its path.
func WriteHost(t *testing.T, dir, name string, totalSize int64, banks map[int64][]byte) string {
	t.Helper()

	host := make([]byte, totalSize)
	rnd := rand.New(rand.NewSource(totalSize))
	for i := range host {
		b := byte(rnd.Intn(256))
		if b == 'F' { // keep junk free of accidental signature starts
			b = 0
		}
		host[i] = b
	}
	for off, bank := range banks {
		require.LessOrEqual(t, off+int64(len(bank)), totalSize)
		copy(host[off:], bank)
	}

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, host, 0o644))
	return path
}

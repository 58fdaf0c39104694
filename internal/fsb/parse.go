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
package fsb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNotFSB marks a candidate whose bytes do not form a coherent bank
// header. Callers skip the candidate; it is never fatal.
var ErrNotFSB = errors.New("not an FSB bank")

// ParseHeader decodes the primary header from data, which must hold at
// least HeaderSize bytes starting at the bank signature.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes available, header needs %d", ErrNotFSB, len(data), HeaderSize)
	}
	if !bytes.Equal(data[0:4], Signature) {
		return nil, fmt.Errorf("%w: bad magic %q", ErrNotFSB, data[0:4])
	}

	h := &Header{
		Version:           binary.LittleEndian.Uint32(data[4:8]),
		NumSamples:        int32(binary.LittleEndian.Uint32(data[8:12])),
		SampleHeadersSize: binary.LittleEndian.Uint32(data[12:16]),
		DataSize:          binary.LittleEndian.Uint32(data[16:20]),
		SubVersion:        binary.LittleEndian.Uint32(data[20:24]),
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// Validate applies the header sanity checks shared by the scanner and
// the full parser.
func (h *Header) Validate() error {
	if h.NumSamples < 0 {
		return fmt.Errorf("%w: negative sample count %d", ErrNotFSB, h.NumSamples)
	}
	switch h.SubVersion {
	case subVersionV1, subVersionV2:
	default:
		return fmt.Errorf("%w: unsupported header-table sub-version %d", ErrNotFSB, h.SubVersion)
	}
	if h.NumSamples > 0 && int64(h.SampleHeadersSize) < int64(h.NumSamples)*int64(h.EntrySize()) {
		return fmt.Errorf("%w: header table %d bytes cannot hold %d entries",
			ErrNotFSB, h.SampleHeadersSize, h.NumSamples)
	}
	return nil
}

// ValidateCandidate decides, from buffered bytes alone, whether a
// signature match at the start of data is worth a full parse. It never
// touches the underlying stream so a concurrent scan cursor cannot be
// raced. avail is the number of host bytes remaining from the candidate
// to end of file.
func ValidateCandidate(data []byte, avail int64) bool {
	if avail < HeaderSize {
		return false
	}
	h, err := ParseHeader(data)
	if err != nil {
		return false
	}
	return HeaderSize+int64(h.NumSamples)*int64(h.EntrySize()) <= avail
}

// ParseBank decodes the primary header and the full sample-header table
// of a bank starting at offset start within r. avail is the number of
// bytes readable from start; any sample whose declared payload range
// does not fit in avail is returned with a zeroed range instead of an
// error so the caller can treat it as undeterminable.
func ParseBank(r io.ReaderAt, start, avail int64) (*Header, []SampleHeader, error) {
	var hdrBuf [HeaderSize]byte
	if _, err := r.ReadAt(hdrBuf[:], start); err != nil {
		return nil, nil, fmt.Errorf("read primary header: %w", err)
	}

	h, err := ParseHeader(hdrBuf[:])
	if err != nil {
		return nil, nil, err
	}

	entrySize := h.EntrySize()
	tableLen := int64(h.NumSamples) * int64(entrySize)
	if tableLen > avail-HeaderSize {
		return nil, nil, fmt.Errorf("%w: sample-header table exceeds available bytes", ErrNotFSB)
	}

	table := make([]byte, tableLen)
	if tableLen > 0 {
		if _, err := r.ReadAt(table, start+HeaderSize); err != nil {
			return nil, nil, fmt.Errorf("read sample-header table: %w", err)
		}
	}

	samples := make([]SampleHeader, 0, h.NumSamples)
	for i := 0; i < int(h.NumSamples); i++ {
		entry := table[int64(i)*int64(entrySize) : int64(i+1)*int64(entrySize)]
		samples = append(samples, parseSampleEntry(h, i, entry, avail))
	}
	return h, samples, nil
}

func parseSampleEntry(h *Header, index int, entry []byte, avail int64) SampleHeader {
	name := string(bytes.TrimRight(entry[2:32], "\x00"))
	name = strings.ToValidUTF8(name, "")

	lengthSamples := binary.LittleEndian.Uint32(entry[32:36])
	loopStart := binary.LittleEndian.Uint32(entry[36:40])
	loopEnd := binary.LittleEndian.Uint32(entry[40:44])
	mode := binary.LittleEndian.Uint32(entry[44:48])
	rate := int32(binary.LittleEndian.Uint32(entry[48:52]))

	var pairOff, chanOff, bitsOff int
	if h.SubVersion == subVersionV2 {
		pairOff, chanOff, bitsOff = dataPairOffsetV2, 58, 60
	} else {
		pairOff, chanOff, bitsOff = dataPairOffsetV1, 60, 62
	}

	relOffset := binary.LittleEndian.Uint32(entry[pairOff : pairOff+4])
	dataLength := binary.LittleEndian.Uint32(entry[pairOff+4 : pairOff+8])

	s := SampleHeader{
		Index:       index,
		Name:        name,
		Kind:        KindFromMode(mode),
		Channels:    int(binary.LittleEndian.Uint16(entry[chanOff : chanOff+2])),
		Bits:        int(binary.LittleEndian.Uint16(entry[bitsOff : bitsOff+2])),
		SampleRate:  int(rate),
		Looping:     mode&ModeLoop != 0,
		LengthMs:    samplesToMs(lengthSamples, rate),
		LoopStartMs: samplesToMs(loopStart, rate),
		LoopEndMs:   samplesToMs(loopEnd, rate),
	}

	// Sanity check: the declared payload range must lie inside the bytes
	// we can actually reach. A violation leaves the range zeroed so the
	// caller falls back to coarser logic instead of failing the bank.
	absOffset := h.DataStart() + int64(relOffset)
	end := absOffset + int64(dataLength)
	if end > avail || end > h.TotalSize() {
		return s
	}

	s.DataOffset = absOffset
	s.DataLength = int64(dataLength)
	return s
}
